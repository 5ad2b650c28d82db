package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"invoicepay-backend/access"
	"invoicepay-backend/mailer"
	"invoicepay-backend/models"
	"invoicepay-backend/payments"
	"invoicepay-backend/repositories"
	"invoicepay-backend/testutil"

	"gorm.io/gorm"
)

const (
	ownerID = "owner-1"
	otherID = "owner-2"
)

type fixture struct {
	db          *gorm.DB
	invoiceRepo repositories.InvoiceRepository
	paymentRepo repositories.PaymentRepository
	invoices    *InvoiceService
	reconciler  *Reconciler
	stripe      *testutil.FakeGateway
	paypal      *testutil.FakeGateway
	mail        *mailer.RecordingMailer
	notifier    *mailer.Notifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:          db,
		invoiceRepo: repositories.NewInvoiceRepository(db),
		paymentRepo: repositories.NewPaymentRepository(db),
		stripe:      testutil.NewFakeGateway(models.ProviderStripe),
		paypal:      testutil.NewFakeGateway(models.ProviderPayPal),
		mail:        &mailer.RecordingMailer{},
	}
	f.notifier = mailer.NewNotifier(f.mail, "Invoicepay", "https://pay.test", time.Second)
	f.invoices = NewInvoiceService(db, f.invoiceRepo, f.paymentRepo, f.notifier, access.NewChecker(f.invoiceRepo))
	f.reconciler = NewReconciler(db, f.invoiceRepo, f.paymentRepo,
		payments.NewGateways(f.stripe, f.paypal), f.notifier,
		ReconcilerOptions{Currency: "usd", Timeout: time.Second})
	return f
}

func sampleInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		ClientName:  "Ada Lovelace",
		ClientEmail: "ada@example.com",
		Items:       []LineItemInput{{Description: "A", Quantity: 2, UnitPrice: d("50")}},
		DueDate:     time.Now().UTC().Add(14 * 24 * time.Hour),
		Notes:       "thanks",
	}
}

func (f *fixture) createInvoice(t *testing.T) *models.Invoice {
	t.Helper()
	inv, err := f.invoices.Create(context.Background(), ownerID, sampleInput())
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func (f *fixture) reload(t *testing.T, id string) *models.Invoice {
	t.Helper()
	inv, err := f.invoiceRepo.FindByID(context.Background(), id)
	if err != nil || inv == nil {
		t.Fatalf("reload invoice %s: %v", id, err)
	}
	return inv
}

func (f *fixture) payments(t *testing.T, invoiceID string) []models.Payment {
	t.Helper()
	ps, err := f.paymentRepo.ListByInvoice(context.Background(), invoiceID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	return ps
}

// sentMail waits for background deliveries and returns what was sent.
func (f *fixture) sentMail() []mailer.Message {
	f.notifier.Wait()
	return f.mail.Sent()
}

// confirmations counts payment confirmation emails sent so far.
func (f *fixture) confirmations() int {
	n := 0
	for _, m := range f.sentMail() {
		if strings.HasPrefix(m.Subject, "Payment received") {
			n++
		}
	}
	return n
}
