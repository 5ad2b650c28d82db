package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"invoicepay-backend/logger"
	"invoicepay-backend/models"
	"invoicepay-backend/utils"

	"github.com/rs/zerolog"
)

// Notifier sends the invoice lifecycle emails. Every method is fire-and-forget:
// delivery runs in the background, failures are logged and never returned, so
// a slow or failing mail provider cannot delay or fail the triggering request.
type Notifier struct {
	mailer  Mailer
	appName string
	baseURL string
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewNotifier(m Mailer, appName, baseURL string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		mailer:  m,
		appName: appName,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		log:     logger.WithComponent("notifier"),
	}
}

// PublicLink is the capability URL mailed to the client.
func (n *Notifier) PublicLink(invoice *models.Invoice) string {
	return fmt.Sprintf("%s/invoices/%s/%s", n.baseURL,
		url.PathEscape(invoice.InvoiceNumber), url.PathEscape(invoice.AccessToken))
}

func (n *Notifier) InvoiceCreated(ctx context.Context, invoice *models.Invoice) {
	if n == nil {
		return
	}
	data := EmailData{
		AppName: n.appName,
		Title:   fmt.Sprintf("Invoice %s", invoice.InvoiceNumber),
		Intro:   fmt.Sprintf("Hello %s, a new invoice is ready for you.", clientName(invoice)),
		Lines: []string{
			"Amount due: " + invoice.Total.StringFixed(2),
			"Due date: " + invoice.DueDate.Format("2006-01-02"),
		},
		ButtonURL: n.PublicLink(invoice),
		ButtonTxt: "View and pay invoice",
	}
	n.send(ctx, invoice, "invoice_created", data)
}

func (n *Notifier) PaymentConfirmed(ctx context.Context, invoice *models.Invoice, payment *models.Payment) {
	if n == nil {
		return
	}
	data := EmailData{
		AppName: n.appName,
		Title:   fmt.Sprintf("Payment received for %s", invoice.InvoiceNumber),
		Intro:   fmt.Sprintf("Thank you %s, we received your payment.", clientName(invoice)),
		Lines: []string{
			"Amount: " + utils.FormatAmount(payment.Amount, payment.Currency),
			"Method: " + string(payment.PaymentMethod),
			"Reference: " + payment.TransactionID,
		},
		ButtonURL: n.PublicLink(invoice),
		ButtonTxt: "View receipt",
	}
	n.send(ctx, invoice, "payment_confirmed", data)
}

func (n *Notifier) send(ctx context.Context, invoice *models.Invoice, kind string, data EmailData) {
	if n.mailer == nil || invoice.ClientEmail == "" {
		return
	}
	html, text, err := Render(data)
	if err != nil {
		n.log.Error().Err(err).Str("kind", kind).Msg("render email")
		return
	}

	msg := Message{
		To:      invoice.ClientEmail,
		Subject: data.Title,
		HTML:    html,
		Text:    text,
	}
	number := invoice.InvoiceNumber

	// Detached from the request so returning the response does not abort delivery.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := n.mailer.Send(sendCtx, msg); err != nil {
			n.log.Warn().Err(err).
				Str("kind", kind).
				Str("invoice_number", number).
				Msg("email delivery failed; continuing")
			return
		}
		n.log.Debug().Str("kind", kind).Str("invoice_number", number).Msg("email sent")
	}()
}

// Wait blocks until every queued email has been handed to the provider or
// timed out. Called on shutdown.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func clientName(invoice *models.Invoice) string {
	if strings.TrimSpace(invoice.ClientName) != "" {
		return invoice.ClientName
	}
	return invoice.ClientEmail
}
