package testutil

import (
	"context"
	"fmt"
	"sync"

	"invoicepay-backend/models"
	"invoicepay-backend/payments"

	"github.com/shopspring/decimal"
)

// FakeGateway is an in-memory payments.Gateway. Intent ids are deterministic
// per gateway: "<provider>_test_1", "<provider>_test_2", ...
type FakeGateway struct {
	Name models.Provider

	CreateErr error
	SettleErr error
	// SettleStatus defaults to completed.
	SettleStatus    models.PaymentStatus
	SettleAmount    decimal.Decimal
	SettleInvoiceID string

	mu       sync.Mutex
	seq      int
	requests []payments.IntentRequest
	settles  []string
}

func NewFakeGateway(p models.Provider) *FakeGateway {
	return &FakeGateway{Name: p}
}

func (g *FakeGateway) Provider() models.Provider { return g.Name }

func (g *FakeGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.seq++
	id := fmt.Sprintf("%s_test_%d", g.Name, g.seq)
	return &payments.Intent{
		ProviderID:   id,
		ClientSecret: id + "_secret",
		ApprovalURL:  "https://gateway.test/approve/" + id,
	}, nil
}

func (g *FakeGateway) Settle(ctx context.Context, providerID, invoiceID string) (*payments.Settlement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settles = append(g.settles, providerID)
	if g.SettleErr != nil {
		return nil, g.SettleErr
	}
	if invoiceID != "" && g.SettleInvoiceID != "" && g.SettleInvoiceID != invoiceID {
		return nil, payments.ErrInvoiceMismatch
	}
	status := g.SettleStatus
	if status == "" {
		status = models.PaymentCompleted
	}
	return &payments.Settlement{
		ProviderID: providerID,
		Status:     status,
		Amount:     g.SettleAmount,
		InvoiceID:  g.SettleInvoiceID,
	}, nil
}

func (g *FakeGateway) CreateCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *FakeGateway) SettleCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.settles)
}
