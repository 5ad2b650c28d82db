// Package payments wraps the payment providers behind one Gateway contract.
// Gateways never touch the database; the reconciler owns all state changes.
package payments

import (
	"context"
	"errors"
	"fmt"

	"invoicepay-backend/models"

	"github.com/shopspring/decimal"
)

type IntentRequest struct {
	InvoiceID     string
	InvoiceNumber string
	ClientEmail   string
	Amount        decimal.Decimal
	Currency      string
}

// Intent is the provider-side object created for one payment attempt.
type Intent struct {
	ProviderID   string // Stripe PaymentIntent id or PayPal order id
	ClientSecret string // Stripe only
	ApprovalURL  string // PayPal only
}

// Settlement is the provider's authoritative view of a transaction.
type Settlement struct {
	ProviderID string
	Status     models.PaymentStatus
	Amount     decimal.Decimal
	InvoiceID  string // from provider metadata when available
}

// ErrInvoiceMismatch means the provider transaction was created for a
// different invoice than the one it is being settled against.
var ErrInvoiceMismatch = errors.New("payment belongs to a different invoice")

type Gateway interface {
	Provider() models.Provider
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// Settle returns the final state of a transaction for invoiceID. For Stripe
	// it reads the PaymentIntent; for PayPal it captures the approved order.
	// Ownership is checked before anything is captured.
	Settle(ctx context.Context, providerID, invoiceID string) (*Settlement, error)
}

type Gateways map[models.Provider]Gateway

func NewGateways(gs ...Gateway) Gateways {
	out := make(Gateways, len(gs))
	for _, g := range gs {
		if g != nil {
			out[g.Provider()] = g
		}
	}
	return out
}

func (g Gateways) Get(p models.Provider) (Gateway, error) {
	gw, ok := g[p]
	if !ok {
		return nil, fmt.Errorf("payment provider %q is not configured", p)
	}
	return gw, nil
}

// MinorUnits converts a two-decimal amount into the integer minor units providers expect.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -2)
}
