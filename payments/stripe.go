package payments

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"invoicepay-backend/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

const (
	metaInvoiceID     = "invoice_id"
	metaInvoiceNumber = "invoice_number"
)

type StripeGateway struct {
	intents paymentintent.Client
}

func NewStripeGateway(secretKey string, timeout time.Duration) *StripeGateway {
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	return &StripeGateway{
		intents: paymentintent.Client{B: backends.API, Key: secretKey},
	}
}

func (g *StripeGateway) Provider() models.Provider { return models.ProviderStripe }

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(MinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String("Invoice " + req.InvoiceNumber),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.ClientEmail != "" {
		params.ReceiptEmail = stripe.String(req.ClientEmail)
	}
	params.Context = ctx
	params.AddMetadata(metaInvoiceID, req.InvoiceID)
	params.AddMetadata(metaInvoiceNumber, req.InvoiceNumber)

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &Intent{ProviderID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) Settle(ctx context.Context, providerID, invoiceID string) (*Settlement, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.intents.Get(providerID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe retrieve payment intent: %w", err)
	}
	s := settlementFromIntent(pi)
	if invoiceID != "" && s.InvoiceID != "" && s.InvoiceID != invoiceID {
		return nil, ErrInvoiceMismatch
	}
	return s, nil
}

func settlementFromIntent(pi *stripe.PaymentIntent) *Settlement {
	s := &Settlement{
		ProviderID: pi.ID,
		Status:     intentStatus(pi),
		Amount:     FromMinorUnits(pi.Amount),
	}
	if pi.AmountReceived > 0 {
		s.Amount = FromMinorUnits(pi.AmountReceived)
	}
	if pi.Metadata != nil {
		s.InvoiceID = pi.Metadata[metaInvoiceID]
	}
	return s
}

func intentStatus(pi *stripe.PaymentIntent) models.PaymentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return models.PaymentCompleted
	case stripe.PaymentIntentStatusCanceled:
		return models.PaymentFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// Back to requires_payment_method after an attempt means the attempt failed.
		if pi.LastPaymentError != nil {
			return models.PaymentFailed
		}
	}
	return models.PaymentPending
}
