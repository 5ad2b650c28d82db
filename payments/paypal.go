package payments

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"invoicepay-backend/models"

	"github.com/plutov/paypal/v4"
)

type PayPalGateway struct {
	client *paypal.Client
}

func NewPayPalGateway(clientID, secret, mode string, timeout time.Duration) (*PayPalGateway, error) {
	base := paypal.APIBaseSandBox
	if mode == "live" {
		base = paypal.APIBaseLive
	}
	c, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client init: %w", err)
	}
	c.SetHTTPClient(&http.Client{Timeout: timeout})
	return &PayPalGateway{client: c}, nil
}

func (g *PayPalGateway) Provider() models.Provider { return models.ProviderPayPal }

func (g *PayPalGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if _, err := g.client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}
	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{{
		ReferenceID: req.InvoiceID,
		CustomID:    req.InvoiceID,
		InvoiceID:   req.InvoiceNumber,
		Description: "Invoice " + req.InvoiceNumber,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: strings.ToUpper(req.Currency),
			Value:    req.Amount.StringFixed(2),
		},
	}}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	intent := &Intent{ProviderID: order.ID}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			intent.ApprovalURL = link.Href
		}
	}
	return intent, nil
}

// Settle reads the order, refuses one that was created for another invoice,
// and captures it only while it is APPROVED. An order that is already
// completed is answered as is, so the client confirm path stays retry-safe.
func (g *PayPalGateway) Settle(ctx context.Context, orderID, invoiceID string) (*Settlement, error) {
	if _, err := g.client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}
	order, err := g.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("paypal get order: %w", err)
	}
	owner := orderInvoiceID(order)
	if invoiceID != "" && owner != invoiceID {
		return nil, ErrInvoiceMismatch
	}

	s := &Settlement{ProviderID: order.ID, Status: orderStatus(order.Status), InvoiceID: owner}
	if !strings.EqualFold(order.Status, "APPROVED") {
		return s, nil
	}
	capture, err := g.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal capture order: %w", err)
	}
	s.Status = orderStatus(capture.Status)
	return s, nil
}

// orderInvoiceID is the invoice id stamped on the order at creation.
func orderInvoiceID(order *paypal.Order) string {
	for _, pu := range order.PurchaseUnits {
		if pu.CustomID != "" {
			return pu.CustomID
		}
	}
	return ""
}

func orderStatus(status string) models.PaymentStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return models.PaymentCompleted
	case "VOIDED", "DECLINED", "FAILED":
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}
}
