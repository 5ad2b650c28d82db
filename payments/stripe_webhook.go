package payments

import (
	"encoding/json"
	"fmt"

	"invoicepay-backend/apperrors"
	"invoicepay-backend/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// WebhookEvent is a verified provider notification reduced to what the
// reconciler needs. Settlement is nil for event types we do not act on.
type WebhookEvent struct {
	ID         string
	Type       string
	Provider   models.Provider
	Settlement *Settlement
}

// ParseStripeWebhook verifies the Stripe-Signature header against the exact
// bytes Stripe sent. payload must be the unparsed request body; re-encoded
// JSON will not verify.
func ParseStripeWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	const op = "payments.ParseStripeWebhook"
	if signature == "" {
		return nil, apperrors.Signature(op, fmt.Errorf("missing Stripe-Signature header"))
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperrors.Signature(op, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type), Provider: models.ProviderStripe}
	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		if event.Data == nil {
			return nil, apperrors.Validation(op, "event has no data")
		}
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, apperrors.Validation(op, "malformed payment_intent payload")
		}
		s := settlementFromIntent(&pi)
		if out.Type == EventPaymentSucceeded {
			s.Status = models.PaymentCompleted
		} else {
			s.Status = models.PaymentFailed
		}
		out.Settlement = s
	}
	return out, nil
}
