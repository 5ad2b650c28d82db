package services

import (
	"context"
	"errors"
	"time"

	"invoicepay-backend/apperrors"
	"invoicepay-backend/logger"
	"invoicepay-backend/mailer"
	"invoicepay-backend/models"
	"invoicepay-backend/payments"
	"invoicepay-backend/repositories"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusNone is reported by LatestStatus when an invoice has no payments.
const StatusNone = "none"

type ReconcilerOptions struct {
	Currency string
	// Timeout bounds every gateway call.
	Timeout time.Duration
}

type IntentResult struct {
	PaymentID        string          `json:"paymentId"`
	InvoiceID        string          `json:"invoiceId"`
	Provider         models.Provider `json:"provider"`
	ProviderIntentID string          `json:"providerIntentId"`
	ClientSecret     string          `json:"clientSecret,omitempty"`
	ApprovalURL      string          `json:"approvalUrl,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

type ReconcileInput struct {
	Provider      models.Provider
	TransactionID string
	// InvoiceID may be empty when the provider event carries no metadata; the
	// existing payment row then decides which invoice is meant.
	InvoiceID string
	Outcome   models.PaymentStatus
	// Amount is used only when the payment row has to be created here; zero
	// means the invoice total.
	Amount decimal.Decimal
}

type ReconcileResult struct {
	PaymentID     string               `json:"paymentId"`
	InvoiceID     string               `json:"invoiceId"`
	TransactionID string               `json:"transactionId"`
	Status        models.PaymentStatus `json:"status"`
	InvoiceStatus models.InvoiceStatus `json:"invoiceStatus"`
	// Applied is true only for the caller whose write moved the payment.
	Applied bool `json:"applied"`
}

type PaymentStatusSummary struct {
	InvoiceID     string           `json:"invoiceId"`
	Status        string           `json:"status"`
	PaymentID     string           `json:"paymentId,omitempty"`
	Provider      models.Provider  `json:"provider,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	PaymentDate   *time.Time       `json:"paymentDate,omitempty"`
	CreatedAt     *time.Time       `json:"createdAt,omitempty"`
}

// Reconciler turns provider signals into payment and invoice state. Webhooks
// and client confirmations both end in Reconcile.
type Reconciler struct {
	db          *gorm.DB
	invoiceRepo repositories.InvoiceRepository
	paymentRepo repositories.PaymentRepository
	gateways    payments.Gateways
	notifier    *mailer.Notifier
	currency    string
	timeout     time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewReconciler(
	db *gorm.DB,
	invoiceRepo repositories.InvoiceRepository,
	paymentRepo repositories.PaymentRepository,
	gateways payments.Gateways,
	notifier *mailer.Notifier,
	opts ReconcilerOptions,
) *Reconciler {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Reconciler{
		db:          db,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		gateways:    gateways,
		notifier:    notifier,
		currency:    opts.Currency,
		timeout:     opts.Timeout,
		now:         func() time.Time { return time.Now().UTC() },
		log:         logger.WithComponent("reconciler"),
	}
}

// CreateIntent opens a provider-side payment for the invoice and records it as
// a pending payment. Nothing is written when the gateway call fails.
func (r *Reconciler) CreateIntent(ctx context.Context, invoiceID string, provider models.Provider) (*IntentResult, error) {
	const op = "Reconciler.CreateIntent"
	gw, err := r.gateway(op, provider)
	if err != nil {
		return nil, err
	}

	invoice, err := r.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if invoice == nil {
		return nil, apperrors.NotFound(op, "invoice not found")
	}
	if invoice.Status == models.InvoicePaid {
		return nil, apperrors.AlreadyPaid(op)
	}
	if !invoice.Total.IsPositive() {
		return nil, apperrors.Validation(op, "invoice total must be greater than zero")
	}

	gwCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	intent, err := gw.CreateIntent(gwCtx, payments.IntentRequest{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		ClientEmail:   invoice.ClientEmail,
		Amount:        invoice.Total,
		Currency:      r.currency,
	})
	if err != nil {
		r.log.Warn().Err(err).
			Str("provider", string(provider)).
			Str("invoice_id", invoice.ID).
			Msg("gateway intent creation failed")
		return nil, apperrors.Upstream(op, err)
	}

	payment := &models.Payment{
		InvoiceID:     invoice.ID,
		Amount:        invoice.Total,
		Currency:      r.currency,
		PaymentMethod: provider,
		PaymentStatus: models.PaymentPending,
		TransactionID: intent.ProviderID,
	}
	inserted, err := r.paymentRepo.InsertIfAbsent(ctx, payment)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if !inserted {
		// A webhook for this intent got here first.
		existing, err := r.paymentRepo.FindByTransaction(ctx, provider, intent.ProviderID)
		if err != nil {
			return nil, apperrors.Internal(op, err)
		}
		if existing != nil {
			payment = existing
		}
	}

	r.log.Info().
		Str("provider", string(provider)).
		Str("invoice_id", invoice.ID).
		Str("payment_id", payment.ID).
		Str("transaction_id", intent.ProviderID).
		Msg("payment intent created")

	return &IntentResult{
		PaymentID:        payment.ID,
		InvoiceID:        invoice.ID,
		Provider:         provider,
		ProviderIntentID: intent.ProviderID,
		ClientSecret:     intent.ClientSecret,
		ApprovalURL:      intent.ApprovalURL,
		Amount:           invoice.Total,
		Currency:         r.currency,
	}, nil
}

// allowedPredecessors lists the states a payment may move out of. A completed
// payment is never overwritten; a failed one may still complete when the
// provider retries the same transaction.
func allowedPredecessors(to models.PaymentStatus) []models.PaymentStatus {
	if to == models.PaymentCompleted {
		return []models.PaymentStatus{models.PaymentPending, models.PaymentFailed}
	}
	return []models.PaymentStatus{models.PaymentPending}
}

// Reconcile applies a terminal provider outcome to the payment and its invoice.
// It is safe to call any number of times, concurrently, for the same
// transaction: the status change is a compare-and-swap, so exactly one caller
// sees Applied and only that caller sends the confirmation email.
func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	const op = "Reconciler.Reconcile"
	if !in.Provider.Valid() {
		return nil, apperrors.Validation(op, "unknown payment provider")
	}
	if in.TransactionID == "" {
		return nil, apperrors.Validation(op, "transaction id is required")
	}
	if !in.Outcome.Terminal() {
		return nil, apperrors.Validation(op, "outcome must be completed or failed")
	}

	var (
		result  ReconcileResult
		invoice *models.Invoice
		payment *models.Payment
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoices := r.invoiceRepo.WithTx(tx)
		paymentsTx := r.paymentRepo.WithTx(tx)
		now := r.now()

		p, err := paymentsTx.FindByTransaction(ctx, in.Provider, in.TransactionID)
		if err != nil {
			return err
		}
		invoiceID := in.InvoiceID
		switch {
		case p != nil && invoiceID != "" && p.InvoiceID != invoiceID:
			return apperrors.Conflict(op, "transaction belongs to a different invoice", nil)
		case p == nil && invoiceID == "":
			return apperrors.NotFound(op, "no payment recorded for transaction")
		case invoiceID == "":
			invoiceID = p.InvoiceID
		}

		inv, err := invoices.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return apperrors.NotFound(op, "invoice not found")
		}

		applied := false
		if p == nil {
			// The pending row from CreateIntent is missing; record the outcome directly.
			amount := in.Amount
			if amount.IsZero() {
				amount = inv.Total
			}
			p = &models.Payment{
				InvoiceID:     inv.ID,
				Amount:        amount,
				Currency:      r.currency,
				PaymentMethod: in.Provider,
				PaymentStatus: in.Outcome,
				TransactionID: in.TransactionID,
				PaymentDate:   &now,
			}
			inserted, err := paymentsTx.InsertIfAbsent(ctx, p)
			if err != nil {
				return err
			}
			if inserted {
				applied = true
			} else {
				if p, err = paymentsTx.FindByTransaction(ctx, in.Provider, in.TransactionID); err != nil {
					return err
				}
				if p == nil {
					return apperrors.Internal(op, gorm.ErrRecordNotFound)
				}
				if p.InvoiceID != inv.ID {
					return apperrors.Conflict(op, "transaction belongs to a different invoice", nil)
				}
			}
		}

		if !applied && p.PaymentStatus != in.Outcome {
			ok, err := paymentsTx.TransitionStatus(ctx, p.ID, allowedPredecessors(in.Outcome), in.Outcome, now)
			if err != nil {
				return err
			}
			if ok {
				applied = true
				p.PaymentStatus = in.Outcome
				p.PaymentDate = &now
			} else {
				if p, err = paymentsTx.FindByTransaction(ctx, in.Provider, in.TransactionID); err != nil {
					return err
				}
				if p == nil {
					return apperrors.Internal(op, gorm.ErrRecordNotFound)
				}
			}
		}

		if applied {
			switch in.Outcome {
			case models.PaymentCompleted:
				if _, err := invoices.MarkPaid(ctx, inv.ID, string(in.Provider), now); err != nil {
					return err
				}
			case models.PaymentFailed:
				if _, err := invoices.MarkFailed(ctx, inv.ID); err != nil {
					return err
				}
			}
			if inv, err = invoices.FindByID(ctx, inv.ID); err != nil {
				return err
			}
		}

		invoice, payment = inv, p
		result = ReconcileResult{
			PaymentID:     p.ID,
			InvoiceID:     inv.ID,
			TransactionID: p.TransactionID,
			Status:        p.PaymentStatus,
			InvoiceStatus: inv.Status,
			Applied:       applied,
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}

	evt := r.log.Info()
	if !result.Applied {
		evt = r.log.Debug()
	}
	evt.Str("provider", string(in.Provider)).
		Str("transaction_id", in.TransactionID).
		Str("invoice_id", result.InvoiceID).
		Str("payment_status", string(result.Status)).
		Str("invoice_status", string(result.InvoiceStatus)).
		Bool("applied", result.Applied).
		Msg("payment reconciled")

	if result.Applied && result.Status == models.PaymentCompleted {
		r.notifier.PaymentConfirmed(ctx, invoice, payment)
	}
	return &result, nil
}

// Confirm is the client path: the browser reports a finished payment and the
// gateway is asked for the authoritative outcome. A still-pending transaction
// changes nothing.
func (r *Reconciler) Confirm(ctx context.Context, invoiceID string, provider models.Provider, providerID string) (*ReconcileResult, error) {
	const op = "Reconciler.Confirm"
	if providerID == "" {
		return nil, apperrors.Validation(op, "payment reference is required")
	}
	gw, err := r.gateway(op, provider)
	if err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	settlement, err := gw.Settle(gwCtx, providerID, invoiceID)
	if errors.Is(err, payments.ErrInvoiceMismatch) {
		return nil, apperrors.Conflict(op, "payment belongs to a different invoice", err)
	}
	if err != nil {
		r.log.Warn().Err(err).
			Str("provider", string(provider)).
			Str("transaction_id", providerID).
			Msg("gateway settlement lookup failed")
		return nil, apperrors.Upstream(op, err)
	}
	if settlement.InvoiceID != "" && settlement.InvoiceID != invoiceID {
		return nil, apperrors.Conflict(op, "payment belongs to a different invoice", nil)
	}

	if !settlement.Status.Terminal() {
		return r.pendingResult(ctx, op, invoiceID, provider, providerID)
	}
	return r.Reconcile(ctx, ReconcileInput{
		Provider:      provider,
		TransactionID: providerID,
		InvoiceID:     invoiceID,
		Outcome:       settlement.Status,
		Amount:        settlement.Amount,
	})
}

func (r *Reconciler) pendingResult(ctx context.Context, op, invoiceID string, provider models.Provider, providerID string) (*ReconcileResult, error) {
	invoice, err := r.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if invoice == nil {
		return nil, apperrors.NotFound(op, "invoice not found")
	}
	res := &ReconcileResult{
		InvoiceID:     invoice.ID,
		TransactionID: providerID,
		Status:        models.PaymentPending,
		InvoiceStatus: invoice.Status,
	}
	p, err := r.paymentRepo.FindByTransaction(ctx, provider, providerID)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if p != nil {
		if p.InvoiceID != invoice.ID {
			return nil, apperrors.Conflict(op, "payment belongs to a different invoice", nil)
		}
		res.PaymentID = p.ID
		res.Status = p.PaymentStatus
	}
	return res, nil
}

// HandleStripeEvent applies a verified webhook event. Events the reconciler
// cannot place (unknown transaction, deleted invoice) are acknowledged so the
// provider stops redelivering; storage failures are returned for a retry.
func (r *Reconciler) HandleStripeEvent(ctx context.Context, event *payments.WebhookEvent) error {
	log := r.log.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()
	if event.Settlement == nil {
		log.Debug().Msg("webhook event ignored")
		return nil
	}
	s := event.Settlement
	_, err := r.Reconcile(ctx, ReconcileInput{
		Provider:      event.Provider,
		TransactionID: s.ProviderID,
		InvoiceID:     s.InvoiceID,
		Outcome:       s.Status,
		Amount:        s.Amount,
	})
	if err != nil && apperrors.KindOf(err) == apperrors.KindNotFound {
		lvl := log.Warn()
		if s.InvoiceID != "" {
			// The invoice was deleted after the payment started.
			lvl = log.Error()
		}
		lvl.Err(err).
			Str("transaction_id", s.ProviderID).
			Str("invoice_id", s.InvoiceID).
			Msg("webhook acknowledged without a matching invoice")
		return nil
	}
	return err
}

// LatestStatus reports the most recent payment for an invoice, or StatusNone.
func (r *Reconciler) LatestStatus(ctx context.Context, invoiceID string) (*PaymentStatusSummary, error) {
	p, err := r.paymentRepo.LatestForInvoice(ctx, invoiceID)
	if err != nil {
		return nil, apperrors.Internal("Reconciler.LatestStatus", err)
	}
	if p == nil {
		return &PaymentStatusSummary{InvoiceID: invoiceID, Status: StatusNone}, nil
	}
	amount := p.Amount
	created := p.CreatedAt
	return &PaymentStatusSummary{
		InvoiceID:     p.InvoiceID,
		Status:        string(p.PaymentStatus),
		PaymentID:     p.ID,
		Provider:      p.PaymentMethod,
		TransactionID: p.TransactionID,
		Amount:        &amount,
		Currency:      p.Currency,
		PaymentDate:   p.PaymentDate,
		CreatedAt:     &created,
	}, nil
}

func (r *Reconciler) gateway(op string, provider models.Provider) (payments.Gateway, error) {
	if !provider.Valid() {
		return nil, apperrors.Validation(op, "unknown payment provider")
	}
	gw, err := r.gateways.Get(provider)
	if err != nil {
		return nil, apperrors.Validation(op, err.Error())
	}
	return gw, nil
}
