package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"invoicepay-backend/access"
	"invoicepay-backend/apperrors"
	"invoicepay-backend/logger"
	"invoicepay-backend/mailer"
	"invoicepay-backend/models"
	"invoicepay-backend/repositories"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	AccessTokenTTL      = 7 * 24 * time.Hour
	maxNumberAttempts   = 5
	manualPaymentMethod = string(models.ProviderManual)
)

type CreateInvoiceInput struct {
	ClientID    string
	ClientName  string
	ClientEmail string
	Items       []LineItemInput
	DueDate     time.Time
	Notes       string
	// Status may be pending (default) or unpaid.
	Status models.InvoiceStatus
}

// UpdateInvoiceInput is a patch: nil fields are left alone. Items replace the
// whole list and trigger a totals recompute.
type UpdateInvoiceInput struct {
	ClientName  *string
	ClientEmail *string
	Items       []LineItemInput
	DueDate     *time.Time
	Notes       *string
	Status      *models.InvoiceStatus
}

type InvoiceService struct {
	db          *gorm.DB
	invoiceRepo repositories.InvoiceRepository
	paymentRepo repositories.PaymentRepository
	notifier    *mailer.Notifier
	checker     *access.Checker
	now         func() time.Time
	log         zerolog.Logger
}

func NewInvoiceService(
	db *gorm.DB,
	invoiceRepo repositories.InvoiceRepository,
	paymentRepo repositories.PaymentRepository,
	notifier *mailer.Notifier,
	checker *access.Checker,
) *InvoiceService {
	return &InvoiceService{
		db:          db,
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		notifier:    notifier,
		checker:     checker,
		now:         func() time.Time { return time.Now().UTC() },
		log:         logger.WithComponent("invoices"),
	}
}

func (s *InvoiceService) Create(ctx context.Context, adminID string, in CreateInvoiceInput) (*models.Invoice, error) {
	const op = "InvoiceService.Create"
	if strings.TrimSpace(adminID) == "" {
		return nil, apperrors.Unauthenticated(op, "missing user")
	}
	email, err := normalizeEmail(op, in.ClientEmail)
	if err != nil {
		return nil, err
	}
	if in.DueDate.IsZero() {
		return nil, apperrors.Validation(op, "dueDate is required")
	}
	status := in.Status
	if status == "" {
		status = models.InvoicePending
	}
	if status != models.InvoicePending && status != models.InvoiceUnpaid {
		return nil, apperrors.Validation(op, "new invoices start as pending or unpaid")
	}
	lines, totals, err := ComputeTotals(in.Items)
	if err != nil {
		return nil, err
	}
	token, err := NewAccessToken()
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}

	now := s.now()
	invoice := &models.Invoice{
		ClientID:       strings.TrimSpace(in.ClientID),
		ClientName:     strings.TrimSpace(in.ClientName),
		ClientEmail:    email,
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		Total:          totals.Total,
		Status:         status,
		DueDate:        in.DueDate.UTC(),
		Notes:          strings.TrimSpace(in.Notes),
		AccessToken:    token,
		TokenExpiresAt: now.Add(AccessTokenTTL),
		UserID:         adminID,
	}
	invoice.SetLineItems(lines)

	if err := s.insertWithNumber(ctx, invoice, now); err != nil {
		return nil, apperrors.Internal(op, err)
	}

	s.log.Info().
		Str("invoice_id", invoice.ID).
		Str("invoice_number", invoice.InvoiceNumber).
		Str("user_id", adminID).
		Msg("invoice created")

	s.notifier.InvoiceCreated(ctx, invoice)
	return invoice, nil
}

// insertWithNumber draws invoice numbers until one is free; the unique index
// settles races between concurrent creators.
func (s *InvoiceService) insertWithNumber(ctx context.Context, invoice *models.Invoice, now time.Time) error {
	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := NewInvoiceNumber(now)
		if err != nil {
			return err
		}
		exists, err := s.invoiceRepo.NumberExists(ctx, number)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		invoice.InvoiceNumber = number
		err = s.invoiceRepo.Create(ctx, invoice)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		invoice.ID = ""
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("could not allocate a unique invoice number")
	}
	return lastErr
}

func (s *InvoiceService) List(ctx context.Context, adminID string, filter repositories.ListFilter) ([]models.Invoice, error) {
	const op = "InvoiceService.List"
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation(op, "unknown status filter")
	}
	invoices, err := s.invoiceRepo.ListByUser(ctx, adminID, filter)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return invoices, nil
}

func (s *InvoiceService) Get(ctx context.Context, adminID, id string) (*models.Invoice, error) {
	return s.owned(ctx, "InvoiceService.Get", adminID, id)
}

func (s *InvoiceService) Update(ctx context.Context, adminID, id string, in UpdateInvoiceInput) (*models.Invoice, error) {
	const op = "InvoiceService.Update"
	invoice, err := s.owned(ctx, op, adminID, id)
	if err != nil {
		return nil, err
	}

	// Only patched columns are written. Status and the paid fields belong to
	// the reconciler unless the admin edits status explicitly.
	fields := map[string]any{}
	if in.ClientName != nil {
		fields["client_name"] = strings.TrimSpace(*in.ClientName)
	}
	if in.ClientEmail != nil {
		email, err := normalizeEmail(op, *in.ClientEmail)
		if err != nil {
			return nil, err
		}
		fields["client_email"] = email
	}
	if in.Items != nil {
		lines, totals, err := ComputeTotals(in.Items)
		if err != nil {
			return nil, err
		}
		invoice.SetLineItems(lines)
		fields["items"] = invoice.Items
		fields["subtotal"] = totals.Subtotal
		fields["tax"] = totals.Tax
		fields["total"] = totals.Total
	}
	if in.DueDate != nil {
		if in.DueDate.IsZero() {
			return nil, apperrors.Validation(op, "dueDate must not be empty")
		}
		fields["due_date"] = in.DueDate.UTC()
	}
	if in.Notes != nil {
		fields["notes"] = strings.TrimSpace(*in.Notes)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperrors.Validation(op, "unknown status")
		}
		fields["status"] = *in.Status
		switch {
		case *in.Status == models.InvoicePaid && invoice.PaidDate == nil:
			fields["paid_date"] = s.now()
			if invoice.PaymentMethod == "" {
				fields["payment_method"] = manualPaymentMethod
			}
		case *in.Status != models.InvoicePaid:
			fields["paid_date"] = nil
			fields["payment_method"] = ""
		}
	}
	if len(fields) > 0 {
		fields["updated_at"] = s.now()
	}

	if err := s.invoiceRepo.UpdateFields(ctx, invoice.ID, fields); err != nil {
		return nil, apperrors.Internal(op, err)
	}
	invoice, err = s.invoiceRepo.FindByID(ctx, invoice.ID)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if invoice == nil {
		return nil, apperrors.NotFound(op, "invoice not found")
	}
	return invoice, nil
}

// MarkPaid is the admin override for offline payments. An invoice that is
// already paid is returned unchanged.
func (s *InvoiceService) MarkPaid(ctx context.Context, adminID, id, method string) (*models.Invoice, error) {
	const op = "InvoiceService.MarkPaid"
	invoice, err := s.owned(ctx, op, adminID, id)
	if err != nil {
		return nil, err
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = manualPaymentMethod
	}
	changed, err := s.invoiceRepo.MarkPaid(ctx, invoice.ID, method, s.now())
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if changed {
		s.log.Info().Str("invoice_id", invoice.ID).Str("method", method).Msg("invoice marked paid by admin")
	}
	invoice, err = s.invoiceRepo.FindByID(ctx, invoice.ID)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if invoice == nil {
		return nil, apperrors.NotFound(op, "invoice not found")
	}
	return invoice, nil
}

// Delete removes the invoice and fails its outstanding pending payments in the
// same transaction. Payment rows are kept as history.
func (s *InvoiceService) Delete(ctx context.Context, adminID, id string) error {
	const op = "InvoiceService.Delete"
	invoice, err := s.owned(ctx, op, adminID, id)
	if err != nil {
		return err
	}
	var cancelled int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.paymentRepo.WithTx(tx).FailPendingForInvoice(ctx, invoice.ID, s.now())
		if err != nil {
			return err
		}
		cancelled = n
		return s.invoiceRepo.WithTx(tx).Delete(ctx, invoice.ID)
	})
	if err != nil {
		return apperrors.Internal(op, err)
	}
	s.log.Info().
		Str("invoice_id", invoice.ID).
		Int64("pending_payments_failed", cancelled).
		Msg("invoice deleted")
	return nil
}

// FindByNumberAndToken serves the public capability routes. A wrong token is
// reported exactly like a missing invoice.
func (s *InvoiceService) FindByNumberAndToken(ctx context.Context, number, token string) (*models.Invoice, error) {
	const op = "InvoiceService.FindByNumberAndToken"
	invoice, res, err := s.checker.Check(ctx, strings.TrimSpace(number), strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if res != access.Valid {
		s.log.Debug().Str("invoice_number", number).Stringer("result", res).Msg("public access denied")
		return nil, res.Err(op)
	}
	return invoice, nil
}

func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.invoiceRepo.MarkOverdue(ctx, now.UTC())
	if err != nil {
		return 0, apperrors.Internal("InvoiceService.MarkOverdue", err)
	}
	return n, nil
}

func (s *InvoiceService) owned(ctx context.Context, op, adminID, id string) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	if invoice == nil {
		return nil, apperrors.NotFound(op, "invoice not found")
	}
	if invoice.UserID != adminID {
		return nil, apperrors.Forbidden(op)
	}
	return invoice, nil
}

func normalizeEmail(op, raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", apperrors.Validation(op, "clientEmail is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.Validation(op, "clientEmail is not a valid address")
	}
	return email, nil
}
