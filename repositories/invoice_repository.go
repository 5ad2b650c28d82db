package repositories

import (
	"context"
	"errors"
	"time"

	"invoicepay-backend/models"

	"gorm.io/gorm"
)

type ListFilter struct {
	Status models.InvoiceStatus
	Limit  int
	Offset int
}

type InvoiceRepository interface {
	WithTx(tx *gorm.DB) InvoiceRepository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	FindByNumber(ctx context.Context, number string) (*models.Invoice, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]models.Invoice, error)
	// UpdateFields writes only the given columns, so concurrent status moves by
	// the reconciler are not overwritten by an unrelated edit.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	// MarkPaid moves an open invoice to paid; reports whether a row changed.
	MarkPaid(ctx context.Context, id string, method string, at time.Time) (bool, error)
	// MarkFailed moves an unpaid invoice to failed; a paid invoice is never downgraded.
	MarkFailed(ctx context.Context, id string) (bool, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) WithTx(tx *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: tx}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).First(&invoice, "invoice_number = ?", number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("invoice_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *invoiceRepository) ListByUser(ctx context.Context, userID string, filter ListFilter) ([]models.Invoice, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	invoices := []models.Invoice{}
	err := q.Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Invoice{}, "id = ?", id).Error
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, id string, method string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, models.OpenStatuses).
		Updates(map[string]any{
			"status":         models.InvoicePaid,
			"paid_date":      at,
			"payment_method": method,
			"updated_at":     at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *invoiceRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status NOT IN ?", id, []models.InvoiceStatus{models.InvoicePaid, models.InvoiceFailed}).
		Update("status", models.InvoiceFailed)
	return res.RowsAffected > 0, res.Error
}

func (r *invoiceRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status IN ? AND due_date < ?",
			[]models.InvoiceStatus{models.InvoicePending, models.InvoiceUnpaid, models.InvoiceFailed}, now).
		Update("status", models.InvoiceOverdue)
	return res.RowsAffected, res.Error
}
