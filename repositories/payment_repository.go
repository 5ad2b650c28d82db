package repositories

import (
	"context"
	"errors"
	"time"

	"invoicepay-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *models.Payment) error
	// InsertIfAbsent relies on the (payment_method, transaction_id) unique index;
	// false means another writer already owns the transaction id.
	InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	FindByTransaction(ctx context.Context, provider models.Provider, transactionID string) (*models.Payment, error)
	// TransitionStatus is a compare-and-swap: the row changes only while its
	// status is one of from. Exactly one concurrent caller observes true.
	TransitionStatus(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus, at time.Time) (bool, error)
	LatestForInvoice(ctx context.Context, invoiceID string) (*models.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error)
	FailPendingForInvoice(ctx context.Context, invoiceID string, at time.Time) (int64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	return &paymentRepository{db: tx}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(payment)
	return res.RowsAffected > 0, res.Error
}

func (r *paymentRepository) FindByTransaction(ctx context.Context, provider models.Provider, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND transaction_id = ?", provider, transactionID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) TransitionStatus(ctx context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND payment_status IN ?", id, from).
		Updates(map[string]any{
			"payment_status": to,
			"payment_date":   at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *paymentRepository) LatestForInvoice(ctx context.Context, invoiceID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").Order("id DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) FailPendingForInvoice(ctx context.Context, invoiceID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("invoice_id = ? AND payment_status = ?", invoiceID, models.PaymentPending).
		Updates(map[string]any{
			"payment_status": models.PaymentFailed,
			"payment_date":   at,
		})
	return res.RowsAffected, res.Error
}
