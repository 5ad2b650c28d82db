package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
	ProviderManual Provider = "manual"
)

func (p Provider) Valid() bool {
	return p == ProviderStripe || p == ProviderPayPal
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment is one provider transaction attempt for an invoice. The pair
// (payment_method, transaction_id) is the idempotency key for reconciliation.
type Payment struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	InvoiceID     string          `json:"invoiceId" gorm:"size:36;not null;index:idx_payments_invoice_created,priority:1"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2)"`
	Currency      string          `json:"currency" gorm:"size:3;not null"`
	PaymentMethod Provider        `json:"paymentMethod" gorm:"size:16;not null;uniqueIndex:ux_payments_method_transaction,priority:1"`
	PaymentStatus PaymentStatus   `json:"paymentStatus" gorm:"size:16;not null;index"`
	TransactionID string          `json:"transactionId" gorm:"size:255;not null;uniqueIndex:ux_payments_method_transaction,priority:2"`
	PaymentDate   *time.Time      `json:"paymentDate,omitempty"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"index:idx_payments_invoice_created,priority:2"`
}

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	return
}
