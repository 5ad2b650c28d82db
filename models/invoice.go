package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceFailed  InvoiceStatus = "failed"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoiceUnpaid, InvoicePaid, InvoiceOverdue, InvoiceFailed:
		return true
	}
	return false
}

// OpenStatuses are the states a payment may still move to paid.
var OpenStatuses = []InvoiceStatus{InvoicePending, InvoiceUnpaid, InvoiceOverdue, InvoiceFailed}

// LineItem is stored denormalized in invoices.items (JSON).
type LineItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is the authoritative record; Status is only moved by the invoice
// service (admin actions) and the payment reconciler.
type Invoice struct {
	ID            string `json:"id" gorm:"primaryKey;size:36"`
	InvoiceNumber string `json:"invoiceNumber" gorm:"size:32;uniqueIndex;not null"`

	ClientID    string `json:"clientId,omitempty" gorm:"size:64"`
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail" gorm:"not null"`

	Items    datatypes.JSONType[[]LineItem] `json:"items"`
	Subtotal decimal.Decimal                `json:"subtotal" gorm:"type:numeric(12,2)"`
	Tax      decimal.Decimal                `json:"tax" gorm:"type:numeric(12,2)"`
	Total    decimal.Decimal                `json:"total" gorm:"type:numeric(12,2)"`

	Status  InvoiceStatus `json:"status" gorm:"size:16;index;not null"`
	DueDate time.Time     `json:"dueDate" gorm:"index"`
	Notes   string        `json:"notes"`

	// Capability for the public link; never rendered on the public view.
	AccessToken    string    `json:"accessToken" gorm:"size:64;not null"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`

	PaymentMethod string     `json:"paymentMethod,omitempty" gorm:"size:16"`
	PaidDate      *time.Time `json:"paidDate,omitempty"`

	UserID    string    `json:"userId" gorm:"size:64;index;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	return
}

func (invoice *Invoice) LineItems() []LineItem {
	return invoice.Items.Data()
}

func (invoice *Invoice) SetLineItems(items []LineItem) {
	invoice.Items = datatypes.NewJSONType(items)
}

// PublicInvoice is the client-facing projection served behind the access capability.
type PublicInvoice struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	ClientName    string          `json:"clientName"`
	ClientEmail   string          `json:"clientEmail"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Status        InvoiceStatus   `json:"status"`
	DueDate       time.Time       `json:"dueDate"`
	Notes         string          `json:"notes"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	PaidDate      *time.Time      `json:"paidDate,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (invoice *Invoice) Public() PublicInvoice {
	return PublicInvoice{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		ClientName:    invoice.ClientName,
		ClientEmail:   invoice.ClientEmail,
		Items:         invoice.LineItems(),
		Subtotal:      invoice.Subtotal,
		Tax:           invoice.Tax,
		Total:         invoice.Total,
		Status:        invoice.Status,
		DueDate:       invoice.DueDate,
		Notes:         invoice.Notes,
		PaymentMethod: invoice.PaymentMethod,
		PaidDate:      invoice.PaidDate,
		CreatedAt:     invoice.CreatedAt,
	}
}
