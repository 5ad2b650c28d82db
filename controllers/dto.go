package controllers

import (
	"time"

	"invoicepay-backend/services"
	"invoicepay-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type lineItemDTO struct {
	Description string          `json:"description" validate:"max=500"`
	Quantity    int             `json:"quantity" validate:"min=1"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type createInvoiceDTO struct {
	ClientID    string        `json:"clientId" validate:"max=64"`
	ClientName  string        `json:"clientName" validate:"max=200"`
	ClientEmail string        `json:"clientEmail" validate:"required,email"`
	Items       []lineItemDTO `json:"items" validate:"required,min=1,dive"`
	DueDate     string        `json:"dueDate" validate:"required"`
	Notes       string        `json:"notes" validate:"max=2000"`
	Status      string        `json:"status" validate:"omitempty,oneof=pending unpaid"`
}

// updateInvoiceDTO is a patch: absent fields stay nil and are not touched.
type updateInvoiceDTO struct {
	ClientName  *string       `json:"clientName" validate:"omitempty,max=200"`
	ClientEmail *string       `json:"clientEmail" validate:"omitempty,email"`
	Items       []lineItemDTO `json:"items" validate:"omitempty,dive"`
	DueDate     *string       `json:"dueDate"`
	Notes       *string       `json:"notes" validate:"omitempty,max=2000"`
	Status      *string       `json:"status" validate:"omitempty,oneof=pending unpaid paid overdue failed"`
}

type markPaidDTO struct {
	PaymentMethod string `json:"paymentMethod" validate:"max=16"`
}

// capabilityDTO identifies an invoice on the public routes.
type capabilityDTO struct {
	InvoiceNumber string `json:"invoiceNumber" validate:"required,max=32"`
	AccessToken   string `json:"accessToken" validate:"required,max=128"`
}

type confirmStripeDTO struct {
	capabilityDTO
	PaymentIntentID string `json:"paymentIntentId" validate:"required,max=255"`
}

type capturePayPalDTO struct {
	capabilityDTO
	OrderID string `json:"orderId" validate:"required,max=255"`
}

type loginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func toLineItems(in []lineItemDTO) []services.LineItemInput {
	if in == nil {
		return nil
	}
	out := make([]services.LineItemInput, len(in))
	for i, it := range in {
		out[i] = services.LineItemInput{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return out
}

func parseDueDate(s string) (time.Time, error) {
	t, err := utils.ParseDate(s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "dueDate must be YYYY-MM-DD or RFC3339")
	}
	return t, nil
}
