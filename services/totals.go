package services

import (
	"fmt"
	"strings"

	"invoicepay-backend/apperrors"
	"invoicepay-backend/models"
	"invoicepay-backend/utils"

	"github.com/shopspring/decimal"
)

// TaxRate is the flat rate applied to every invoice subtotal.
var TaxRate = decimal.RequireFromString("0.10")

type LineItemInput struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals validates the items and prices them. Unit prices must be whole
// cents, so the subtotal is exact and total == subtotal + tax always holds.
func ComputeTotals(items []LineItemInput) ([]models.LineItem, Totals, error) {
	const op = "services.ComputeTotals"
	if len(items) == 0 {
		return nil, Totals{}, apperrors.Validation(op, "at least one line item is required")
	}

	lines := make([]models.LineItem, 0, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		if it.Quantity < 1 {
			return nil, Totals{}, apperrors.Validation(op, fmt.Sprintf("items[%d]: quantity must be at least 1", i))
		}
		if it.UnitPrice.IsNegative() {
			return nil, Totals{}, apperrors.Validation(op, fmt.Sprintf("items[%d]: unit price must not be negative", i))
		}
		if !utils.IsCents(it.UnitPrice) {
			return nil, Totals{}, apperrors.Validation(op, fmt.Sprintf("items[%d]: unit price must have at most 2 decimal places", i))
		}
		price := it.UnitPrice
		amount := price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(amount)
		lines = append(lines, models.LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   price,
			Amount:      amount,
		})
	}

	tax := subtotal.Mul(TaxRate).Round(2)
	return lines, Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}, nil
}
