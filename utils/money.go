package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// IsCents reports whether d needs no more than two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// FormatAmount renders "110.00 USD"; an empty currency renders the number only.
func FormatAmount(d decimal.Decimal, currency string) string {
	s := d.StringFixed(2)
	if currency = strings.TrimSpace(currency); currency != "" {
		s += " " + strings.ToUpper(currency)
	}
	return s
}
