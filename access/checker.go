// Package access decides whether a public (invoice number, token) pair grants
// read and pay access to an invoice. Tokens are durable bearer credentials
// until TokenExpiresAt; they are not rotated on use.
package access

import (
	"context"
	"crypto/subtle"
	"time"

	"invoicepay-backend/apperrors"
	"invoicepay-backend/models"
)

type Result int

const (
	Valid Result = iota
	NotFound
	Expired
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "not_found"
	}
}

// Err maps the result onto the public error contract: a wrong token is
// indistinguishable from a missing invoice.
func (r Result) Err(op string) error {
	switch r {
	case Valid:
		return nil
	case Expired:
		return apperrors.TokenExpired(op)
	default:
		return apperrors.NotFound(op, "invoice not found")
	}
}

// Evaluate is pure over the stored invoice. A nil invoice is NotFound; a token
// mismatch is NotFound; a matching token at or after expiry is Expired.
func Evaluate(invoice *models.Invoice, presented string, now time.Time) Result {
	if invoice == nil || invoice.AccessToken == "" || presented == "" {
		return NotFound
	}
	if subtle.ConstantTimeCompare([]byte(invoice.AccessToken), []byte(presented)) != 1 {
		return NotFound
	}
	if !now.Before(invoice.TokenExpiresAt) {
		return Expired
	}
	return Valid
}

type InvoiceLookup interface {
	FindByNumber(ctx context.Context, number string) (*models.Invoice, error)
}

type Checker struct {
	invoices InvoiceLookup
	now      func() time.Time
}

func NewChecker(invoices InvoiceLookup) *Checker {
	return &Checker{invoices: invoices, now: time.Now}
}

// Check loads the invoice by number and evaluates the presented token. The
// invoice is returned only when the result is Valid.
func (c *Checker) Check(ctx context.Context, invoiceNumber, presented string) (*models.Invoice, Result, error) {
	invoice, err := c.invoices.FindByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, NotFound, apperrors.Internal("access.Check", err)
	}
	res := Evaluate(invoice, presented, c.now())
	if res != Valid {
		return nil, res, nil
	}
	return invoice, Valid, nil
}
