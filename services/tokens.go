package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	accessTokenBytes = 32 // 256 bits
	numberSuffixLen  = 6
	// No 0/O or 1/I; 32 symbols so a byte maps without modulo bias.
	numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewAccessToken returns 64 hex characters from crypto/rand.
func NewAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewInvoiceNumber returns INV-YYYYMM-XXXXXX. Uniqueness is enforced by the
// caller against the store.
func NewInvoiceNumber(now time.Time) (string, error) {
	buf := make([]byte, numberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invoice number: %w", err)
	}
	suffix := make([]byte, numberSuffixLen)
	for i, b := range buf {
		suffix[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("200601"), suffix), nil
}
