// Package apperrors is the error taxonomy shared by services and the HTTP layer.
// Services return *Error values; the fiber ErrorHandler maps their Kind to a status code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindTokenExpired
	KindUpstream
	KindSignature
)

// Sentinels, one per kind, so callers can use errors.Is without caring about the cause.
var (
	ErrInternal         = errors.New("internal error")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrTokenExpired     = errors.New("access token expired")
	ErrUpstream         = errors.New("upstream provider failure")
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrAlreadyPaid is a Conflict: the invoice cannot be charged again.
	ErrAlreadyPaid = errors.New("invoice already paid")
)

var kindSentinel = map[Kind]error{
	KindInternal:       ErrInternal,
	KindValidation:     ErrValidation,
	KindAuthentication: ErrUnauthenticated,
	KindAuthorization:  ErrForbidden,
	KindNotFound:       ErrNotFound,
	KindConflict:       ErrConflict,
	KindTokenExpired:   ErrTokenExpired,
	KindUpstream:       ErrUpstream,
	KindSignature:      ErrInvalidSignature,
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTokenExpired:
		return "token_expired"
	case KindUpstream:
		return "upstream"
	case KindSignature:
		return "invalid_signature"
	default:
		return "internal"
	}
}

// HTTPStatus is the contractual status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict, KindSignature:
		return http.StatusBadRequest
	case KindAuthentication, KindTokenExpired:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error carries the kind, the failing operation and a client-safe message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return kindSentinel[e.Kind] == target
}

// PublicMessage is what the HTTP layer may show to a client.
func (e *Error) PublicMessage() string {
	if e.Message != "" && e.Kind != KindInternal {
		return e.Message
	}
	return kindSentinel[e.Kind].Error()
}

func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string) error {
	return New(KindValidation, op, message, nil)
}

func Unauthenticated(op, message string) error {
	return New(KindAuthentication, op, message, nil)
}

func Forbidden(op string) error {
	return New(KindAuthorization, op, "not allowed to access this invoice", nil)
}

func NotFound(op, message string) error {
	return New(KindNotFound, op, message, nil)
}

func Conflict(op, message string, err error) error {
	return New(KindConflict, op, message, err)
}

func AlreadyPaid(op string) error {
	return New(KindConflict, op, ErrAlreadyPaid.Error(), ErrAlreadyPaid)
}

func TokenExpired(op string) error {
	return New(KindTokenExpired, op, "access link expired", nil)
}

func Upstream(op string, err error) error {
	return New(KindUpstream, op, "payment provider unavailable, please retry", err)
}

func Signature(op string, err error) error {
	return New(KindSignature, op, "invalid signature", err)
}

// Internal wraps err unless it already carries a kind.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return New(KindInternal, op, "", err)
}

// KindOf reports the kind of err; unknown errors are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
