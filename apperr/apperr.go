// Package apperr defines the error taxonomy shared by services and
// handlers. Every user-visible failure carries a machine-readable kind
// and a specific reason string; internal detail stays wrapped inside.
package apperr

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindAuthentication      Kind = "authentication_error"
	KindConflict            Kind = "conflict_error"
	KindNotFound            Kind = "not_found"
	KindRateLimited         Kind = "rate_limited"
	KindExternalService     Kind = "external_service_error"
	KindSettlementInvariant Kind = "settlement_invariant_error"
	KindInternal            Kind = "internal_error"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, never exposed past the boundary
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

func Authentication(format string, args ...interface{}) *Error {
	return newf(KindAuthentication, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// External marks a retryable upstream failure (payment rail, oracle).
func External(err error, format string, args ...interface{}) *Error {
	e := newf(KindExternalService, format, args...)
	e.Err = err
	return e
}

// SettlementInvariant marks an attempt to record an approval without a
// confirmed payout. Must never be silently swallowed.
func SettlementInvariant(format string, args ...interface{}) *Error {
	return newf(KindSettlementInvariant, format, args...)
}

func Internal(err error, msg string) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf extracts the kind, defaulting to internal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may retry later.
func Retryable(err error) bool {
	return KindOf(err) == KindExternalService
}

// Message returns the user-safe reason string.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

// HTTPStatus maps an error kind to a fiber status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindAuthentication:
		return fiber.StatusUnauthorized
	case KindConflict:
		return fiber.StatusConflict
	case KindNotFound:
		return fiber.StatusNotFound
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindExternalService:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
