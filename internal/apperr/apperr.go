// Package apperr defines the error kinds shared by every mutation path in the
// system. Handlers and the realtime channel both translate these into their
// own acknowledgement shape, so the same sentinel travels unchanged from a
// state machine to an HTTP status code or a websocket ack.
//
// Business-rule failures (bad transition, bad role, award invariants) are
// final: the caller gets a definitive "no" and must not retry. Only
// ErrStoreUnavailable marks a transient infrastructure problem that the
// caller may retry.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrUnauthorized is returned for any role or association mismatch.
	// The message is deliberately uniform — it never leaks which part of
	// the check failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is returned when a state machine precondition
	// does not hold, e.g. locking an already-completed deliberation or
	// writing to a ready scoresheet.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound is returned when a referenced document is absent.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAward is returned when an award (name, place) pair has
	// already been finalized.
	ErrDuplicateAward = errors.New("duplicate award")

	// ErrDisqualifiedWinner is returned when an award winner appears in
	// the division's disqualification set.
	ErrDisqualifiedWinner = errors.New("disqualified winner")

	// ErrStoreUnavailable wraps transient store failures. This is the only
	// retryable kind.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrValidation is returned for malformed input documents.
	ErrValidation = errors.New("validation error")
)

// Kind returns the wire name for an error, used in websocket acks and JSON
// error bodies. Unrecognized errors map to "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid-transition"
	case errors.Is(err, ErrNotFound):
		return "not-found"
	case errors.Is(err, ErrDuplicateAward):
		return "duplicate-award"
	case errors.Is(err, ErrDisqualifiedWinner):
		return "disqualified-winner"
	case errors.Is(err, ErrStoreUnavailable):
		return "store-unavailable"
	case errors.Is(err, ErrValidation):
		return "validation-error"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code its HTTP response carries.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrDuplicateAward):
		return fiber.StatusConflict
	case errors.Is(err, ErrDisqualifiedWinner):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Transitionf wraps ErrInvalidTransition with context about the rejected edge.
func Transitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// Store wraps a driver or connection failure as retryable. A nil err returns nil.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Validationf wraps ErrValidation with detail about the malformed input.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
