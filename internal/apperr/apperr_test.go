package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrUnauthorized, "unauthorized"},
		{ErrInvalidTransition, "invalid-transition"},
		{ErrNotFound, "not-found"},
		{ErrDuplicateAward, "duplicate-award"},
		{ErrDisqualifiedWinner, "disqualified-winner"},
		{ErrStoreUnavailable, "store-unavailable"},
		{ErrValidation, "validation-error"},
		{errors.New("disk on fire"), "internal"},
		// Wrapped sentinels still classify.
		{Transitionf("scoresheet ready does not allow save"), "invalid-transition"},
		{Store(errors.New("connection refused")), "store-unavailable"},
		{Validationf("round must be positive"), "validation-error"},
		{fmt.Errorf("outer: %w", ErrDuplicateAward), "duplicate-award"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "Kind(%v)", tt.err)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrUnauthorized, fiber.StatusForbidden},
		{ErrInvalidTransition, fiber.StatusConflict},
		{ErrNotFound, fiber.StatusNotFound},
		{ErrDuplicateAward, fiber.StatusConflict},
		{ErrDisqualifiedWinner, fiber.StatusUnprocessableEntity},
		{ErrStoreUnavailable, fiber.StatusServiceUnavailable},
		{ErrValidation, fiber.StatusBadRequest},
		{errors.New("unknown"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "HTTPStatus(%v)", tt.err)
	}
}

func TestRetryable(t *testing.T) {
	// Business-rule failures are final; only store trouble invites a retry.
	assert.True(t, Retryable(ErrStoreUnavailable))
	assert.True(t, Retryable(Store(errors.New("timeout"))))

	for _, err := range []error{
		ErrUnauthorized,
		ErrInvalidTransition,
		ErrNotFound,
		ErrDuplicateAward,
		ErrDisqualifiedWinner,
		ErrValidation,
	} {
		assert.False(t, Retryable(err), "Retryable(%v)", err)
	}
}

func TestStoreNil(t *testing.T) {
	require.NoError(t, Store(nil))
}

func TestWrappersKeepDetail(t *testing.T) {
	err := Transitionf("match %s cannot move to %s", "abc", "completed")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "cannot move to completed")
}
