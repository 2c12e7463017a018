package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAppError(t *testing.T) {
	notFound := NewNotFoundError("Coupon")
	wrapped := fmt.Errorf("lookup: %w", notFound)

	got := GetAppError(wrapped)
	assert.Equal(t, http.StatusNotFound, got.Code)
	assert.Equal(t, "Coupon not found", got.Message)

	plain := errors.New("pq: connection reset")
	got = GetAppError(plain)
	assert.Equal(t, http.StatusInternalServerError, got.Code)
	assert.Equal(t, "Internal server error", got.Message)
	assert.ErrorIs(t, got, plain)
}

func TestNewUnavailableError(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewUnavailableError("Payment gateway unavailable", cause)

	assert.Equal(t, http.StatusServiceUnavailable, err.Code)
	assert.True(t, IsAppError(err))
	assert.ErrorIs(t, err, cause)
}
