package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	plain := NewForbiddenError("missing capability")
	assert.Equal(t, "FORBIDDEN: missing capability", plain.Error())

	cause := errors.New("connection refused")
	wrapped := Wrap(cause, ErrCodeInternal, "store unreachable", http.StatusInternalServerError)
	assert.Contains(t, wrapped.Error(), "store unreachable")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(cause, ErrCodeInternal, "failed", http.StatusInternalServerError)

	assert.ErrorIs(t, wrapped, cause)
}

func TestGetAppError(t *testing.T) {
	appErr := NewNotFoundError("channel")

	assert.Equal(t, appErr, GetAppError(appErr))
	assert.Equal(t, appErr, GetAppError(fmt.Errorf("handler: %w", appErr)))
	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
		want int
	}{
		{"invalid input", NewInvalidInputError("bad cursor"), ErrCodeInvalidInput, http.StatusBadRequest},
		{"not found", NewNotFoundError("server"), ErrCodeNotFound, http.StatusNotFound},
		{"gone", NewGoneError("channel"), ErrCodeGone, http.StatusGone},
		{"unauthorized", NewUnauthorizedError("no token"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("nope"), ErrCodeForbidden, http.StatusForbidden},
		{"rate limit", NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{"upgrade required", NewUpgradeRequiredError(), ErrCodeUpgradeRequired, http.StatusUpgradeRequired},
		{"unavailable", NewServiceUnavailableError("registry down"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.want, tt.err.HTTPStatus)
		})
	}
}

func TestWithContext(t *testing.T) {
	err := NewForbiddenError("missing capability").
		WithContext("required", "SEND_MESSAGES").
		WithContext("channel_id", "123")

	assert.Equal(t, "SEND_MESSAGES", err.Context["required"])
	assert.Equal(t, "123", err.Context["channel_id"])
}
