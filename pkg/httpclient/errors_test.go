package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
)

func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func structuredError(code, message string) string {
	return `{"error":{"code":"` + code + `","message":"` + message + `"}}`
}

func TestParseResponseError_Structured(t *testing.T) {
	tests := []struct {
		status   int
		code     string
		sentinel error
	}{
		{http.StatusNotFound, "WISHLIST_NOT_FOUND", apperrors.ErrNotFound},
		{http.StatusBadRequest, "INVALID_QUANTITY", apperrors.ErrInvalidInput},
		{http.StatusConflict, "ITEM_CONFLICT", apperrors.ErrConflict},
		{http.StatusUnauthorized, "UNAUTHORIZED", apperrors.ErrUnauthorized},
		{http.StatusServiceUnavailable, "MAINTENANCE", apperrors.ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ParseResponseError(makeResponse(tt.status, structuredError(tt.code, "nope")), "catalog")

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Contains(t, appErr.Message, "catalog")
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.True(t, apperrors.IsRemote(err))
		})
	}
}

func TestParseResponseError_Unstructured(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusTeapot, "short and stout"), "catalog")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTeapot, appErr.Status)
	assert.Equal(t, "REMOTE_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "short and stout")
}

func TestParseResponseError_EmptyBody(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusForbidden, ""), "catalog")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "Forbidden")
}
