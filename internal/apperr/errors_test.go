package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := TokenExchangeFailed("exchange failed", errors.New("invalid_grant"))
	assert.Equal(t, "TokenExchangeFailed: exchange failed: invalid_grant", err.Error())
	assert.Equal(t, "invalid_grant", err.Detail())

	plain := MalformedCallback("missing code")
	assert.Equal(t, "MalformedCallback: missing code", plain.Error())
	assert.Empty(t, plain.Detail())
}

func TestErrorIsMatchesKind(t *testing.T) {
	wrapped := fmt.Errorf("setup: %w", IntegrationSetupFailed("platform down", nil))
	assert.True(t, errors.Is(wrapped, IntegrationSetupFailed("", nil)))
	assert.False(t, errors.Is(wrapped, NotFound("")))
	assert.Equal(t, KindIntegrationSetupFailed, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("llm call failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("x"), http.StatusBadRequest},
		{MalformedCallback("x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{TokenExchangeFailed("x", nil), http.StatusBadGateway},
		{IntegrationSetupFailed("x", nil), http.StatusInternalServerError},
		{Upstream("x", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}
