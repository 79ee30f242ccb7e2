package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := RetrievalUnavailable("collection missing", errors.New("not found"))
	wrapped := fmt.Errorf("retrieve: %w", err)

	assert.ErrorIs(t, wrapped, ErrRetrievalUnavailable)
	assert.NotErrorIs(t, wrapped, ErrGenerationFailure)
	assert.Equal(t, KindRetrievalUnavailable, KindOf(wrapped))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("boom")
	err := GenerationFailure("generate", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	e := ErrInvalidInput.WithDetail("field", "message")
	assert.Equal(t, "message", e.Details["field"])
	assert.Nil(t, ErrInvalidInput.Details)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{RetrievalUnavailable("x", nil), http.StatusServiceUnavailable},
		{GenerationFailure("x", nil), http.StatusInternalServerError},
		{InvalidInput("x"), http.StatusUnprocessableEntity},
		{NotFound("x"), http.StatusNotFound},
		{Unauthorized("x"), http.StatusUnauthorized},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
