package correlation

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequestPrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/health", nil)
	r.Header.Set("x-request-id", "req-3")
	r.Header.Set("x-fapi-interaction-id", "fapi-2")
	assert.Equal(t, "fapi-2", FromRequest(r))

	r.Header.Set("x-correlation-id", "corr-1")
	assert.Equal(t, "corr-1", FromRequest(r))
}

func TestFromRequestGenerates(t *testing.T) {
	r := httptest.NewRequest("GET", "/health", nil)
	id := FromRequest(r)
	assert.True(t, strings.HasPrefix(id, "corr-"), id)
	assert.NotEqual(t, id, FromRequest(r))
}

func TestContextRoundTrip(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	ctx := WithID(context.Background(), "abc")
	assert.Equal(t, "abc", FromContext(ctx))
}
