// Package correlation carries the per-request correlation id through a context.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const idKey contextKey = "correlation_id"

// Header is the response header that always carries the correlation id.
const Header = "X-Correlation-Id"

// inboundHeaders are checked in order; the first non-empty one wins.
var inboundHeaders = []string{
	"X-Correlation-Id",
	"X-Fapi-Interaction-Id",
	"X-Request-Id",
}

// New generates a fresh correlation id.
func New() string {
	return "corr-" + uuid.New().String()
}

// FromRequest returns the caller supplied correlation id, or a new one.
func FromRequest(r *http.Request) string {
	for _, h := range inboundHeaders {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return New()
}

// WithID stores id in ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// FromContext extracts the correlation id from ctx.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(idKey).(string); ok {
		return id
	}
	return ""
}
