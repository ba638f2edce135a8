// Package middleware provides HTTP middleware for the pharmacy API.
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/observability/metrics"
	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

// CorrelationID resolves the request's correlation id, stores it in the
// request context and echoes it in the X-Correlation-Id response header.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := correlation.FromRequest(r)
		w.Header().Set(correlation.Header, id)
		next.ServeHTTP(w, r.WithContext(correlation.WithID(r.Context(), id)))
	})
}

// observe runs next and reports the status it wrote and how long it took.
// Route patterns are only known once chi has routed, so done runs after next.
func observe(done func(r *http.Request, status int, elapsed time.Duration)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)
			next.ServeHTTP(rw, r)
			done(r, rw.statusCode, time.Since(start))
		})
	}
}

// Logger writes one entry per request
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return observe(func(r *http.Request, status int, elapsed time.Duration) {
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", routePattern(r)),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("correlation_id", correlation.FromContext(r.Context())),
		)
	})
}

// Metrics records request durations by method, route pattern and status
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return observe(func(r *http.Request, status int, elapsed time.Duration) {
		m.RequestDuration.
			WithLabelValues(r.Method, routePattern(r), strconv.Itoa(status)).
			Observe(elapsed.Seconds())
	})
}

// Tracing adds OpenTelemetry tracing
func Tracing(serviceName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(serviceName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.url", r.URL.String()),
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.String("correlation_id", correlation.FromContext(ctx)),
				))
			defer span.End()

			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if route := routePattern(r); route != unmatchedRoute {
				span.SetName(r.Method + " " + route)
				span.SetAttributes(attribute.String("http.route", route))
			}
			span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))
			if wrapped.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
			}
		})
	}
}

// Recover turns panics into a JSON 500 carrying the correlation id
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				id := correlation.FromContext(r.Context())
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("path", r.URL.Path),
					zap.String("correlation_id", id),
					zap.Stack("stack"),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"message":       "An error occurred while processing the request",
					"error":         "internal server error",
					"correlationId": id,
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows any origin and exposes the correlation header
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Correlation-Id, X-Fapi-Interaction-Id, X-Request-Id, traceparent")
		h.Set("Access-Control-Expose-Headers", correlation.Header)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const unmatchedRoute = "unmatched"

// routePattern returns the chi route pattern once routing has happened
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func wrap(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
