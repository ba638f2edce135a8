// Package handlers provides HTTP handlers for the pharmacy API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

const errorEnvelope = "An error occurred while processing the request"

var errBodyTooLarge = errors.New("request body too large")

// ErrorResponse is the body of every 4xx/5xx answer
type ErrorResponse struct {
	Message       string         `json:"message"`
	Error         string         `json:"error"`
	CorrelationID string         `json:"correlationId"`
	Details       map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to 400/404 and everything else to a
// generic 500 whose detail only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	resp := ErrorResponse{
		Message:       errorEnvelope,
		CorrelationID: correlation.FromContext(r.Context()),
	}

	var (
		ve *pharmacy.ValidationError
		nf *pharmacy.NotFoundError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		resp.Error = ve.Message
		resp.Details = ve.Details
	case errors.As(err, &nf):
		status = http.StatusNotFound
		resp.Error = nf.Message
	case errors.Is(err, errBodyTooLarge):
		status = http.StatusRequestEntityTooLarge
		resp.Error = err.Error()
	default:
		resp.Error = "internal server error"
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", resp.CorrelationID),
			zap.Error(err))
	}
	writeJSON(w, status, resp)
}

// decodeObject reads a JSON object body. An empty body decodes to an empty
// object; arrays, scalars and malformed JSON are validation errors. Numbers
// are kept as json.Number.
func decodeObject(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return map[string]any{}, nil
		case errors.As(err, &tooLarge):
			return nil, errBodyTooLarge
		default:
			return nil, pharmacy.NewValidationError("invalid JSON body", nil)
		}
	}
	switch v := body.(type) {
	case map[string]any:
		return v, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, pharmacy.NewValidationError("request body must be a JSON object", nil)
	}
}

// requireFields reports absent, null or empty-string fields in order.
func requireFields(body map[string]any, fields ...string) error {
	var missing []string
	for _, f := range fields {
		v, ok := body[f]
		if !ok || v == nil || v == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return pharmacy.MissingFieldsError(missing)
	}
	return nil
}

func stringField(body map[string]any, field string) (string, error) {
	s, ok := body[field].(string)
	if !ok {
		return "", pharmacy.NewValidationError(field+" must be a string", map[string]any{"field": field})
	}
	return s, nil
}

type notFoundResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// NotFound answers unmatched routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{Message: "Resource not found", Path: r.URL.Path})
}
