// Package http exposes the forecasting, calendar and ledger services as a
// JSON API.
//
// This file implements the builder used by every handler to write JSON
// responses and to translate domain errors into status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budgetcal/internal/core"
	"budgetcal/internal/forecast"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Error sets an error body with a machine-readable code and a message.
func (b *JSONResponseBuilder) Error(code, message string) *JSONResponseBuilder {
	b.payload = ErrorBody{Error: code, Message: message}
	return b
}

// Write sends the built response. A 204 never carries a body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent || b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}

// BadRequestError creates a 400 response for malformed input.
func BadRequestError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusBadRequest).Error("bad_request", message)
}

// NotFoundError creates a 404 response.
func NotFoundError(message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusNotFound).Error("not_found", message)
}

// validationErrors are rejected as unprocessable rather than malformed.
var validationErrors = []error{
	core.ErrInvalidInput,
	core.ErrInvalidAmount,
	core.ErrEmptyName,
	core.ErrEmptyDescription,
	core.ErrInvalidFrequency,
	core.ErrInvalidSource,
	core.ErrInvalidDateRange,
	core.ErrInvalidAccountType,
	forecast.ErrHorizonTooFar,
}

// ErrorFor maps a service error to a response. Unknown errors become a 500
// whose message does not leak internals.
func ErrorFor(err error) *JSONResponseBuilder {
	var invalidDate *core.InvalidDateError
	var missingBalance *core.MissingBalanceError
	switch {
	case errors.As(err, &invalidDate):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Error("invalid_date", err.Error())
	case errors.As(err, &missingBalance):
		return NewJSONResponse().Status(http.StatusPreconditionFailed).Error("missing_balance", err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return NewJSONResponse().Status(http.StatusUnprocessableEntity).Error("validation_failed", err.Error())
		}
	}
	return NewJSONResponse().Status(http.StatusInternalServerError).Error("internal_error", "Internal server error")
}
