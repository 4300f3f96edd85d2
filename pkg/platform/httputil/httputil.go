// Package httputil centralizes JSON response writing so handlers stay small
// and error payloads are uniform across the API.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "biomatch/pkg/domain-errors"
)

// ErrorBody is the wire shape for every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON serializes v with the given status. Encoding failures are
// swallowed; by then the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a coded domain error onto an HTTP status and writes the
// uniform error body. Unknown errors become 500 with a generic message so
// internals never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	var coded *dErrors.Error
	if !errors.As(err, &coded) {
		WriteJSON(w, http.StatusInternalServerError, ErrorBody{Error: string(dErrors.CodeInternal), Message: "internal error"})
		return
	}
	WriteJSON(w, statusFor(coded.Code), ErrorBody{Error: string(coded.Code), Message: coded.Message})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		// Domain-specific codes (biometric rejections) are client-visible
		// outcomes of a well-formed request.
		return http.StatusUnprocessableEntity
	}
}
