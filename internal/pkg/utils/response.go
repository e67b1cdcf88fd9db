package utils

import (
	"encoding/json"
	"net/http"

	"github.com/kybernus/license-api/internal/pkg/errors"
)

// ErrorResponse is the body of every failed request. Error carries the
// machine-readable code at the top level, as device flow clients expect.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an error JSON response from AppError
func WriteError(w http.ResponseWriter, err *errors.AppError) error {
	return WriteJSON(w, err.StatusCode, ErrorResponse{
		Success: false,
		Error:   err.Code,
		Message: err.Message,
		Details: err.Details,
	})
}

// WriteErr writes any error, mapping non-AppErrors to a 500
func WriteErr(w http.ResponseWriter, err error) error {
	return WriteError(w, errors.As(err))
}

// WriteErrorMessage writes a simple error message
func WriteErrorMessage(w http.ResponseWriter, status int, code, message string) error {
	return WriteJSON(w, status, ErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
	})
}
