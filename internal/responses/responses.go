// Package responses writes JSON bodies in the service's wire format.
package responses

import (
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-user-accounts/internal/logger"
	"github.com/sbilibin2017/gw-user-accounts/internal/models"
)

var messages = map[int]string{
	http.StatusNotFound:            "resource not found",
	http.StatusUnprocessableEntity: "unprocessable",
	http.StatusMethodNotAllowed:    "method_not_allowed",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusConflict:            "conflict",
}

// Message returns the fixed error message for status.
func Message(status int) string {
	if msg, ok := messages[status]; ok {
		return msg
	}
	return http.StatusText(status)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorw("failed to encode response", "status", status, "error", err)
	}
}

// Error writes the fixed error body for status.
func Error(w http.ResponseWriter, status int) {
	JSON(w, status, models.ErrorResponse{
		Success: false,
		Error:   status,
		Message: Message(status),
	})
}

// NotFound is an http.HandlerFunc for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusNotFound)
}

// MethodNotAllowed is an http.HandlerFunc for known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusMethodNotAllowed)
}
