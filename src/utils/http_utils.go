package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/models"
)

// SendJSONError is a helper function to send JSON formatted error responses.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if logger.L != nil {
		logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	}
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// SendDomainError maps the domain error kinds onto HTTP statuses and sends
// the JSON error body. Validation problems and insufficient funds are client
// errors; anything unrecognized is a 500.
func SendDomainError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrInsufficientFunds):
		SendJSONError(w, "insufficient funds", http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		SendJSONError(w, "not found", http.StatusNotFound)
	case errors.Is(err, models.ErrPriceUnavailable):
		SendJSONError(w, "price temporarily unavailable", http.StatusServiceUnavailable)
	default:
		logger.L.Error("Unexpected error handling request", "error", err)
		SendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

// WriteJSON sends v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}
