package httputil

import (
	"encoding/json"
	"net/http"
)

// ContextKey is the type for values stored in request contexts by middleware.
type ContextKey string

const (
	RequestIDCtxKey ContextKey = "RequestID"
	APIKeyCtxKey    ContextKey = "APIKey"
)

// BindOrError decodes the JSON body of r into dst. If decoding fails it
// responds with 400 Bad Request and returns the error.
func BindOrError(r *http.Request, w http.ResponseWriter, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return err
	}
	return nil
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Blob writes a binary response with the given status code and content type.
func Blob(w http.ResponseWriter, statusCode int, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		http.Error(w, "Failed to write response", http.StatusInternalServerError)
	}
}

// ErrorResponse is the structured error body returned by the API.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error sends a JSON response with an error code and message.
func Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Code: statusCode, Message: message}); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
