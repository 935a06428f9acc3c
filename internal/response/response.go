// Package response holds the JSON envelope shared by all API handlers.
package response

import (
	"encoding/json"
	"net/http"
)

// Envelope wraps every successful API payload.
type Envelope struct {
	Data any `json:"data"`
}

// JSON writes a successful API response with the given data.
func JSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Envelope{Data: data})
}

// Err writes a JSON error response with the given message and HTTP status code.
func Err(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// DecodeBody decodes a JSON request body into the given value.
func DecodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
