// Package response renders the JSON envelope every endpoint returns:
// a status marker plus one of data, message, or field errors.
package response

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already sent; an encode failure here is not
	// reportable to the client.
	_ = json.NewEncoder(w).Encode(resp)
}

// JSON writes a success envelope wrapping data.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, APIResponse{Status: "success", Data: data})
}

// Error writes an error envelope carrying a human-readable message.
func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, APIResponse{Status: "error", Message: msg})
}

// ValidationError returns a 400 with field-level messages.
func ValidationError(w http.ResponseWriter, fields map[string]string) {
	write(w, http.StatusBadRequest, APIResponse{
		Status:  "error",
		Message: "Validation failed",
		Errors:  fields,
	})
}
