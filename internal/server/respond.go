package server

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJson(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	errorType := "invalid_request_error"

	switch {
	case code == http.StatusRequestEntityTooLarge:
		errorType = "payload_too_large"
	case code == http.StatusUnprocessableEntity:
		errorType = "unprocessable_document"
	case code == http.StatusServiceUnavailable:
		errorType = "unavailable"
	case code >= 500:
		errorType = "api_error"
	}

	writeJson(w, code, ErrorResponse{Error: Error{Type: errorType, Message: message}})
}
