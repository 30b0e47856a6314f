package server

import (
	"encoding/json"
	"net/http"
)

// Response envelopes are an external contract with the SPA:
// success bodies are {"data": ...}, errors are
// {"error": {"code", "message", "details"?}}.

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, map[string]any{"error": errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func validationError(w http.ResponseWriter, message string, fields map[string]any) {
	var details map[string]any
	if len(fields) > 0 {
		details = map[string]any{"fields": fields}
	}
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

func notFoundError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func unauthorizedError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func forbiddenError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, "FORBIDDEN", message, nil)
}

func serverError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, "SERVER_ERROR", message, nil)
}
