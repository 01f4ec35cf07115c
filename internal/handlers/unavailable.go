package handlers

import "net/http"

// ErrorResponse is the JSON error body written by handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NotConfigured answers for a route whose business handler is not mounted.
func NotConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error: "service not configured",
		Code:  "SERVICE_NOT_CONFIGURED",
	})
}
