package server

import (
	"encoding/json"
	"net/http"
)

// HTTPError is the standard API error body.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"-"`
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// WithDetail returns a copy carrying extra context.
func (e *HTTPError) WithDetail(detail string) *HTTPError {
	cp := *e
	cp.Detail = detail
	return &cp
}

var (
	errInvalidJSON  = &HTTPError{Code: "invalid_json", Message: "Invalid JSON body", Status: http.StatusBadRequest}
	errBadRequest   = &HTTPError{Code: "bad_request", Message: "Bad request", Status: http.StatusBadRequest}
	errUnauthorized = &HTTPError{Code: "unauthorized", Message: "Invalid credentials", Status: http.StatusUnauthorized}
	errNotFound     = &HTTPError{Code: "not_found", Message: "Not found", Status: http.StatusNotFound}
	errConflict     = &HTTPError{Code: "conflict", Message: "Conflict", Status: http.StatusConflict}
	errInternal     = &HTTPError{Code: "internal_error", Message: "Internal server error", Status: http.StatusInternalServerError}
)

func writeError(w http.ResponseWriter, e *HTTPError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
