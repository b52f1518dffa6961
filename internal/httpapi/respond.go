// Package httpapi exposes the engine over HTTP: a control surface for the
// presentation layer and an ingest endpoint for classifier probabilities.
//
// Every response is a JSON envelope: {"status": "ok", "data": ...} on success
// and {"status": "error", "error": "..."} on failure.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Envelope is the body of every response.
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	statusOK    = "ok"
	statusError = "error"
)

// httpError carries the status code a handler failure maps to.
type httpError struct {
	code int
	msg  string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(msg string) error { return &httpError{code: http.StatusBadRequest, msg: msg} }

func conflict(msg string) error { return &httpError{code: http.StatusConflict, msg: msg} }

func unavailable(msg string) error {
	return &httpError{code: http.StatusServiceUnavailable, msg: msg}
}

// writeJSON writes v as application/json with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Status: statusOK, Data: data})
}

// respondError maps err to a status: httpError keeps its own code, anything
// else is a 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var he *httpError
	if errors.As(err, &he) {
		status = he.code
	} else {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, Envelope{Status: statusError, Error: err.Error()})
}

// handlerFunc is a handler that returns its payload or an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) (int, any, error)

func handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, data, err := h(w, r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		respond(w, status, data)
	}
}
