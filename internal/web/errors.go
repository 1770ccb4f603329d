package web

// errors.go writes every error response as {"detail": ...}.
//
// Validation problems become 422 with the field list, faults the handler
// expected become their own status and detail, and anything else is logged
// with the request ID and returned as an opaque 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/logging"
	"github.com/JonMunkholm/restfab/internal/schema"
)

const internalErrorDetail = "Internal Server Error"

// ErrorResponse is the body of every error response. Detail is a string,
// a validation list or a CSV row report.
type ErrorResponse struct {
	Detail any `json:"detail"`
}

// CSVRowDetail reports the first invalid CSV row.
type CSVRowDetail struct {
	Line   int                     `json:"line"`
	Row    map[string]string       `json:"row"`
	Detail schema.ValidationErrors `json:"detail"`
}

// respondError maps err onto a response. Only faults of the expected kinds
// are translated from driver errors.
func respondError(w http.ResponseWriter, r *http.Request, err error, expected ...core.FaultKind) {
	logger := logging.FromContext(r.Context())

	if ve, ok := schema.AsValidationErrors(err); ok {
		logger.Debug("validation failed", "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusUnprocessableEntity, ve)
		return
	}

	if f, ok := core.Translate(err, expected...); ok {
		logger.Info("request fault",
			"path", r.URL.Path,
			"method", r.Method,
			"kind", f.Kind.String(),
			"status", f.Status,
			"error", err,
		)
		writeDetail(w, f.Status, f.Detail)
		return
	}

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "30")
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	logger.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"error", err,
	)
	writeDetail(w, http.StatusInternalServerError, internalErrorDetail)
}

// writeDetail writes {"detail": detail} with status.
func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeJSON encodes v as JSON and writes it with status.
// Encoding errors are only logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// fieldError builds a single-item validation list for request parameters
// outside the body, such as query values.
func fieldError(loc []string, msg, typ string) schema.ValidationErrors {
	return schema.ValidationErrors{{Loc: loc, Msg: msg, Type: typ}}
}
