package handler

// Every error response has the same shape:
//
//	{"error": "not_found", "message": "tribute not found with id abc123"}
//
// plus "field" for validation errors, so the frontend can point at the
// offending input.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/auth"
	"github.com/sakif/memorial/internal/model"
)

// maxJSONBody caps request bodies on the JSON endpoints.
const maxJSONBody = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sets headers, then the status, then encodes the body. Header
// changes after the first Write are silently ignored, so the order matters.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to a status code. Anything that is not
// an *apperror.AppError is an internal failure: it is logged and the client
// only sees a generic 500, never the underlying message.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
		errorType = "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
		errorType = "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		errorType = "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		errorType = "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
		errorType = "conflict"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads a single JSON value from the request body into dst.
// Unknown fields are ignored; in particular a client-supplied isAdmin on
// registration simply has nowhere to go.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "request body is too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// pageParams reads ?limit= and ?offset=. Missing values are zero, which
// the service turns into defaults.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, apperror.ValidationFailed("limit", "limit must be a number")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, apperror.ValidationFailed("offset", "offset must be a number")
		}
	}
	return limit, offset, nil
}

// actor returns the signed-in account, or nil for an anonymous request.
func actor(r *http.Request) *model.Account {
	account, _ := auth.AccountFromContext(r.Context())
	return account
}
