package handler

// RESPONSE HELPERS:
// Every error response has the same shape:
//   {"error": "not_found", "message": "Saved image not found"}
//
// The "error" code is machine-readable and stable; the message is for
// people. Clients branch on the code.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/auth"
	"github.com/sakif/imagesearch/internal/model"
)

// maxBodyBytes caps request bodies. A batch of a few hundred results fits
// comfortably.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and error code.
//
//	ErrValidation          → 400 validation_error
//	ErrUnauthorized        → 401 unauthorized
//	ErrUpstreamCredential  → 401 invalid_provider_credentials
//	ErrUpstreamRateLimited → 403 rate_limited
//	ErrForbidden           → 403 forbidden
//	ErrNotFound            → 404 not_found
//	ErrConflict            → 409 conflict
//	ErrUnavailable         → 503 service_unavailable
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrUpstreamCredential):
		return http.StatusUnauthorized, "invalid_provider_credentials"
	case errors.Is(err, apperror.ErrUpstreamRateLimited):
		return http.StatusForbidden, "rate_limited"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError sends err as an ErrorResponse. Only *apperror.AppError
// messages reach the client; anything else becomes a generic 500 and is
// logged here, since its text may hold SQL or file paths.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, code := errorStatus(err)
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON reads a single JSON object from the body into dst. Bodies
// over maxBodyBytes, malformed JSON, and trailing data are all
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must not exceed %d bytes", maxBodyBytes))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		default:
			return apperror.ValidationFailed("body", "request body must be valid JSON")
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}

// queryInt reads a non-negative integer query parameter. A missing
// parameter yields def.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(key, fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return n, nil
}

// pageParams reads limit and skip. Zero means "use the default" and the
// service clamps the rest.
func pageParams(r *http.Request) (limit, skip int, err error) {
	if limit, err = queryInt(r, "limit", 0); err != nil {
		return 0, 0, err
	}
	if skip, err = queryInt(r, "skip", 0); err != nil {
		return 0, 0, err
	}
	return limit, skip, nil
}

// requireUser returns the session user. Routes behind RequireSession
// always have one; the 401 covers a handler mounted without the gate.
func requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Authentication required"))
		return nil, false
	}
	return user, true
}
