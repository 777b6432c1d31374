package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/core/domain"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

const (
	msgUnauthorized = "Not authenticated"
	msgForbidden    = "CSRF token missing or invalid"
	msgTaskNotFound = "Task not found"
	msgInternal     = "Internal server error"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads at most maxBodyBytes of the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// writeDecodeError answers 413 for an oversized body and 400 otherwise.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeServiceError maps domain errors to a status and a fixed message. Token
// failures share one body so callers cannot tell an expired token from a
// forged one, and a task owned by someone else reads as missing.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrTaskNotOwned):
		writeError(w, http.StatusNotFound, msgTaskNotFound)
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrInvalidTask), errors.Is(err, domain.ErrInvalidSignUp):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case isTokenFailure(err):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, domain.ErrCSRFMismatch):
		writeError(w, http.StatusForbidden, msgForbidden)
	case errors.Is(err, context.DeadlineExceeded) && r.Context().Err() != nil:
		// middleware.Timeout answers 504 once the handler returns.
		logger.Warn("request deadline exceeded",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
		)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Request timed out")
	default:
		logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// isTokenFailure reports errors that mean the presented credentials are no
// good, as opposed to the server failing to check them.
func isTokenFailure(err error) bool {
	return errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, domain.ErrExpiredToken) ||
		errors.Is(err, domain.ErrWrongTokenKind) ||
		errors.Is(err, domain.ErrRefreshTokenReused)
}
