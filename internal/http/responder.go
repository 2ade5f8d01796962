package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gumwoo/fivlo/internal/application"
)

var (
	errBadRequestBody = errors.New("invalid request body")
	errMissingToken   = errors.New("authentication token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto status codes and the
// machine-readable error_code clients branch on.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, resp := classify(err)
	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error", err, "error_kind", application.ErrorKind(err))
	} else {
		logger.InfoContext(ctx, "request rejected", "status", status, "error", err, "error_kind", application.ErrorKind(err))
	}
	r.writeJSON(ctx, w, status, resp)
}

func classify(err error) (int, errorResponse) {
	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "request contains invalid fields",
			Errors:    vErr.FieldErrors,
		}
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{ErrorCode: "AUTH_FORBIDDEN", Message: "operation not permitted"}
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_CREDENTIALS", Message: "email or password is incorrect"}
	case errors.Is(err, application.ErrInvalidToken):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: "token is invalid or expired"}
	case errors.Is(err, application.ErrUserNotFound), errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: "resource not found"}
	case errors.Is(err, application.ErrLedgerWriteConflict):
		return http.StatusConflict, errorResponse{ErrorCode: "RETRY", Message: "concurrent update, try again"}
	case errors.Is(err, application.ErrInsufficientCoins):
		return http.StatusConflict, errorResponse{ErrorCode: "INSUFFICIENT_COINS", Message: "not enough coins"}
	case errors.Is(err, application.ErrAlreadyOwned):
		return http.StatusConflict, errorResponse{ErrorCode: "ALREADY_OWNED", Message: "item already owned"}
	case errors.Is(err, application.ErrSessionActive):
		return http.StatusConflict, errorResponse{ErrorCode: "SESSION_ACTIVE", Message: "a session is already running"}
	case errors.Is(err, application.ErrSessionFinished):
		return http.StatusConflict, errorResponse{ErrorCode: "SESSION_FINISHED", Message: "session already finished"}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "resource already exists"}
	}
	return http.StatusInternalServerError, errorResponse{Message: "internal server error"}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func fieldError(field, message string) *application.ValidationError {
	return &application.ValidationError{FieldErrors: map[string]string{field: message}}
}
