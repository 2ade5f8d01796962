package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gumwoo/fivlo/internal/application"
	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
	"github.com/gumwoo/fivlo/internal/report"
	"github.com/gumwoo/fivlo/internal/stats"
)

type pomodoroService interface {
	Start(ctx context.Context, params application.StartSessionParams) (persistence.PomodoroSession, error)
	Complete(ctx context.Context, principal application.Principal, sessionID string) (application.SessionResult, error)
	Abandon(ctx context.Context, principal application.Principal, sessionID string) (persistence.PomodoroSession, error)
	StatsOn(ctx context.Context, principal application.Principal, kind stats.Kind, day calendar.Date) (stats.Summary, error)
}

// PomodoroHandler serves focus sessions and their statistics.
type PomodoroHandler struct {
	service   pomodoroService
	responder responder
	logger    *slog.Logger
}

func NewPomodoroHandler(service pomodoroService, logger *slog.Logger) *PomodoroHandler {
	base := defaultLogger(logger)
	return &PomodoroHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PomodoroHandler) Start(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, err := h.service.Start(r.Context(), application.StartSessionParams{
		Principal:      principal,
		Goal:           req.Goal,
		Kind:           req.Kind,
		PlannedSeconds: req.PlannedSeconds,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newSessionDTO(session))
}

func (h *PomodoroHandler) Complete(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	result, err := h.service.Complete(r.Context(), principal, strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{
		Session: newSessionDTO(result.Session),
		Reward:  newGateDTO(result.Gate),
	})
}

func (h *PomodoroHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	session, err := h.service.Abandon(r.Context(), principal, strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: newSessionDTO(session)})
}

func (h *PomodoroHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summary(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newStatsDTO(summary))
}

// Export renders the same summary as Stats as an xlsx attachment.
func (h *PomodoroHandler) Export(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summary(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteStats(&buf, summary); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(summary)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		handlerLogger(r.Context(), h.logger, "PomodoroHandler", "Export").WarnContext(r.Context(), "failed to write workbook", "error", err)
	}
}

func (h *PomodoroHandler) summary(r *http.Request) (stats.Summary, error) {
	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	kind, err := stats.ParseKind(query.Get("period"))
	if err != nil {
		return stats.Summary{}, fieldError("period", "must be daily, weekly or monthly")
	}
	day, err := parseOptionalDate("date", query.Get("date"))
	if err != nil {
		return stats.Summary{}, err
	}
	return h.service.StatsOn(r.Context(), principal, kind, day)
}

type startSessionRequest struct {
	Goal           string `json:"goal"`
	Kind           string `json:"kind"`
	PlannedSeconds int    `json:"planned_seconds"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
	Reward  *gateDTO   `json:"reward,omitempty"`
}
