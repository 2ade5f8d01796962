package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gumwoo/fivlo/internal/application"
	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

type reminderService interface {
	CreateReminder(ctx context.Context, principal application.Principal, input application.ReminderInput) (persistence.Reminder, error)
	UpdateReminder(ctx context.Context, principal application.Principal, id string, input application.ReminderInput) (persistence.Reminder, error)
	ListReminders(ctx context.Context, principal application.Principal) ([]persistence.Reminder, error)
	DeleteReminder(ctx context.Context, principal application.Principal, id string) error
	Complete(ctx context.Context, principal application.Principal, id string, day calendar.Date) (application.ReminderCompletionResult, error)
}

// ReminderHandler serves the reminder checklist.
type ReminderHandler struct {
	service   reminderService
	responder responder
}

func NewReminderHandler(service reminderService, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{service: service, responder: newResponder(logger)}
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	reminders, err := h.service.ListReminders(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]reminderDTO, 0, len(reminders))
	for _, reminder := range reminders {
		out = append(out, newReminderDTO(reminder))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderListResponse{Reminders: out})
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	reminder, err := h.service.CreateReminder(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newReminderDTO(reminder))
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	reminder, err := h.service.UpdateReminder(r.Context(), principal, strings.TrimSpace(r.PathValue("id")), req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newReminderDTO(reminder))
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteReminder(r.Context(), principal, strings.TrimSpace(r.PathValue("id"))); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Complete checks the reminder off for ?date= (default today). Only a check
// for today can carry a reward.
func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	day, err := parseOptionalDate("date", r.URL.Query().Get("date"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	result, err := h.service.Complete(r.Context(), principal, strings.TrimSpace(r.PathValue("id")), day)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	gate := result.Gate
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reminderCompletionResponse{
		Recorded: result.Recorded,
		Reward:   newGateDTO(&gate),
	})
}

type reminderRequest struct {
	Title    string   `json:"title"`
	Time     string   `json:"time"`
	Weekdays []string `json:"weekdays"`
	Active   *bool    `json:"active"`
}

func (req reminderRequest) toInput() application.ReminderInput {
	return application.ReminderInput{
		Title:     req.Title,
		TimeOfDay: req.Time,
		Weekdays:  req.Weekdays,
		Active:    req.Active,
	}
}

type reminderListResponse struct {
	Reminders []reminderDTO `json:"reminders"`
}

type reminderCompletionResponse struct {
	Recorded bool     `json:"recorded"`
	Reward   *gateDTO `json:"reward"`
}
