package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gumwoo/fivlo/internal/application"
	"github.com/gumwoo/fivlo/internal/goalai"
)

type goalService interface {
	Plan(ctx context.Context, params application.GoalPlanParams) (application.GoalPlanResult, error)
}

// GoalHandler serves goal breakdowns.
type GoalHandler struct {
	service   goalService
	responder responder
}

func NewGoalHandler(service goalService, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{service: service, responder: newResponder(logger)}
}

func (h *GoalHandler) Plan(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req goalPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	startsOn, err := parseOptionalDate("starts_on", req.StartsOn)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	deadline, err := parseOptionalDatePtr("deadline", req.Deadline)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.service.Plan(r.Context(), application.GoalPlanParams{
		Principal:   principal,
		Goal:        req.Goal,
		StartsOn:    startsOn,
		Deadline:    deadline,
		Weeks:       req.Weeks,
		CreateTasks: req.CreateTasks,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if len(result.Tasks) > 0 {
		status = http.StatusCreated
	}
	h.responder.writeJSON(r.Context(), w, status, goalPlanResponse{Plan: result.Plan, Tasks: newTaskDTOs(result.Tasks)})
}

type goalPlanRequest struct {
	Goal        string  `json:"goal"`
	StartsOn    string  `json:"starts_on"`
	Deadline    *string `json:"deadline"`
	Weeks       int     `json:"weeks"`
	CreateTasks bool    `json:"create_tasks"`
	CategoryID  *string `json:"category_id"`
}

type goalPlanResponse struct {
	Plan  goalai.Plan `json:"plan"`
	Tasks []taskDTO   `json:"tasks"`
}
