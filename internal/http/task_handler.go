package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gumwoo/fivlo/internal/application"
	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

type taskService interface {
	CreateTask(ctx context.Context, params application.CreateTaskParams) (application.CreateTaskResult, error)
	ListDay(ctx context.Context, principal application.Principal, day calendar.Date) ([]persistence.TaskInstance, error)
	ListRange(ctx context.Context, principal application.Principal, from, to calendar.Date) ([]persistence.TaskInstance, error)
	SetCompletion(ctx context.Context, principal application.Principal, instanceID string, completed bool) (application.CompletionToggleResult, error)
	UpdateTask(ctx context.Context, params application.UpdateTaskParams) (application.UpdateTaskResult, error)
	DeleteTask(ctx context.Context, principal application.Principal, instanceID string, scope application.DeleteScope) error
	RegenerateSeries(ctx context.Context, principal application.Principal, templateID string) (int, error)
}

type categoryService interface {
	CreateCategory(ctx context.Context, principal application.Principal, name, color string) (persistence.Category, error)
	ListCategories(ctx context.Context, principal application.Principal) ([]persistence.Category, error)
	DeleteCategory(ctx context.Context, principal application.Principal, id string) error
}

// TaskHandler serves tasks and their categories.
type TaskHandler struct {
	tasks      taskService
	categories categoryService
	responder  responder
	logger     *slog.Logger
}

func NewTaskHandler(tasks taskService, categories categoryService, logger *slog.Logger) *TaskHandler {
	base := defaultLogger(logger)
	return &TaskHandler{tasks: tasks, categories: categories, responder: newResponder(base), logger: base}
}

func (h *TaskHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "TaskHandler", operation, attrs...)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	var (
		instances []persistence.TaskInstance
		err       error
	)
	if query.Has("from") || query.Has("to") {
		var from, to calendar.Date
		if from, err = parseOptionalDate("from", query.Get("from")); err == nil {
			if to, err = parseOptionalDate("to", query.Get("to")); err == nil {
				instances, err = h.tasks.ListRange(r.Context(), principal, from, to)
			}
		}
	} else {
		var day calendar.Date
		if day, err = parseOptionalDate("date", query.Get("date")); err == nil {
			instances, err = h.tasks.ListDay(r.Context(), principal, day)
		}
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, taskListResponse{Tasks: newTaskDTOs(instances)})
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode task request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.tasks.CreateTask(r.Context(), application.CreateTaskParams{Principal: principal, Input: input})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "instances", len(result.Instances)).InfoContext(r.Context(), "task created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createTaskResponse{
		Template: newTemplateDTO(result.Template),
		Tasks:    newTaskDTOs(result.Instances),
	})
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))

	regenerate := false
	if value := r.URL.Query().Get("regenerate"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, fieldError("regenerate", "must be true or false"))
			return
		}
		regenerate = parsed
	}

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode task request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	result, err := h.tasks.UpdateTask(r.Context(), application.UpdateTaskParams{
		Principal:  principal,
		InstanceID: id,
		Input:      input,
		Regenerate: regenerate,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, updateTaskResponse{
		Task:        newTaskDTO(result.Instance),
		Regenerated: result.Regenerated,
	})
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))

	scope := application.DeleteScope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = application.DeleteSingle
	}
	if err := h.tasks.DeleteTask(r.Context(), principal, id, scope); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *TaskHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))

	var req completionRequest
	if err := decodeJSON(r, &req); err != nil || req.Completed == nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.tasks.SetCompletion(r.Context(), principal, id, *req.Completed)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, completionResponse{
		Task:   newTaskDTO(result.Instance),
		Reward: newGateDTO(result.Gate),
	})
}

func (h *TaskHandler) RegenerateSeries(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := strings.TrimSpace(r.PathValue("id"))

	created, err := h.tasks.RegenerateSeries(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, regenerateResponse{Created: created})
}

func (h *TaskHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	categories, err := h.categories.ListCategories(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]categoryDTO, 0, len(categories))
	for _, category := range categories {
		out = append(out, newCategoryDTO(category))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, categoryListResponse{Categories: out})
}

func (h *TaskHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	category, err := h.categories.CreateCategory(r.Context(), principal, req.Name, req.Color)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newCategoryDTO(category))
}

func (h *TaskHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.categories.DeleteCategory(r.Context(), principal, strings.TrimSpace(r.PathValue("id"))); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type taskRequest struct {
	Title      string   `json:"title"`
	CategoryID *string  `json:"category_id"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	Priority   int      `json:"priority"`
	Repeat     string   `json:"repeat"`
	Weekdays   []string `json:"weekdays"`
	EndsOn     *string  `json:"ends_on"`
}

func (req taskRequest) toInput() (application.TaskInput, error) {
	day, err := parseOptionalDate("date", req.Date)
	if err != nil {
		return application.TaskInput{}, err
	}
	endsOn, err := parseOptionalDatePtr("ends_on", req.EndsOn)
	if err != nil {
		return application.TaskInput{}, err
	}
	return application.TaskInput{
		Title:      req.Title,
		CategoryID: req.CategoryID,
		Date:       day,
		TimeOfDay:  req.Time,
		Priority:   req.Priority,
		Repeat:     req.Repeat,
		Weekdays:   req.Weekdays,
		EndsOn:     endsOn,
	}, nil
}

type completionRequest struct {
	Completed *bool `json:"completed"`
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type taskListResponse struct {
	Tasks []taskDTO `json:"tasks"`
}

type createTaskResponse struct {
	Template *templateDTO `json:"template,omitempty"`
	Tasks    []taskDTO    `json:"tasks"`
}

type updateTaskResponse struct {
	Task        taskDTO `json:"task"`
	Regenerated int     `json:"regenerated"`
}

type completionResponse struct {
	Task   taskDTO  `json:"task"`
	Reward *gateDTO `json:"reward,omitempty"`
}

type regenerateResponse struct {
	Created int `json:"created"`
}

type categoryListResponse struct {
	Categories []categoryDTO `json:"categories"`
}
