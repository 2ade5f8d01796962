package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/goalai"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// GoalPlanner breaks a goal into weekly steps.
type GoalPlanner interface {
	Plan(ctx context.Context, req goalai.GoalRequest) (goalai.Plan, error)
}

// TaskCreator creates tasks on behalf of a principal.
type TaskCreator interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (CreateTaskResult, error)
}

// GoalPlanParams describes a goal breakdown request.
type GoalPlanParams struct {
	Principal   Principal
	Goal        string
	StartsOn    calendar.Date
	Deadline    *calendar.Date
	Weeks       int
	CreateTasks bool
	CategoryID  *string
}

// GoalPlanResult returns the plan and the tasks created from it.
type GoalPlanResult struct {
	Plan  goalai.Plan
	Tasks []persistence.TaskInstance
}

// GoalService turns goals into dated tasks.
type GoalService struct {
	planner  GoalPlanner
	tasks    TaskCreator
	users    UserReader
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// NewGoalService constructs a GoalService.
func NewGoalService(planner GoalPlanner, tasks TaskCreator, users UserReader, now func() time.Time, logger *slog.Logger) *GoalService {
	if now == nil {
		now = time.Now
	}
	return &GoalService{planner: planner, tasks: tasks, users: users, now: now, location: time.UTC, logger: defaultLogger(logger)}
}

// SetLocation sets the zone used for users without a valid timezone.
func (s *GoalService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

// Plan produces a weekly breakdown and optionally stores one task per step.
// A zero StartsOn means today in the user's zone.
func (s *GoalService) Plan(ctx context.Context, params GoalPlanParams) (result GoalPlanResult, err error) {
	if s == nil || s.planner == nil {
		err = fmt.Errorf("goal planner not configured")
		return
	}
	logger := serviceLogger(ctx, s.logger, "GoalService", "Plan",
		"principal_id", params.Principal.UserID,
		"create_tasks", params.CreateTasks,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "goal planning failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "goal planned", "source", result.Plan.Source, "steps", len(result.Plan.Steps))
	}()

	if strings.TrimSpace(params.Principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}

	start := params.StartsOn
	if start.IsZero() {
		loc := s.location
		if s.users != nil {
			var user persistence.User
			if user, err = s.users.GetUser(ctx, params.Principal.UserID); err != nil {
				if errors.Is(err, persistence.ErrNotFound) {
					err = ErrUserNotFound
				}
				return
			}
			loc = userLocation(user, s.location)
		}
		start = calendar.DateOf(s.now(), loc)
	}

	result.Plan, err = s.planner.Plan(ctx, goalai.GoalRequest{
		Goal:     params.Goal,
		StartsOn: start,
		Deadline: params.Deadline,
		Weeks:    params.Weeks,
	})
	if err != nil {
		if errors.Is(err, goalai.ErrInvalidRequest) {
			err = newValidationError("goal", strings.TrimPrefix(err.Error(), goalai.ErrInvalidRequest.Error()+": "))
		}
		return
	}

	if !params.CreateTasks || s.tasks == nil {
		return
	}
	for _, step := range result.Plan.Steps {
		var created CreateTaskResult
		created, err = s.tasks.CreateTask(ctx, CreateTaskParams{
			Principal: params.Principal,
			Input: TaskInput{
				Title:      truncateRunes(step.Title, maxTitleLength),
				CategoryID: params.CategoryID,
				Date:       step.DueOn,
			},
		})
		if err != nil {
			err = fmt.Errorf("create task for week %d: %w", step.Week, err)
			return
		}
		result.Tasks = append(result.Tasks, created.Instances...)
	}
	return
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
