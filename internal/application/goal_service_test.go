package application

import (
	"context"
	"errors"
	"testing"

	"github.com/gumwoo/fivlo/internal/goalai"
	"github.com/gumwoo/fivlo/internal/logging"
	"github.com/gumwoo/fivlo/internal/testfixtures"
)

func TestGoalService_PlanCreatesTasks(t *testing.T) {
	t.Parallel()

	user := testfixtures.NewUser()
	env := newTestEnv(t, user)
	svc := NewGoalService(goalai.NewPlanner(nil, ""), env.tasks, env.store, env.clock.NowFunc(), logging.Discard())

	result, err := svc.Plan(context.Background(), GoalPlanParams{
		Principal:   principalOf(user),
		Goal:        "Run a 10k",
		Weeks:       3,
		CreateTasks: true,
	})
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if result.Plan.Source != goalai.SourceFallback || len(result.Plan.Steps) != 3 {
		t.Fatalf("unexpected plan: %+v", result.Plan)
	}
	if len(result.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(result.Tasks))
	}
	start := testfixtures.ReferenceDay()
	for i, task := range result.Tasks {
		if task.DueOn != start.AddDays(7*(i+1)-1) {
			t.Errorf("task %d due %s, want %s", i, task.DueOn, start.AddDays(7*(i+1)-1))
		}
		if task.Title != result.Plan.Steps[i].Title {
			t.Errorf("task %d title %q, want %q", i, task.Title, result.Plan.Steps[i].Title)
		}
	}
}

func TestGoalService_PlanValidation(t *testing.T) {
	t.Parallel()

	user := testfixtures.NewUser()
	env := newTestEnv(t, user)
	svc := NewGoalService(goalai.NewPlanner(nil, ""), env.tasks, env.store, env.clock.NowFunc(), nil)

	_, err := svc.Plan(context.Background(), GoalPlanParams{Principal: principalOf(user), Goal: "  "})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["goal"] == "" {
		t.Fatalf("expected goal validation error, got %v", err)
	}
	if _, err := svc.Plan(context.Background(), GoalPlanParams{Goal: "x"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(env.store.instances) != 0 {
		t.Fatalf("expected no tasks to be stored")
	}
}
