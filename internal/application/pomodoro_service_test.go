package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gumwoo/fivlo/internal/stats"
	"github.com/gumwoo/fivlo/internal/testfixtures"
)

func TestPomodoroService_Lifecycle(t *testing.T) {
	t.Parallel()

	user := testfixtures.NewUser()
	env := newTestEnv(t, user)
	ctx := context.Background()
	principal := principalOf(user)

	session, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal, Goal: "thesis", PlannedSeconds: 1500})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if session.Kind != "focus" || session.Status != "running" {
		t.Fatalf("unexpected session: %+v", session)
	}

	if _, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal}); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	env.clock.Advance(30 * time.Minute)
	done, err := env.pomodoro.Complete(ctx, principal, session.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if done.Session.DurationSeconds != 1500 {
		t.Fatalf("expected duration clamped to 1500, got %d", done.Session.DurationSeconds)
	}
	if done.Gate == nil || done.Gate.Outcome != OutcomeRewarded {
		t.Fatalf("expected the first focus session to mint, got %+v", done.Gate)
	}

	if _, err := env.pomodoro.Complete(ctx, principal, session.ID); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}

	second, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal, Goal: "thesis"})
	if err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	env.clock.Advance(10 * time.Minute)
	again, err := env.pomodoro.Complete(ctx, principal, second.ID)
	if err != nil {
		t.Fatalf("second Complete returned error: %v", err)
	}
	if again.Session.DurationSeconds != 600 || again.Gate.Outcome != OutcomeAlreadyRewarded {
		t.Fatalf("expected unclamped duration and no second mint, got %+v", again)
	}
	if env.store.balance(user.ID) != 1 {
		t.Fatalf("expected balance 1, got %d", env.store.balance(user.ID))
	}
}

func TestPomodoroService_BreaksAndAbandon(t *testing.T) {
	t.Parallel()

	user := testfixtures.NewUser()
	env := newTestEnv(t, user)
	ctx := context.Background()
	principal := principalOf(user)

	brk, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal, Kind: "break", PlannedSeconds: 300})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	env.clock.Advance(5 * time.Minute)
	done, err := env.pomodoro.Complete(ctx, principal, brk.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if done.Gate != nil {
		t.Fatalf("expected breaks to skip the gate, got %+v", done.Gate)
	}

	focus, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	abandoned, err := env.pomodoro.Abandon(ctx, principal, focus.ID)
	if err != nil {
		t.Fatalf("Abandon returned error: %v", err)
	}
	if abandoned.Status != "abandoned" || abandoned.EndedAt == nil {
		t.Fatalf("unexpected abandoned session: %+v", abandoned)
	}
	if _, err := env.pomodoro.Abandon(ctx, principal, focus.ID); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}

	var vErr *ValidationError
	if _, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal, Kind: "nap"}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown kind, got %v", err)
	}
}

func TestPomodoroService_Stats(t *testing.T) {
	t.Parallel()

	user := testfixtures.NewUser()
	env := newTestEnv(t, user)
	ctx := context.Background()
	principal := principalOf(user)

	for _, minutes := range []time.Duration{25, 20} {
		session, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal, Goal: "study"})
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
		env.clock.Advance(minutes * time.Minute)
		if _, err := env.pomodoro.Complete(ctx, principal, session.ID); err != nil {
			t.Fatalf("Complete returned error: %v", err)
		}
	}
	if _, err := env.pomodoro.Start(ctx, StartSessionParams{Principal: principal}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	summary, err := env.pomodoro.Stats(ctx, principal, stats.KindDaily, time.Time{})
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if summary.TotalSessions != 3 || summary.CompletedSessions != 2 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.TotalFocusTime != 45*time.Minute || summary.CompletionRate != 66.7 {
		t.Fatalf("unexpected totals: focus %v rate %v", summary.TotalFocusTime, summary.CompletionRate)
	}
	if len(summary.Buckets) != 24 || summary.OptimalFocus == nil || summary.OptimalFocus.Label != "09:00" {
		t.Fatalf("unexpected buckets: %d, optimal %+v", len(summary.Buckets), summary.OptimalFocus)
	}
	if len(summary.Goals) != 2 || summary.Goals[0].Goal != "study" || summary.Goals[0].FocusTime != 45*time.Minute {
		t.Fatalf("unexpected goals: %+v", summary.Goals)
	}

	monthly, err := env.pomodoro.Stats(ctx, principal, stats.KindMonthly, time.Time{})
	if err != nil {
		t.Fatalf("monthly Stats returned error: %v", err)
	}
	if len(monthly.Buckets) != 31 || monthly.CurrentStreak != 1 {
		t.Fatalf("unexpected monthly summary: %d buckets, streak %d", len(monthly.Buckets), monthly.CurrentStreak)
	}

	onDay, err := env.pomodoro.StatsOn(ctx, principal, stats.KindDaily, testfixtures.ReferenceDay())
	if err != nil {
		t.Fatalf("StatsOn returned error: %v", err)
	}
	if onDay.TotalSessions != 3 || onDay.Window.FirstDay() != testfixtures.ReferenceDay() {
		t.Fatalf("unexpected StatsOn summary: %+v", onDay)
	}

	previous, err := env.pomodoro.StatsOn(ctx, principal, stats.KindDaily, testfixtures.ReferenceDay().AddDays(-1))
	if err != nil {
		t.Fatalf("StatsOn returned error: %v", err)
	}
	if previous.HasData || previous.TotalSessions != 0 {
		t.Fatalf("expected empty summary for the previous day, got %+v", previous)
	}
}
