package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
	"github.com/gumwoo/fivlo/internal/testfixtures"
)

func TestRepositoriesSatisfyInterfaces(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)

	var (
		_ persistence.UserRepository     = h.Users
		_ persistence.CategoryRepository = h.Categories
		_ persistence.TaskRepository     = h.Tasks
		_ persistence.LedgerRepository   = h.Ledger
		_ persistence.SessionRepository  = h.Sessions
		_ persistence.ReminderRepository = h.Reminders
	)
}

func TestLedgerRepository_BalanceTracksEntries(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := h.SeedUser(t)

	day := testfixtures.ReferenceDay()
	for i, reason := range []string{"task_completion", "pomodoro_completion", "reminder_completion"} {
		key := day.String()
		result, err := h.Ledger.AppendEntry(ctx, persistence.LedgerEntry{
			ID:        reason,
			UserID:    user.ID,
			Amount:    1,
			Reason:    reason,
			EntryDay:  day,
			DedupeKey: &key,
			CreatedAt: testfixtures.ReferenceTime().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendEntry(%s) failed: %v", reason, err)
		}
		if !result.Inserted || result.Balance != int64(i+1) {
			t.Fatalf("unexpected result for %s: %+v", reason, result)
		}
	}

	key := "item:theme-ocean"
	if _, err := h.Ledger.AppendEntry(ctx, persistence.LedgerEntry{
		ID: "purchase", UserID: user.ID, Amount: -5, Reason: "purchase", EntryDay: day, DedupeKey: &key,
		CreatedAt: testfixtures.ReferenceTime(),
	}); !errors.Is(err, persistence.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	cached, sum := h.Balance(t, user.ID)
	if cached != 3 || sum != 3 {
		t.Fatalf("expected balance and ledger sum of 3, got %d and %d", cached, sum)
	}

	entries, err := h.Ledger.ListEntries(ctx, user.ID, 2)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Reason != "reminder_completion" {
		t.Fatalf("expected newest entries first, got %+v", entries)
	}
}

func TestReminderRepository_ListActiveSpansUsers(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	alice := h.SeedUser(t)
	bob := h.SeedUser(t)

	active := testfixtures.NewReminder("r-1", alice.ID, "08:00", time.Monday)
	paused := testfixtures.NewReminder("r-2", alice.ID, "09:00", time.Tuesday)
	paused.Active = false
	other := testfixtures.NewReminder("r-3", bob.ID, "21:30", time.Sunday, time.Saturday)
	for _, r := range []persistence.Reminder{active, paused, other} {
		if err := h.Reminders.CreateReminder(ctx, r); err != nil {
			t.Fatalf("CreateReminder failed: %v", err)
		}
	}

	list, err := h.Reminders.ListActiveReminders(ctx)
	if err != nil {
		t.Fatalf("ListActiveReminders failed: %v", err)
	}
	ids := map[string]bool{}
	for _, r := range list {
		ids[r.ID] = true
	}
	if len(list) != 2 || !ids["r-1"] || !ids["r-3"] {
		t.Fatalf("expected r-1 and r-3, got %+v", list)
	}

	got, err := h.Reminders.GetReminder(ctx, bob.ID, "r-3")
	if err != nil {
		t.Fatalf("GetReminder failed: %v", err)
	}
	if calendar.FormatWeekdays(got.Weekdays) != "sun,sat" {
		t.Fatalf("expected weekday round trip, got %v", got.Weekdays)
	}
	if _, err := h.Reminders.GetReminder(ctx, alice.ID, "r-3"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected reminders to be scoped to their owner, got %v", err)
	}
}

func TestTaskRepository_ListInstancesFiltersRange(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	ctx := context.Background()
	user := h.SeedUser(t)

	day := testfixtures.ReferenceDay()
	instances := []persistence.TaskInstance{
		testfixtures.NewInstance("t-1", user.ID, day.AddDays(-1), false),
		testfixtures.NewInstance("t-2", user.ID, day, true),
		testfixtures.NewInstance("t-3", user.ID, day.AddDays(1), false),
	}
	if _, err := h.Tasks.InsertInstances(ctx, instances); err != nil {
		t.Fatalf("InsertInstances failed: %v", err)
	}

	got, err := h.Tasks.ListInstances(ctx, persistence.InstanceFilter{UserID: user.ID, From: day, To: day.AddDays(1)})
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t-2" || got[1].ID != "t-3" {
		t.Fatalf("unexpected instances: %+v", got)
	}
	if !got[0].Completed || got[0].CompletedAt == nil {
		t.Fatalf("expected completion to round trip, got %+v", got[0])
	}
}
