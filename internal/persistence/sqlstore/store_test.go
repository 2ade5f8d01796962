package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

var baseTime = time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "fivlo.db")
	store, err := Open(ctx, Config{Dialect: DialectSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return store
}

func createTestUser(t *testing.T, store *Store, id string) persistence.User {
	t.Helper()

	user := persistence.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  "User " + id,
		PasswordHash: "hash",
		Timezone:     "Asia/Seoul",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	if err := store.Users().CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func strPtr(s string) *string { return &s }

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	applied, err := store.Migrate(context.Background())
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected no pending migrations, got %d", applied)
	}

	status, err := store.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != "001" || len(status.Pending) != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestUserRepository_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	chatID := int64(4242)
	user := createTestUser(t, store, "user-1")
	user.TelegramChatID = &chatID
	user.Premium = true
	user.UpdatedAt = baseTime.Add(time.Hour)
	if err := store.Users().UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	fetched, err := store.Users().GetUserByEmail(ctx, "USER-1@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if !fetched.Premium || fetched.TelegramChatID == nil || *fetched.TelegramChatID != chatID {
		t.Fatalf("expected premium user with chat id, got %+v", fetched)
	}
	if !fetched.CreatedAt.Equal(baseTime) {
		t.Fatalf("expected created_at %v, got %v", baseTime, fetched.CreatedAt)
	}

	duplicate := user
	duplicate.ID = "user-2"
	if err := store.Users().CreateUser(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for reused email, got %v", err)
	}

	if _, err := store.Users().GetUser(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerRepository_AppendEntryDedupes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	day := calendar.MustParse("2025-01-06")
	entry := persistence.LedgerEntry{
		ID:        "entry-1",
		UserID:    "user-1",
		Amount:    1,
		Reason:    "task_completion",
		EntryDay:  day,
		DedupeKey: strPtr(day.String()),
		CreatedAt: baseTime,
	}

	first, err := store.Ledger().AppendEntry(ctx, entry)
	if err != nil {
		t.Fatalf("AppendEntry failed: %v", err)
	}
	if !first.Inserted || first.Balance != 1 {
		t.Fatalf("expected inserted entry with balance 1, got %+v", first)
	}

	entry.ID = "entry-2"
	second, err := store.Ledger().AppendEntry(ctx, entry)
	if err != nil {
		t.Fatalf("second AppendEntry failed: %v", err)
	}
	if second.Inserted || second.Balance != 1 {
		t.Fatalf("expected dedupe with unchanged balance, got %+v", second)
	}

	other := entry
	other.ID = "entry-3"
	other.Reason = "pomodoro_completion"
	third, err := store.Ledger().AppendEntry(ctx, other)
	if err != nil {
		t.Fatalf("AppendEntry for another reason failed: %v", err)
	}
	if !third.Inserted || third.Balance != 2 {
		t.Fatalf("expected independent reason to mint, got %+v", third)
	}

	has, err := store.Ledger().HasEntry(ctx, "user-1", "task_completion", day.String())
	if err != nil || !has {
		t.Fatalf("expected HasEntry true, got %v, %v", has, err)
	}
}

func TestLedgerRepository_DebitGuard(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	debit := persistence.LedgerEntry{
		ID:        "purchase-1",
		UserID:    "user-1",
		Amount:    -5,
		Reason:    "purchase",
		EntryDay:  calendar.MustParse("2025-01-06"),
		DedupeKey: strPtr("item:theme_ocean"),
		CreatedAt: baseTime,
	}
	if _, err := store.Ledger().AppendEntry(ctx, debit); !errors.Is(err, persistence.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	entries, err := store.Ledger().ListEntries(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected rolled back ledger, got %d entries", len(entries))
	}
	user, err := store.Users().GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.CoinBalance != 0 {
		t.Fatalf("expected balance 0, got %d", user.CoinBalance)
	}

	missing := debit
	missing.UserID = "ghost"
	missing.Amount = 1
	if _, err := store.Ledger().AppendEntry(ctx, missing); !errors.Is(err, persistence.ErrConstraintViolation) && !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected unknown user to be rejected, got %v", err)
	}
}

func TestLedgerRepository_ConcurrentMintsKeepBalanceConsistent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	const attempts = 12
	days := []string{"2025-01-06", "2025-01-07", "2025-01-08"}

	var wg sync.WaitGroup
	errs := make(chan error, attempts*len(days))
	for _, day := range days {
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(day string, i int) {
				defer wg.Done()
				_, err := store.Ledger().AppendEntry(ctx, persistence.LedgerEntry{
					ID:        fmt.Sprintf("%s-%d", day, i),
					UserID:    "user-1",
					Amount:    1,
					Reason:    "task_completion",
					EntryDay:  calendar.MustParse(day),
					DedupeKey: strPtr(day),
					CreatedAt: baseTime,
				})
				if err != nil {
					errs <- err
				}
			}(day, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent AppendEntry failed: %v", err)
	}

	sum, err := store.Ledger().SumEntries(ctx, "user-1")
	if err != nil {
		t.Fatalf("SumEntries failed: %v", err)
	}
	user, err := store.Users().GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if sum != int64(len(days)) || user.CoinBalance != sum {
		t.Fatalf("expected one mint per day (sum=%d balance=%d)", sum, user.CoinBalance)
	}
}

func TestTaskRepository_InsertInstancesIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	template := persistence.TaskTemplate{
		ID:       "tpl-1",
		UserID:   "user-1",
		Title:    "Stretch",
		StartsOn: calendar.MustParse("2025-01-06"),
		Repeat:   "weekly",
		Weekdays: []time.Weekday{time.Monday, time.Wednesday},
		EndsOn: func() *calendar.Date {
			d := calendar.MustParse("2025-01-15")
			return &d
		}(),
	}
	if err := store.Tasks().CreateTemplate(ctx, template); err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	build := func(prefix string) []persistence.TaskInstance {
		var instances []persistence.TaskInstance
		for i, day := range []string{"2025-01-06", "2025-01-08", "2025-01-13", "2025-01-15"} {
			instances = append(instances, persistence.TaskInstance{
				ID:         fmt.Sprintf("%s-%d", prefix, i),
				UserID:     "user-1",
				TemplateID: strPtr("tpl-1"),
				Title:      "Stretch",
				DueOn:      calendar.MustParse(day),
			})
		}
		return instances
	}

	inserted, err := store.Tasks().InsertInstances(ctx, build("a"))
	if err != nil {
		t.Fatalf("InsertInstances failed: %v", err)
	}
	if inserted != 4 {
		t.Fatalf("expected 4 new instances, got %d", inserted)
	}

	inserted, err = store.Tasks().InsertInstances(ctx, build("b"))
	if err != nil {
		t.Fatalf("second InsertInstances failed: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected no new instances, got %d", inserted)
	}

	fetched, err := store.Tasks().GetTemplate(ctx, "user-1", "tpl-1")
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if len(fetched.Weekdays) != 2 || fetched.EndsOn == nil || fetched.EndsOn.String() != "2025-01-15" {
		t.Fatalf("unexpected template round trip: %+v", fetched)
	}

	deleted, err := store.Tasks().DeleteFutureIncomplete(ctx, "tpl-1", calendar.MustParse("2025-01-13"))
	if err != nil {
		t.Fatalf("DeleteFutureIncomplete failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 future instances deleted, got %d", deleted)
	}

	if err := store.Tasks().DeleteTemplate(ctx, "user-1", "tpl-1"); err != nil {
		t.Fatalf("DeleteTemplate failed: %v", err)
	}
	remaining, err := store.Tasks().ListInstances(ctx, persistence.InstanceFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected series delete to remove instances, got %d", len(remaining))
	}
}

func TestTaskRepository_ListInstancesOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	day := calendar.MustParse("2025-01-06")
	instances := []persistence.TaskInstance{
		{ID: "untimed", UserID: "user-1", Title: "Anytime", DueOn: day},
		{ID: "late", UserID: "user-1", Title: "Late", DueOn: day, TimeOfDay: strPtr("18:00")},
		{ID: "early-b", UserID: "user-1", Title: "B", DueOn: day, TimeOfDay: strPtr("08:00"), Priority: 2},
		{ID: "early-a", UserID: "user-1", Title: "A", DueOn: day, TimeOfDay: strPtr("08:00"), Priority: 1},
		{ID: "tomorrow", UserID: "user-1", Title: "Tomorrow", DueOn: day.AddDays(1)},
	}
	if _, err := store.Tasks().InsertInstances(ctx, instances); err != nil {
		t.Fatalf("InsertInstances failed: %v", err)
	}

	listed, err := store.Tasks().ListInstances(ctx, persistence.InstanceFilter{UserID: "user-1", From: day, To: day})
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	want := []string{"early-a", "early-b", "late", "untimed"}
	if len(listed) != len(want) {
		t.Fatalf("expected %d instances, got %d", len(want), len(listed))
	}
	for i, id := range want {
		if listed[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, listed[i].ID)
		}
	}
}

func TestCategoryRepository_DeleteKeepsDenormalizedInstances(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	category := persistence.Category{ID: "cat-1", UserID: "user-1", Name: "Health", Color: "#00ff00"}
	if err := store.Categories().CreateCategory(ctx, category); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if _, err := store.Tasks().InsertInstances(ctx, []persistence.TaskInstance{{
		ID:            "inst-1",
		UserID:        "user-1",
		Title:         "Run",
		DueOn:         calendar.MustParse("2025-01-06"),
		CategoryID:    strPtr("cat-1"),
		CategoryName:  strPtr("Health"),
		CategoryColor: strPtr("#00ff00"),
	}}); err != nil {
		t.Fatalf("InsertInstances failed: %v", err)
	}

	if err := store.Categories().DeleteCategory(ctx, "user-1", "cat-1"); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	instance, err := store.Tasks().GetInstance(ctx, "user-1", "inst-1")
	if err != nil {
		t.Fatalf("GetInstance failed: %v", err)
	}
	if instance.CategoryColor == nil || *instance.CategoryColor != "#00ff00" {
		t.Fatalf("expected color to survive category deletion, got %v", instance.CategoryColor)
	}
}

func TestSessionRepository_SingleRunningSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	running := persistence.PomodoroSession{
		ID:             "s-1",
		UserID:         "user-1",
		Kind:           persistence.SessionKindFocus,
		Status:         persistence.SessionRunning,
		StartedAt:      baseTime,
		PlannedSeconds: 1500,
	}
	if err := store.Sessions().CreateSession(ctx, running); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	second := running
	second.ID = "s-2"
	if err := store.Sessions().CreateSession(ctx, second); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second running session, got %v", err)
	}

	ended := baseTime.Add(25 * time.Minute)
	running.Status = persistence.SessionCompleted
	running.EndedAt = &ended
	running.DurationSeconds = 1500
	if err := store.Sessions().FinishSession(ctx, running); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	if err := store.Sessions().FinishSession(ctx, running); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected finished session to be immutable, got %v", err)
	}

	sessions, err := store.Sessions().ListSessions(ctx, "user-1", baseTime.Add(-time.Hour), baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != persistence.SessionCompleted || sessions[0].EndedAt == nil {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestReminderRepository_ChecksAreIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	reminder := persistence.Reminder{
		ID:        "rem-1",
		UserID:    "user-1",
		Title:     "Vitamins",
		TimeOfDay: "08:30",
		Weekdays:  []time.Weekday{time.Monday, time.Friday},
		Active:    true,
	}
	if err := store.Reminders().CreateReminder(ctx, reminder); err != nil {
		t.Fatalf("CreateReminder failed: %v", err)
	}

	day := calendar.MustParse("2025-01-06")
	check := persistence.ReminderCheck{ReminderID: "rem-1", UserID: "user-1", Day: day, CheckedAt: baseTime}
	created, err := store.Reminders().RecordCheck(ctx, check)
	if err != nil || !created {
		t.Fatalf("expected first check to be recorded, got %v, %v", created, err)
	}
	created, err = store.Reminders().RecordCheck(ctx, check)
	if err != nil || created {
		t.Fatalf("expected repeat check to be a no-op, got %v, %v", created, err)
	}

	checks, err := store.Reminders().ListChecks(ctx, "user-1", day)
	if err != nil || len(checks) != 1 {
		t.Fatalf("expected one check, got %v, %v", checks, err)
	}

	active, err := store.Reminders().ListActiveReminders(ctx)
	if err != nil || len(active) != 1 || len(active[0].Weekdays) != 2 {
		t.Fatalf("unexpected active reminders: %+v, %v", active, err)
	}
}

func TestTaskRepository_CreateSeriesIsAtomic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	template := persistence.TaskTemplate{
		ID:       "tpl-1",
		UserID:   "user-1",
		Title:    "Read",
		StartsOn: calendar.MustParse("2025-01-06"),
		Repeat:   "daily",
	}
	instance := func(id, day string) persistence.TaskInstance {
		return persistence.TaskInstance{ID: id, UserID: "user-1", TemplateID: strPtr("tpl-1"), Title: "Read", DueOn: calendar.MustParse(day)}
	}

	// The second instance has no ID, so the whole write must roll back.
	_, err := store.Tasks().CreateSeries(ctx, template, []persistence.TaskInstance{
		instance("inst-1", "2025-01-06"),
		instance("", "2025-01-07"),
	})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	if _, err := store.Tasks().GetTemplate(ctx, "user-1", "tpl-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the template to be rolled back, got %v", err)
	}
	left, err := store.Tasks().ListInstances(ctx, persistence.InstanceFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected no instances after rollback, got %d", len(left))
	}

	inserted, err := store.Tasks().CreateSeries(ctx, template, []persistence.TaskInstance{
		instance("inst-1", "2025-01-06"),
		instance("inst-2", "2025-01-07"),
	})
	if err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 instances, got %d", inserted)
	}
	if _, err := store.Tasks().GetTemplate(ctx, "user-1", "tpl-1"); err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
}

func TestTaskRepository_ReplaceSeriesRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestUser(t, store, "user-1")

	template := persistence.TaskTemplate{ID: "tpl-1", UserID: "user-1", Title: "Walk", StartsOn: calendar.MustParse("2025-01-06"), Repeat: "daily"}
	if _, err := store.Tasks().CreateSeries(ctx, template, []persistence.TaskInstance{
		{ID: "inst-1", UserID: "user-1", TemplateID: strPtr("tpl-1"), Title: "Walk", DueOn: calendar.MustParse("2025-01-06")},
		{ID: "inst-2", UserID: "user-1", TemplateID: strPtr("tpl-1"), Title: "Walk", DueOn: calendar.MustParse("2025-01-07")},
	}); err != nil {
		t.Fatalf("CreateSeries failed: %v", err)
	}

	edited := template
	edited.Title = "Run"
	_, err := store.Tasks().ReplaceSeries(ctx, edited, calendar.MustParse("2025-01-06"), []persistence.TaskInstance{
		{ID: "", UserID: "user-1", TemplateID: strPtr("tpl-1"), Title: "Run", DueOn: calendar.MustParse("2025-01-06")},
	})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	fetched, err := store.Tasks().GetTemplate(ctx, "user-1", "tpl-1")
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if fetched.Title != "Walk" {
		t.Fatalf("expected the template update to roll back, got %q", fetched.Title)
	}
	left, err := store.Tasks().ListInstances(ctx, persistence.InstanceFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected both instances to survive, got %d", len(left))
	}

	inserted, err := store.Tasks().ReplaceSeries(ctx, edited, calendar.MustParse("2025-01-07"), []persistence.TaskInstance{
		{ID: "inst-3", UserID: "user-1", TemplateID: strPtr("tpl-1"), Title: "Run", DueOn: calendar.MustParse("2025-01-07")},
	})
	if err != nil || inserted != 1 {
		t.Fatalf("expected one replacement, got %d, %v", inserted, err)
	}
	if _, err := store.Tasks().GetInstance(ctx, "user-1", "inst-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected inst-2 to be replaced, got %v", err)
	}
}
