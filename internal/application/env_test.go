package application

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gumwoo/fivlo/internal/logging"
	"github.com/gumwoo/fivlo/internal/persistence"
	"github.com/gumwoo/fivlo/internal/testfixtures"
)

// testEnv wires every service over one memStore with a fixed clock.
type testEnv struct {
	store    *memStore
	clock    *testfixtures.Clock
	ids      *testfixtures.IDGenerator
	notifier *recordingNotifier
	gate     *CompletionGate
	tasks    *TaskService
	wallet   *WalletService
	pomodoro *PomodoroService
	reminder *ReminderService
}

func newTestEnv(t *testing.T, users ...persistence.User) *testEnv {
	t.Helper()

	store := newMemStore(users...)
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDGenerator("id")
	logger := logging.Discard()
	notifier := &recordingNotifier{}

	gate := NewCompletionGateWithLogger(store, store, ids.NextFunc(), clock.NowFunc(), 1, logger)
	gate.SetNotifier(notifier)
	gate.SetLocation(testfixtures.Seoul())
	gate.Register(ReasonTaskCompletion, TaskDueItems(store))
	gate.Register(ReasonPomodoroCompletion, PomodoroDueItems(store, testfixtures.Seoul()))
	gate.Register(ReasonReminderCompletion, ReminderDueItems(store))

	tasks := NewTaskServiceWithLogger(store, store, store, gate, ids.NextFunc(), clock.NowFunc(), logger)
	tasks.SetLocation(testfixtures.Seoul())
	pomodoro := NewPomodoroServiceWithLogger(store, store, gate, ids.NextFunc(), clock.NowFunc(), logger)
	pomodoro.SetLocation(testfixtures.Seoul())
	reminder := NewReminderServiceWithLogger(store, store, gate, true, ids.NextFunc(), clock.NowFunc(), logger)
	reminder.SetLocation(testfixtures.Seoul())

	return &testEnv{
		store:    store,
		clock:    clock,
		ids:      ids,
		notifier: notifier,
		gate:     gate,
		tasks:    tasks,
		wallet:   NewWalletServiceWithLogger(store, store, nil, ids.NextFunc(), clock.NowFunc(), logger),
		pomodoro: pomodoro,
		reminder: reminder,
	}
}

func principalOf(user persistence.User) Principal {
	return Principal{UserID: user.ID, Email: user.Email}
}
