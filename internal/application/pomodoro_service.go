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
	"github.com/gumwoo/fivlo/internal/persistence"
	"github.com/gumwoo/fivlo/internal/stats"
)

const (
	maxGoalLength     = 50
	maxPlannedSeconds = 4 * 60 * 60
)

// PomodoroService runs focus and break sessions and reports statistics.
type PomodoroService struct {
	sessions    SessionStore
	users       UserReader
	gate        GateEvaluator
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewPomodoroService constructs a PomodoroService.
func NewPomodoroService(sessions SessionStore, users UserReader, gate GateEvaluator, idGenerator func() string, now func() time.Time) *PomodoroService {
	return NewPomodoroServiceWithLogger(sessions, users, gate, idGenerator, now, nil)
}

// NewPomodoroServiceWithLogger constructs a PomodoroService with a specified logger.
func NewPomodoroServiceWithLogger(sessions SessionStore, users UserReader, gate GateEvaluator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PomodoroService {
	if idGenerator == nil {
		idGenerator = defaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}
	return &PomodoroService{
		sessions:    sessions,
		users:       users,
		gate:        gate,
		idGenerator: idGenerator,
		now:         now,
		location:    time.UTC,
		logger:      defaultLogger(logger),
	}
}

// SetLocation sets the zone used for users without a valid timezone.
func (s *PomodoroService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

func (s *PomodoroService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PomodoroService", operation, attrs...)
}

func (s *PomodoroService) user(ctx context.Context, principal Principal) (persistence.User, error) {
	if s == nil || s.sessions == nil || s.users == nil {
		return persistence.User{}, fmt.Errorf("pomodoro dependencies not configured")
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return persistence.User{}, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.User{}, ErrUserNotFound
	}
	return user, err
}

// Start opens a running session. A user may run one session at a time.
func (s *PomodoroService) Start(ctx context.Context, params StartSessionParams) (session persistence.PomodoroSession, err error) {
	logger := s.loggerWith(ctx, "Start", "principal_id", params.Principal.UserID, "kind", params.Kind)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to start session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session started", "session_id", session.ID)
	}()

	var user persistence.User
	if user, err = s.user(ctx, params.Principal); err != nil {
		return
	}

	goal := strings.TrimSpace(params.Goal)
	kind := strings.ToLower(strings.TrimSpace(params.Kind))
	if kind == "" {
		kind = persistence.SessionKindFocus
	}
	vErr := &ValidationError{}
	if utf8.RuneCountInString(goal) > maxGoalLength {
		vErr.add("goal", fmt.Sprintf("goal must be at most %d characters", maxGoalLength))
	}
	if kind != persistence.SessionKindFocus && kind != persistence.SessionKindBreak {
		vErr.add("kind", "kind must be focus or break")
	}
	if params.PlannedSeconds < 0 || params.PlannedSeconds > maxPlannedSeconds {
		vErr.add("planned_seconds", fmt.Sprintf("planned seconds must be between 0 and %d", maxPlannedSeconds))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	session = persistence.PomodoroSession{
		ID:             s.idGenerator(),
		UserID:         user.ID,
		Goal:           goal,
		Kind:           kind,
		Status:         persistence.SessionRunning,
		StartedAt:      s.now().UTC(),
		PlannedSeconds: params.PlannedSeconds,
	}
	if err = s.sessions.CreateSession(ctx, session); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = ErrSessionActive
			return
		}
		err = mapRepoError(err)
	}
	return
}

// Complete finishes a running session. Completing a focus session evaluates
// the day's pomodoro reward.
func (s *PomodoroService) Complete(ctx context.Context, principal Principal, sessionID string) (result SessionResult, err error) {
	logger := s.loggerWith(ctx, "Complete", "principal_id", principal.UserID, "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		attrs := []any{"duration_seconds", result.Session.DurationSeconds}
		if result.Gate != nil {
			attrs = append(attrs, "outcome", string(result.Gate.Outcome))
		}
		logger.InfoContext(ctx, "session completed", attrs...)
	}()

	var user persistence.User
	if user, err = s.user(ctx, principal); err != nil {
		return
	}
	if result.Session, err = s.finish(ctx, user.ID, sessionID, persistence.SessionCompleted); err != nil {
		return
	}

	if result.Session.Kind != persistence.SessionKindFocus || s.gate == nil {
		return
	}
	day := calendar.DateOf(result.Session.StartedAt, userLocation(user, s.location))
	var gate CompletionResult
	gate, err = s.gate.Evaluate(ctx, EvaluateParams{
		UserID:   user.ID,
		Day:      day,
		Reason:   ReasonPomodoroCompletion,
		Eligible: true,
	})
	if err != nil {
		return
	}
	result.Gate = &gate
	return
}

// Abandon stops a running session without credit.
func (s *PomodoroService) Abandon(ctx context.Context, principal Principal, sessionID string) (session persistence.PomodoroSession, err error) {
	logger := s.loggerWith(ctx, "Abandon", "principal_id", principal.UserID, "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to abandon session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session abandoned")
	}()

	var user persistence.User
	if user, err = s.user(ctx, principal); err != nil {
		return
	}
	return s.finish(ctx, user.ID, sessionID, persistence.SessionAbandoned)
}

func (s *PomodoroService) finish(ctx context.Context, userID, sessionID, status string) (persistence.PomodoroSession, error) {
	session, err := s.sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		return persistence.PomodoroSession{}, mapRepoError(err)
	}
	if session.Status != persistence.SessionRunning {
		return persistence.PomodoroSession{}, ErrSessionFinished
	}

	ended := s.now().UTC()
	elapsed := int(ended.Sub(session.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if session.PlannedSeconds > 0 && elapsed > session.PlannedSeconds {
		elapsed = session.PlannedSeconds
	}
	session.Status = status
	session.EndedAt = &ended
	session.DurationSeconds = elapsed

	if err := s.sessions.FinishSession(ctx, session); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			// Another request finished it first.
			return persistence.PomodoroSession{}, ErrSessionFinished
		}
		return persistence.PomodoroSession{}, mapRepoError(err)
	}
	return session, nil
}

// Stats summarizes the sessions in the period containing reference, in the
// user's zone.
func (s *PomodoroService) Stats(ctx context.Context, principal Principal, kind stats.Kind, reference time.Time) (stats.Summary, error) {
	user, err := s.user(ctx, principal)
	if err != nil {
		return stats.Summary{}, err
	}
	return s.stats(ctx, user, kind, reference)
}

// StatsOn is Stats for the period containing day in the user's zone. A zero
// day means today.
func (s *PomodoroService) StatsOn(ctx context.Context, principal Principal, kind stats.Kind, day calendar.Date) (stats.Summary, error) {
	user, err := s.user(ctx, principal)
	if err != nil {
		return stats.Summary{}, err
	}
	var reference time.Time
	if !day.IsZero() {
		reference = day.In(userLocation(user, s.location))
	}
	return s.stats(ctx, user, kind, reference)
}

func (s *PomodoroService) stats(ctx context.Context, user persistence.User, kind stats.Kind, reference time.Time) (stats.Summary, error) {
	loc := userLocation(user, s.location)
	if reference.IsZero() {
		reference = s.now()
	}
	window, err := stats.NewWindow(kind, reference, loc)
	if err != nil {
		return stats.Summary{}, newValidationError("period", err.Error())
	}

	stored, err := s.sessions.ListSessions(ctx, user.ID, window.Start, window.End)
	if err != nil {
		s.loggerWith(ctx, "Stats", "principal_id", user.ID).ErrorContext(ctx, "failed to list sessions", "error", err)
		return stats.Summary{}, mapRepoError(err)
	}
	sessions := make([]stats.Session, 0, len(stored))
	for _, session := range stored {
		sessions = append(sessions, stats.Session{
			ID:        session.ID,
			Goal:      session.Goal,
			Kind:      stats.SessionKind(session.Kind),
			Completed: session.Status == persistence.SessionCompleted,
			StartedAt: session.StartedAt,
			Duration:  time.Duration(session.DurationSeconds) * time.Second,
		})
	}
	return stats.Compute(sessions, window, calendar.DateOf(s.now(), loc)), nil
}
