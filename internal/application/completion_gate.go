package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/notify"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// DefaultRewardAmount is minted when no amount is configured.
const DefaultRewardAmount int64 = 1

// CompletionGate decides whether a user earned a reason's daily reward and
// mints it at most once per (user, day, reason).
type CompletionGate struct {
	users       UserReader
	ledger      LedgerWriter
	sources     map[string]DueItemSource
	notifier    RewardNotifier
	amount      int64
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCompletionGate constructs a gate with no registered reasons.
func NewCompletionGate(users UserReader, ledger LedgerWriter, idGenerator func() string, now func() time.Time, amount int64) *CompletionGate {
	return NewCompletionGateWithLogger(users, ledger, idGenerator, now, amount, nil)
}

// NewCompletionGateWithLogger constructs a gate with a specified logger.
func NewCompletionGateWithLogger(users UserReader, ledger LedgerWriter, idGenerator func() string, now func() time.Time, amount int64, logger *slog.Logger) *CompletionGate {
	if idGenerator == nil {
		idGenerator = defaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}
	if amount <= 0 {
		amount = DefaultRewardAmount
	}
	return &CompletionGate{
		users:       users,
		ledger:      ledger,
		sources:     make(map[string]DueItemSource),
		amount:      amount,
		location:    time.UTC,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Register binds the due item source for a reason code, replacing any
// previous binding.
func (g *CompletionGate) Register(reason string, source DueItemSource) {
	g.sources[reason] = source
}

// SetNotifier installs the notifier told about successful mints.
func (g *CompletionGate) SetNotifier(notifier RewardNotifier) {
	g.notifier = notifier
}

// SetLocation sets the zone used for users whose timezone cannot be loaded.
func (g *CompletionGate) SetLocation(loc *time.Location) {
	if loc != nil {
		g.location = loc
	}
}

func (g *CompletionGate) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, g.logger, "CompletionGate", operation, attrs...)
}

// Evaluate runs the gate for one (user, day, reason). Only today in the
// user's zone, read from the gate's clock, can mint. A zero Day means today
// and any other day is not_applicable.
func (g *CompletionGate) Evaluate(ctx context.Context, params EvaluateParams) (result CompletionResult, err error) {
	if g == nil {
		err = fmt.Errorf("CompletionGate is nil")
		return
	}
	if g.users == nil || g.ledger == nil {
		err = fmt.Errorf("completion gate dependencies not configured")
		return
	}

	reason := strings.TrimSpace(params.Reason)
	logger := g.loggerWith(ctx, "Evaluate",
		"user_id", params.UserID,
		"day", params.Day.String(),
		"reason", reason,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "completion evaluation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "completion evaluated", "outcome", string(result.Outcome))
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.UserID) == "" {
		vErr.add("user_id", "user id is required")
	}
	source, ok := g.sources[reason]
	if !ok {
		vErr.add("reason", fmt.Sprintf("unknown reward reason %q", reason))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var user persistence.User
	user, err = g.users.GetUser(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrUserNotFound
		}
		return
	}

	today := calendar.DateOf(g.now(), userLocation(user, g.location))
	day := params.Day
	if day.IsZero() {
		day = today
	}
	if !day.Equal(today) {
		logger.InfoContext(ctx, "reward day is not today", "today", today.String())
		result = CompletionResult{Outcome: OutcomeNotApplicable}
		return
	}

	if !params.Eligible {
		result = CompletionResult{Outcome: OutcomeIneligible}
		return
	}

	var items []DueItem
	items, err = source.DueItems(ctx, user, day)
	if err != nil {
		err = fmt.Errorf("load due items: %w", err)
		return
	}
	if len(items) == 0 {
		result = CompletionResult{Outcome: OutcomeNotApplicable}
		return
	}
	for _, item := range items {
		if !item.Completed {
			result = CompletionResult{Outcome: OutcomeIncomplete}
			return
		}
	}

	key := day.String()
	entry := persistence.LedgerEntry{
		ID:        g.idGenerator(),
		UserID:    user.ID,
		Amount:    g.amount,
		Reason:    reason,
		EntryDay:  day,
		DedupeKey: &key,
		CreatedAt: g.now().UTC(),
	}

	var appended persistence.AppendResult
	appended, err = g.append(ctx, logger, entry)
	if err != nil {
		return
	}

	balance := appended.Balance
	if !appended.Inserted {
		result = CompletionResult{Outcome: OutcomeAlreadyRewarded, Balance: &balance}
		return
	}

	minted := appended.Entry
	result = CompletionResult{
		Outcome:  OutcomeRewarded,
		Rewarded: true,
		Entry:    &minted,
		Balance:  &balance,
	}

	if g.notifier != nil {
		reward := notify.Reward{User: user, Entry: minted, Balance: balance}
		if nErr := g.notifier.RewardIssued(ctx, reward); nErr != nil {
			logger.WarnContext(ctx, "reward notification failed", "error", nErr)
		}
	}
	return
}

// append writes the entry, retrying a storage conflict once.
func (g *CompletionGate) append(ctx context.Context, logger *slog.Logger, entry persistence.LedgerEntry) (persistence.AppendResult, error) {
	result, err := g.ledger.AppendEntry(ctx, entry)
	if err == nil || !errors.Is(err, persistence.ErrConflict) {
		return result, mapLedgerError(err)
	}

	logger.WarnContext(ctx, "ledger write conflict, retrying", "error", err)
	result, err = g.ledger.AppendEntry(ctx, entry)
	if errors.Is(err, persistence.ErrConflict) {
		return persistence.AppendResult{}, fmt.Errorf("%w: %v", ErrLedgerWriteConflict, err)
	}
	return result, mapLedgerError(err)
}

func mapLedgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrInsufficientFunds):
		return ErrInsufficientCoins
	case errors.Is(err, persistence.ErrNotFound):
		return ErrUserNotFound
	}
	return err
}

// userLocation resolves the user's zone, falling back to fallback.
func userLocation(user persistence.User, fallback *time.Location) *time.Location {
	return calendar.LoadLocation(user.Timezone, fallback)
}
