package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/notify"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// memStore is an in-memory stand-in for every repository the services use.
type memStore struct {
	mu sync.Mutex

	users      map[string]persistence.User
	categories map[string]persistence.Category
	templates  map[string]persistence.TaskTemplate
	instances  map[string]persistence.TaskInstance
	entries    []persistence.LedgerEntry
	sessions   map[string]persistence.PomodoroSession
	reminders  map[string]persistence.Reminder
	checks     map[string]persistence.ReminderCheck

	// appendErrs are returned, in order, by AppendEntry before it behaves normally.
	appendErrs  []error
	appendCalls int
	writes      int
	// insertErr fails every instance write without storing anything.
	insertErr error
}

func newMemStore(users ...persistence.User) *memStore {
	s := &memStore{
		users:      map[string]persistence.User{},
		categories: map[string]persistence.Category{},
		templates:  map[string]persistence.TaskTemplate{},
		instances:  map[string]persistence.TaskInstance{},
		sessions:   map[string]persistence.PomodoroSession{},
		reminders:  map[string]persistence.Reminder{},
		checks:     map[string]persistence.ReminderCheck{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memStore) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *memStore) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return u, nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *memStore) CreateCategory(ctx context.Context, category persistence.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.ID] = category
	return nil
}

func (s *memStore) GetCategory(ctx context.Context, userID, id string) (persistence.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return persistence.Category{}, persistence.ErrNotFound
	}
	return c, nil
}

func (s *memStore) ListCategories(ctx context.Context, userID string) ([]persistence.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.Category{}
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) DeleteCategory(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return persistence.ErrNotFound
	}
	delete(s.categories, id)
	for key, inst := range s.instances {
		if inst.CategoryID != nil && *inst.CategoryID == id {
			inst.CategoryID = nil
			s.instances[key] = inst
		}
	}
	return nil
}

func (s *memStore) GetTemplate(ctx context.Context, userID, id string) (persistence.TaskTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.UserID != userID {
		return persistence.TaskTemplate{}, persistence.ErrNotFound
	}
	return t, nil
}

func (s *memStore) ReplaceSeries(ctx context.Context, template persistence.TaskTemplate, from calendar.Date, instances []persistence.TaskInstance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	if existing, ok := s.templates[template.ID]; !ok || existing.UserID != template.UserID {
		return 0, persistence.ErrNotFound
	}
	s.writes++
	s.templates[template.ID] = template
	for key, inst := range s.instances {
		if inst.TemplateID != nil && *inst.TemplateID == template.ID && !inst.Completed && !inst.DueOn.Before(from) {
			delete(s.instances, key)
		}
	}
	return s.insertLocked(instances), nil
}

func (s *memStore) DeleteTemplate(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.templates[id]; !ok || t.UserID != userID {
		return persistence.ErrNotFound
	}
	delete(s.templates, id)
	for key, inst := range s.instances {
		if inst.TemplateID != nil && *inst.TemplateID == id {
			delete(s.instances, key)
		}
	}
	return nil
}

func (s *memStore) CreateSeries(ctx context.Context, template persistence.TaskTemplate, instances []persistence.TaskInstance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.writes++
	s.templates[template.ID] = template
	return s.insertLocked(instances), nil
}

func (s *memStore) InsertInstances(ctx context.Context, instances []persistence.TaskInstance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.writes++
	return s.insertLocked(instances), nil
}

func (s *memStore) insertLocked(instances []persistence.TaskInstance) int {
	created := 0
	for _, inst := range instances {
		if inst.TemplateID != nil && s.hasOccurrence(*inst.TemplateID, inst.DueOn, "") {
			continue
		}
		s.instances[inst.ID] = inst
		created++
	}
	return created
}

func (s *memStore) hasOccurrence(templateID string, day calendar.Date, except string) bool {
	for _, existing := range s.instances {
		if existing.ID != except && existing.TemplateID != nil && *existing.TemplateID == templateID && existing.DueOn == day {
			return true
		}
	}
	return false
}

func (s *memStore) GetInstance(ctx context.Context, userID, id string) (persistence.TaskInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok || inst.UserID != userID {
		return persistence.TaskInstance{}, persistence.ErrNotFound
	}
	return inst, nil
}

func (s *memStore) UpdateInstance(ctx context.Context, instance persistence.TaskInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[instance.ID]; !ok {
		return persistence.ErrNotFound
	}
	if instance.TemplateID != nil && s.hasOccurrence(*instance.TemplateID, instance.DueOn, instance.ID) {
		return persistence.ErrDuplicate
	}
	s.instances[instance.ID] = instance
	return nil
}

func (s *memStore) DeleteInstance(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok || inst.UserID != userID {
		return persistence.ErrNotFound
	}
	delete(s.instances, id)
	return nil
}

func (s *memStore) ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.TaskInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.TaskInstance{}
	for _, inst := range s.instances {
		if inst.UserID != filter.UserID {
			continue
		}
		if !filter.From.IsZero() && inst.DueOn.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && inst.DueOn.After(filter.To) {
			continue
		}
		if filter.TemplateID != "" && (inst.TemplateID == nil || *inst.TemplateID != filter.TemplateID) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].DueOn.Compare(out[j].DueOn); c != 0 {
			return c < 0
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *memStore) AppendEntry(ctx context.Context, entry persistence.LedgerEntry) (persistence.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls++
	if len(s.appendErrs) > 0 {
		err := s.appendErrs[0]
		s.appendErrs = s.appendErrs[1:]
		return persistence.AppendResult{}, err
	}
	user, ok := s.users[entry.UserID]
	if !ok {
		return persistence.AppendResult{}, persistence.ErrNotFound
	}
	if entry.DedupeKey != nil {
		for _, e := range s.entries {
			if e.UserID == entry.UserID && e.Reason == entry.Reason && e.DedupeKey != nil && *e.DedupeKey == *entry.DedupeKey {
				return persistence.AppendResult{Inserted: false, Balance: user.CoinBalance}, nil
			}
		}
	}
	if user.CoinBalance+entry.Amount < 0 {
		return persistence.AppendResult{}, persistence.ErrInsufficientFunds
	}
	user.CoinBalance += entry.Amount
	s.users[user.ID] = user
	s.entries = append(s.entries, entry)
	return persistence.AppendResult{Inserted: true, Entry: entry, Balance: user.CoinBalance}, nil
}

func (s *memStore) ListEntries(ctx context.Context, userID string, limit int) ([]persistence.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.LedgerEntry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].UserID == userID {
			out = append(out, s.entries[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) SumEntries(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, e := range s.entries {
		if e.UserID == userID {
			total += e.Amount
		}
	}
	return total, nil
}

func (s *memStore) HasEntry(ctx context.Context, userID, reason, dedupeKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.UserID == userID && e.Reason == reason && e.DedupeKey != nil && *e.DedupeKey == dedupeKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) entriesFor(userID, reason string) []persistence.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.LedgerEntry{}
	for _, e := range s.entries {
		if e.UserID == userID && e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) balance(userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].CoinBalance
}

func (s *memStore) CreateSession(ctx context.Context, session persistence.PomodoroSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.UserID == session.UserID && existing.Status == persistence.SessionRunning {
			return persistence.ErrDuplicate
		}
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *memStore) GetSession(ctx context.Context, userID, id string) (persistence.PomodoroSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.UserID != userID {
		return persistence.PomodoroSession{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *memStore) GetRunningSession(ctx context.Context, userID string) (persistence.PomodoroSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.UserID == userID && session.Status == persistence.SessionRunning {
			return session, nil
		}
	}
	return persistence.PomodoroSession{}, persistence.ErrNotFound
}

func (s *memStore) FinishSession(ctx context.Context, session persistence.PomodoroSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[session.ID]
	if !ok || existing.Status != persistence.SessionRunning {
		return persistence.ErrNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *memStore) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]persistence.PomodoroSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.PomodoroSession{}
	for _, session := range s.sessions {
		if session.UserID == userID && !session.StartedAt.Before(from) && session.StartedAt.Before(to) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *memStore) CreateReminder(ctx context.Context, reminder persistence.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[reminder.ID] = reminder
	return nil
}

func (s *memStore) UpdateReminder(ctx context.Context, reminder persistence.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[reminder.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.reminders[reminder.ID] = reminder
	return nil
}

func (s *memStore) GetReminder(ctx context.Context, userID, id string) (persistence.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.UserID != userID {
		return persistence.Reminder{}, persistence.ErrNotFound
	}
	return r, nil
}

func (s *memStore) ListReminders(ctx context.Context, userID string) ([]persistence.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.Reminder{}
	for _, r := range s.reminders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DeleteReminder(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.UserID != userID {
		return persistence.ErrNotFound
	}
	delete(s.reminders, id)
	return nil
}

func (s *memStore) RecordCheck(ctx context.Context, check persistence.ReminderCheck) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := check.ReminderID + "/" + check.Day.String()
	if _, ok := s.checks[key]; ok {
		return false, nil
	}
	s.checks[key] = check
	return true, nil
}

func (s *memStore) ListChecks(ctx context.Context, userID string, day calendar.Date) ([]persistence.ReminderCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []persistence.ReminderCheck{}
	for _, c := range s.checks {
		if c.UserID == userID && c.Day == day {
			out = append(out, c)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	rewards []notify.Reward
	err     error
}

func (n *recordingNotifier) RewardIssued(ctx context.Context, reward notify.Reward) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rewards = append(n.rewards, reward)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rewards)
}
