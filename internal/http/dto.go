package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gumwoo/fivlo/internal/application"
	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
	"github.com/gumwoo/fivlo/internal/stats"
)

const timestampLayout = time.RFC3339

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func formatTimestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := formatTimestamp(*t)
	return &value
}

func weekdayCodes(days []time.Weekday) []string {
	codes := make([]string, 0, len(days))
	for _, day := range calendar.NormalizeWeekdays(days) {
		codes = append(codes, calendar.WeekdayCode(day))
	}
	return codes
}

func parseOptionalDate(field, value string) (calendar.Date, error) {
	if value == "" {
		return calendar.Date{}, nil
	}
	day, err := calendar.Parse(value)
	if err != nil {
		return calendar.Date{}, fieldError(field, "must be a YYYY-MM-DD date")
	}
	return day, nil
}

func parseOptionalDatePtr(field string, value *string) (*calendar.Date, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	day, err := parseOptionalDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

type userDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`
	Premium     bool   `json:"premium"`
	CoinBalance int64  `json:"coin_balance"`
	CreatedAt   string `json:"created_at"`
}

func newUserDTO(user persistence.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Timezone:    user.Timezone,
		Premium:     user.Premium,
		CoinBalance: user.CoinBalance,
		CreatedAt:   formatTimestamp(user.CreatedAt),
	}
}

type categoryDTO struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func newCategoryDTO(category persistence.Category) categoryDTO {
	return categoryDTO{ID: category.ID, Name: category.Name, Color: category.Color}
}

type taskDTO struct {
	ID          string       `json:"id"`
	TemplateID  *string      `json:"template_id,omitempty"`
	Title       string       `json:"title"`
	Date        string       `json:"date"`
	Time        *string      `json:"time,omitempty"`
	Priority    int          `json:"priority"`
	Category    *categoryDTO `json:"category,omitempty"`
	Completed   bool         `json:"completed"`
	CompletedAt *string      `json:"completed_at,omitempty"`
}

func newTaskDTO(instance persistence.TaskInstance) taskDTO {
	dto := taskDTO{
		ID:          instance.ID,
		TemplateID:  instance.TemplateID,
		Title:       instance.Title,
		Date:        instance.DueOn.String(),
		Time:        instance.TimeOfDay,
		Priority:    instance.Priority,
		Completed:   instance.Completed,
		CompletedAt: formatTimestampPtr(instance.CompletedAt),
	}
	// The copied name and color outlive a deleted category; only the ID is cleared.
	if instance.CategoryID != nil || instance.CategoryName != nil {
		category := categoryDTO{}
		if instance.CategoryID != nil {
			category.ID = *instance.CategoryID
		}
		if instance.CategoryName != nil {
			category.Name = *instance.CategoryName
		}
		if instance.CategoryColor != nil {
			category.Color = *instance.CategoryColor
		}
		dto.Category = &category
	}
	return dto
}

func newTaskDTOs(instances []persistence.TaskInstance) []taskDTO {
	out := make([]taskDTO, 0, len(instances))
	for _, instance := range instances {
		out = append(out, newTaskDTO(instance))
	}
	return out
}

type templateDTO struct {
	ID       string   `json:"id"`
	Repeat   string   `json:"repeat"`
	Weekdays []string `json:"weekdays,omitempty"`
	StartsOn string   `json:"starts_on"`
	EndsOn   *string  `json:"ends_on,omitempty"`
}

func newTemplateDTO(template *persistence.TaskTemplate) *templateDTO {
	if template == nil {
		return nil
	}
	dto := &templateDTO{
		ID:       template.ID,
		Repeat:   template.Repeat,
		Weekdays: weekdayCodes(template.Weekdays),
		StartsOn: template.StartsOn.String(),
	}
	if template.EndsOn != nil {
		value := template.EndsOn.String()
		dto.EndsOn = &value
	}
	return dto
}

type ledgerEntryDTO struct {
	ID        string  `json:"id"`
	Amount    int64   `json:"amount"`
	Reason    string  `json:"reason"`
	Day       string  `json:"day"`
	Reference *string `json:"reference,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func newLedgerEntryDTO(entry persistence.LedgerEntry) ledgerEntryDTO {
	return ledgerEntryDTO{
		ID:        entry.ID,
		Amount:    entry.Amount,
		Reason:    entry.Reason,
		Day:       entry.EntryDay.String(),
		Reference: entry.Reference,
		CreatedAt: formatTimestamp(entry.CreatedAt),
	}
}

type gateDTO struct {
	Outcome  string          `json:"outcome"`
	Rewarded bool            `json:"rewarded"`
	Balance  *int64          `json:"balance,omitempty"`
	Entry    *ledgerEntryDTO `json:"entry,omitempty"`
}

func newGateDTO(result *application.CompletionResult) *gateDTO {
	if result == nil {
		return nil
	}
	dto := &gateDTO{Outcome: string(result.Outcome), Rewarded: result.Rewarded, Balance: result.Balance}
	if result.Entry != nil {
		entry := newLedgerEntryDTO(*result.Entry)
		dto.Entry = &entry
	}
	return dto
}

type sessionDTO struct {
	ID              string  `json:"id"`
	Goal            string  `json:"goal"`
	Kind            string  `json:"kind"`
	Status          string  `json:"status"`
	StartedAt       string  `json:"started_at"`
	EndedAt         *string `json:"ended_at,omitempty"`
	PlannedSeconds  int     `json:"planned_seconds"`
	DurationSeconds int     `json:"duration_seconds"`
}

func newSessionDTO(session persistence.PomodoroSession) sessionDTO {
	return sessionDTO{
		ID:              session.ID,
		Goal:            session.Goal,
		Kind:            session.Kind,
		Status:          session.Status,
		StartedAt:       formatTimestamp(session.StartedAt),
		EndedAt:         formatTimestampPtr(session.EndedAt),
		PlannedSeconds:  session.PlannedSeconds,
		DurationSeconds: session.DurationSeconds,
	}
}

type reminderDTO struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Time     string   `json:"time"`
	Weekdays []string `json:"weekdays"`
	Active   bool     `json:"active"`
}

func newReminderDTO(reminder persistence.Reminder) reminderDTO {
	return reminderDTO{
		ID:       reminder.ID,
		Title:    reminder.Title,
		Time:     reminder.TimeOfDay,
		Weekdays: weekdayCodes(reminder.Weekdays),
		Active:   reminder.Active,
	}
}

type bucketDTO struct {
	Label        string  `json:"label"`
	Start        string  `json:"start"`
	Sessions     int     `json:"sessions"`
	Completed    int     `json:"completed_sessions"`
	FocusMinutes float64 `json:"focus_minutes"`
}

type goalTotalDTO struct {
	Goal         string  `json:"goal"`
	Sessions     int     `json:"sessions"`
	FocusMinutes float64 `json:"focus_minutes"`
}

type statsDTO struct {
	Period                string         `json:"period"`
	From                  string         `json:"from"`
	To                    string         `json:"to"`
	HasData               bool           `json:"has_data"`
	TotalSessions         int            `json:"total_sessions"`
	CompletedSessions     int            `json:"completed_sessions"`
	BreakSessions         int            `json:"break_sessions"`
	FocusMinutes          float64        `json:"focus_minutes"`
	AverageSessionMinutes float64        `json:"average_session_minutes"`
	CompletionRate        float64        `json:"completion_rate"`
	OptimalFocus          *bucketDTO     `json:"optimal_focus,omitempty"`
	LongestStreak         int            `json:"longest_streak"`
	CurrentStreak         int            `json:"current_streak"`
	Buckets               []bucketDTO    `json:"buckets"`
	Goals                 []goalTotalDTO `json:"goals"`
}

func newBucketDTO(bucket stats.Bucket, loc *time.Location) bucketDTO {
	return bucketDTO{
		Label:        bucket.Label,
		Start:        bucket.Start.In(loc).Format(timestampLayout),
		Sessions:     bucket.Sessions,
		Completed:    bucket.CompletedSessions,
		FocusMinutes: minutes(bucket.FocusTime),
	}
}

func newStatsDTO(summary stats.Summary) statsDTO {
	loc := summary.Window.Location
	if loc == nil {
		loc = time.UTC
	}
	dto := statsDTO{
		Period:                string(summary.Window.Kind),
		From:                  summary.Window.FirstDay().String(),
		To:                    summary.Window.LastDay().String(),
		HasData:               summary.HasData,
		TotalSessions:         summary.TotalSessions,
		CompletedSessions:     summary.CompletedSessions,
		BreakSessions:         summary.BreakSessions,
		FocusMinutes:          minutes(summary.TotalFocusTime),
		AverageSessionMinutes: minutes(summary.AverageSessionLength),
		CompletionRate:        summary.CompletionRate,
		LongestStreak:         summary.LongestStreak,
		CurrentStreak:         summary.CurrentStreak,
		Buckets:               make([]bucketDTO, 0, len(summary.Buckets)),
		Goals:                 make([]goalTotalDTO, 0, len(summary.Goals)),
	}
	for _, bucket := range summary.Buckets {
		dto.Buckets = append(dto.Buckets, newBucketDTO(bucket, loc))
	}
	if summary.OptimalFocus != nil {
		optimal := newBucketDTO(*summary.OptimalFocus, loc)
		dto.OptimalFocus = &optimal
	}
	for _, goal := range summary.Goals {
		dto.Goals = append(dto.Goals, goalTotalDTO{Goal: goal.Goal, Sessions: goal.Sessions, FocusMinutes: minutes(goal.FocusTime)})
	}
	return dto
}

func minutes(d time.Duration) float64 {
	return float64(int64(d.Minutes()*10+0.5)) / 10
}
