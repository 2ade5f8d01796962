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
	"github.com/gumwoo/fivlo/internal/recurrence"
)

const (
	maxTitleLength  = 100
	maxRangeDays    = 62
	defaultPriority = 2
	minPriority     = 1
	maxPriority     = 3
	timeOfDayLayout = "15:04"
)

// CategoryReader resolves categories owned by a user.
type CategoryReader interface {
	GetCategory(ctx context.Context, userID, id string) (persistence.Category, error)
}

// TaskService manages task templates and their dated instances.
type TaskService struct {
	tasks       TaskStore
	categories  CategoryReader
	users       UserReader
	gate        GateEvaluator
	engine      *recurrence.Engine
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(tasks TaskStore, categories CategoryReader, users UserReader, gate GateEvaluator, idGenerator func() string, now func() time.Time) *TaskService {
	return NewTaskServiceWithLogger(tasks, categories, users, gate, idGenerator, now, nil)
}

// NewTaskServiceWithLogger constructs a TaskService with a specified logger.
func NewTaskServiceWithLogger(tasks TaskStore, categories CategoryReader, users UserReader, gate GateEvaluator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TaskService {
	if idGenerator == nil {
		idGenerator = defaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:       tasks,
		categories:  categories,
		users:       users,
		gate:        gate,
		engine:      recurrence.NewEngine(),
		idGenerator: idGenerator,
		now:         now,
		location:    time.UTC,
		logger:      defaultLogger(logger),
	}
}

// SetLocation sets the zone used for users without a valid timezone.
func (s *TaskService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

func (s *TaskService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TaskService", operation, attrs...)
}

type taskFields struct {
	title     string
	timeOfDay *string
	priority  int
	rule      recurrence.Rule
	sequence  recurrence.Sequence
}

func (s *TaskService) validateInput(input TaskInput) (taskFields, error) {
	vErr := &ValidationError{}
	fields := taskFields{priority: input.Priority}

	fields.title = strings.TrimSpace(input.Title)
	switch {
	case fields.title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(fields.title) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	if input.Date.IsZero() {
		vErr.add("date", "date is required")
	}

	if value := strings.TrimSpace(input.TimeOfDay); value != "" {
		parsed, err := time.Parse(timeOfDayLayout, value)
		if err != nil {
			vErr.add("time_of_day", "time of day must be HH:MM")
		} else {
			normalized := parsed.Format(timeOfDayLayout)
			fields.timeOfDay = &normalized
		}
	}

	if fields.priority == 0 {
		fields.priority = defaultPriority
	}
	if fields.priority < minPriority || fields.priority > maxPriority {
		vErr.add("priority", fmt.Sprintf("priority must be between %d and %d", minPriority, maxPriority))
	}

	repeat, err := recurrence.ParseRepeat(input.Repeat)
	if err != nil {
		vErr.add("repeat", "repeat must be none, daily, weekly or monthly")
	}
	weekdays, err := calendar.ParseWeekdays(input.Weekdays)
	if err != nil {
		vErr.add("weekdays", err.Error())
	}

	if vErr.HasErrors() {
		return taskFields{}, vErr
	}

	fields.rule = recurrence.Rule{
		Repeat:   repeat,
		Weekdays: weekdays,
		StartsOn: input.Date,
		EndsOn:   input.EndsOn,
	}
	fields.sequence, err = s.engine.Expand(fields.rule)
	if err != nil {
		return taskFields{}, ruleValidationError(err)
	}
	return fields, nil
}

// ruleValidationError maps a recurrence rule failure onto the task's
// request fields.
func ruleValidationError(err error) error {
	var ruleErr *recurrence.RuleError
	if !errors.As(err, &ruleErr) {
		return err
	}
	field := ruleErr.Field
	if field == "starts_on" {
		field = "date"
	}
	return newValidationError(field, ruleErr.Reason)
}

// resolveCategory loads the category for denormalization. A nil ID yields
// empty values.
func (s *TaskService) resolveCategory(ctx context.Context, userID string, id *string) (*persistence.Category, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	if s.categories == nil {
		return nil, fmt.Errorf("category store not configured")
	}
	category, err := s.categories.GetCategory(ctx, userID, strings.TrimSpace(*id))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, newValidationError("category_id", "category not found")
		}
		return nil, err
	}
	return &category, nil
}

func applyCategory(instance *persistence.TaskInstance, category *persistence.Category) {
	if category == nil {
		instance.CategoryID, instance.CategoryName, instance.CategoryColor = nil, nil, nil
		return
	}
	id, name, color := category.ID, category.Name, category.Color
	instance.CategoryID, instance.CategoryName, instance.CategoryColor = &id, &name, &color
}

func (s *TaskService) newInstance(userID string, templateID *string, fields taskFields, day calendar.Date, category *persistence.Category, now time.Time) persistence.TaskInstance {
	instance := persistence.TaskInstance{
		ID:         s.idGenerator(),
		UserID:     userID,
		TemplateID: templateID,
		Title:      fields.title,
		DueOn:      day,
		TimeOfDay:  fields.timeOfDay,
		Priority:   fields.priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyCategory(&instance, category)
	return instance
}

// CreateTask validates the input and stores the task with every occurrence.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (result CreateTaskResult, err error) {
	if s == nil {
		err = fmt.Errorf("TaskService is nil")
		return
	}
	if s.tasks == nil {
		err = fmt.Errorf("task store not configured")
		return
	}

	userID := strings.TrimSpace(params.Principal.UserID)
	logger := s.loggerWith(ctx, "CreateTask",
		"principal_id", userID,
		"repeat", params.Input.Repeat,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create task", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "task created", "instances", len(result.Instances))
	}()

	if userID == "" {
		err = ErrUnauthorized
		return
	}

	var fields taskFields
	if fields, err = s.validateInput(params.Input); err != nil {
		return
	}
	var category *persistence.Category
	if category, err = s.resolveCategory(ctx, userID, params.Input.CategoryID); err != nil {
		return
	}

	now := s.now().UTC()
	var template *persistence.TaskTemplate
	var templateID *string
	if fields.rule.Repeat != recurrence.RepeatNone {
		template = &persistence.TaskTemplate{
			ID:        s.idGenerator(),
			UserID:    userID,
			Title:     fields.title,
			StartsOn:  fields.rule.StartsOn,
			TimeOfDay: fields.timeOfDay,
			Priority:  fields.priority,
			Repeat:    string(fields.rule.Repeat),
			Weekdays:  fields.rule.Weekdays,
			EndsOn:    fields.rule.EndsOn,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if category != nil {
			id := category.ID
			template.CategoryID = &id
		}
		templateID = &template.ID
	}

	instances := make([]persistence.TaskInstance, 0, fields.sequence.Len())
	for day := range fields.sequence.All() {
		instances = append(instances, s.newInstance(userID, templateID, fields, day, category, now))
	}
	if template != nil {
		_, err = s.tasks.CreateSeries(ctx, *template, instances)
	} else {
		_, err = s.tasks.InsertInstances(ctx, instances)
	}
	if err != nil {
		err = mapRepoError(err)
		return
	}
	result.Template = template
	result.Instances = instances
	return
}

// ListDay returns the instances due on day.
func (s *TaskService) ListDay(ctx context.Context, principal Principal, day calendar.Date) ([]persistence.TaskInstance, error) {
	if day.IsZero() {
		return nil, newValidationError("date", "date is required")
	}
	return s.ListRange(ctx, principal, day, day)
}

// ListRange returns the instances due within [from, to].
func (s *TaskService) ListRange(ctx context.Context, principal Principal, from, to calendar.Date) (instances []persistence.TaskInstance, err error) {
	if s == nil || s.tasks == nil {
		return nil, fmt.Errorf("task store not configured")
	}
	userID := strings.TrimSpace(principal.UserID)
	if userID == "" {
		return nil, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if from.IsZero() {
		vErr.add("from", "from is required")
	}
	if to.IsZero() {
		vErr.add("to", "to is required")
	}
	if !vErr.HasErrors() {
		if to.Before(from) {
			vErr.add("to", "to must not be before from")
		} else if from.DaysUntil(to)+1 > maxRangeDays {
			vErr.add("to", fmt.Sprintf("range must span at most %d days", maxRangeDays))
		}
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	instances, err = s.tasks.ListInstances(ctx, persistence.InstanceFilter{UserID: userID, From: from, To: to})
	if err != nil {
		s.loggerWith(ctx, "ListRange", "principal_id", userID).ErrorContext(ctx, "failed to list tasks", "error", err)
		return nil, mapRepoError(err)
	}
	return instances, nil
}

// SetCompletion marks the instance completed or not. Completing always
// evaluates the day's task reward.
func (s *TaskService) SetCompletion(ctx context.Context, principal Principal, instanceID string, completed bool) (result CompletionToggleResult, err error) {
	if s == nil || s.tasks == nil {
		err = fmt.Errorf("task store not configured")
		return
	}
	userID := strings.TrimSpace(principal.UserID)
	logger := s.loggerWith(ctx, "SetCompletion",
		"principal_id", userID,
		"instance_id", instanceID,
		"completed", completed,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set completion", "error", err, "error_kind", ErrorKind(err))
			return
		}
		attrs := []any{}
		if result.Gate != nil {
			attrs = append(attrs, "outcome", string(result.Gate.Outcome))
		}
		logger.InfoContext(ctx, "completion updated", attrs...)
	}()

	if userID == "" {
		err = ErrUnauthorized
		return
	}

	var instance persistence.TaskInstance
	if instance, err = s.tasks.GetInstance(ctx, userID, instanceID); err != nil {
		err = mapRepoError(err)
		return
	}

	if instance.Completed != completed {
		now := s.now().UTC()
		instance.Completed = completed
		instance.CompletedAt = nil
		if completed {
			instance.CompletedAt = &now
		}
		instance.UpdatedAt = now
		if err = s.tasks.UpdateInstance(ctx, instance); err != nil {
			err = mapRepoError(err)
			return
		}
	}
	result.Instance = instance

	if !completed || s.gate == nil {
		return
	}
	var gate CompletionResult
	gate, err = s.gate.Evaluate(ctx, EvaluateParams{
		UserID:   userID,
		Day:      instance.DueOn,
		Reason:   ReasonTaskCompletion,
		Eligible: true,
	})
	if err != nil {
		return
	}
	result.Gate = &gate
	return
}

// UpdateTask edits one instance. With regenerate set on a series instance the
// template takes the new rule and every future incomplete occurrence is
// rebuilt from it.
func (s *TaskService) UpdateTask(ctx context.Context, params UpdateTaskParams) (result UpdateTaskResult, err error) {
	if s == nil || s.tasks == nil {
		err = fmt.Errorf("task store not configured")
		return
	}
	userID := strings.TrimSpace(params.Principal.UserID)
	logger := s.loggerWith(ctx, "UpdateTask",
		"principal_id", userID,
		"instance_id", params.InstanceID,
		"regenerate", params.Regenerate,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update task", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "task updated", "regenerated", result.Regenerated)
	}()

	if userID == "" {
		err = ErrUnauthorized
		return
	}

	var instance persistence.TaskInstance
	if instance, err = s.tasks.GetInstance(ctx, userID, params.InstanceID); err != nil {
		err = mapRepoError(err)
		return
	}

	input := params.Input
	if input.Date.IsZero() {
		input.Date = instance.DueOn
	}

	if params.Regenerate && instance.TemplateID != nil {
		result, err = s.regenerateFrom(ctx, userID, instance, input)
		return
	}

	// Single occurrence edits never touch the rule.
	input.Repeat, input.Weekdays, input.EndsOn = "", nil, nil
	var fields taskFields
	if fields, err = s.validateInput(input); err != nil {
		return
	}
	var category *persistence.Category
	if category, err = s.resolveCategory(ctx, userID, input.CategoryID); err != nil {
		return
	}

	instance.Title = fields.title
	instance.DueOn = input.Date
	instance.TimeOfDay = fields.timeOfDay
	instance.Priority = fields.priority
	applyCategory(&instance, category)
	instance.UpdatedAt = s.now().UTC()

	if err = s.tasks.UpdateInstance(ctx, instance); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = newValidationError("date", "the series already has an occurrence on this date")
			return
		}
		err = mapRepoError(err)
		return
	}
	result.Instance = instance
	return
}

func (s *TaskService) regenerateFrom(ctx context.Context, userID string, instance persistence.TaskInstance, input TaskInput) (UpdateTaskResult, error) {
	template, err := s.tasks.GetTemplate(ctx, userID, *instance.TemplateID)
	if err != nil {
		return UpdateTaskResult{}, mapRepoError(err)
	}

	// The series keeps its anchor so monthly rules stay on the same day.
	input.Date = template.StartsOn
	if strings.TrimSpace(input.Repeat) == "" {
		input.Repeat = template.Repeat
	}
	fields, err := s.validateInput(input)
	if err != nil {
		return UpdateTaskResult{}, err
	}
	if fields.rule.Repeat == recurrence.RepeatNone {
		return UpdateTaskResult{}, newValidationError("repeat", "a series cannot be turned into a one-off task")
	}
	category, err := s.resolveCategory(ctx, userID, input.CategoryID)
	if err != nil {
		return UpdateTaskResult{}, err
	}

	now := s.now().UTC()
	template.Title = fields.title
	template.TimeOfDay = fields.timeOfDay
	template.Priority = fields.priority
	template.Repeat = string(fields.rule.Repeat)
	template.Weekdays = fields.rule.Weekdays
	template.EndsOn = fields.rule.EndsOn
	template.CategoryID = nil
	if category != nil {
		id := category.ID
		template.CategoryID = &id
	}
	template.UpdatedAt = now

	today := s.today(ctx, userID)
	instances := make([]persistence.TaskInstance, 0)
	for day := range fields.sequence.From(today) {
		instances = append(instances, s.newInstance(userID, &template.ID, fields, day, category, now))
	}
	created, err := s.tasks.ReplaceSeries(ctx, template, today, instances)
	if err != nil {
		return UpdateTaskResult{}, mapRepoError(err)
	}

	result := UpdateTaskResult{Regenerated: created}
	current, err := s.tasks.GetInstance(ctx, userID, instance.ID)
	switch {
	case err == nil:
		result.Instance = current
	case errors.Is(err, persistence.ErrNotFound):
		// The edited occurrence was rebuilt; report its replacement if any.
		replacements, lErr := s.tasks.ListInstances(ctx, persistence.InstanceFilter{
			UserID:     userID,
			TemplateID: template.ID,
			From:       instance.DueOn,
			To:         instance.DueOn,
		})
		if lErr != nil {
			return UpdateTaskResult{}, mapRepoError(lErr)
		}
		if len(replacements) > 0 {
			result.Instance = replacements[0]
		}
	default:
		return UpdateTaskResult{}, mapRepoError(err)
	}
	return result, nil
}

// DeleteTask removes one occurrence or the whole series.
func (s *TaskService) DeleteTask(ctx context.Context, principal Principal, instanceID string, scope DeleteScope) (err error) {
	if s == nil || s.tasks == nil {
		return fmt.Errorf("task store not configured")
	}
	userID := strings.TrimSpace(principal.UserID)
	logger := s.loggerWith(ctx, "DeleteTask",
		"principal_id", userID,
		"instance_id", instanceID,
		"scope", string(scope),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete task", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "task deleted")
	}()

	if userID == "" {
		return ErrUnauthorized
	}
	switch scope {
	case "", DeleteSingle, DeleteSeries:
	default:
		return newValidationError("scope", "scope must be single or series")
	}

	instance, err := s.tasks.GetInstance(ctx, userID, instanceID)
	if err != nil {
		return mapRepoError(err)
	}
	if scope == DeleteSeries && instance.TemplateID != nil {
		return mapRepoError(s.tasks.DeleteTemplate(ctx, userID, *instance.TemplateID))
	}
	return mapRepoError(s.tasks.DeleteInstance(ctx, userID, instance.ID))
}

// RegenerateSeries expands a stored template again and inserts any missing
// occurrence. Existing occurrences are left untouched.
func (s *TaskService) RegenerateSeries(ctx context.Context, principal Principal, templateID string) (created int, err error) {
	if s == nil || s.tasks == nil {
		return 0, fmt.Errorf("task store not configured")
	}
	userID := strings.TrimSpace(principal.UserID)
	if userID == "" {
		return 0, ErrUnauthorized
	}
	logger := s.loggerWith(ctx, "RegenerateSeries", "principal_id", userID, "template_id", templateID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to regenerate series", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "series regenerated", "created", created)
	}()

	template, err := s.tasks.GetTemplate(ctx, userID, templateID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	repeat, err := recurrence.ParseRepeat(template.Repeat)
	if err != nil {
		return 0, ruleValidationError(err)
	}
	sequence, err := s.engine.Expand(recurrence.Rule{
		Repeat:   repeat,
		Weekdays: template.Weekdays,
		StartsOn: template.StartsOn,
		EndsOn:   template.EndsOn,
	})
	if err != nil {
		return 0, ruleValidationError(err)
	}

	category, err := s.resolveCategory(ctx, userID, template.CategoryID)
	if err != nil {
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			return 0, err
		}
		category = nil
	}
	fields := taskFields{title: template.Title, timeOfDay: template.TimeOfDay, priority: template.Priority}
	now := s.now().UTC()
	instances := make([]persistence.TaskInstance, 0, sequence.Len())
	for day := range sequence.All() {
		instances = append(instances, s.newInstance(userID, &template.ID, fields, day, category, now))
	}
	created, err = s.tasks.InsertInstances(ctx, instances)
	return created, mapRepoError(err)
}

// today returns the current date in the user's zone.
func (s *TaskService) today(ctx context.Context, userID string) calendar.Date {
	loc := s.location
	if s.users != nil {
		if user, err := s.users.GetUser(ctx, userID); err == nil {
			loc = userLocation(user, s.location)
		}
	}
	return calendar.DateOf(s.now(), loc)
}
