// Package goalai breaks a long-term goal into weekly steps, using a chat
// completion model when one is configured and a deterministic generator
// otherwise.
package goalai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/logging"
)

const (
	DefaultWeeks = 4
	MaxWeeks     = 52

	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// ErrInvalidRequest is returned for an empty goal or impossible dates.
var ErrInvalidRequest = errors.New("goalai: invalid request")

// ChatClient is the subset of *openai.Client the planner calls.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ClientConfig configures NewClient.
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

// NewClient returns an OpenAI client, or nil when no API key is configured.
func NewClient(cfg ClientConfig) ChatClient {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(config)
}

// GoalRequest describes the goal to plan.
type GoalRequest struct {
	Goal     string
	StartsOn calendar.Date
	Deadline *calendar.Date
	// Weeks is used when Deadline is nil. Zero means DefaultWeeks.
	Weeks int
}

// Step is one weekly milestone.
type Step struct {
	Week  int           `json:"week"`
	Title string        `json:"title"`
	DueOn calendar.Date `json:"due_on"`
}

// Plan is the breakdown returned to callers.
type Plan struct {
	Goal   string `json:"goal"`
	Source string `json:"source"`
	Steps  []Step `json:"steps"`
}

// Planner produces plans.
type Planner struct {
	client ChatClient
	model  string
}

// NewPlanner returns a planner. A nil client always uses the fallback.
func NewPlanner(client ChatClient, model string) *Planner {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Planner{client: client, model: model}
}

// Plan returns weekly steps for req. Model failures and unusable responses
// fall back to the deterministic generator and are logged, not returned.
func (p *Planner) Plan(ctx context.Context, req GoalRequest) (Plan, error) {
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		return Plan{}, fmt.Errorf("%w: goal is required", ErrInvalidRequest)
	}
	if req.StartsOn.IsZero() {
		return Plan{}, fmt.Errorf("%w: start date is required", ErrInvalidRequest)
	}
	weeks, err := weekCount(req)
	if err != nil {
		return Plan{}, err
	}

	logger := logging.FromContext(ctx).With(slog.String("component", "goalai"), slog.Int("weeks", weeks))

	if p.client != nil {
		titles, err := p.ask(ctx, goal, weeks)
		if err == nil {
			return Plan{Goal: goal, Source: SourceAI, Steps: schedule(titles, req, weeks)}, nil
		}
		logger.WarnContext(ctx, "model plan unavailable, using fallback", slog.Any("error", err))
	}

	return Plan{Goal: goal, Source: SourceFallback, Steps: schedule(FallbackTitles(goal, weeks), req, weeks)}, nil
}

func weekCount(req GoalRequest) (int, error) {
	if req.Deadline != nil {
		if req.Deadline.Before(req.StartsOn) {
			return 0, fmt.Errorf("%w: deadline before start", ErrInvalidRequest)
		}
		weeks := req.StartsOn.DaysUntil(*req.Deadline)/7 + 1
		return min(weeks, MaxWeeks), nil
	}
	switch {
	case req.Weeks <= 0:
		return DefaultWeeks, nil
	case req.Weeks > MaxWeeks:
		return 0, fmt.Errorf("%w: at most %d weeks", ErrInvalidRequest, MaxWeeks)
	default:
		return req.Weeks, nil
	}
}

type modelStep struct {
	Week  int    `json:"week"`
	Title string `json:"title"`
}

func (p *Planner) ask(ctx context.Context, goal string, weeks int) ([]string, error) {
	prompt := fmt.Sprintf(`Break the goal below into exactly %d weekly steps.
Respond with only a JSON array of objects with the fields "week" (1-%d) and "title" (under 80 characters).

Goal: %s`, weeks, weeks, goal)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a concise productivity coach."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty completion")
	}
	return parseSteps(resp.Choices[0].Message.Content, weeks)
}

// parseSteps decodes the model reply into one title per week.
func parseSteps(content string, weeks int) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var steps []modelStep
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}

	titles := make([]string, weeks)
	for _, step := range steps {
		title := strings.TrimSpace(step.Title)
		if step.Week < 1 || step.Week > weeks || title == "" {
			continue
		}
		titles[step.Week-1] = title
	}
	for i, title := range titles {
		if title == "" {
			return nil, fmt.Errorf("missing step for week %d", i+1)
		}
	}
	return titles, nil
}

// FallbackTitles generates deterministic step titles for goal.
func FallbackTitles(goal string, weeks int) []string {
	titles := make([]string, weeks)
	for i := range titles {
		week := i + 1
		switch {
		case weeks == 1:
			titles[i] = fmt.Sprintf("Complete: %s", goal)
		case week == 1:
			titles[i] = fmt.Sprintf("Plan and start: %s", goal)
		case week == weeks:
			titles[i] = fmt.Sprintf("Review and finish: %s", goal)
		default:
			titles[i] = fmt.Sprintf("Week %d progress: %s", week, goal)
		}
	}
	return titles
}

func schedule(titles []string, req GoalRequest, weeks int) []Step {
	steps := make([]Step, 0, weeks)
	for i := 0; i < weeks && i < len(titles); i++ {
		due := req.StartsOn.AddDays(7*(i+1) - 1)
		if req.Deadline != nil && (due.After(*req.Deadline) || i == weeks-1) {
			due = *req.Deadline
		}
		steps = append(steps, Step{Week: i + 1, Title: titles[i], DueOn: due})
	}
	return steps
}
