package application

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gumwoo/fivlo/internal/persistence"
)

const (
	maxCategoryNameLength = 30
	defaultCategoryColor  = "#999999"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// CategoryService manages task categories.
type CategoryService struct {
	categories  CategoryStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCategoryService constructs a CategoryService.
func NewCategoryService(categories CategoryStore, idGenerator func() string, now func() time.Time) *CategoryService {
	return NewCategoryServiceWithLogger(categories, idGenerator, now, nil)
}

// NewCategoryServiceWithLogger constructs a CategoryService with a specified logger.
func NewCategoryServiceWithLogger(categories CategoryStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CategoryService {
	if idGenerator == nil {
		idGenerator = defaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}
	return &CategoryService{categories: categories, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateCategory stores a new category. An empty color takes the default.
func (s *CategoryService) CreateCategory(ctx context.Context, principal Principal, name, color string) (category persistence.Category, err error) {
	if s == nil || s.categories == nil {
		err = fmt.Errorf("category store not configured")
		return
	}
	logger := serviceLogger(ctx, s.logger, "CategoryService", "CreateCategory", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create category", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "category created", "category_id", category.ID)
	}()

	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}

	name = strings.TrimSpace(name)
	color = strings.TrimSpace(color)
	vErr := &ValidationError{}
	switch {
	case name == "":
		vErr.add("name", "name is required")
	case utf8.RuneCountInString(name) > maxCategoryNameLength:
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", maxCategoryNameLength))
	}
	if color == "" {
		color = defaultCategoryColor
	} else if !colorPattern.MatchString(color) {
		vErr.add("color", "color must be #RRGGBB")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	category = persistence.Category{
		ID:        s.idGenerator(),
		UserID:    principal.UserID,
		Name:      name,
		Color:     strings.ToUpper(color),
		CreatedAt: s.now().UTC(),
	}
	if err = s.categories.CreateCategory(ctx, category); err != nil {
		err = mapRepoError(err)
	}
	return
}

// ListCategories returns the principal's categories.
func (s *CategoryService) ListCategories(ctx context.Context, principal Principal) ([]persistence.Category, error) {
	if s == nil || s.categories == nil {
		return nil, fmt.Errorf("category store not configured")
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return nil, ErrUnauthorized
	}
	categories, err := s.categories.ListCategories(ctx, principal.UserID)
	return categories, mapRepoError(err)
}

// DeleteCategory removes a category. Instances keep their copied name and color.
func (s *CategoryService) DeleteCategory(ctx context.Context, principal Principal, id string) error {
	if s == nil || s.categories == nil {
		return fmt.Errorf("category store not configured")
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return ErrUnauthorized
	}
	if err := s.categories.DeleteCategory(ctx, principal.UserID, id); err != nil {
		return mapRepoError(err)
	}
	serviceLogger(ctx, s.logger, "CategoryService", "DeleteCategory", "principal_id", principal.UserID).
		InfoContext(ctx, "category deleted", "category_id", id)
	return nil
}
