package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rcffuta/elib-api/internal/dto"
	"github.com/rcffuta/elib-api/internal/models"
	appErrors "github.com/rcffuta/elib-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListOptions(ctx context.Context) ([]models.CourseOption, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

// CourseService implements admin course management.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	cache     *CacheService
	logger    *zap.Logger
	levels    map[int]struct{}
}

// NewCourseService constructs a CourseService. levels is the accepted ordinal set.
func NewCourseService(repo courseRepository, validate *validator.Validate, cache *CacheService, logger *zap.Logger, levels []int) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[int]struct{}, len(levels))
	for _, l := range levels {
		set[l] = struct{}{}
	}
	return &CourseService{repo: repo, validator: validate, cache: cache, logger: logger, levels: set}
}

// List returns courses newest first with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	filter.Search = strings.TrimSpace(filter.Search)
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.StoreUnavailable(err, "failed to list courses")
	}
	return courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Options returns the compact course list used by upload forms.
func (s *CourseService) Options(ctx context.Context) ([]models.CourseOption, error) {
	options, err := s.repo.ListOptions(ctx)
	if err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to list courses")
	}
	return options, nil
}

// Create validates and stores a new course. Codes are stored uppercase and must be unique.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest) (*models.Course, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Title = strings.TrimSpace(req.Title)
	req.Department = strings.TrimSpace(req.Department)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, ok := s.levels[req.Level]; len(s.levels) > 0 && !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "level is not a recognised course level")
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}

	course := &models.Course{Code: req.Code, Title: req.Title, Department: req.Department, Level: req.Level}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to create course")
	}
	s.cache.Invalidate(ctx, statsCachePattern, analyticsCachePattern)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	return course, nil
}

// Delete removes a course and its materials.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.StoreUnavailable(err, "failed to delete course")
	}
	s.cache.Invalidate(ctx, statsCachePattern, analyticsCachePattern)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}
