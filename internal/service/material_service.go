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

type materialWriter interface {
	Create(ctx context.Context, material *models.Material) error
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// MaterialService registers uploaded materials against courses.
type MaterialService struct {
	materials materialWriter
	courses   courseLookup
	validator *validator.Validate
	cache     *CacheService
	logger    *zap.Logger
}

// NewMaterialService constructs a MaterialService.
func NewMaterialService(materials materialWriter, courses courseLookup, validate *validator.Validate, cache *CacheService, logger *zap.Logger) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialService{materials: materials, courses: courses, validator: validate, cache: cache, logger: logger}
}

// Create stores material metadata uploaded by uploadedBy.
func (s *MaterialService) Create(ctx context.Context, req dto.CreateMaterialRequest, uploadedBy string) (*models.Material, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Year = strings.TrimSpace(req.Year)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.StoreUnavailable(err, "failed to load course")
	}

	material := &models.Material{
		CourseID: req.CourseID,
		Title:    req.Title,
		Type:     req.Type,
		Year:     req.Year,
		Semester: req.Semester,
		FileSize: req.FileSize,
		FileURL:  req.FileURL,
	}
	if uploadedBy != "" {
		material.UploadedBy = &uploadedBy
	}
	if err := s.materials.Create(ctx, material); err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to save material")
	}
	s.cache.Invalidate(ctx, statsCachePattern, analyticsCachePattern)
	s.logger.Info("material saved", zap.String("material_id", material.ID), zap.String("course_id", material.CourseID))
	return material, nil
}
