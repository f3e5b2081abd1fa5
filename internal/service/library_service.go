package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rcffuta/elib-api/internal/models"
	appErrors "github.com/rcffuta/elib-api/pkg/errors"
)

const maxLibraryPageSize = 200

type libraryCourseRepository interface {
	ListEligible(ctx context.Context, q models.CourseQuery) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type libraryMaterialRepository interface {
	FindByID(ctx context.Context, id string) (*models.Material, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Material, error)
	UpdateDownloadCount(ctx context.Context, id string, count int64) error
	IncrementDownloadCount(ctx context.Context, id string) (int64, error)
}

type downloadLog interface {
	Append(ctx context.Context, event *models.DownloadEvent) error
}

type identityResolver interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// LibraryConfig drives eligibility and ranking.
type LibraryConfig struct {
	GeneralPrefixes []string
	Levels          []int
	PageSize        int
	// AtomicCounter switches download counting from read-modify-write to a single UPDATE.
	AtomicCounter bool
}

// LibraryService decides which courses a student sees and records downloads.
type LibraryService struct {
	courses   libraryCourseRepository
	materials libraryMaterialRepository
	downloads downloadLog
	users     identityResolver
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       LibraryConfig
	levels    map[int]struct{}
	now       func() time.Time
}

// NewLibraryService constructs a LibraryService.
func NewLibraryService(courses libraryCourseRepository, materials libraryMaterialRepository, downloads downloadLog, users identityResolver, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg LibraryConfig) *LibraryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.PageSize > maxLibraryPageSize {
		cfg.PageSize = maxLibraryPageSize
	}
	levels := make(map[int]struct{}, len(cfg.Levels))
	for _, level := range cfg.Levels {
		levels[level] = struct{}{}
	}
	return &LibraryService{
		courses:   courses,
		materials: materials,
		downloads: downloads,
		users:     users,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		levels:    levels,
		now:       time.Now,
	}
}

// ResolveUser loads the signed-in user. An empty or unknown id is Unauthorized.
func (s *LibraryService) ResolveUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "identity could not be resolved")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "identity could not be resolved")
		}
		return nil, appErrors.StoreUnavailable(err, "failed to load identity")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	return user, nil
}

// EligibleCourses returns the courses visible to profile, highest level first.
// A nil profile yields Unauthorized; a profile without a known level yields an empty list.
func (s *LibraryService) EligibleCourses(ctx context.Context, profile *models.AcademicProfile) ([]models.Course, error) {
	return s.SearchEligibleCourses(ctx, profile, "")
}

// SearchEligibleCourses is EligibleCourses narrowed to courses whose code or
// title contains search. The search never widens the eligible set.
func (s *LibraryService) SearchEligibleCourses(ctx context.Context, profile *models.AcademicProfile, search string) ([]models.Course, error) {
	if profile == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "academic profile unavailable")
	}
	q, ok := s.query(*profile)
	if !ok {
		return []models.Course{}, nil
	}
	q.Search = strings.TrimSpace(search)

	start := s.now()
	courses, err := s.courses.ListEligible(ctx, q)
	s.metrics.ObserveDBQuery("library_eligible_courses", time.Since(start))
	if err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to list courses")
	}
	return s.rank(q, courses), nil
}

// Dashboard returns the student's profile summary and eligible courses,
// optionally narrowed by search.
func (s *LibraryService) Dashboard(ctx context.Context, userID, search string) (*models.Dashboard, error) {
	user, err := s.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	courses, err := s.SearchEligibleCourses(ctx, &profile, search)
	if err != nil {
		return nil, err
	}
	return &models.Dashboard{
		Profile: models.ProfileSummary{
			ID:         user.ID,
			FirstName:  user.FirstName,
			Department: profile.Department,
			Level:      profile.CurrentLevel,
		},
		Courses: courses,
	}, nil
}

// CourseMaterials lists the materials of a course the user is eligible for.
// Ineligible and unknown courses are both reported as NotFound.
func (s *LibraryService) CourseMaterials(ctx context.Context, userID, courseID string) (*models.Course, []models.Material, error) {
	user, err := s.ResolveUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !validID(courseID) {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.StoreUnavailable(err, "failed to load course")
	}
	q, ok := s.query(user.Profile())
	if !ok || !q.Matches(*course) {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	materials, err := s.materials.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, nil, appErrors.StoreUnavailable(err, "failed to list materials")
	}
	return course, materials, nil
}

// TrackDownload records a download by userID and returns the file reference.
// found is false when the material does not exist; no event is recorded then.
// Event and counter writes are best effort: failures are logged and counted, not returned.
func (s *LibraryService) TrackDownload(ctx context.Context, materialID, userID string) (fileRef string, found bool, err error) {
	if userID == "" {
		return "", false, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to download materials")
	}
	if !validID(materialID) {
		return "", false, nil
	}

	material, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, appErrors.StoreUnavailable(err, "failed to load material")
	}

	logger := s.logger.With(zap.String("material_id", material.ID), zap.String("user_id", userID))

	event := &models.DownloadEvent{MaterialID: material.ID, UserID: userID, DownloadedAt: s.now().UTC()}
	if err := s.downloads.Append(ctx, event); err != nil {
		logger.Warn("append download event failed", zap.Error(err))
		s.metrics.RecordDownloadFailure(DownloadStageEvent)
	}

	if s.cfg.AtomicCounter {
		_, err = s.materials.IncrementDownloadCount(ctx, material.ID)
	} else {
		// Read-modify-write without locking; concurrent downloads may under-count.
		err = s.materials.UpdateDownloadCount(ctx, material.ID, material.DownloadCount+1)
	}
	if err != nil {
		logger.Warn("update download count failed", zap.Error(err))
		s.metrics.RecordDownloadFailure(DownloadStageCounter)
	}

	s.metrics.RecordDownload()
	s.cache.Invalidate(ctx, analyticsCachePattern, statsCachePattern)
	return material.FileURL, true, nil
}

// query builds the eligibility predicate; ok is false when the level is not recognised.
func (s *LibraryService) query(profile models.AcademicProfile) (models.CourseQuery, bool) {
	if !s.validLevel(profile.CurrentLevel) {
		return models.CourseQuery{}, false
	}
	return models.CourseQuery{
		Department: profile.Department,
		Prefixes:   s.cfg.GeneralPrefixes,
		MaxLevel:   profile.CurrentLevel,
		Limit:      s.cfg.PageSize,
	}, true
}

func (s *LibraryService) validLevel(level int) bool {
	if level <= 0 {
		return false
	}
	if len(s.levels) == 0 {
		return true
	}
	_, ok := s.levels[level]
	return ok
}

// rank drops rows that do not satisfy q, orders by level descending keeping
// store order for ties, and applies the page size.
func (s *LibraryService) rank(q models.CourseQuery, courses []models.Course) []models.Course {
	ranked := make([]models.Course, 0, len(courses))
	for _, course := range courses {
		if !q.Matches(course) {
			s.logger.Warn("store returned ineligible course", zap.String("course_id", course.ID), zap.String("code", course.Code))
			continue
		}
		ranked = append(ranked, course)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Level > ranked[j].Level
	})
	if len(ranked) > s.cfg.PageSize {
		ranked = ranked[:s.cfg.PageSize]
	}
	return ranked
}

// validID reports whether id can address a row. Every primary key is a UUID,
// so anything else is unknown rather than a store failure.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
