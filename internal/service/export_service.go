package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/pkg/export"
	"github.com/rcffuta/elib-api/pkg/storage"
)

type exportMaterialSource interface {
	TopByDownloads(ctx context.Context, limit int) ([]models.MaterialWithCourse, error)
}

type exportDownloadSource interface {
	Recent(ctx context.Context, limit int, since *time.Time) ([]models.RecentDownload, error)
}

type exportCourseSource interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

const (
	defaultReportDays  = 30
	defaultReportLimit = 100
	maxReportRows      = 500
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Location  *time.Location
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	materials exportMaterialSource
	downloads exportDownloadSource
	courses   exportCourseSource
	storage   fileStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(materials exportMaterialSource, downloads exportDownloadSource, courses exportCourseSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ExportService{
		materials: materials,
		downloads: downloads,
		courses:   courses,
		storage:   store,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate builds the dataset for job, renders it and stores the file behind a signed URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	format := export.Format(job.Params.Format)
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Type, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job, format), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("report rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/admin/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob, format export.Format) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s%s", job.Type, shortID(job.ID), timestamp, format.Extension())
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "na"
	}
	return id
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	limit := reportLimit(job.Params.Limit)
	switch job.Type {
	case models.ReportTypeTopMaterials:
		return s.buildTopMaterialsDataset(ctx, limit)
	case models.ReportTypeDownloads:
		days := job.Params.Days
		if days <= 0 {
			days = defaultReportDays
		}
		return s.buildDownloadsDataset(ctx, days, limit)
	case models.ReportTypeCourses:
		return s.buildCoursesDataset(ctx, limit)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func reportLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultReportLimit
	case limit > maxReportRows:
		return maxReportRows
	}
	return limit
}

func (s *ExportService) buildTopMaterialsDataset(ctx context.Context, limit int) (export.Dataset, error) {
	materials, err := s.materials.TopByDownloads(ctx, limit)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(materials))
	for i, m := range materials {
		rows = append(rows, map[string]string{
			"Rank":      strconv.Itoa(i + 1),
			"Course":    m.CourseCode,
			"Title":     m.Title,
			"Type":      string(m.Type),
			"Year":      m.Year,
			"Downloads": strconv.FormatInt(m.DownloadCount, 10),
		})
	}
	return export.Dataset{
		Title:   "Most Downloaded Materials",
		Headers: []string{"Rank", "Course", "Title", "Type", "Year", "Downloads"},
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildDownloadsDataset(ctx context.Context, days, limit int) (export.Dataset, error) {
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	events, err := s.downloads.Recent(ctx, limit, &since)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		level := ""
		if e.Level > 0 {
			level = strconv.Itoa(e.Level)
		}
		rows = append(rows, map[string]string{
			"Downloaded At": e.DownloadedAt.In(s.cfg.Location).Format("2006-01-02 15:04"),
			"Material":      e.MaterialTitle,
			"Type":          string(e.MaterialType),
			"Student":       strings.TrimSpace(e.FirstName + " " + e.LastName),
			"Department":    e.Department,
			"Level":         level,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Downloads (last %d days)", days),
		Headers: []string{"Downloaded At", "Material", "Type", "Student", "Department", "Level"},
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildCoursesDataset(ctx context.Context, limit int) (export.Dataset, error) {
	courses, _, err := s.courses.List(ctx, models.CourseFilter{Page: 1, PageSize: limit})
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, map[string]string{
			"Code":       c.Code,
			"Title":      c.Title,
			"Department": c.Department,
			"Level":      strconv.Itoa(c.Level),
			"Materials":  strconv.Itoa(c.MaterialCount),
		})
	}
	return export.Dataset{
		Title:   "Course Catalogue",
		Headers: []string{"Code", "Title", "Department", "Level", "Materials"},
		Rows:    rows,
	}, nil
}
