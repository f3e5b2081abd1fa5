package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rcffuta/elib-api/internal/models"
	appErrors "github.com/rcffuta/elib-api/pkg/errors"
)

const (
	histogramDays     = 7
	histogramDateKey  = "2006-01-02"
	histogramLabelFmt = "Jan 02"

	snapshotCacheKey = "analytics:snapshot"
	statsCacheKey    = "stats:admin"
)

type analyticsMaterialRepository interface {
	TopByDownloads(ctx context.Context, limit int) ([]models.MaterialWithCourse, error)
	RecentUploads(ctx context.Context, limit int) ([]models.MaterialWithCourse, error)
	Count(ctx context.Context) (int, error)
}

type analyticsDownloadRepository interface {
	Recent(ctx context.Context, limit int, since *time.Time) ([]models.RecentDownload, error)
	Since(ctx context.Context, since time.Time) ([]models.DownloadEvent, error)
	Count(ctx context.Context) (int, error)
}

type counter interface {
	Count(ctx context.Context) (int, error)
}

// AnalyticsConfig tunes analytics aggregation.
type AnalyticsConfig struct {
	TopLimit    int
	RecentLimit int
	Location    *time.Location
	CacheTTL    time.Duration
}

// AnalyticsService aggregates download activity for administrators.
type AnalyticsService struct {
	materials analyticsMaterialRepository
	downloads analyticsDownloadRepository
	courses   counter
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       AnalyticsConfig
	now       func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(materials analyticsMaterialRepository, downloads analyticsDownloadRepository, courses counter, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = 5
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 20
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AnalyticsService{
		materials: materials,
		downloads: downloads,
		courses:   courses,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Snapshot returns top materials, recent activity and the trailing seven-day histogram.
// The boolean reports whether the snapshot came from cache.
func (s *AnalyticsService) Snapshot(ctx context.Context) (*models.AnalyticsSnapshot, bool, error) {
	var cached models.AnalyticsSnapshot
	if s.cache.Get(ctx, snapshotCacheKey, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	top, err := s.materials.TopByDownloads(ctx, s.cfg.TopLimit)
	if err != nil {
		return nil, false, appErrors.StoreUnavailable(err, "failed to load top materials")
	}
	recent, err := s.downloads.Recent(ctx, s.cfg.RecentLimit, nil)
	if err != nil {
		return nil, false, appErrors.StoreUnavailable(err, "failed to load recent downloads")
	}

	now := s.now()
	from := HistogramStart(now, s.cfg.Location)
	events, err := s.downloads.Since(ctx, from)
	if err != nil {
		return nil, false, appErrors.StoreUnavailable(err, "failed to load download history")
	}
	s.metrics.ObserveDBQuery("analytics_snapshot", time.Since(start))

	snapshot := &models.AnalyticsSnapshot{
		TopMaterials:      top,
		RecentActivity:    recent,
		SevenDayHistogram: BuildHistogram(now, s.cfg.Location, events),
		GeneratedAt:       now.UTC(),
	}
	s.cache.Set(ctx, snapshotCacheKey, snapshot, s.cfg.CacheTTL)
	return snapshot, false, nil
}

// AdminStats returns library totals and the latest uploads.
func (s *AnalyticsService) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	var cached models.AdminStats
	if s.cache.Get(ctx, statsCacheKey, &cached) {
		return &cached, nil
	}

	stats := &models.AdminStats{}
	var err error
	if stats.TotalCourses, err = s.courses.Count(ctx); err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to count courses")
	}
	if stats.TotalMaterials, err = s.materials.Count(ctx); err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to count materials")
	}
	if stats.TotalDownloads, err = s.downloads.Count(ctx); err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to count downloads")
	}
	if stats.RecentUploads, err = s.materials.RecentUploads(ctx, 5); err != nil {
		return nil, appErrors.StoreUnavailable(err, "failed to load recent uploads")
	}
	s.cache.Set(ctx, statsCacheKey, stats, s.cfg.CacheTTL)
	return stats, nil
}

// SystemMetrics returns the process instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

// HistogramStart is local midnight six days before now in loc.
func HistogramStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -(histogramDays - 1))
}

// BuildHistogram buckets events by calendar day in loc over the seven days ending today.
// Every day is present, oldest first, even when it has no events.
func BuildHistogram(now time.Time, loc *time.Location, events []models.DownloadEvent) []models.HistogramBucket {
	start := HistogramStart(now, loc)
	buckets := make([]models.HistogramBucket, histogramDays)
	index := make(map[string]int, histogramDays)
	for i := range buckets {
		day := start.AddDate(0, 0, i)
		key := day.Format(histogramDateKey)
		buckets[i] = models.HistogramBucket{Date: key, Label: day.Format(histogramLabelFmt)}
		index[key] = i
	}
	for _, event := range events {
		if i, ok := index[event.DownloadedAt.In(loc).Format(histogramDateKey)]; ok {
			buckets[i].Count++
		}
	}
	return buckets
}
