package models

import "time"

// HistogramBucket counts downloads on one calendar day in the display timezone.
type HistogramBucket struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// AnalyticsSnapshot is the admin view of library usage.
type AnalyticsSnapshot struct {
	TopMaterials      []MaterialWithCourse `json:"top_materials"`
	RecentActivity    []RecentDownload     `json:"recent_activity"`
	SevenDayHistogram []HistogramBucket    `json:"seven_day_histogram"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

// AdminStats summarises library contents for the admin landing page.
type AdminStats struct {
	TotalCourses   int                  `json:"total_courses"`
	TotalMaterials int                  `json:"total_materials"`
	TotalDownloads int                  `json:"total_downloads"`
	RecentUploads  []MaterialWithCourse `json:"recent_uploads"`
}

// SystemMetrics is a point-in-time summary of process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	DownloadsTracked         uint64    `json:"downloads_tracked"`
	DownloadWriteFailures    uint64    `json:"download_write_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
