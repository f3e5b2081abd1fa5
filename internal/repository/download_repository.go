package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcffuta/elib-api/internal/models"
)

// DownloadRepository stores the append-only download event log.
type DownloadRepository struct {
	db *sqlx.DB
}

// NewDownloadRepository creates a new instance of DownloadRepository.
func NewDownloadRepository(db *sqlx.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Append inserts one download event.
func (r *DownloadRepository) Append(ctx context.Context, event *models.DownloadEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.DownloadedAt.IsZero() {
		event.DownloadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO download_events (id, material_id, user_id, downloaded_at) VALUES (:id, :material_id, :user_id, :downloaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append download event: %w", err)
	}
	return nil
}

// Recent returns the latest events joined with material and user display fields.
// Events whose material or user was removed keep empty display fields.
func (r *DownloadRepository) Recent(ctx context.Context, limit int, since *time.Time) ([]models.RecentDownload, error) {
	query := `SELECT d.id, d.material_id, d.user_id, d.downloaded_at,
COALESCE(m.title, '') AS material_title, COALESCE(m.type, '') AS material_type,
COALESCE(u.first_name, '') AS first_name, COALESCE(u.last_name, '') AS last_name,
COALESCE(u.department, '') AS department, COALESCE(u.current_level, 0) AS current_level
FROM download_events d
LEFT JOIN materials m ON m.id = d.material_id
LEFT JOIN users u ON u.id = d.user_id`
	args := make([]interface{}, 0, 2)
	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(" WHERE d.downloaded_at >= $%d", len(args))
	}
	args = append(args, normaliseLimit(limit, 20))
	query += fmt.Sprintf(" ORDER BY d.downloaded_at DESC LIMIT $%d", len(args))

	events := make([]models.RecentDownload, 0)
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list recent downloads: %w", err)
	}
	return events, nil
}

// Since returns every event at or after since, oldest first.
func (r *DownloadRepository) Since(ctx context.Context, since time.Time) ([]models.DownloadEvent, error) {
	const query = `SELECT id, material_id, user_id, downloaded_at FROM download_events WHERE downloaded_at >= $1 ORDER BY downloaded_at ASC`
	events := make([]models.DownloadEvent, 0)
	if err := r.db.SelectContext(ctx, &events, query, since); err != nil {
		return nil, fmt.Errorf("list downloads since: %w", err)
	}
	return events, nil
}

// Count returns the number of recorded download events.
func (r *DownloadRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM download_events`); err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return total, nil
}
