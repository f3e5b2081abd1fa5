package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcffuta/elib-api/internal/models"
)

const materialColumns = `m.id, m.course_id, m.title, m.type, m.year, m.semester, m.file_size, m.download_count, m.file_url, m.uploaded_by, m.created_at`

// MaterialRepository provides database access for course materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates a new instance of MaterialRepository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindByID returns a material by identifier.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials m WHERE m.id = $1 LIMIT 1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find material by id: %w", err)
	}
	return &material, nil
}

// ListByCourse returns a course's materials, newest first.
func (r *MaterialRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials m WHERE m.course_id = $1 ORDER BY m.created_at DESC`
	materials := make([]models.Material, 0)
	if err := r.db.SelectContext(ctx, &materials, query, courseID); err != nil {
		return nil, fmt.Errorf("list course materials: %w", err)
	}
	return materials, nil
}

// Create inserts a new material with a zero download count.
func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	if material.CreatedAt.IsZero() {
		material.CreatedAt = time.Now().UTC()
	}
	material.DownloadCount = 0

	const query = `INSERT INTO materials (id, course_id, title, type, year, semester, file_size, download_count, file_url, uploaded_by, created_at) VALUES (:id, :course_id, :title, :type, :year, :semester, :file_size, :download_count, :file_url, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// UpdateDownloadCount overwrites the stored counter with count.
func (r *MaterialRepository) UpdateDownloadCount(ctx context.Context, id string, count int64) error {
	const query = `UPDATE materials SET download_count = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, count); err != nil {
		return fmt.Errorf("update download count: %w", err)
	}
	return nil
}

// IncrementDownloadCount adds one to the counter in a single statement and returns the new value.
func (r *MaterialRepository) IncrementDownloadCount(ctx context.Context, id string) (int64, error) {
	const query = `UPDATE materials SET download_count = download_count + 1 WHERE id = $1 RETURNING download_count`
	var count int64
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment download count: %w", err)
	}
	return count, nil
}

// TopByDownloads returns the most downloaded materials with their course code.
func (r *MaterialRepository) TopByDownloads(ctx context.Context, limit int) ([]models.MaterialWithCourse, error) {
	query := `SELECT ` + materialColumns + `, c.code AS course_code FROM materials m JOIN courses c ON c.id = m.course_id ORDER BY m.download_count DESC, m.created_at ASC LIMIT $1`
	materials := make([]models.MaterialWithCourse, 0)
	if err := r.db.SelectContext(ctx, &materials, query, normaliseLimit(limit, 5)); err != nil {
		return nil, fmt.Errorf("list top materials: %w", err)
	}
	return materials, nil
}

// RecentUploads returns the latest materials with their course code.
func (r *MaterialRepository) RecentUploads(ctx context.Context, limit int) ([]models.MaterialWithCourse, error) {
	query := `SELECT ` + materialColumns + `, c.code AS course_code FROM materials m JOIN courses c ON c.id = m.course_id ORDER BY m.created_at DESC LIMIT $1`
	materials := make([]models.MaterialWithCourse, 0)
	if err := r.db.SelectContext(ctx, &materials, query, normaliseLimit(limit, 5)); err != nil {
		return nil, fmt.Errorf("list recent uploads: %w", err)
	}
	return materials, nil
}

// Count returns the total number of materials.
func (r *MaterialRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM materials`); err != nil {
		return 0, fmt.Errorf("count materials: %w", err)
	}
	return total, nil
}

func normaliseLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}
