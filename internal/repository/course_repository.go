package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rcffuta/elib-api/internal/models"
	"github.com/rcffuta/elib-api/pkg/database"
)

const courseColumns = `c.id, c.code, c.title, c.department, c.level, COUNT(m.id) AS material_count, c.created_at, c.updated_at`

// CourseRepository provides database access for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// ListEligible returns courses matching the eligibility query ordered by level
// descending, ties in insertion order. An unsatisfiable query returns no rows
// without touching the database.
func (r *CourseRepository) ListEligible(ctx context.Context, q models.CourseQuery) ([]models.Course, error) {
	if q.MaxLevel <= 0 {
		return []models.Course{}, nil
	}

	var (
		match []string
		args  = []interface{}{q.MaxLevel}
	)
	if q.Department != "" {
		args = append(args, q.Department)
		match = append(match, fmt.Sprintf("c.department = $%d", len(args)))
	}
	for _, prefix := range q.Prefixes {
		if prefix == "" {
			continue
		}
		args = append(args, escapeLike(strings.ToUpper(prefix))+"%")
		match = append(match, fmt.Sprintf(`UPPER(c.code) LIKE $%d ESCAPE '\'`, len(args)))
	}
	if len(match) == 0 {
		return []models.Course{}, nil
	}

	where := fmt.Sprintf("c.level <= $1 AND (%s)", strings.Join(match, " OR "))
	if term := strings.TrimSpace(q.Search); term != "" {
		args = append(args, "%"+escapeLike(strings.ToUpper(term))+"%")
		where += fmt.Sprintf(` AND (UPPER(c.code) LIKE $%d ESCAPE '\' OR UPPER(c.title) LIKE $%d ESCAPE '\')`, len(args), len(args))
	}

	query := fmt.Sprintf(`SELECT %s FROM courses c LEFT JOIN materials m ON m.course_id = c.id WHERE %s GROUP BY c.id ORDER BY c.level DESC, c.created_at ASC, c.id ASC`,
		courseColumns, where)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	courses := make([]models.Course, 0)
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list eligible courses: %w", err)
	}
	return courses, nil
}

// FindByID returns a course with its material count.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c LEFT JOIN materials m ON m.course_id = c.id WHERE c.id = $1 GROUP BY c.id`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// ExistsByCode reports whether a course with the given code exists.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM courses WHERE code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("check course code: %w", err)
	}
	return exists, nil
}

// List returns courses for admins, newest first, optionally searching code and title.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := `FROM courses c WHERE 1=1`
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		baseQuery += fmt.Sprintf(` AND (c.code ILIKE $%d ESCAPE '\' OR c.title ILIKE $%d ESCAPE '\')`, len(args), len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT c.id, c.code, c.title, c.department, c.level, (SELECT COUNT(*) FROM materials m WHERE m.course_id = c.id) AS material_count, c.created_at, c.updated_at %s ORDER BY c.created_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	courses := make([]models.Course, 0)
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListOptions returns every course as a select option ordered by code.
func (r *CourseRepository) ListOptions(ctx context.Context) ([]models.CourseOption, error) {
	const query = `SELECT id, code, title FROM courses ORDER BY code ASC`
	options := make([]models.CourseOption, 0)
	if err := r.db.SelectContext(ctx, &options, query); err != nil {
		return nil, fmt.Errorf("list course options: %w", err)
	}
	return options, nil
}

// Count returns the total number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, title, department, level, created_at, updated_at) VALUES (:id, :code, :title, :department, :level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Delete removes a course and its materials in one transaction. Download events are kept.
// Returns sql.ErrNoRows when the course does not exist.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return database.Transact(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM materials WHERE course_id = $1`, id); err != nil {
			return fmt.Errorf("delete course materials: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
