package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

const sectionColumns = `id, course_id, grading_period_id, name, capacity, enrolled_count, created_at, updated_at`

// SectionRepository persists course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// Create inserts a section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	const query = `INSERT INTO sections (id, course_id, grading_period_id, name, capacity, enrolled_count, created_at, updated_at)
	VALUES (:id, :course_id, :grading_period_id, :name, :capacity, :enrolled_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// GetByID fetches a section.
func (r *SectionRepository) GetByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE id = $1", sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// List returns sections matching the filter with the total count.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error) {
	var conditions []string
	var args []interface{}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.GradingPeriodID != "" {
		args = append(args, filter.GradingPeriodID)
		conditions = append(conditions, fmt.Sprintf("grading_period_id = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM sections%s ORDER BY course_id ASC, name ASC LIMIT %d OFFSET %d", sectionColumns, clause, size, offset)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sections"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// ListAll returns every section; used to rebuild seat bookkeeping at start-up.
func (r *SectionRepository) ListAll(ctx context.Context) ([]models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections ORDER BY id ASC", sectionColumns)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("list all sections: %w", err)
	}
	return sections, nil
}

// UpdateCapacity stores a new seat limit.
func (r *SectionRepository) UpdateCapacity(ctx context.Context, id string, capacity int, at time.Time) error {
	const query = `UPDATE sections SET capacity = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, "update section capacity", query, capacity, at, id)
}

// SetEnrolledCount mirrors the live seat count.
func (r *SectionRepository) SetEnrolledCount(ctx context.Context, id string, count int, at time.Time) error {
	const query = `UPDATE sections SET enrolled_count = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, "update section enrolled count", query, count, at, id)
}

func (r *SectionRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
