package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

const studentSectionColumns = `id, student_id, section_id, course_id, holder_id, source, active, joined_at, dropped_at, drop_reason`

// StudentSectionRepository persists the seats students hold.
type StudentSectionRepository struct {
	db *sqlx.DB
}

// NewStudentSectionRepository constructs the repository.
func NewStudentSectionRepository(db *sqlx.DB) *StudentSectionRepository {
	return &StudentSectionRepository{db: db}
}

// Create inserts an active membership.
func (r *StudentSectionRepository) Create(ctx context.Context, membership *models.StudentSection) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now().UTC()
	}
	membership.Active = true
	const query = `INSERT INTO student_sections (id, student_id, section_id, course_id, holder_id, source, active, joined_at, dropped_at, drop_reason)
	VALUES (:id, :student_id, :section_id, :course_id, :holder_id, :source, :active, :joined_at, :dropped_at, :drop_reason)`
	if _, err := r.db.NamedExecContext(ctx, query, membership); err != nil {
		return fmt.Errorf("create student section: %w", err)
	}
	return nil
}

// FindActive returns the active membership of a student in a section.
func (r *StudentSectionRepository) FindActive(ctx context.Context, studentID, sectionID string) (*models.StudentSection, error) {
	query := fmt.Sprintf("SELECT %s FROM student_sections WHERE student_id = $1 AND section_id = $2 AND active = TRUE", studentSectionColumns)
	var membership models.StudentSection
	if err := r.db.GetContext(ctx, &membership, query, studentID, sectionID); err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListActiveByStudent returns the sections a student currently sits in.
func (r *StudentSectionRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.StudentSection, error) {
	query := fmt.Sprintf("SELECT %s FROM student_sections WHERE student_id = $1 AND active = TRUE ORDER BY joined_at ASC", studentSectionColumns)
	var memberships []models.StudentSection
	if err := r.db.SelectContext(ctx, &memberships, query, studentID); err != nil {
		return nil, fmt.Errorf("list student sections by student: %w", err)
	}
	return memberships, nil
}

// ListActiveBySection returns the roster of a section.
func (r *StudentSectionRepository) ListActiveBySection(ctx context.Context, sectionID string) ([]models.StudentSection, error) {
	query := fmt.Sprintf("SELECT %s FROM student_sections WHERE section_id = $1 AND active = TRUE ORDER BY joined_at ASC", studentSectionColumns)
	var memberships []models.StudentSection
	if err := r.db.SelectContext(ctx, &memberships, query, sectionID); err != nil {
		return nil, fmt.Errorf("list student sections by section: %w", err)
	}
	return memberships, nil
}

// ListActive returns every active membership.
func (r *StudentSectionRepository) ListActive(ctx context.Context) ([]models.StudentSection, error) {
	query := fmt.Sprintf("SELECT %s FROM student_sections WHERE active = TRUE ORDER BY section_id ASC, joined_at ASC", studentSectionColumns)
	var memberships []models.StudentSection
	if err := r.db.SelectContext(ctx, &memberships, query); err != nil {
		return nil, fmt.Errorf("list active student sections: %w", err)
	}
	return memberships, nil
}

// Deactivate closes a membership.
func (r *StudentSectionRepository) Deactivate(ctx context.Context, id string, reason string, at time.Time) error {
	const query = `UPDATE student_sections SET active = FALSE, dropped_at = $1, drop_reason = $2 WHERE id = $3 AND active = TRUE`
	result, err := r.db.ExecContext(ctx, query, at, reason, id)
	if err != nil {
		return fmt.Errorf("deactivate student section: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check student section update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
