package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

const scheduleChangeColumns = `id, student_id, request_type, current_course_id, current_section_id, requested_course_id,
       requested_section_id, status, priority_level, reason, reviewed_by_id, reviewed_at, review_notes, denial_reason,
       grading_period_id, academic_year, can_auto_approve, due_at, is_overdue, escalated_at, escalated_to,
       completed_at, created_at, updated_at`

// ScheduleChangeRepository persists schedule change requests.
type ScheduleChangeRepository struct {
	db *sqlx.DB
}

// NewScheduleChangeRepository constructs the repository.
func NewScheduleChangeRepository(db *sqlx.DB) *ScheduleChangeRepository {
	return &ScheduleChangeRepository{db: db}
}

// Create inserts a new request.
func (r *ScheduleChangeRepository) Create(ctx context.Context, change *models.ScheduleChangeRequest) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.Status == "" {
		change.Status = models.ScheduleChangePending
	}
	now := time.Now().UTC()
	if change.CreatedAt.IsZero() {
		change.CreatedAt = now
	}
	if change.UpdatedAt.IsZero() {
		change.UpdatedAt = change.CreatedAt
	}
	const query = `INSERT INTO schedule_change_requests
	(id, student_id, request_type, current_course_id, current_section_id, requested_course_id, requested_section_id,
	 status, priority_level, reason, reviewed_by_id, reviewed_at, review_notes, denial_reason, grading_period_id,
	 academic_year, can_auto_approve, due_at, is_overdue, escalated_at, escalated_to, completed_at, created_at, updated_at)
	VALUES (:id, :student_id, :request_type, :current_course_id, :current_section_id, :requested_course_id, :requested_section_id,
	 :status, :priority_level, :reason, :reviewed_by_id, :reviewed_at, :review_notes, :denial_reason, :grading_period_id,
	 :academic_year, :can_auto_approve, :due_at, :is_overdue, :escalated_at, :escalated_to, :completed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, change); err != nil {
		return fmt.Errorf("create schedule change: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *ScheduleChangeRepository) GetByID(ctx context.Context, id string) (*models.ScheduleChangeRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_change_requests WHERE id = $1", scheduleChangeColumns)
	var change models.ScheduleChangeRequest
	if err := r.db.GetContext(ctx, &change, query, id); err != nil {
		return nil, err
	}
	return &change, nil
}

// List returns requests matching the filter, most urgent deadline first.
func (r *ScheduleChangeRepository) List(ctx context.Context, filter models.ScheduleChangeFilter) ([]models.ScheduleChangeRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM schedule_change_requests", scheduleChangeColumns))

	conditions := make([]string, 0, 4)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.RequestType != "" {
		args = append(args, filter.RequestType)
		conditions = append(conditions, fmt.Sprintf("request_type = $%d", len(args)))
	}
	if filter.OverdueOnly {
		conditions = append(conditions, "is_overdue = TRUE")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY due_at ASC, created_at ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var changes []models.ScheduleChangeRequest
	if err := r.db.SelectContext(ctx, &changes, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list schedule changes: %w", err)
	}
	return changes, nil
}

// UpdateStatus persists a transition, guarded by the status the caller read.
func (r *ScheduleChangeRepository) UpdateStatus(ctx context.Context, change *models.ScheduleChangeRequest, from models.ScheduleChangeStatus) error {
	const query = `UPDATE schedule_change_requests
	SET status = :status, reviewed_by_id = :reviewed_by_id, reviewed_at = :reviewed_at, review_notes = :review_notes,
	    denial_reason = :denial_reason, completed_at = :completed_at, updated_at = :updated_at
	WHERE id = :id AND status = :from_status`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             change.ID,
		"status":         change.Status,
		"reviewed_by_id": change.ReviewedByID,
		"reviewed_at":    change.ReviewedAt,
		"review_notes":   change.ReviewNotes,
		"denial_reason":  change.DenialReason,
		"completed_at":   change.CompletedAt,
		"updated_at":     change.UpdatedAt,
		"from_status":    from,
	})
	if err != nil {
		return fmt.Errorf("update schedule change status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check schedule change update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListOverdueCandidates returns pending requests past their deadline that are not flagged yet.
func (r *ScheduleChangeRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]models.ScheduleChangeRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_change_requests
	WHERE status = $1 AND is_overdue = FALSE AND due_at <= $2 ORDER BY due_at ASC`, scheduleChangeColumns)
	var changes []models.ScheduleChangeRequest
	if err := r.db.SelectContext(ctx, &changes, query, models.ScheduleChangePending, now); err != nil {
		return nil, fmt.Errorf("list overdue schedule changes: %w", err)
	}
	return changes, nil
}

// MarkOverdue sets the overdue flag. It reports false when another sweep already did.
func (r *ScheduleChangeRepository) MarkOverdue(ctx context.Context, change *models.ScheduleChangeRequest) (bool, error) {
	const query = `UPDATE schedule_change_requests
	SET is_overdue = TRUE, escalated_at = :escalated_at, escalated_to = :escalated_to, updated_at = :updated_at
	WHERE id = :id AND status = :pending AND is_overdue = FALSE`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           change.ID,
		"escalated_at": change.EscalatedAt,
		"escalated_to": change.EscalatedTo,
		"updated_at":   change.UpdatedAt,
		"pending":      models.ScheduleChangePending,
	})
	if err != nil {
		return false, fmt.Errorf("mark schedule change overdue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check overdue update rows: %w", err)
	}
	return rows == 1, nil
}
