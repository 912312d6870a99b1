package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/pkg/database"
)

const enrollmentRequestColumns = `id, student_id, course_id, preferences, priority_score, status, section_id,
       preference_rank, waitlist_position, status_reason, created_at, processed_at`

// EnrollmentRequestRepository persists enrollment requests.
type EnrollmentRequestRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRequestRepository constructs the repository.
func NewEnrollmentRequestRepository(db *sqlx.DB) *EnrollmentRequestRepository {
	return &EnrollmentRequestRepository{db: db}
}

// Create inserts a new request row.
func (r *EnrollmentRequestRepository) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.EnrollmentPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_requests
	(id, student_id, course_id, preferences, priority_score, status, section_id, preference_rank, waitlist_position, status_reason, created_at, processed_at)
	VALUES (:id, :student_id, :course_id, :preferences, :priority_score, :status, :section_id, :preference_rank, :waitlist_position, :status_reason, :created_at, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *EnrollmentRequestRepository) GetByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollment_requests WHERE id = $1", enrollmentRequestColumns)
	var req models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByIDs fetches the requests with the given identifiers, oldest first.
func (r *EnrollmentRequestRepository) GetByIDs(ctx context.Context, ids []string) ([]models.EnrollmentRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM enrollment_requests WHERE id = ANY($1) ORDER BY created_at ASC, id ASC", enrollmentRequestColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get enrollment requests: %w", err)
	}
	return requests, nil
}

// List returns requests matching the filter, newest first, with the total count.
func (r *EnrollmentRequestRepository) List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
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
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM enrollment_requests%s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d",
		enrollmentRequestColumns, clause, size, offset)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollment_requests"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment requests: %w", err)
	}
	return requests, total, nil
}

// ListPendingByCourse returns the pending requests of a course, oldest first.
func (r *EnrollmentRequestRepository) ListPendingByCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollment_requests WHERE course_id = $1 AND status = $2 ORDER BY created_at ASC, id ASC", enrollmentRequestColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, courseID, models.EnrollmentPending); err != nil {
		return nil, fmt.Errorf("list pending enrollment requests: %w", err)
	}
	return requests, nil
}

// ListWaitlisted returns every waitlisted request grouped by section in queue order.
func (r *EnrollmentRequestRepository) ListWaitlisted(ctx context.Context) ([]models.EnrollmentRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollment_requests WHERE status = $1 ORDER BY section_id ASC, waitlist_position ASC", enrollmentRequestColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, models.EnrollmentWaitlisted); err != nil {
		return nil, fmt.Errorf("list waitlisted enrollment requests: %w", err)
	}
	return requests, nil
}

// UpdateOutcome writes a transition, guarded by the status the caller read.
// sql.ErrNoRows means the row moved on concurrently or does not exist.
func (r *EnrollmentRequestRepository) UpdateOutcome(ctx context.Context, req *models.EnrollmentRequest, from models.EnrollmentRequestStatus) error {
	const query = `UPDATE enrollment_requests
	SET status = :status, section_id = :section_id, preference_rank = :preference_rank,
	    waitlist_position = :waitlist_position, status_reason = :status_reason, processed_at = :processed_at
	WHERE id = :id AND status = :from_status`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                req.ID,
		"status":            req.Status,
		"section_id":        req.SectionID,
		"preference_rank":   req.PreferenceRank,
		"waitlist_position": req.WaitlistPosition,
		"status_reason":     req.StatusReason,
		"processed_at":      req.ProcessedAt,
		"from_status":       from,
	})
	if err != nil {
		return fmt.Errorf("update enrollment request outcome: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check enrollment request update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateWaitlistPositions rewrites the positions of waitlisted requests in one transaction.
func (r *EnrollmentRequestRepository) UpdateWaitlistPositions(ctx context.Context, positions map[string]int) error {
	if len(positions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	const query = `UPDATE enrollment_requests SET waitlist_position = $1 WHERE id = $2 AND status = $3`
	return database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, query, positions[id], id, models.EnrollmentWaitlisted); err != nil {
				return fmt.Errorf("update waitlist position: %w", err)
			}
		}
		return nil
	})
}
