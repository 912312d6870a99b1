package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

const (
	gradingPeriodColumns = `id, academic_year, name, sequence, start_date, end_date, created_at`
	periodTimerColumns   = `id, section_id, period_number, start_minute, end_minute, days_mask,
       attendance_opens_before, attendance_closes_after, created_at`
)

// CalendarRepository persists grading periods and section period timers.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// CreateGradingPeriod inserts a grading period.
func (r *CalendarRepository) CreateGradingPeriod(ctx context.Context, period *models.GradingPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grading_periods (id, academic_year, name, sequence, start_date, end_date, created_at)
	VALUES (:id, :academic_year, :name, :sequence, :start_date, :end_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create grading period: %w", err)
	}
	return nil
}

// GetGradingPeriod fetches a grading period by id.
func (r *CalendarRepository) GetGradingPeriod(ctx context.Context, id string) (*models.GradingPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM grading_periods WHERE id = $1", gradingPeriodColumns)
	var period models.GradingPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListGradingPeriods returns the periods of an academic year in sequence order.
// An empty year lists every period.
func (r *CalendarRepository) ListGradingPeriods(ctx context.Context, academicYear string) ([]models.GradingPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM grading_periods", gradingPeriodColumns)
	var args []interface{}
	if academicYear != "" {
		query += " WHERE academic_year = $1"
		args = append(args, academicYear)
	}
	query += " ORDER BY start_date ASC, sequence ASC"
	var periods []models.GradingPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, fmt.Errorf("list grading periods: %w", err)
	}
	return periods, nil
}

// CreatePeriodTimer inserts a period timer.
func (r *CalendarRepository) CreatePeriodTimer(ctx context.Context, timer *models.PeriodTimer) error {
	if timer.ID == "" {
		timer.ID = uuid.NewString()
	}
	if timer.CreatedAt.IsZero() {
		timer.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO period_timers (id, section_id, period_number, start_minute, end_minute, days_mask, attendance_opens_before, attendance_closes_after, created_at)
	VALUES (:id, :section_id, :period_number, :start_minute, :end_minute, :days_mask, :attendance_opens_before, :attendance_closes_after, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timer); err != nil {
		return fmt.Errorf("create period timer: %w", err)
	}
	return nil
}

// ListTimersBySection returns the meeting windows of a section.
func (r *CalendarRepository) ListTimersBySection(ctx context.Context, sectionID string) ([]models.PeriodTimer, error) {
	query := fmt.Sprintf("SELECT %s FROM period_timers WHERE section_id = $1 ORDER BY period_number ASC", periodTimerColumns)
	var timers []models.PeriodTimer
	if err := r.db.SelectContext(ctx, &timers, query, sectionID); err != nil {
		return nil, fmt.Errorf("list period timers: %w", err)
	}
	return timers, nil
}
