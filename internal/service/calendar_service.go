package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/pkg/calendarfile"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type calendarRepository interface {
	CreateGradingPeriod(ctx context.Context, period *models.GradingPeriod) error
	GetGradingPeriod(ctx context.Context, id string) (*models.GradingPeriod, error)
	ListGradingPeriods(ctx context.Context, academicYear string) ([]models.GradingPeriod, error)
	CreatePeriodTimer(ctx context.Context, timer *models.PeriodTimer) error
	ListTimersBySection(ctx context.Context, sectionID string) ([]models.PeriodTimer, error)
}

type sectionReader interface {
	GetByID(ctx context.Context, id string) (*models.Section, error)
}

// CalendarService owns grading periods and the daily meeting windows of sections.
type CalendarService struct {
	repo      calendarRepository
	sections  sectionReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, sections sectionReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, sections: sections, cache: cache, validator: validate, logger: logger}
}

// CreateGradingPeriod stores a grading period that must not overlap the other
// periods of its academic year.
func (s *CalendarService) CreateGradingPeriod(ctx context.Context, req dto.CreateGradingPeriodRequest) (*models.GradingPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading period payload")
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	period := &models.GradingPeriod{
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Name:         strings.TrimSpace(req.Name),
		Sequence:     req.Sequence,
		StartDate:    start,
		EndDate:      end,
	}

	existing, err := s.repo.ListGradingPeriods(ctx, period.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading periods")
	}
	for _, other := range existing {
		if other.Sequence == period.Sequence {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("sequence %d already used by %s", period.Sequence, other.Name))
		}
		if other.Overlaps(*period) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("grading period overlaps %s", other.Name))
		}
	}

	if err := s.repo.CreateGradingPeriod(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grading period")
	}
	_ = s.cache.Invalidate(ctx, CacheKey("periods", "*"))
	s.logger.Info("grading period created", zap.String("grading_period_id", period.ID), zap.String("academic_year", period.AcademicYear))
	return period, nil
}

// ListGradingPeriods returns an academic year's periods in date order.
func (s *CalendarService) ListGradingPeriods(ctx context.Context, academicYear string) ([]models.GradingPeriod, error) {
	var periods []models.GradingPeriod
	_, err := s.cache.Remember(ctx, CacheKey("periods", academicYear), &periods, func() error {
		var loadErr error
		periods, loadErr = s.repo.ListGradingPeriods(ctx, academicYear)
		return loadErr
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grading periods")
	}
	return periods, nil
}

// GetGradingPeriod returns a grading period by id.
func (s *CalendarService) GetGradingPeriod(ctx context.Context, id string) (*models.GradingPeriod, error) {
	period, err := s.repo.GetGradingPeriod(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grading period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading period")
	}
	return period, nil
}

// CurrentGradingPeriod returns the period of the academic year that contains at.
func (s *CalendarService) CurrentGradingPeriod(ctx context.Context, academicYear string, at time.Time) (*models.GradingPeriod, error) {
	periods, err := s.ListGradingPeriods(ctx, academicYear)
	if err != nil {
		return nil, err
	}
	for i := range periods {
		if periods[i].Contains(at) {
			return &periods[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no grading period covers the given date")
}

// CreatePeriodTimer adds a meeting window to a section. Windows of one section
// must not overlap each other.
func (s *CalendarService) CreatePeriodTimer(ctx context.Context, req dto.CreatePeriodTimerRequest) (*models.PeriodTimer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period timer payload")
	}
	timer, err := buildPeriodTimer(req.SectionID, req.PeriodNumber, req.StartTime, req.EndTime, req.DaysOfWeek, req.AttendanceOpensBefore, req.AttendanceClosesAfter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.sections.GetByID(ctx, req.SectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	existing, err := s.repo.ListTimersBySection(ctx, req.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period timers")
	}
	for _, other := range existing {
		if other.PeriodNumber == timer.PeriodNumber {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("period %d already defined for section", timer.PeriodNumber))
		}
		if other.Overlaps(*timer) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("period %d overlaps period %d", timer.PeriodNumber, other.PeriodNumber))
		}
	}

	if err := s.repo.CreatePeriodTimer(ctx, timer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period timer")
	}
	_ = s.cache.Invalidate(ctx, CacheKey("timers", req.SectionID))
	return timer, nil
}

func buildPeriodTimer(sectionID string, period int, start, end string, days []string, opens, closes int) (*models.PeriodTimer, error) {
	startAt, err := models.ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	endAt, err := models.ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}
	mask, err := models.ParseDays(days)
	if err != nil {
		return nil, err
	}
	timer := &models.PeriodTimer{
		SectionID:             sectionID,
		PeriodNumber:          period,
		StartTime:             startAt,
		EndTime:               endAt,
		Days:                  mask,
		AttendanceOpensBefore: opens,
		AttendanceClosesAfter: closes,
	}
	if err := timer.Valid(); err != nil {
		return nil, err
	}
	return timer, nil
}

// TimersForSection returns the meeting windows of a section, cached in redis.
func (s *CalendarService) TimersForSection(ctx context.Context, sectionID string) ([]models.PeriodTimer, error) {
	var timers []models.PeriodTimer
	_, err := s.cache.Remember(ctx, CacheKey("timers", sectionID), &timers, func() error {
		var loadErr error
		timers, loadErr = s.repo.ListTimersBySection(ctx, sectionID)
		return loadErr
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period timers")
	}
	return timers, nil
}

// ScheduledSection resolves a section into its grading period and meeting windows.
func (s *CalendarService) ScheduledSection(ctx context.Context, sectionID string) (ScheduledSection, error) {
	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScheduledSection{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", sectionID))
		}
		return ScheduledSection{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	timers, err := s.TimersForSection(ctx, sectionID)
	if err != nil {
		return ScheduledSection{}, err
	}
	scheduled := ScheduledSection{SectionID: sectionID, Timers: timers}
	if section.GradingPeriodID != "" {
		period, err := s.repo.GetGradingPeriod(ctx, section.GradingPeriodID)
		switch {
		case err == nil:
			scheduled.GradingPeriod = period
		case errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("section references unknown grading period", zap.String("section_id", sectionID), zap.String("grading_period_id", section.GradingPeriodID))
		default:
			return ScheduledSection{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading period")
		}
	}
	return scheduled, nil
}

// IntervalsOverlap reports whether two meeting windows share a day and a minute.
func (s *CalendarService) IntervalsOverlap(a, b models.PeriodTimer) bool {
	return a.Overlaps(b)
}

// GradingPeriodsOverlap reports whether two grading periods share a day.
func (s *CalendarService) GradingPeriodsOverlap(a, b models.GradingPeriod) bool {
	return a.Overlaps(b)
}

// WithinAttendanceWindow reports whether attendance for the timer may be taken at the instant.
func (s *CalendarService) WithinAttendanceWindow(timer models.PeriodTimer, at time.Time) bool {
	return timer.WithinAttendanceWindow(at)
}

// ImportResult counts what a seed import created and skipped.
type ImportResult struct {
	GradingPeriods int
	PeriodTimers   int
	Skipped        int
}

// Import loads a calendar seed. Entries that already exist are skipped, so the
// same file can be imported on every start.
func (s *CalendarService) Import(ctx context.Context, seed *calendarfile.Seed) (ImportResult, error) {
	var result ImportResult
	if seed == nil {
		return result, nil
	}
	existing, err := s.repo.ListGradingPeriods(ctx, seed.AcademicYear)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading periods")
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[p.Name] = struct{}{}
	}
	entries := append([]calendarfile.GradingPeriodEntry(nil), seed.GradingPeriods...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	for i, entry := range entries {
		if _, ok := known[entry.Name]; ok {
			result.Skipped++
			continue
		}
		sequence := entry.Sequence
		if sequence == 0 {
			sequence = i + 1
		}
		if _, err := s.CreateGradingPeriod(ctx, dto.CreateGradingPeriodRequest{
			AcademicYear: seed.AcademicYear,
			Name:         entry.Name,
			Sequence:     sequence,
			StartDate:    strings.TrimSpace(entry.Start),
			EndDate:      strings.TrimSpace(entry.End),
		}); err != nil {
			return result, err
		}
		result.GradingPeriods++
	}

	for _, entry := range seed.PeriodTimers {
		_, err := s.CreatePeriodTimer(ctx, dto.CreatePeriodTimerRequest{
			SectionID:             entry.SectionID,
			PeriodNumber:          entry.Period,
			StartTime:             entry.Start,
			EndTime:               entry.End,
			DaysOfWeek:            entry.Days,
			AttendanceOpensBefore: entry.AttendanceOpensBefore,
			AttendanceClosesAfter: entry.AttendanceClosesAfter,
		})
		switch {
		case err == nil:
			result.PeriodTimers++
		case errors.Is(err, appErrors.ErrConflict), errors.Is(err, appErrors.ErrNotFound):
			s.logger.Warn("skipping seeded period timer", zap.String("section_id", entry.SectionID), zap.Int("period", entry.Period), zap.Error(err))
			result.Skipped++
		default:
			return result, err
		}
	}
	s.logger.Info("calendar seed imported",
		zap.String("academic_year", seed.AcademicYear),
		zap.Int("grading_periods", result.GradingPeriods),
		zap.Int("period_timers", result.PeriodTimers),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
