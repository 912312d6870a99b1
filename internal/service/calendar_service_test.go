package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/pkg/calendarfile"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type calendarRepoStub struct {
	mu         sync.Mutex
	periods    []models.GradingPeriod
	timers     []models.PeriodTimer
	timerLoads int
}

func (c *calendarRepoStub) CreateGradingPeriod(ctx context.Context, period *models.GradingPeriod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	period.ID = fmt.Sprintf("gp-%d", len(c.periods)+1)
	c.periods = append(c.periods, *period)
	return nil
}

func (c *calendarRepoStub) GetGradingPeriod(ctx context.Context, id string) (*models.GradingPeriod, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.periods {
		if p.ID == id {
			period := p
			return &period, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *calendarRepoStub) ListGradingPeriods(ctx context.Context, academicYear string) ([]models.GradingPeriod, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.GradingPeriod
	for _, p := range c.periods {
		if p.AcademicYear == academicYear {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *calendarRepoStub) CreatePeriodTimer(ctx context.Context, timer *models.PeriodTimer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer.ID = fmt.Sprintf("pt-%d", len(c.timers)+1)
	c.timers = append(c.timers, *timer)
	return nil
}

func (c *calendarRepoStub) ListTimersBySection(ctx context.Context, sectionID string) ([]models.PeriodTimer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timerLoads++
	var out []models.PeriodTimer
	for _, t := range c.timers {
		if t.SectionID == sectionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func newCalendarFixture(t *testing.T, cache *CacheService) (*CalendarService, *calendarRepoStub) {
	t.Helper()
	repo := &calendarRepoStub{}
	sections := newSectionStoreStub(
		models.Section{ID: "sec-a", CourseID: "course-1", GradingPeriodID: "gp-1", Capacity: 10},
		models.Section{ID: "sec-b", CourseID: "course-2", Capacity: 10},
	)
	return NewCalendarService(repo, sections, cache, nil, nil), repo
}

func TestCalendarServiceGradingPeriods(t *testing.T) {
	svc, _ := newCalendarFixture(t, nil)
	ctx := context.Background()

	first, err := svc.CreateGradingPeriod(ctx, dto.CreateGradingPeriodRequest{AcademicYear: "2024/2025", Name: "Semester 1", Sequence: 1, StartDate: "2024-07-15", EndDate: "2024-12-20"})
	require.NoError(t, err)
	assert.Equal(t, "gp-1", first.ID)

	_, err = svc.CreateGradingPeriod(ctx, dto.CreateGradingPeriodRequest{AcademicYear: "2024/2025", Name: "Overlap", Sequence: 2, StartDate: "2024-12-20", EndDate: "2025-06-01"})
	require.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.CreateGradingPeriod(ctx, dto.CreateGradingPeriodRequest{AcademicYear: "2024/2025", Name: "Backwards", Sequence: 2, StartDate: "2025-06-01", EndDate: "2025-01-06"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateGradingPeriod(ctx, dto.CreateGradingPeriodRequest{AcademicYear: "2024/2025", Name: "Semester 2", Sequence: 2, StartDate: "2025-01-06", EndDate: "2025-06-13"})
	require.NoError(t, err)

	current, err := svc.CurrentGradingPeriod(ctx, "2024/2025", time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Semester 2", current.Name)

	_, err = svc.CurrentGradingPeriod(ctx, "2024/2025", time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.GetGradingPeriod(ctx, "gp-9")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCalendarServicePeriodTimers(t *testing.T) {
	svc, _ := newCalendarFixture(t, nil)
	ctx := context.Background()

	timer, err := svc.CreatePeriodTimer(ctx, dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 1, StartTime: "08:00", EndTime: "09:30", DaysOfWeek: []string{"MON", "WED"}, AttendanceOpensBefore: 10, AttendanceClosesAfter: 15})
	require.NoError(t, err)
	assert.Equal(t, []string{"MON", "WED"}, timer.Days.Days())

	cases := []struct {
		name string
		req  dto.CreatePeriodTimerRequest
		want error
	}{
		{"same period", dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 1, StartTime: "13:00", EndTime: "14:00", DaysOfWeek: []string{"FRI"}}, appErrors.ErrConflict},
		{"overlapping window", dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 2, StartTime: "09:00", EndTime: "10:00", DaysOfWeek: []string{"WED"}}, appErrors.ErrConflict},
		{"end before start", dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 3, StartTime: "11:00", EndTime: "10:00", DaysOfWeek: []string{"TUE"}}, appErrors.ErrValidation},
		{"unknown day", dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 3, StartTime: "10:00", EndTime: "11:00", DaysOfWeek: []string{"SOMEDAY"}}, appErrors.ErrValidation},
		{"unknown section", dto.CreatePeriodTimerRequest{SectionID: "sec-x", PeriodNumber: 1, StartTime: "10:00", EndTime: "11:00", DaysOfWeek: []string{"TUE"}}, appErrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreatePeriodTimer(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err = svc.CreatePeriodTimer(ctx, dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 2, StartTime: "09:30", EndTime: "10:30", DaysOfWeek: []string{"MON"}})
	require.NoError(t, err, "back-to-back windows do not overlap")

	timers, err := svc.TimersForSection(ctx, "sec-a")
	require.NoError(t, err)
	assert.Len(t, timers, 2)

	at := time.Date(2024, 9, 2, 7, 55, 0, 0, time.UTC) // Monday
	assert.True(t, svc.WithinAttendanceWindow(*timer, at))
	assert.False(t, svc.WithinAttendanceWindow(*timer, at.Add(-10*time.Minute)))
}

func TestCalendarServiceScheduledSection(t *testing.T) {
	svc, repo := newCalendarFixture(t, nil)
	ctx := context.Background()
	_, err := svc.CreateGradingPeriod(ctx, dto.CreateGradingPeriodRequest{AcademicYear: "2024/2025", Name: "Semester 1", Sequence: 1, StartDate: "2024-07-15", EndDate: "2024-12-20"})
	require.NoError(t, err)
	_, err = svc.CreatePeriodTimer(ctx, dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 1, StartTime: "08:00", EndTime: "09:00", DaysOfWeek: []string{"MON"}})
	require.NoError(t, err)

	scheduled, err := svc.ScheduledSection(ctx, "sec-a")
	require.NoError(t, err)
	require.NotNil(t, scheduled.GradingPeriod)
	assert.Equal(t, "Semester 1", scheduled.GradingPeriod.Name)
	assert.Len(t, scheduled.Timers, 1)

	unscheduled, err := svc.ScheduledSection(ctx, "sec-b")
	require.NoError(t, err)
	assert.Nil(t, unscheduled.GradingPeriod)
	assert.Empty(t, unscheduled.Timers)

	_, err = svc.ScheduledSection(ctx, "sec-x")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, 3, repo.timerLoads)
}

func TestCalendarServiceTimersServedFromCache(t *testing.T) {
	cache := NewCacheService(newMemoryCacheRepo(), NewMetricsService(), time.Minute, nil, true)
	svc, repo := newCalendarFixture(t, cache)
	ctx := context.Background()
	_, err := svc.CreatePeriodTimer(ctx, dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 1, StartTime: "08:00", EndTime: "09:00", DaysOfWeek: []string{"MON"}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		timers, err := svc.TimersForSection(ctx, "sec-a")
		require.NoError(t, err)
		require.Len(t, timers, 1)
		assert.Equal(t, "08:00", timers[0].StartTime.String())
	}
	// one load while validating the create, one on the first read
	assert.Equal(t, 2, repo.timerLoads)

	_, err = svc.CreatePeriodTimer(ctx, dto.CreatePeriodTimerRequest{SectionID: "sec-a", PeriodNumber: 2, StartTime: "10:00", EndTime: "11:00", DaysOfWeek: []string{"MON"}})
	require.NoError(t, err)
	timers, err := svc.TimersForSection(ctx, "sec-a")
	require.NoError(t, err)
	assert.Len(t, timers, 2)
}

func TestCalendarServiceImportIsRepeatable(t *testing.T) {
	svc, repo := newCalendarFixture(t, nil)
	seed := &calendarfile.Seed{
		AcademicYear: "2024/2025",
		GradingPeriods: []calendarfile.GradingPeriodEntry{
			{Name: "Semester 2", Sequence: 2, Start: "2025-01-06", End: "2025-06-13"},
			{Name: "Semester 1", Sequence: 1, Start: "2024-07-15", End: "2024-12-20"},
		},
		PeriodTimers: []calendarfile.PeriodTimerEntry{
			{SectionID: "sec-a", Period: 1, Start: "08:00", End: "09:00", Days: []string{"MON", "WED"}},
			{SectionID: "sec-x", Period: 1, Start: "08:00", End: "09:00", Days: []string{"MON"}},
		},
	}

	result, err := svc.Import(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{GradingPeriods: 2, PeriodTimers: 1, Skipped: 1}, result)
	assert.Equal(t, "Semester 1", repo.periods[0].Name)

	again, err := svc.Import(context.Background(), seed)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 4}, again)
	assert.Len(t, repo.timers, 1)

	empty, err := svc.Import(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, empty)
}
