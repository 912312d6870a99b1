package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

type calendarService interface {
	CreateGradingPeriod(ctx context.Context, req dto.CreateGradingPeriodRequest) (*models.GradingPeriod, error)
	ListGradingPeriods(ctx context.Context, academicYear string) ([]models.GradingPeriod, error)
	CurrentGradingPeriod(ctx context.Context, academicYear string, at time.Time) (*models.GradingPeriod, error)
	CreatePeriodTimer(ctx context.Context, req dto.CreatePeriodTimerRequest) (*models.PeriodTimer, error)
	TimersForSection(ctx context.Context, sectionID string) ([]models.PeriodTimer, error)
}

type conflictChecker interface {
	CheckConflicts(ctx context.Context, req dto.ConflictCheckRequest, actor *models.JWTClaims) (*dto.ConflictCheckResponse, error)
}

// CalendarHandler exposes grading periods, meeting windows and conflict checks.
type CalendarHandler struct {
	calendar  calendarService
	conflicts conflictChecker
	now       func() time.Time
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(calendar calendarService, conflicts conflictChecker) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, conflicts: conflicts, now: time.Now}
}

// CreateGradingPeriod godoc
// @Summary Create a grading period
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.CreateGradingPeriodRequest true "Grading period"
// @Success 201 {object} response.Envelope
// @Router /calendar/grading-periods [post]
func (h *CalendarHandler) CreateGradingPeriod(c *gin.Context) {
	var req dto.CreateGradingPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid grading period payload"))
		return
	}
	period, err := h.calendar.CreateGradingPeriod(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// ListGradingPeriods godoc
// @Summary List grading periods of an academic year
// @Tags Calendar
// @Produce json
// @Param academicYear query string true "Academic year, e.g. 2024/2025"
// @Success 200 {object} response.Envelope
// @Router /calendar/grading-periods [get]
func (h *CalendarHandler) ListGradingPeriods(c *gin.Context) {
	year := strings.TrimSpace(c.Query("academicYear"))
	if year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}
	periods, err := h.calendar.ListGradingPeriods(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	if periods == nil {
		periods = []models.GradingPeriod{}
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// CurrentGradingPeriod godoc
// @Summary Grading period covering a date
// @Tags Calendar
// @Produce json
// @Param academicYear query string true "Academic year"
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} response.Envelope
// @Router /calendar/grading-periods/current [get]
func (h *CalendarHandler) CurrentGradingPeriod(c *gin.Context) {
	year := strings.TrimSpace(c.Query("academicYear"))
	if year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYear is required"))
		return
	}
	at := h.now().UTC()
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		at = parsed
	}
	period, err := h.calendar.CurrentGradingPeriod(c.Request.Context(), year, at)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// CreatePeriodTimer godoc
// @Summary Add a meeting window to a section
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.CreatePeriodTimerRequest true "Meeting window"
// @Success 201 {object} response.Envelope
// @Router /calendar/period-timers [post]
func (h *CalendarHandler) CreatePeriodTimer(c *gin.Context) {
	var req dto.CreatePeriodTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid period timer payload"))
		return
	}
	timer, err := h.calendar.CreatePeriodTimer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, timer)
}

// SectionTimers godoc
// @Summary Meeting windows of a section
// @Tags Calendar
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/timers [get]
func (h *CalendarHandler) SectionTimers(c *gin.Context) {
	timers, err := h.calendar.TimersForSection(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if timers == nil {
		timers = []models.PeriodTimer{}
	}
	response.JSON(c, http.StatusOK, timers, nil)
}

// CheckConflicts godoc
// @Summary Check a section against a student's schedule
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.ConflictCheckRequest true "Student and candidate section"
// @Success 200 {object} response.Envelope
// @Router /calendar/conflicts [post]
func (h *CalendarHandler) CheckConflicts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid conflict check payload"))
		return
	}
	if req.StudentID == "" && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}
	result, err := h.conflicts.CheckConflicts(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
