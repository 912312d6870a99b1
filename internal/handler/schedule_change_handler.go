package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

type scheduleChangeService interface {
	Submit(ctx context.Context, req dto.SubmitScheduleChangeRequest, actor *models.JWTClaims) (*models.ScheduleChangeRequest, error)
	List(ctx context.Context, query dto.ScheduleChangeQuery, actor *models.JWTClaims) ([]models.ScheduleChangeRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ScheduleChangeRequest, error)
	Review(ctx context.Context, id string, req dto.ReviewScheduleChangeRequest, reviewer *models.JWTClaims) (*models.ScheduleChangeRequest, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ScheduleChangeRequest, error)
	SweepOverdue(ctx context.Context) (*dto.SweepResult, error)
}

// ScheduleChangeHandler exposes the add/drop/swap approval workflow.
type ScheduleChangeHandler struct {
	service scheduleChangeService
}

// NewScheduleChangeHandler constructs the handler.
func NewScheduleChangeHandler(service scheduleChangeService) *ScheduleChangeHandler {
	return &ScheduleChangeHandler{service: service}
}

// Submit godoc
// @Summary Submit a schedule change
// @Description Conflicting requests are denied at once; conflict-free low priority requests with a free seat are applied immediately.
// @Tags ScheduleChanges
// @Accept json
// @Produce json
// @Param payload body dto.SubmitScheduleChangeRequest true "Change payload"
// @Success 201 {object} response.Envelope
// @Router /schedule-changes [post]
func (h *ScheduleChangeHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitScheduleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schedule change payload"))
		return
	}
	if req.StudentID == "" && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}
	change, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, change)
}

// List godoc
// @Summary List schedule changes
// @Tags ScheduleChanges
// @Produce json
// @Param studentId query string false "Student ID"
// @Param status query string false "Comma separated statuses"
// @Param type query string false "ADD, DROP or SWAP"
// @Param overdue query bool false "Only overdue requests"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /schedule-changes [get]
func (h *ScheduleChangeHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.ScheduleChangeQuery{
		StudentID:   strings.TrimSpace(c.Query("studentId")),
		RequestType: models.ScheduleChangeType(strings.ToUpper(strings.TrimSpace(c.Query("type")))),
		Limit:       intQuery(c, "limit", 50),
		Offset:      intQuery(c, "offset", 0),
	}
	if overdue, err := strconv.ParseBool(c.DefaultQuery("overdue", "false")); err == nil {
		query.OverdueOnly = overdue
	}
	for _, status := range upperList(c.Query("status")) {
		query.Status = append(query.Status, models.ScheduleChangeStatus(status))
	}
	changes, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}

// Get godoc
// @Summary Get a schedule change
// @Tags ScheduleChanges
// @Produce json
// @Param id path string true "Schedule change ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-changes/{id} [get]
func (h *ScheduleChangeHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	change, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// Review godoc
// @Summary Approve or deny a schedule change
// @Tags ScheduleChanges
// @Accept json
// @Produce json
// @Param id path string true "Schedule change ID"
// @Param payload body dto.ReviewScheduleChangeRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule-changes/{id}/review [post]
func (h *ScheduleChangeHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewScheduleChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	change, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// Cancel godoc
// @Summary Cancel a pending schedule change
// @Tags ScheduleChanges
// @Produce json
// @Param id path string true "Schedule change ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-changes/{id}/cancel [post]
func (h *ScheduleChangeHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	change, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// Sweep godoc
// @Summary Flag overdue schedule changes now
// @Description Runs the SLA sweep the background monitor runs periodically.
// @Tags ScheduleChanges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule-changes/sweep [post]
func (h *ScheduleChangeHandler) Sweep(c *gin.Context) {
	result, err := h.service.SweepOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
