package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

type enrollmentService interface {
	Submit(ctx context.Context, req dto.SubmitEnrollmentRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error)
	List(ctx context.Context, query dto.EnrollmentQuery, actor *models.JWTClaims) ([]models.EnrollmentRequest, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentRequest, error)
	Withdraw(ctx context.Context, id string, req dto.WithdrawEnrollmentRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error)
	RunAllocation(ctx context.Context, req dto.AllocateEnrollmentRequest) (*dto.AllocationResult, error)
}

// EnrollmentHandler exposes enrollment request endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Submit godoc
// @Summary Request a seat in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.SubmitEnrollmentRequest true "Ranked section preferences"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment payload"))
		return
	}
	if req.StudentID == "" && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}
	request, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List enrollment requests
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Student ID"
// @Param courseId query string false "Course ID"
// @Param sectionId query string false "Section ID"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.EnrollmentQuery{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		CourseID:  strings.TrimSpace(c.Query("courseId")),
		SectionID: strings.TrimSpace(c.Query("sectionId")),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "pageSize", 20),
	}
	for _, status := range upperList(c.Query("status")) {
		query.Status = append(query.Status, models.EnrollmentRequestStatus(status))
	}
	requests, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get an enrollment request
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment request ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Withdraw godoc
// @Summary Withdraw an enrollment request
// @Description Leaves the waitlist or gives up the seat; the next waitlisted student is promoted.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment request ID"
// @Param payload body dto.WithdrawEnrollmentRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.WithdrawEnrollmentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid withdraw payload"))
			return
		}
	}
	request, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Allocate godoc
// @Summary Run seat allocation
// @Description Allocates pending requests of a course or an explicit list. With async the batch is queued and 202 is returned.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.AllocateEnrollmentRequest true "Allocation scope"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /enrollments/allocate [post]
func (h *EnrollmentHandler) Allocate(c *gin.Context) {
	var req dto.AllocateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid allocation payload"))
		return
	}
	result, err := h.service.RunAllocation(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.JobID != "" {
		response.Accepted(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
