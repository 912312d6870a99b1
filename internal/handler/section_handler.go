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

type sectionService interface {
	Create(ctx context.Context, req dto.CreateSectionRequest) (*models.Section, error)
	Get(ctx context.Context, id string) (*models.Section, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, *models.Pagination, error)
	Roster(ctx context.Context, id string) (*dto.SectionRoster, error)
	UpdateCapacity(ctx context.Context, id string, req dto.UpdateCapacityRequest, actor *models.JWTClaims) (*dto.CapacityUpdateResult, error)
}

type seatDropper interface {
	DropSeat(ctx context.Context, sectionID string, req dto.DropSeatRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error)
}

// SectionHandler exposes section and seat endpoints.
type SectionHandler struct {
	sections sectionService
	seats    seatDropper
}

// NewSectionHandler constructs the handler.
func NewSectionHandler(sections sectionService, seats seatDropper) *SectionHandler {
	return &SectionHandler{sections: sections, seats: seats}
}

// Create godoc
// @Summary Open a section
// @Tags Sections
// @Accept json
// @Produce json
// @Param payload body dto.CreateSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *SectionHandler) Create(c *gin.Context) {
	var req dto.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid section payload"))
		return
	}
	section, err := h.sections.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// List godoc
// @Summary List sections
// @Tags Sections
// @Produce json
// @Param courseId query string false "Course ID"
// @Param gradingPeriodId query string false "Grading period ID"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *SectionHandler) List(c *gin.Context) {
	filter := models.SectionFilter{
		CourseID:        strings.TrimSpace(c.Query("courseId")),
		GradingPeriodID: strings.TrimSpace(c.Query("gradingPeriodId")),
		Page:            intQuery(c, "page", 1),
		PageSize:        intQuery(c, "pageSize", 20),
	}
	sections, pagination, err := h.sections.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, pagination)
}

// Get godoc
// @Summary Get a section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *SectionHandler) Get(c *gin.Context) {
	section, err := h.sections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// Roster godoc
// @Summary Seated students and waitlist of a section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/roster [get]
func (h *SectionHandler) Roster(c *gin.Context) {
	roster, err := h.sections.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// UpdateCapacity godoc
// @Summary Change a section's seat limit
// @Description Raising the limit promotes from the waitlist; going below the seated count is rejected.
// @Tags Sections
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body dto.UpdateCapacityRequest true "New capacity"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sections/{id}/capacity [put]
func (h *SectionHandler) UpdateCapacity(c *gin.Context) {
	var req dto.UpdateCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid capacity payload"))
		return
	}
	result, err := h.sections.UpdateCapacity(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DropSeat godoc
// @Summary Give up a seat
// @Tags Sections
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body dto.DropSeatRequest true "Student and reason"
// @Success 200 {object} response.Envelope "Promoted request, if any"
// @Router /sections/{id}/drop [post]
func (h *SectionHandler) DropSeat(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DropSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid drop payload"))
		return
	}
	if req.StudentID == "" && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}
	promoted, err := h.seats.DropSeat(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"promoted": promoted}, nil)
}
