package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type sectionRepository interface {
	Create(ctx context.Context, section *models.Section) error
	GetByID(ctx context.Context, id string) (*models.Section, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error)
	UpdateCapacity(ctx context.Context, id string, capacity int, at time.Time) error
}

type rosterReader interface {
	ListActiveBySection(ctx context.Context, sectionID string) ([]models.StudentSection, error)
}

type gradingPeriodReader interface {
	GetGradingPeriod(ctx context.Context, id string) (*models.GradingPeriod, error)
}

type waitlistPromoter interface {
	HandlePromotion(ctx context.Context, sectionID, requestID string) (*models.EnrollmentRequest, error)
}

// SectionService manages sections and their seat limits.
type SectionService struct {
	repo      sectionRepository
	roster    rosterReader
	periods   gradingPeriodReader
	tracker   *SectionCapacityTracker
	promoter  waitlistPromoter
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(repo sectionRepository, roster rosterReader, periods gradingPeriodReader, tracker *SectionCapacityTracker, promoter waitlistPromoter, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{
		repo:      repo,
		roster:    roster,
		periods:   periods,
		tracker:   tracker,
		promoter:  promoter,
		audit:     newAuditTrail(audit, "section-service", logger),
		validator: validate,
		logger:    logger,
	}
}

// Create opens a section and registers it with the capacity tracker.
func (s *SectionService) Create(ctx context.Context, req dto.CreateSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.periods.GetGradingPeriod(ctx, req.GradingPeriodID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "grading period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading period")
	}
	section := &models.Section{
		CourseID:        strings.TrimSpace(req.CourseID),
		GradingPeriodID: req.GradingPeriodID,
		Name:            strings.TrimSpace(req.Name),
		Capacity:        req.Capacity,
	}
	if err := s.repo.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	if err := s.tracker.Register(section.ID, section.Capacity); err != nil {
		return nil, err
	}
	s.logger.Info("section created", zap.String("section_id", section.ID), zap.String("course_id", section.CourseID), zap.Int("capacity", section.Capacity))
	return section, nil
}

// Get returns a section by id.
func (s *SectionService) Get(ctx context.Context, id string) (*models.Section, error) {
	section, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if view, err := s.tracker.Snapshot(id); err == nil {
		section.EnrolledCount = view.Enrolled
	}
	return section, nil
}

// List returns sections with pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Roster returns the live seat picture of a section.
func (s *SectionService) Roster(ctx context.Context, id string) (*dto.SectionRoster, error) {
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.tracker.Snapshot(id)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.roster.ListActiveBySection(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	roster := &dto.SectionRoster{
		Section:        *section,
		Enrolled:       enrolled,
		Waitlist:       make([]dto.WaitlistEntry, 0, len(view.Waitlist)),
		SeatsAvailable: view.SeatsAvailable(),
	}
	if roster.Enrolled == nil {
		roster.Enrolled = []models.StudentSection{}
	}
	for _, slot := range view.Waitlist {
		roster.Waitlist = append(roster.Waitlist, dto.WaitlistEntry{HolderID: slot.HolderID, Position: slot.Position})
	}
	return roster, nil
}

// UpdateCapacity changes the seat limit. A raise promotes from the waitlist head;
// dropping below the seated count is rejected.
func (s *SectionService) UpdateCapacity(ctx context.Context, id string, req dto.UpdateCapacityRequest, actor *models.JWTClaims) (*dto.CapacityUpdateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid capacity payload")
	}
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.tracker.Snapshot(id)
	if err != nil {
		return nil, err
	}
	if req.Capacity < view.Enrolled {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("section already seats %d students", view.Enrolled))
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateCapacity(ctx, id, req.Capacity, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update capacity")
	}
	promotedIDs, err := s.tracker.SetCapacity(id, req.Capacity)
	if err != nil {
		if rerr := s.repo.UpdateCapacity(ctx, id, section.Capacity, now); rerr != nil {
			s.logger.Error("failed to restore capacity", zap.String("section_id", id), zap.Error(rerr))
		}
		return nil, err
	}

	before := *section
	section.Capacity = req.Capacity
	result := &dto.CapacityUpdateResult{Promoted: []models.EnrollmentRequest{}}
	for _, requestID := range promotedIDs {
		promoted, err := s.promoter.HandlePromotion(ctx, id, requestID)
		if err != nil {
			return nil, err
		}
		result.Promoted = append(result.Promoted, *promoted)
	}
	if latest, err := s.tracker.Snapshot(id); err == nil {
		section.EnrolledCount = latest.Enrolled
	}
	result.Section = *section

	actorID := ""
	if actor != nil {
		actorID = actor.UserID
	}
	s.audit.record(ctx, actorID, models.AuditActionCapacityUpdate, "section", id, before, section)
	s.logger.Info("section capacity updated", zap.String("section_id", id), zap.Int("from", before.Capacity), zap.Int("to", req.Capacity), zap.Int("promoted", len(promotedIDs)))
	return result, nil
}
