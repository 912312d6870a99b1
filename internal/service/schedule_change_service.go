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

// Denial reasons and reviewer identities recorded by the workflow.
const (
	ReasonScheduleConflict   = "SCHEDULE_CONFLICT"
	ReasonCapacityExhausted  = "capacity exhausted between validation and commit"
	ReasonSectionFull        = "requested section is full"
	ReasonCurrentSectionGone = "current section no longer held"
	ReasonSectionAlreadyHeld = "student already holds the requested section"
	AutoApprovalReviewer     = "system:auto-approval"
	autoApprovalNote         = "auto-approved: priority below threshold, no conflict, seat available"
	scheduleChangeDropReason = "schedule change"
)

type scheduleChangeStore interface {
	Create(ctx context.Context, change *models.ScheduleChangeRequest) error
	GetByID(ctx context.Context, id string) (*models.ScheduleChangeRequest, error)
	List(ctx context.Context, filter models.ScheduleChangeFilter) ([]models.ScheduleChangeRequest, error)
	UpdateStatus(ctx context.Context, change *models.ScheduleChangeRequest, from models.ScheduleChangeStatus) error
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]models.ScheduleChangeRequest, error)
	MarkOverdue(ctx context.Context, change *models.ScheduleChangeRequest) (bool, error)
}

type scheduleSource interface {
	ScheduledSection(ctx context.Context, sectionID string) (ScheduledSection, error)
}

type seatCoordinator interface {
	ReleaseMembership(ctx context.Context, membership models.StudentSection, reason string) (*models.EnrollmentRequest, error)
	HandlePromotion(ctx context.Context, sectionID, requestID string) (*models.EnrollmentRequest, error)
}

// WorkflowOptions carries SLA and approval policy.
type WorkflowOptions struct {
	SLAHoursNormal       int
	SLAHoursUrgent       int
	AutoApproveThreshold int
	EscalationEnabled    bool
	EscalationTarget     string
}

func (o WorkflowOptions) sla(level models.PriorityLevel) time.Duration {
	hours := o.SLAHoursNormal
	if level.IsUrgent() {
		hours = o.SLAHoursUrgent
	}
	if hours <= 0 {
		hours = 72
	}
	return time.Duration(hours) * time.Hour
}

// ScheduleChangeServiceOption customises ScheduleChangeService.
type ScheduleChangeServiceOption func(*ScheduleChangeService)

// WithScheduleChangeClock overrides the time source.
func WithScheduleChangeClock(now func() time.Time) ScheduleChangeServiceOption {
	return func(s *ScheduleChangeService) {
		if now != nil {
			s.now = now
		}
	}
}

// ScheduleChangeService runs the add/drop/swap approval workflow.
type ScheduleChangeService struct {
	changes     scheduleChangeStore
	seats       membershipStore
	sections    sectionReader
	calendar    scheduleSource
	detector    ConflictDetector
	tracker     *SectionCapacityTracker
	coordinator seatCoordinator
	notifier    eventNotifier
	audit       auditTrail
	metrics     *MetricsService
	opts        WorkflowOptions
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewScheduleChangeService constructs ScheduleChangeService.
func NewScheduleChangeService(
	changes scheduleChangeStore,
	seats membershipStore,
	sections sectionReader,
	calendar scheduleSource,
	tracker *SectionCapacityTracker,
	coordinator seatCoordinator,
	notifier eventNotifier,
	audit auditLogger,
	metrics *MetricsService,
	cfg WorkflowOptions,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...ScheduleChangeServiceOption,
) *ScheduleChangeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ScheduleChangeService{
		changes:     changes,
		seats:       seats,
		sections:    sections,
		calendar:    calendar,
		detector:    NewConflictDetector(),
		tracker:     tracker,
		coordinator: coordinator,
		notifier:    notifier,
		audit:       newAuditTrail(audit, "schedule-change-service", logger),
		metrics:     metrics,
		opts:        cfg,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit validates and stores a change. Conflicting adds and swaps are denied on
// the spot; changes that qualify for auto-approval are committed immediately.
func (s *ScheduleChangeService) Submit(ctx context.Context, req dto.SubmitScheduleChangeRequest, actor *models.JWTClaims) (*models.ScheduleChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule change payload")
	}
	if !canActFor(actor, req.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	change, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var conflicts []models.PeriodConflict
	if change.RequestType.AddsSection() {
		conflicts, err = s.conflictsFor(ctx, *change)
		if err != nil {
			return nil, err
		}
		change.CanAutoApprove = len(conflicts) == 0 && s.tracker.HasFreeSeat(*change.RequestedSectionID)
	} else {
		change.CanAutoApprove = true
	}
	if change.PriorityLevel.Rank() >= s.opts.AutoApproveThreshold {
		change.CanAutoApprove = false
	}

	if err := s.changes.Create(ctx, change); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule change")
	}
	s.audit.record(ctx, actor.UserID, models.AuditActionChangeSubmit, "schedule_change", change.ID, nil, change)
	s.logger.Info("schedule change submitted",
		zap.String("change_id", change.ID),
		zap.String("type", string(change.RequestType)),
		zap.String("priority", string(change.PriorityLevel)),
		zap.Time("due_at", change.DueAt),
		zap.Bool("can_auto_approve", change.CanAutoApprove))

	if len(conflicts) > 0 {
		return s.deny(ctx, *change, "", ReasonScheduleConflict, describeConflicts(conflicts))
	}
	if change.CanAutoApprove {
		return s.approve(ctx, *change, AutoApprovalReviewer, autoApprovalNote)
	}
	return change, nil
}

func (s *ScheduleChangeService) prepare(ctx context.Context, req dto.SubmitScheduleChangeRequest) (*models.ScheduleChangeRequest, error) {
	current := strings.TrimSpace(req.CurrentSectionID)
	requested := strings.TrimSpace(req.RequestedSectionID)
	change := &models.ScheduleChangeRequest{
		StudentID:     req.StudentID,
		RequestType:   req.RequestType,
		Status:        models.ScheduleChangePending,
		PriorityLevel: req.PriorityLevel,
		Reason:        strings.TrimSpace(req.Reason),
		AcademicYear:  strings.TrimSpace(req.AcademicYear),
	}
	if change.PriorityLevel == "" {
		change.PriorityLevel = models.PriorityNormal
	}
	if id := strings.TrimSpace(req.GradingPeriodID); id != "" {
		change.GradingPeriodID = &id
	}

	switch req.RequestType {
	case models.ScheduleChangeAdd:
		if requested == "" || current != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "ADD needs requestedSectionId only")
		}
	case models.ScheduleChangeDrop:
		if current == "" || requested != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "DROP needs currentSectionId only")
		}
	case models.ScheduleChangeSwap:
		if current == "" || requested == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "SWAP needs currentSectionId and requestedSectionId")
		}
		if current == requested {
			return nil, appErrors.Clone(appErrors.ErrValidation, "SWAP must change section")
		}
	}

	if change.RequestType.DropsSection() {
		membership, err := s.seats.FindActive(ctx, req.StudentID, current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student does not hold the current section")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current section")
		}
		change.CurrentSectionID = &current
		change.CurrentCourseID = &membership.CourseID
	}
	if change.RequestType.AddsSection() {
		section, err := s.sections.GetByID(ctx, requested)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "requested section not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested section")
		}
		if course := strings.TrimSpace(req.RequestedCourseID); course != "" && course != section.CourseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requested section belongs to another course")
		}
		if _, err := s.seats.FindActive(ctx, req.StudentID, requested); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already holds the requested section")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check requested section")
		}
		open, err := s.changes.List(ctx, models.ScheduleChangeFilter{
			StudentID: req.StudentID,
			Status:    []models.ScheduleChangeStatus{models.ScheduleChangePending},
			Limit:     200,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending changes")
		}
		for _, other := range open {
			if other.Status == models.ScheduleChangePending && other.RequestedSectionID != nil && *other.RequestedSectionID == requested {
				return nil, appErrors.Clone(appErrors.ErrConflict, "a pending change already requests this section")
			}
		}
		change.RequestedSectionID = &requested
		change.RequestedCourseID = &section.CourseID
	}

	now := s.now()
	change.CreatedAt = now
	change.UpdatedAt = now
	change.DueAt = now.Add(s.opts.sla(change.PriorityLevel))
	return change, nil
}

// conflictsFor checks the requested section against the student's current schedule,
// ignoring the section a swap gives up.
func (s *ScheduleChangeService) conflictsFor(ctx context.Context, change models.ScheduleChangeRequest) ([]models.PeriodConflict, error) {
	seats, err := s.seats.ListActiveByStudent(ctx, change.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student schedule")
	}
	schedule := make([]ScheduledSection, 0, len(seats))
	for _, seat := range seats {
		scheduled, err := s.calendar.ScheduledSection(ctx, seat.SectionID)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, scheduled)
	}
	candidate, err := s.calendar.ScheduledSection(ctx, *change.RequestedSectionID)
	if err != nil {
		return nil, err
	}
	drop := ""
	if change.CurrentSectionID != nil {
		drop = *change.CurrentSectionID
	}
	return s.detector.Conflicts(schedule, candidate, drop), nil
}

// CheckConflicts reports the meeting-window overlaps the student would have if
// they took the section, ignoring the optional section being dropped.
func (s *ScheduleChangeService) CheckConflicts(ctx context.Context, req dto.ConflictCheckRequest, actor *models.JWTClaims) (*dto.ConflictCheckResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	if !canActFor(actor, req.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	hypothetical := models.ScheduleChangeRequest{StudentID: req.StudentID, RequestedSectionID: &req.SectionID}
	if req.DropSectionID != "" {
		hypothetical.CurrentSectionID = &req.DropSectionID
	}
	conflicts, err := s.conflictsFor(ctx, hypothetical)
	if err != nil {
		return nil, err
	}
	if conflicts == nil {
		conflicts = []models.PeriodConflict{}
	}
	return &dto.ConflictCheckResponse{Conflict: len(conflicts) > 0, Conflicts: conflicts}, nil
}

func describeConflicts(conflicts []models.PeriodConflict) string {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, fmt.Sprintf("period %d of %s overlaps period %d of %s on %s",
			c.CandidatePeriod, c.CandidateSectionID, c.ExistingPeriod, c.ExistingSectionID, strings.Join(c.Days, ",")))
	}
	return strings.Join(parts, "; ")
}

// Review applies a reviewer decision to a pending change.
func (s *ScheduleChangeService) Review(ctx context.Context, id string, req dto.ReviewScheduleChangeRequest, reviewer *models.JWTClaims) (*models.ScheduleChangeRequest, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !reviewer.Role.CanReview() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	change, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if change.Status != models.ScheduleChangePending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("schedule change is already %s", change.Status))
	}

	if req.Decision == dto.DecisionDeny {
		reason := strings.TrimSpace(req.DenialReason)
		if reason == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "denialReason is required to deny")
		}
		return s.deny(ctx, *change, reviewer.UserID, reason, req.Notes)
	}

	if change.RequestType.AddsSection() {
		conflicts, err := s.conflictsFor(ctx, *change)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			return s.deny(ctx, *change, reviewer.UserID, ReasonScheduleConflict, describeConflicts(conflicts))
		}
		if !s.tracker.HasFreeSeat(*change.RequestedSectionID) {
			return s.deny(ctx, *change, reviewer.UserID, ReasonSectionFull, req.Notes)
		}
	}
	return s.approve(ctx, *change, reviewer.UserID, req.Notes)
}

// approve commits the change. Seat holdings are re-read first, then the new seat
// is reserved before the old one is released; a change that no longer fits the
// student's seats is re-denied instead of half-applied.
func (s *ScheduleChangeService) approve(ctx context.Context, change models.ScheduleChangeRequest, reviewerID, notes string) (*models.ScheduleChangeRequest, error) {
	now := s.now()
	approved, err := change.Approve(reviewerID, notes, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}

	var current *models.StudentSection
	if change.RequestType.DropsSection() {
		current, err = s.seats.FindActive(ctx, change.StudentID, *change.CurrentSectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("current seat gone before commit", zap.String("change_id", change.ID), zap.String("section_id", *change.CurrentSectionID))
				return s.deny(ctx, change, reviewerID, ReasonCurrentSectionGone, notes)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current seat")
		}
	}
	if change.RequestType.AddsSection() {
		if _, err := s.seats.FindActive(ctx, change.StudentID, *change.RequestedSectionID); err == nil {
			s.logger.Warn("requested seat already held", zap.String("change_id", change.ID), zap.String("section_id", *change.RequestedSectionID))
			return s.deny(ctx, change, reviewerID, ReasonSectionAlreadyHeld, notes)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check requested section")
		}
	}

	var added *models.StudentSection
	if change.RequestType.AddsSection() {
		sectionID := *change.RequestedSectionID
		if err := s.tracker.TryReserveSeat(sectionID, change.ID); err != nil {
			if errors.Is(err, appErrors.ErrCapacityExhausted) {
				s.logger.Warn("seat taken before commit", zap.String("change_id", change.ID), zap.String("section_id", sectionID))
				return s.deny(ctx, change, reviewerID, ReasonCapacityExhausted, notes)
			}
			return nil, err
		}
		added = &models.StudentSection{
			StudentID: change.StudentID,
			SectionID: sectionID,
			CourseID:  derefString(change.RequestedCourseID),
			HolderID:  change.ID,
			Source:    models.SeatSourceScheduleChange,
			JoinedAt:  now,
		}
		if err := s.seats.Create(ctx, added); err != nil {
			s.releaseTrackerSeat(ctx, sectionID, change.ID)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record new seat")
		}
	}

	if err := s.changes.UpdateStatus(ctx, &approved, models.ScheduleChangePending); err != nil {
		if added != nil {
			if _, rerr := s.coordinator.ReleaseMembership(ctx, *added, "approval rolled back"); rerr != nil {
				s.logger.Error("failed to roll back new seat", zap.String("change_id", change.ID), zap.Error(rerr))
			}
		}
		return nil, s.statusErr(err, "failed to record approval")
	}
	s.metrics.RecordChangeDecision(models.ScheduleChangeApproved)
	s.notify(ctx, changeEvent(models.EventChangeApproved, approved, ""))
	s.audit.record(ctx, reviewerID, models.AuditActionChangeReview, "schedule_change", approved.ID, change, approved)
	s.logger.Info("schedule change approved", zap.String("change_id", approved.ID), zap.String("reviewer", reviewerID))

	var promotionErr error
	if current != nil {
		if _, err := s.coordinator.ReleaseMembership(ctx, *current, scheduleChangeDropReason+" "+change.ID); err != nil {
			if !errors.Is(err, appErrors.ErrIntegrity) {
				return &approved, err
			}
			promotionErr = err
		}
	}

	completed, err := approved.Complete(s.now())
	if err != nil {
		return &approved, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	if err := s.changes.UpdateStatus(ctx, &completed, models.ScheduleChangeApproved); err != nil {
		return &approved, s.statusErr(err, "failed to complete schedule change")
	}
	s.metrics.RecordChangeDecision(models.ScheduleChangeCompleted)
	s.notify(ctx, changeEvent(models.EventChangeCompleted, completed, ""))
	s.audit.record(ctx, reviewerID, models.AuditActionChangeComplete, "schedule_change", completed.ID, approved, completed)
	return &completed, promotionErr
}

func (s *ScheduleChangeService) releaseTrackerSeat(ctx context.Context, sectionID, holderID string) {
	promoted, ok, err := s.tracker.ReleaseSeat(sectionID, holderID)
	if err != nil {
		s.logger.Warn("failed to release reserved seat", zap.String("section_id", sectionID), zap.String("holder_id", holderID), zap.Error(err))
		return
	}
	if ok {
		if _, err := s.coordinator.HandlePromotion(ctx, sectionID, promoted); err != nil {
			s.logger.Error("promotion after rollback failed", zap.String("section_id", sectionID), zap.String("request_id", promoted), zap.Error(err))
		}
	}
}

func (s *ScheduleChangeService) deny(ctx context.Context, change models.ScheduleChangeRequest, reviewerID, reason, notes string) (*models.ScheduleChangeRequest, error) {
	denied, err := change.Deny(reviewerID, reason, notes, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	if err := s.changes.UpdateStatus(ctx, &denied, change.Status); err != nil {
		return nil, s.statusErr(err, "failed to record denial")
	}
	s.metrics.RecordChangeDecision(models.ScheduleChangeDenied)
	s.notify(ctx, changeEvent(models.EventChangeDenied, denied, reason))
	s.audit.record(ctx, reviewerID, models.AuditActionChangeReview, "schedule_change", denied.ID, change, denied)
	s.logger.Info("schedule change denied", zap.String("change_id", denied.ID), zap.String("reason", reason))
	return &denied, nil
}

// Cancel withdraws a pending change.
func (s *ScheduleChangeService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.ScheduleChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	change, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canActFor(actor, change.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	cancelled, err := change.Cancel(s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	if err := s.changes.UpdateStatus(ctx, &cancelled, change.Status); err != nil {
		return nil, s.statusErr(err, "failed to cancel schedule change")
	}
	s.notify(ctx, changeEvent(models.EventChangeCancelled, cancelled, ""))
	s.audit.record(ctx, actor.UserID, models.AuditActionChangeCancel, "schedule_change", cancelled.ID, change, cancelled)
	return &cancelled, nil
}

// Get returns a change visible to the actor.
func (s *ScheduleChangeService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ScheduleChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	change, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && change.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return change, nil
}

// List returns changes ordered by due date; students only see their own.
func (s *ScheduleChangeService) List(ctx context.Context, query dto.ScheduleChangeQuery, actor *models.JWTClaims) ([]models.ScheduleChangeRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.ScheduleChangeFilter{
		StudentID:   query.StudentID,
		Status:      query.Status,
		RequestType: query.RequestType,
		OverdueOnly: query.OverdueOnly,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}
	changes, err := s.changes.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule changes")
	}
	return changes, nil
}

// SweepOverdue flags pending changes past their due date. Each change is flagged,
// and escalated when enabled, at most once; the status never changes.
func (s *ScheduleChangeService) SweepOverdue(ctx context.Context) (*dto.SweepResult, error) {
	now := s.now()
	candidates, err := s.changes.ListOverdueCandidates(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overdue candidates")
	}
	target := ""
	if s.opts.EscalationEnabled {
		target = s.opts.EscalationTarget
	}
	result := &dto.SweepResult{Flagged: []models.ScheduleChangeRequest{}}
	for _, candidate := range candidates {
		flagged, ok := candidate.MarkOverdue(target, now)
		if !ok {
			continue
		}
		marked, err := s.changes.MarkOverdue(ctx, &flagged)
		if err != nil {
			s.logger.Warn("failed to flag overdue change", zap.String("change_id", candidate.ID), zap.Error(err))
			continue
		}
		if !marked {
			continue
		}
		s.notify(ctx, changeEvent(models.EventChangeOverdue, flagged, "SLA breached"))
		if target != "" {
			escalation := changeEvent(models.EventChangeEscalated, flagged, "SLA breached")
			escalation.Recipient = target
			s.notify(ctx, escalation)
			s.audit.record(ctx, "", models.AuditActionChangeEscalate, "schedule_change", flagged.ID, candidate, flagged)
		}
		result.Flagged = append(result.Flagged, flagged)
	}
	result.Count = len(result.Flagged)
	s.metrics.RecordOverdue(result.Count)
	if result.Count > 0 {
		s.logger.Info("overdue schedule changes flagged", zap.Int("count", result.Count), zap.String("escalated_to", target))
	}
	return result, nil
}

// StartSLAMonitor boots a goroutine that sweeps overdue changes periodically.
func (s *ScheduleChangeService) StartSLAMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOverdue(ctx); err != nil {
					s.logger.Warn("sla sweep failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *ScheduleChangeService) load(ctx context.Context, id string) (*models.ScheduleChangeRequest, error) {
	change, err := s.changes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule change not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule change")
	}
	return change, nil
}

func (s *ScheduleChangeService) statusErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "schedule change changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ScheduleChangeService) notify(ctx context.Context, event models.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event)
}

func changeEvent(eventType models.EventType, change models.ScheduleChangeRequest, reason string) models.Event {
	event := models.Event{
		Type:      eventType,
		EntityID:  change.ID,
		StudentID: change.StudentID,
		Status:    string(change.Status),
		Reason:    reason,
		Recipient: change.StudentID,
		Meta: map[string]string{
			"requestType":   string(change.RequestType),
			"priorityLevel": string(change.PriorityLevel),
		},
	}
	if change.RequestedSectionID != nil {
		event.SectionID = *change.RequestedSectionID
	} else if change.CurrentSectionID != nil {
		event.SectionID = *change.CurrentSectionID
	}
	if change.IsOverdue {
		event.Meta["dueAt"] = change.DueAt.Format(time.RFC3339)
	}
	return event
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
