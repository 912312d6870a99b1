package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/jobs"
)

type enrollmentRequestStore interface {
	Create(ctx context.Context, req *models.EnrollmentRequest) error
	GetByID(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.EnrollmentRequest, error)
	List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, int, error)
	ListPendingByCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error)
	ListWaitlisted(ctx context.Context) ([]models.EnrollmentRequest, error)
	UpdateOutcome(ctx context.Context, req *models.EnrollmentRequest, from models.EnrollmentRequestStatus) error
	UpdateWaitlistPositions(ctx context.Context, positions map[string]int) error
}

type membershipStore interface {
	Create(ctx context.Context, membership *models.StudentSection) error
	FindActive(ctx context.Context, studentID, sectionID string) (*models.StudentSection, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.StudentSection, error)
	ListActive(ctx context.Context) ([]models.StudentSection, error)
	Deactivate(ctx context.Context, id string, reason string, at time.Time) error
}

type sectionStore interface {
	GetByID(ctx context.Context, id string) (*models.Section, error)
	ListAll(ctx context.Context) ([]models.Section, error)
	SetEnrolledCount(ctx context.Context, id string, count int, at time.Time) error
}

const (
	reasonSeatReserved  = "seat reserved"
	reasonWaitlisted    = "section full, waitlisted"
	reasonAllFull       = "all preferred sections are full"
	reasonPromoted      = "promoted from waitlist"
	reasonWithdrawn     = "withdrawn by student"
	reasonSeatDropped   = "dropped by student"
	reasonAllocUndone   = "allocation rolled back"
	allocationJobCourse = "allocate.course"
	allocationJobBatch  = "allocate.batch"
)

// EnrollmentOptions tunes allocation behaviour.
type EnrollmentOptions struct {
	AllocateOnSubmit bool
	Workers          int
}

// EnrollmentServiceOption customises EnrollmentService.
type EnrollmentServiceOption func(*EnrollmentService)

// WithEnrollmentClock overrides the time source.
func WithEnrollmentClock(now func() time.Time) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		if now != nil {
			s.now = now
		}
	}
}

// EnrollmentService allocates section seats to ranked enrollment requests and keeps
// waitlists moving as seats are released.
type EnrollmentService struct {
	requests  enrollmentRequestStore
	seats     membershipStore
	sections  sectionStore
	tracker   *SectionCapacityTracker
	scorer    PriorityScorer
	notifier  eventNotifier
	audit     auditTrail
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	queue     *jobs.Queue
	opts      EnrollmentOptions
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(
	requests enrollmentRequestStore,
	seats membershipStore,
	sections sectionStore,
	tracker *SectionCapacityTracker,
	scorer PriorityScorer,
	notifier eventNotifier,
	audit auditLogger,
	metrics *MetricsService,
	cfg EnrollmentOptions,
	validate *validator.Validate,
	logger *zap.Logger,
	opts ...EnrollmentServiceOption,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EnrollmentService{
		requests:  requests,
		seats:     seats,
		sections:  sections,
		tracker:   tracker,
		scorer:    scorer,
		notifier:  notifier,
		audit:     newAuditTrail(audit, "enrollment-service", logger),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.queue = jobs.NewQueue("allocations", svc.runAllocationJob, jobs.QueueConfig{Workers: cfg.Workers, Logger: logger})
	return svc
}

// Start launches the asynchronous allocation workers.
func (s *EnrollmentService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the allocation workers.
func (s *EnrollmentService) Stop() {
	s.queue.Stop()
}

// Submit validates and stores a PENDING enrollment request.
func (s *EnrollmentService) Submit(ctx context.Context, req dto.SubmitEnrollmentRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if !canActFor(actor, req.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	prefs, err := s.validatePreferences(ctx, req.CourseID, req.Preferences)
	if err != nil {
		return nil, err
	}

	seats, err := s.seats.ListActiveByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student sections")
	}
	for _, seat := range seats {
		if seat.CourseID == req.CourseID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already holds a seat in this course")
		}
	}
	_, open, err := s.requests.List(ctx, models.EnrollmentRequestFilter{
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Status:    []models.EnrollmentRequestStatus{models.EnrollmentPending, models.EnrollmentWaitlisted},
		PageSize:  1,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open requests")
	}
	if open > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an open request for this course")
	}

	request := &models.EnrollmentRequest{
		StudentID:     req.StudentID,
		CourseID:      req.CourseID,
		Preferences:   prefs,
		PriorityScore: req.PriorityScore,
		Status:        models.EnrollmentPending,
		CreatedAt:     s.now(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment request")
	}
	s.audit.record(ctx, actor.UserID, models.AuditActionEnrollmentSubmit, "enrollment_request", request.ID, nil, request)
	s.logger.Info("enrollment request submitted", zap.String("request_id", request.ID), zap.String("course_id", request.CourseID), zap.Int("preferences", len(prefs)))

	if !s.opts.AllocateOnSubmit {
		return request, nil
	}
	results, err := s.Allocate(ctx, []models.EnrollmentRequest{*request})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (s *EnrollmentService) validatePreferences(ctx context.Context, courseID string, input []dto.SectionPreferenceInput) (models.SectionPreferences, error) {
	ranks := make(map[int]struct{}, len(input))
	sections := make(map[string]struct{}, len(input))
	prefs := make(models.SectionPreferences, 0, len(input))
	for _, pref := range input {
		sectionID := strings.TrimSpace(pref.SectionID)
		if _, dup := ranks[pref.Rank]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("preference rank %d is used twice", pref.Rank))
		}
		if _, dup := sections[sectionID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s is ranked twice", sectionID))
		}
		ranks[pref.Rank] = struct{}{}
		sections[sectionID] = struct{}{}

		section, err := s.sections.GetByID(ctx, sectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s does not exist", sectionID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		if section.CourseID != courseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s does not belong to course %s", sectionID, courseID))
		}
		prefs = append(prefs, models.SectionPreference{SectionID: sectionID, Rank: pref.Rank})
	}
	for rank := 1; rank <= len(input); rank++ {
		if _, ok := ranks[rank]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("preference ranks must run from 1 to %d", len(input)))
		}
	}
	return prefs.Ordered(), nil
}

// allocationCursor walks one request down its preference list across rounds.
type allocationCursor struct {
	index  int
	prefs  models.SectionPreferences
	cursor int
}

func (c *allocationCursor) current(tracker *SectionCapacityTracker) (string, bool) {
	for c.cursor < len(c.prefs) {
		sectionID := c.prefs[c.cursor].SectionID
		if tracker.Accepting(sectionID) {
			return sectionID, true
		}
		c.cursor++
	}
	return "", false
}

func (c *allocationCursor) candidate(req models.EnrollmentRequest) ScoreCandidate {
	return ScoreCandidate{
		RequestID:      req.ID,
		PreferenceRank: c.prefs[c.cursor].Rank,
		PriorityScore:  req.PriorityScore,
		CreatedAt:      req.CreatedAt,
	}
}

// Allocate decides every PENDING request in the batch. Requests competing for the
// same section are admitted in scorer order; sections are processed in parallel.
// Non-pending and repeated requests come back unchanged.
func (s *EnrollmentService) Allocate(ctx context.Context, batch []models.EnrollmentRequest) ([]models.EnrollmentRequest, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveAllocation(time.Since(started)) }()

	results := append([]models.EnrollmentRequest(nil), batch...)
	seen := make(map[string]struct{}, len(results))
	open := make([]*allocationCursor, 0, len(results))
	for i := range results {
		if results[i].Status != models.EnrollmentPending {
			continue
		}
		if _, dup := seen[results[i].ID]; dup {
			continue
		}
		seen[results[i].ID] = struct{}{}
		open = append(open, &allocationCursor{index: i, prefs: results[i].Preferences.Ordered()})
	}

	for round := 1; len(open) > 0; round++ {
		groups := make(map[string][]*allocationCursor)
		for _, c := range open {
			sectionID, ok := c.current(s.tracker)
			if !ok {
				denied, err := s.deny(ctx, results[c.index], reasonAllFull)
				if err != nil {
					return results, err
				}
				results[c.index] = denied
				continue
			}
			groups[sectionID] = append(groups[sectionID], c)
		}

		var (
			mu   sync.Mutex
			next []*allocationCursor
		)
		g, gctx := errgroup.WithContext(ctx)
		for sectionID, members := range groups {
			sectionID, members := sectionID, members
			g.Go(func() error {
				overflow, err := s.allocateSection(gctx, sectionID, members, results)
				if len(overflow) > 0 {
					mu.Lock()
					next = append(next, overflow...)
					mu.Unlock()
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}
		sort.Slice(next, func(i, j int) bool { return next[i].index < next[j].index })
		s.logger.Debug("allocation round finished", zap.Int("round", round), zap.Int("sections", len(groups)), zap.Int("carried", len(next)))
		open = next
	}
	return results, nil
}

func (s *EnrollmentService) allocateSection(ctx context.Context, sectionID string, members []*allocationCursor, results []models.EnrollmentRequest) ([]*allocationCursor, error) {
	sort.SliceStable(members, func(i, j int) bool {
		return s.scorer.Less(members[i].candidate(results[members[i].index]), members[j].candidate(results[members[j].index]))
	})
	var overflow []*allocationCursor
	for _, c := range members {
		if err := ctx.Err(); err != nil {
			return overflow, err
		}
		req := results[c.index]
		reservation, err := s.tracker.ReserveSeat(sectionID, req.ID)
		if err != nil {
			if errors.Is(err, appErrors.ErrWaitlistFull) {
				c.cursor++
				overflow = append(overflow, c)
				continue
			}
			return overflow, err
		}
		if reservation.Repeat {
			// The tracker already placed this holder; trust the stored outcome.
			stored, err := s.load(ctx, req.ID)
			if err != nil {
				return overflow, err
			}
			if stored.Status != models.EnrollmentPending {
				results[c.index] = *stored
				continue
			}
		}

		var updated models.EnrollmentRequest
		if reservation.Outcome == SeatReserved {
			updated, err = s.commitSeat(ctx, req, sectionID, reasonSeatReserved, models.EventEnrollmentApproved)
		} else {
			updated, err = s.commitWaitlist(ctx, req, sectionID, reservation.Position)
		}
		if err != nil {
			if !reservation.Repeat {
				s.undoReservation(ctx, sectionID, req.ID, reservation.Outcome)
			}
			return overflow, err
		}
		results[c.index] = updated
	}
	return overflow, nil
}

// commitSeat persists an approval: membership row first, then the request outcome.
func (s *EnrollmentService) commitSeat(ctx context.Context, req models.EnrollmentRequest, sectionID, reason string, event models.EventType) (models.EnrollmentRequest, error) {
	now := s.now()
	next, err := req.Approve(sectionID, reason, now)
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	membership := &models.StudentSection{
		StudentID: req.StudentID,
		SectionID: sectionID,
		CourseID:  req.CourseID,
		HolderID:  req.ID,
		Source:    models.SeatSourceEnrollment,
		JoinedAt:  now,
	}
	if err := s.seats.Create(ctx, membership); err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record seat")
	}
	if err := s.requests.UpdateOutcome(ctx, &next, req.Status); err != nil {
		if derr := s.seats.Deactivate(ctx, membership.ID, reasonAllocUndone, now); derr != nil {
			s.logger.Error("failed to undo seat record", zap.String("membership_id", membership.ID), zap.Error(derr))
		}
		return req, s.outcomeErr(err, "failed to record enrollment approval")
	}
	s.syncEnrolled(ctx, sectionID)
	s.metrics.RecordEnrollmentOutcome(models.EnrollmentApproved)
	s.notify(ctx, enrollmentEvent(event, next))
	s.audit.record(ctx, "", models.AuditActionEnrollmentDecision, "enrollment_request", next.ID, req, next)
	s.logger.Info("enrollment approved", zap.String("request_id", next.ID), zap.String("section_id", sectionID), zap.Int("preference_rank", next.PreferenceRank))
	return next, nil
}

func (s *EnrollmentService) commitWaitlist(ctx context.Context, req models.EnrollmentRequest, sectionID string, position int) (models.EnrollmentRequest, error) {
	next, err := req.Waitlist(sectionID, position, reasonWaitlisted, s.now())
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	if err := s.requests.UpdateOutcome(ctx, &next, req.Status); err != nil {
		return req, s.outcomeErr(err, "failed to record waitlist placement")
	}
	// The queue may have moved between the reservation and the write above.
	s.syncWaitlist(ctx, sectionID)
	if current, ok := s.waitlistPosition(sectionID, next.ID); ok && current != position {
		next.WaitlistPosition = &current
		position = current
	}
	s.metrics.RecordEnrollmentOutcome(models.EnrollmentWaitlisted)
	s.notify(ctx, enrollmentEvent(models.EventEnrollmentWaitlisted, next))
	s.audit.record(ctx, "", models.AuditActionEnrollmentDecision, "enrollment_request", next.ID, req, next)
	s.logger.Info("enrollment waitlisted", zap.String("request_id", next.ID), zap.String("section_id", sectionID), zap.Int("position", position))
	return next, nil
}

func (s *EnrollmentService) deny(ctx context.Context, req models.EnrollmentRequest, reason string) (models.EnrollmentRequest, error) {
	next, err := req.Deny(reason, s.now())
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	if err := s.requests.UpdateOutcome(ctx, &next, req.Status); err != nil {
		return req, s.outcomeErr(err, "failed to record enrollment denial")
	}
	s.metrics.RecordEnrollmentOutcome(models.EnrollmentDenied)
	s.notify(ctx, enrollmentEvent(models.EventEnrollmentDenied, next))
	s.audit.record(ctx, "", models.AuditActionEnrollmentDecision, "enrollment_request", next.ID, req, next)
	s.logger.Info("enrollment denied", zap.String("request_id", next.ID), zap.String("reason", reason))
	return next, nil
}

func (s *EnrollmentService) undoReservation(ctx context.Context, sectionID, holderID string, outcome SeatOutcome) {
	if outcome == SeatWaitlisted {
		if err := s.tracker.Withdraw(sectionID, holderID); err != nil {
			s.logger.Warn("failed to undo waitlist placement", zap.String("section_id", sectionID), zap.String("holder_id", holderID), zap.Error(err))
		}
		return
	}
	promoted, ok, err := s.tracker.ReleaseSeat(sectionID, holderID)
	if err != nil {
		s.logger.Warn("failed to undo seat reservation", zap.String("section_id", sectionID), zap.String("holder_id", holderID), zap.Error(err))
		return
	}
	if ok {
		if _, err := s.HandlePromotion(ctx, sectionID, promoted); err != nil {
			s.logger.Error("promotion after undo failed", zap.String("section_id", sectionID), zap.String("request_id", promoted), zap.Error(err))
		}
	}
}

func (s *EnrollmentService) outcomeErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment request changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// AllocateCourse allocates every pending request of a course.
func (s *EnrollmentService) AllocateCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error) {
	pending, err := s.requests.ListPendingByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending requests")
	}
	return s.Allocate(ctx, pending)
}

// AllocateRequests allocates the named requests.
func (s *EnrollmentService) AllocateRequests(ctx context.Context, ids []string) ([]models.EnrollmentRequest, error) {
	requests, err := s.requests.GetByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment requests")
	}
	return s.Allocate(ctx, requests)
}

// RunAllocation performs an allocation batch inline, or hands it to the workers
// when Async is set.
func (s *EnrollmentService) RunAllocation(ctx context.Context, req dto.AllocateEnrollmentRequest) (*dto.AllocationResult, error) {
	courseID := strings.TrimSpace(req.CourseID)
	if courseID == "" && len(req.RequestIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId or requestIds is required")
	}
	if req.Async {
		job := jobs.Job{Type: allocationJobBatch, Payload: req.RequestIDs}
		if courseID != "" {
			job = jobs.Job{Type: allocationJobCourse, Payload: courseID}
		}
		id, err := s.queue.Enqueue(job)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule allocation")
		}
		return &dto.AllocationResult{JobID: id, Requests: []models.EnrollmentRequest{}}, nil
	}

	var (
		results []models.EnrollmentRequest
		err     error
	)
	if courseID != "" {
		results, err = s.AllocateCourse(ctx, courseID)
	} else {
		results, err = s.AllocateRequests(ctx, req.RequestIDs)
	}
	if err != nil {
		return nil, err
	}
	return summarizeAllocation(results), nil
}

func (s *EnrollmentService) runAllocationJob(ctx context.Context, job jobs.Job) error {
	var (
		results []models.EnrollmentRequest
		err     error
	)
	switch job.Type {
	case allocationJobCourse:
		courseID, _ := job.Payload.(string)
		results, err = s.AllocateCourse(ctx, courseID)
	case allocationJobBatch:
		ids, _ := job.Payload.([]string)
		results, err = s.AllocateRequests(ctx, ids)
	default:
		return fmt.Errorf("unknown allocation job %s", job.Type)
	}
	if err != nil {
		return err
	}
	summary := summarizeAllocation(results)
	s.logger.Info("allocation job finished", zap.String("job_id", job.ID), zap.Int("approved", summary.Approved), zap.Int("waitlisted", summary.Waitlisted), zap.Int("denied", summary.Denied))
	return nil
}

func summarizeAllocation(results []models.EnrollmentRequest) *dto.AllocationResult {
	out := &dto.AllocationResult{Requests: results}
	if out.Requests == nil {
		out.Requests = []models.EnrollmentRequest{}
	}
	for _, r := range results {
		switch r.Status {
		case models.EnrollmentApproved:
			out.Approved++
		case models.EnrollmentWaitlisted:
			out.Waitlisted++
		case models.EnrollmentDenied:
			out.Denied++
		}
	}
	return out
}

// HandlePromotion approves the waitlisted request the tracker just seated.
// A promoted holder without a matching WAITLISTED request is an integrity failure.
func (s *EnrollmentService) HandlePromotion(ctx context.Context, sectionID, requestID string) (*models.EnrollmentRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.integrityErr(sectionID, requestID, "promoted request does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoted request")
	}
	if req.Status != models.EnrollmentWaitlisted || req.SectionID == nil || *req.SectionID != sectionID {
		return nil, s.integrityErr(sectionID, requestID, fmt.Sprintf("promoted request is %s", req.Status))
	}
	updated, err := s.commitSeat(ctx, *req, sectionID, reasonPromoted, models.EventEnrollmentPromoted)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPromotion()
	s.syncWaitlist(ctx, sectionID)
	s.audit.record(ctx, "", models.AuditActionEnrollmentPromote, "enrollment_request", updated.ID, req, updated)
	return &updated, nil
}

func (s *EnrollmentService) integrityErr(sectionID, requestID, detail string) error {
	s.logger.Error("waitlist integrity failure", zap.String("section_id", sectionID), zap.String("request_id", requestID), zap.String("detail", detail))
	return appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("section %s holder %s: %s", sectionID, requestID, detail))
}

// Withdraw cancels a PENDING or WAITLISTED request; queued requests leave the waitlist.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string, req dto.WithdrawEnrollmentRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canActFor(actor, current.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	switch current.Status {
	case models.EnrollmentPending:
	case models.EnrollmentWaitlisted:
		if current.SectionID != nil {
			if err := s.tracker.Withdraw(*current.SectionID, current.ID); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
				return nil, err
			}
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request in status %s cannot be withdrawn", current.Status))
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = reasonWithdrawn
	}
	next, err := current.Cancel(reason, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}
	if err := s.requests.UpdateOutcome(ctx, &next, current.Status); err != nil {
		return nil, s.outcomeErr(err, "failed to withdraw enrollment request")
	}
	if current.Status == models.EnrollmentWaitlisted && current.SectionID != nil {
		s.syncWaitlist(ctx, *current.SectionID)
	}
	s.metrics.RecordEnrollmentOutcome(models.EnrollmentCancelled)
	s.notify(ctx, enrollmentEvent(models.EventEnrollmentCancelled, next))
	s.audit.record(ctx, actor.UserID, models.AuditActionEnrollmentWithdraw, "enrollment_request", next.ID, current, next)
	return &next, nil
}

// DropSeat gives up a student's seat; the waitlist head of the section is promoted.
func (s *EnrollmentService) DropSeat(ctx context.Context, sectionID string, req dto.DropSeatRequest, actor *models.JWTClaims) (*models.EnrollmentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}
	if !canActFor(actor, req.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	membership, err := s.seats.FindActive(ctx, req.StudentID, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student holds no seat in this section")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seat")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = reasonSeatDropped
	}
	promoted, err := s.ReleaseMembership(ctx, *membership, reason)
	s.audit.record(ctx, actor.UserID, models.AuditActionSeatDrop, "student_section", membership.ID, membership, map[string]string{"reason": reason})
	return promoted, err
}

// ReleaseMembership deactivates a seat record, frees the tracker seat and promotes
// the waitlist head, if any.
func (s *EnrollmentService) ReleaseMembership(ctx context.Context, membership models.StudentSection, reason string) (*models.EnrollmentRequest, error) {
	if err := s.seats.Deactivate(ctx, membership.ID, reason, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "seat already released")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
	}
	promotedID, promoted, err := s.tracker.ReleaseSeat(membership.SectionID, membership.HolderID)
	if err != nil {
		s.logger.Warn("tracker did not hold released seat", zap.String("section_id", membership.SectionID), zap.String("holder_id", membership.HolderID), zap.Error(err))
	}
	s.syncEnrolled(ctx, membership.SectionID)
	if !promoted {
		return nil, nil
	}
	return s.HandlePromotion(ctx, membership.SectionID, promotedID)
}

// Get returns a request visible to the actor.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EnrollmentRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && req.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return req, nil
}

// List returns requests with pagination metadata; students only see their own.
func (s *EnrollmentService) List(ctx context.Context, query dto.EnrollmentQuery, actor *models.JWTClaims) ([]models.EnrollmentRequest, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.EnrollmentRequestFilter{
		StudentID: query.StudentID,
		CourseID:  query.CourseID,
		SectionID: query.SectionID,
		Status:    query.Status,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}
	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Restore rebuilds the tracker from persisted sections, seats and waitlists.
func (s *EnrollmentService) Restore(ctx context.Context) error {
	sections, err := s.sections.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load sections: %w", err)
	}
	memberships, err := s.seats.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load seats: %w", err)
	}
	waitlisted, err := s.requests.ListWaitlisted(ctx)
	if err != nil {
		return fmt.Errorf("load waitlists: %w", err)
	}

	holders := make(map[string][]string)
	for _, m := range memberships {
		holders[m.SectionID] = append(holders[m.SectionID], m.HolderID)
	}
	queues := make(map[string][]string)
	for _, req := range waitlisted {
		if req.SectionID == nil {
			continue
		}
		queues[*req.SectionID] = append(queues[*req.SectionID], req.ID)
	}

	promotedTotal := 0
	for _, section := range sections {
		promoted, err := s.tracker.Hydrate(section.ID, section.Capacity, holders[section.ID], queues[section.ID])
		if err != nil {
			return err
		}
		for _, id := range promoted {
			if _, err := s.HandlePromotion(ctx, section.ID, id); err != nil {
				return err
			}
		}
		promotedTotal += len(promoted)
		if len(promoted) == 0 {
			s.syncWaitlist(ctx, section.ID)
		}
		s.syncEnrolled(ctx, section.ID)
	}
	s.logger.Info("capacity tracker restored", zap.Int("sections", len(sections)), zap.Int("seats", len(memberships)), zap.Int("waitlisted", len(waitlisted)), zap.Int("promoted", promotedTotal))
	return nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	return req, nil
}

func (s *EnrollmentService) syncEnrolled(ctx context.Context, sectionID string) {
	view, err := s.tracker.Snapshot(sectionID)
	if err != nil {
		return
	}
	if err := s.sections.SetEnrolledCount(ctx, sectionID, view.Enrolled, s.now()); err != nil {
		s.logger.Warn("failed to sync enrolled count", zap.String("section_id", sectionID), zap.Error(err))
	}
}

func (s *EnrollmentService) syncWaitlist(ctx context.Context, sectionID string) {
	slots, err := s.tracker.Waitlist(sectionID)
	if err != nil || len(slots) == 0 {
		return
	}
	positions := make(map[string]int, len(slots))
	for _, slot := range slots {
		positions[slot.HolderID] = slot.Position
	}
	if err := s.requests.UpdateWaitlistPositions(ctx, positions); err != nil {
		s.logger.Warn("failed to persist waitlist positions", zap.String("section_id", sectionID), zap.Error(err))
	}
}

func (s *EnrollmentService) waitlistPosition(sectionID, holderID string) (int, bool) {
	slots, err := s.tracker.Waitlist(sectionID)
	if err != nil {
		return 0, false
	}
	for _, slot := range slots {
		if slot.HolderID == holderID {
			return slot.Position, true
		}
	}
	return 0, false
}

func (s *EnrollmentService) notify(ctx context.Context, event models.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event)
}

func enrollmentEvent(eventType models.EventType, req models.EnrollmentRequest) models.Event {
	event := models.Event{
		Type:      eventType,
		EntityID:  req.ID,
		StudentID: req.StudentID,
		Status:    string(req.Status),
		Reason:    req.StatusReason,
		Recipient: req.StudentID,
	}
	if req.SectionID != nil {
		event.SectionID = *req.SectionID
	}
	if req.WaitlistPosition != nil {
		event.Meta = map[string]string{"waitlistPosition": fmt.Sprintf("%d", *req.WaitlistPosition)}
	}
	return event
}

// canActFor reports whether the actor may act on the student's behalf.
func canActFor(actor *models.JWTClaims, studentID string) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleAdmin:
		return true
	case models.RoleStudent:
		return actor.UserID == studentID
	}
	return false
}
