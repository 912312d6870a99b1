package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type enrollmentRepoStub struct {
	mu       sync.Mutex
	seq      int
	requests map[string]models.EnrollmentRequest
	// beforeOutcome runs once, ahead of the next outcome write it matches.
	beforeOutcome func(req models.EnrollmentRequest) bool
}

func newEnrollmentRepoStub() *enrollmentRepoStub {
	return &enrollmentRepoStub{requests: make(map[string]models.EnrollmentRequest)}
}

func (r *enrollmentRepoStub) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == "" {
		r.seq++
		req.ID = fmt.Sprintf("req-%d", r.seq)
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *enrollmentRepoStub) put(req models.EnrollmentRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = req
}

func (r *enrollmentRepoStub) get(id string) models.EnrollmentRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[id]
}

func (r *enrollmentRepoStub) GetByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &req, nil
}

func (r *enrollmentRepoStub) GetByIDs(ctx context.Context, ids []string) ([]models.EnrollmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EnrollmentRequest
	for _, id := range ids {
		if req, ok := r.requests[id]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EnrollmentRequest
	for _, req := range r.requests {
		if filter.StudentID != "" && req.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && req.CourseID != filter.CourseID {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, req.Status) {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func containsStatus(list []models.EnrollmentRequestStatus, status models.EnrollmentRequestStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func (r *enrollmentRepoStub) ListPendingByCourse(ctx context.Context, courseID string) ([]models.EnrollmentRequest, error) {
	items, _, err := r.List(ctx, models.EnrollmentRequestFilter{CourseID: courseID, Status: []models.EnrollmentRequestStatus{models.EnrollmentPending}})
	return items, err
}

func (r *enrollmentRepoStub) ListWaitlisted(ctx context.Context) ([]models.EnrollmentRequest, error) {
	items, _, err := r.List(ctx, models.EnrollmentRequestFilter{Status: []models.EnrollmentRequestStatus{models.EnrollmentWaitlisted}})
	sort.Slice(items, func(i, j int) bool { return *items[i].WaitlistPosition < *items[j].WaitlistPosition })
	return items, err
}

func (r *enrollmentRepoStub) UpdateOutcome(ctx context.Context, req *models.EnrollmentRequest, from models.EnrollmentRequestStatus) error {
	r.mu.Lock()
	hook := r.beforeOutcome
	r.mu.Unlock()
	if hook != nil && hook(*req) {
		r.mu.Lock()
		r.beforeOutcome = nil
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.requests[req.ID]
	if !ok || current.Status != from {
		return sql.ErrNoRows
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *enrollmentRepoStub) UpdateWaitlistPositions(ctx context.Context, positions map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pos := range positions {
		req, ok := r.requests[id]
		if !ok || req.Status != models.EnrollmentWaitlisted {
			continue
		}
		p := pos
		req.WaitlistPosition = &p
		r.requests[id] = req
	}
	return nil
}

type membershipStub struct {
	mu    sync.Mutex
	seq   int
	seats map[string]models.StudentSection
}

func newMembershipStub() *membershipStub {
	return &membershipStub{seats: make(map[string]models.StudentSection)}
}

func (m *membershipStub) Create(ctx context.Context, membership *models.StudentSection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	membership.ID = fmt.Sprintf("seat-%d", m.seq)
	membership.Active = true
	m.seats[membership.ID] = *membership
	return nil
}

func (m *membershipStub) FindActive(ctx context.Context, studentID, sectionID string) (*models.StudentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seat := range m.seats {
		if seat.Active && seat.StudentID == studentID && seat.SectionID == sectionID {
			found := seat
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *membershipStub) ListActiveByStudent(ctx context.Context, studentID string) ([]models.StudentSection, error) {
	all, _ := m.ListActive(ctx)
	var out []models.StudentSection
	for _, seat := range all {
		if seat.StudentID == studentID {
			out = append(out, seat)
		}
	}
	return out, nil
}

func (m *membershipStub) ListActiveBySection(ctx context.Context, sectionID string) ([]models.StudentSection, error) {
	all, _ := m.ListActive(ctx)
	var out []models.StudentSection
	for _, seat := range all {
		if seat.SectionID == sectionID {
			out = append(out, seat)
		}
	}
	return out, nil
}

func (m *membershipStub) ListActive(ctx context.Context) ([]models.StudentSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StudentSection
	for _, seat := range m.seats {
		if seat.Active {
			out = append(out, seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *membershipStub) Deactivate(ctx context.Context, id string, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seat, ok := m.seats[id]
	if !ok || !seat.Active {
		return sql.ErrNoRows
	}
	seat.Active = false
	seat.DroppedAt = &at
	seat.DropReason = &reason
	m.seats[id] = seat
	return nil
}

type sectionStoreStub struct {
	mu       sync.Mutex
	sections map[string]models.Section
}

func newSectionStoreStub(sections ...models.Section) *sectionStoreStub {
	stub := &sectionStoreStub{sections: make(map[string]models.Section)}
	for _, s := range sections {
		stub.sections[s.ID] = s
	}
	return stub
}

func (s *sectionStoreStub) Create(ctx context.Context, section *models.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if section.ID == "" {
		section.ID = fmt.Sprintf("sec-%d", len(s.sections)+1)
	}
	s.sections[section.ID] = *section
	return nil
}

func (s *sectionStoreStub) GetByID(ctx context.Context, id string) (*models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, ok := s.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &section, nil
}

func (s *sectionStoreStub) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error) {
	all, _ := s.ListAll(ctx)
	var out []models.Section
	for _, section := range all {
		if filter.CourseID == "" || section.CourseID == filter.CourseID {
			out = append(out, section)
		}
	}
	return out, len(out), nil
}

func (s *sectionStoreStub) ListAll(ctx context.Context) ([]models.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Section, 0, len(s.sections))
	for _, section := range s.sections {
		out = append(out, section)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *sectionStoreStub) UpdateCapacity(ctx context.Context, id string, capacity int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, ok := s.sections[id]
	if !ok {
		return sql.ErrNoRows
	}
	section.Capacity = capacity
	s.sections[id] = section
	return nil
}

func (s *sectionStoreStub) SetEnrolledCount(ctx context.Context, id string, count int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, ok := s.sections[id]
	if !ok {
		return sql.ErrNoRows
	}
	section.EnrolledCount = count
	s.sections[id] = section
	return nil
}

type notifierStub struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *notifierStub) Notify(ctx context.Context, event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *notifierStub) ofType(eventType models.EventType) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Event
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type auditRecorder struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditRecorder) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

var (
	adminClaims = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	testEpoch   = time.Date(2024, 8, 1, 8, 0, 0, 0, time.UTC)
)

type enrollmentFixture struct {
	svc      *EnrollmentService
	requests *enrollmentRepoStub
	seats    *membershipStub
	sections *sectionStoreStub
	tracker  *SectionCapacityTracker
	events   *notifierStub
	audit    *auditRecorder
}

func newEnrollmentFixture(t *testing.T, maxWaitlist int, sections ...models.Section) *enrollmentFixture {
	t.Helper()
	f := &enrollmentFixture{
		requests: newEnrollmentRepoStub(),
		seats:    newMembershipStub(),
		sections: newSectionStoreStub(sections...),
		tracker:  NewSectionCapacityTracker(maxWaitlist, nil),
		events:   &notifierStub{},
		audit:    &auditRecorder{},
	}
	for _, s := range sections {
		require.NoError(t, f.tracker.Register(s.ID, s.Capacity))
	}
	f.svc = NewEnrollmentService(f.requests, f.seats, f.sections, f.tracker, NewPriorityScorer(10, 1), f.events, f.audit, nil,
		EnrollmentOptions{}, nil, nil, WithEnrollmentClock(func() time.Time { return testEpoch }))
	return f
}

func (f *enrollmentFixture) seed(id, student string, score float64, prefs ...string) models.EnrollmentRequest {
	req := models.EnrollmentRequest{
		ID:            id,
		StudentID:     student,
		CourseID:      "course-1",
		PriorityScore: score,
		Status:        models.EnrollmentPending,
		CreatedAt:     testEpoch,
	}
	for i, sectionID := range prefs {
		req.Preferences = append(req.Preferences, models.SectionPreference{SectionID: sectionID, Rank: i + 1})
	}
	f.requests.put(req)
	return req
}

func section(id string, capacity int) models.Section {
	return models.Section{ID: id, CourseID: "course-1", Capacity: capacity}
}

func TestEnrollmentAllocateAdmitsByPriority(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 2))
	batch := []models.EnrollmentRequest{
		f.seed("r1", "s1", 10, "sec-a"),
		f.seed("r2", "s2", 20, "sec-a"),
		f.seed("r3", "s3", 5, "sec-a"),
	}

	results, err := f.svc.Allocate(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, models.EnrollmentApproved, f.requests.get("r1").Status)
	assert.Equal(t, models.EnrollmentApproved, f.requests.get("r2").Status)
	r3 := f.requests.get("r3")
	assert.Equal(t, models.EnrollmentWaitlisted, r3.Status)
	require.NotNil(t, r3.WaitlistPosition)
	assert.Equal(t, 1, *r3.WaitlistPosition)
	assert.True(t, r3.IsWaitlist())

	view, err := f.tracker.Snapshot("sec-a")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Enrolled)
	assert.Equal(t, []WaitlistSlot{{HolderID: "r3", Position: 1}}, view.Waitlist)

	stored, _ := f.sections.GetByID(context.Background(), "sec-a")
	assert.Equal(t, 2, stored.EnrolledCount)
	assert.Len(t, f.events.ofType(models.EventEnrollmentApproved), 2)
	assert.Len(t, f.events.ofType(models.EventEnrollmentWaitlisted), 1)
}

func TestEnrollmentDropPromotesWaitlistHead(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 2))
	batch := []models.EnrollmentRequest{
		f.seed("r1", "s1", 10, "sec-a"),
		f.seed("r2", "s2", 20, "sec-a"),
		f.seed("r3", "s3", 5, "sec-a"),
	}
	_, err := f.svc.Allocate(context.Background(), batch)
	require.NoError(t, err)

	promoted, err := f.svc.DropSeat(context.Background(), "sec-a", dto.DropSeatRequest{StudentID: "s1"}, adminClaims)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, "r3", promoted.ID)
	assert.Equal(t, models.EnrollmentApproved, f.requests.get("r3").Status)
	assert.Nil(t, f.requests.get("r3").WaitlistPosition)

	view, err := f.tracker.Snapshot("sec-a")
	require.NoError(t, err)
	assert.Equal(t, 2, view.Enrolled)
	assert.Empty(t, view.Waitlist)
	assert.Equal(t, []string{"r2", "r3"}, view.Holders)

	seat, err := f.seats.FindActive(context.Background(), "s3", "sec-a")
	require.NoError(t, err)
	assert.Equal(t, "r3", seat.HolderID)
	_, err = f.seats.FindActive(context.Background(), "s1", "sec-a")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.Len(t, f.events.ofType(models.EventEnrollmentPromoted), 1)
	assert.Contains(t, f.audit.actions(), models.AuditActionSeatDrop)
	assert.Contains(t, f.audit.actions(), models.AuditActionEnrollmentPromote)
}

func TestEnrollmentAllocateFallsBackToNextPreference(t *testing.T) {
	f := newEnrollmentFixture(t, 1, section("sec-a", 1), section("sec-b", 1))
	batch := []models.EnrollmentRequest{
		f.seed("r1", "s1", 30, "sec-a", "sec-b"),
		f.seed("r2", "s2", 20, "sec-a", "sec-b"),
		f.seed("r3", "s3", 10, "sec-a", "sec-b"),
		f.seed("r4", "s4", 5, "sec-a"),
	}

	results, err := f.svc.Allocate(context.Background(), batch)
	require.NoError(t, err)

	byID := make(map[string]models.EnrollmentRequest)
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.Equal(t, models.EnrollmentApproved, byID["r1"].Status)
	assert.Equal(t, "sec-a", *byID["r1"].SectionID)
	assert.Equal(t, models.EnrollmentWaitlisted, byID["r2"].Status)
	assert.Equal(t, "sec-a", *byID["r2"].SectionID)
	assert.Equal(t, models.EnrollmentApproved, byID["r3"].Status)
	assert.Equal(t, "sec-b", *byID["r3"].SectionID)
	assert.Equal(t, 2, byID["r3"].PreferenceRank)
	assert.Equal(t, models.EnrollmentDenied, byID["r4"].Status)
	assert.Equal(t, reasonAllFull, byID["r4"].StatusReason)
}

func TestEnrollmentAllocateIsDeterministic(t *testing.T) {
	run := func(order []int) map[string]string {
		f := newEnrollmentFixture(t, 2, section("sec-a", 2), section("sec-b", 1))
		all := []models.EnrollmentRequest{
			f.seed("r1", "s1", 10, "sec-a", "sec-b"),
			f.seed("r2", "s2", 10, "sec-b", "sec-a"),
			f.seed("r3", "s3", 15, "sec-a"),
			f.seed("r4", "s4", 10, "sec-a", "sec-b"),
			f.seed("r5", "s5", 1, "sec-b"),
			f.seed("r6", "s6", 10, "sec-a"),
		}
		batch := make([]models.EnrollmentRequest, 0, len(order))
		for _, i := range order {
			batch = append(batch, all[i])
		}
		results, err := f.svc.Allocate(context.Background(), batch)
		require.NoError(t, err)
		out := make(map[string]string)
		for _, r := range results {
			place := string(r.Status)
			if r.SectionID != nil {
				place += "@" + *r.SectionID
			}
			if r.WaitlistPosition != nil {
				place += fmt.Sprintf("#%d", *r.WaitlistPosition)
			}
			out[r.ID] = place
		}
		return out
	}

	first := run([]int{0, 1, 2, 3, 4, 5})
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run([]int{5, 3, 1, 4, 0, 2}))
		assert.Equal(t, first, run([]int{2, 0, 4, 1, 5, 3}))
	}
}

func TestEnrollmentAllocateIsIdempotent(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1))
	r1 := f.seed("r1", "s1", 10, "sec-a")
	r2 := f.seed("r2", "s2", 5, "sec-a")

	_, err := f.svc.Allocate(context.Background(), []models.EnrollmentRequest{r1, r2, r1})
	require.NoError(t, err)

	// Stale PENDING copies must not reserve twice.
	again, err := f.svc.Allocate(context.Background(), []models.EnrollmentRequest{r1, r2})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentApproved, again[0].Status)
	assert.Equal(t, models.EnrollmentWaitlisted, again[1].Status)

	view, err := f.tracker.Snapshot("sec-a")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Enrolled)
	assert.Len(t, view.Waitlist, 1)
	active, _ := f.seats.ListActive(context.Background())
	assert.Len(t, active, 1)
}

func TestEnrollmentHandlePromotionIntegrity(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1))

	_, err := f.svc.HandlePromotion(context.Background(), "sec-a", "ghost")
	require.ErrorIs(t, err, appErrors.ErrIntegrity)

	pending := f.seed("r1", "s1", 1, "sec-a")
	_, err = f.svc.HandlePromotion(context.Background(), "sec-a", pending.ID)
	require.ErrorIs(t, err, appErrors.ErrIntegrity)
}

func TestEnrollmentWaitlistPositionFollowsConcurrentPromotion(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1))
	_, err := f.svc.Allocate(context.Background(), []models.EnrollmentRequest{
		f.seed("r1", "s1", 30, "sec-a"),
		f.seed("r2", "s2", 20, "sec-a"),
		f.seed("r3", "s3", 10, "sec-a"),
	})
	require.NoError(t, err)
	late := f.seed("r4", "s4", 5, "sec-a")

	// s1 drops after r4 is queued at position 3 but before that placement is stored.
	f.requests.beforeOutcome = func(req models.EnrollmentRequest) bool {
		if req.ID != "r4" || req.Status != models.EnrollmentWaitlisted {
			return false
		}
		_, err := f.svc.DropSeat(context.Background(), "sec-a", dto.DropSeatRequest{StudentID: "s1"}, adminClaims)
		assert.NoError(t, err)
		return true
	}
	results, err := f.svc.Allocate(context.Background(), []models.EnrollmentRequest{late})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, models.EnrollmentApproved, f.requests.get("r2").Status)
	r3, r4 := f.requests.get("r3"), f.requests.get("r4")
	require.NotNil(t, r3.WaitlistPosition)
	require.NotNil(t, r4.WaitlistPosition)
	assert.Equal(t, 1, *r3.WaitlistPosition)
	assert.Equal(t, 2, *r4.WaitlistPosition)
	assert.Equal(t, 2, *results[0].WaitlistPosition)

	view, err := f.tracker.Snapshot("sec-a")
	require.NoError(t, err)
	assert.Equal(t, []WaitlistSlot{{HolderID: "r3", Position: 1}, {HolderID: "r4", Position: 2}}, view.Waitlist)

	var queued []string
	for _, e := range f.events.ofType(models.EventEnrollmentWaitlisted) {
		if e.EntityID == "r4" {
			queued = append(queued, e.Meta["waitlistPosition"])
		}
	}
	assert.Equal(t, []string{"2"}, queued)
}

func TestEnrollmentWithdrawLeavesWaitlist(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1))
	batch := []models.EnrollmentRequest{
		f.seed("r1", "s1", 30, "sec-a"),
		f.seed("r2", "s2", 20, "sec-a"),
		f.seed("r3", "s3", 10, "sec-a"),
	}
	_, err := f.svc.Allocate(context.Background(), batch)
	require.NoError(t, err)

	student := &models.JWTClaims{UserID: "s2", Role: models.RoleStudent}
	cancelled, err := f.svc.Withdraw(context.Background(), "r2", dto.WithdrawEnrollmentRequest{}, student)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCancelled, cancelled.Status)
	assert.Equal(t, reasonWithdrawn, cancelled.StatusReason)

	slots, err := f.tracker.Waitlist("sec-a")
	require.NoError(t, err)
	assert.Equal(t, []WaitlistSlot{{HolderID: "r3", Position: 1}}, slots)
	assert.Equal(t, 1, *f.requests.get("r3").WaitlistPosition)

	_, err = f.svc.Withdraw(context.Background(), "r1", dto.WithdrawEnrollmentRequest{}, adminClaims)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	other := &models.JWTClaims{UserID: "s9", Role: models.RoleStudent}
	_, err = f.svc.Withdraw(context.Background(), "r3", dto.WithdrawEnrollmentRequest{}, other)
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestEnrollmentSubmitValidatesPreferences(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1), section("sec-b", 1),
		models.Section{ID: "sec-x", CourseID: "course-2", Capacity: 1})
	ctx := context.Background()

	cases := []struct {
		name  string
		prefs []dto.SectionPreferenceInput
	}{
		{"duplicate rank", []dto.SectionPreferenceInput{{SectionID: "sec-a", Rank: 1}, {SectionID: "sec-b", Rank: 1}}},
		{"duplicate section", []dto.SectionPreferenceInput{{SectionID: "sec-a", Rank: 1}, {SectionID: "sec-a", Rank: 2}}},
		{"gap in ranks", []dto.SectionPreferenceInput{{SectionID: "sec-a", Rank: 1}, {SectionID: "sec-b", Rank: 3}}},
		{"foreign course", []dto.SectionPreferenceInput{{SectionID: "sec-x", Rank: 1}}},
		{"unknown section", []dto.SectionPreferenceInput{{SectionID: "nope", Rank: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, dto.SubmitEnrollmentRequest{StudentID: "s1", CourseID: "course-1", Preferences: tc.prefs}, adminClaims)
			require.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}

	req := dto.SubmitEnrollmentRequest{
		StudentID:     "s1",
		CourseID:      "course-1",
		PriorityScore: 4,
		Preferences:   []dto.SectionPreferenceInput{{SectionID: "sec-b", Rank: 2}, {SectionID: "sec-a", Rank: 1}},
	}
	created, err := f.svc.Submit(ctx, req, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPending, created.Status)
	assert.Equal(t, "sec-a", created.Preferences[0].SectionID)

	_, err = f.svc.Submit(ctx, req, adminClaims)
	require.ErrorIs(t, err, appErrors.ErrConflict, "second open request for the course")

	_, err = f.svc.Submit(ctx, dto.SubmitEnrollmentRequest{StudentID: "s2", CourseID: "course-1", Preferences: req.Preferences}, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestEnrollmentSubmitAllocatesWhenConfigured(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1))
	f.svc.opts.AllocateOnSubmit = true

	created, err := f.svc.Submit(context.Background(), dto.SubmitEnrollmentRequest{
		StudentID:   "s1",
		CourseID:    "course-1",
		Preferences: []dto.SectionPreferenceInput{{SectionID: "sec-a", Rank: 1}},
	}, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentApproved, created.Status)
	assert.Equal(t, 1, created.PreferenceRank)
}

func TestEnrollmentRestoreRebuildsTracker(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 2))
	_, err := f.svc.Allocate(context.Background(), []models.EnrollmentRequest{
		f.seed("r1", "s1", 10, "sec-a"),
		f.seed("r2", "s2", 20, "sec-a"),
		f.seed("r3", "s3", 5, "sec-a"),
		f.seed("r4", "s4", 1, "sec-a"),
	})
	require.NoError(t, err)

	// Capacity grew while the process was down.
	require.NoError(t, f.sections.UpdateCapacity(context.Background(), "sec-a", 3, testEpoch))
	fresh := NewSectionCapacityTracker(0, nil)
	f.svc.tracker = fresh

	require.NoError(t, f.svc.Restore(context.Background()))
	view, err := fresh.Snapshot("sec-a")
	require.NoError(t, err)
	assert.Equal(t, 3, view.Enrolled)
	assert.Equal(t, []WaitlistSlot{{HolderID: "r4", Position: 1}}, view.Waitlist)
	assert.Equal(t, models.EnrollmentApproved, f.requests.get("r3").Status)
	assert.Equal(t, 1, *f.requests.get("r4").WaitlistPosition)
}

func TestEnrollmentRunAllocationSummaries(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1))
	f.seed("r1", "s1", 10, "sec-a")
	f.seed("r2", "s2", 5, "sec-a")

	_, err := f.svc.RunAllocation(context.Background(), dto.AllocateEnrollmentRequest{})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	result, err := f.svc.RunAllocation(context.Background(), dto.AllocateEnrollmentRequest{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Approved)
	assert.Equal(t, 1, result.Waitlisted)
	assert.Zero(t, result.Denied)
}

func TestEnrollmentRunAllocationAsync(t *testing.T) {
	f := newEnrollmentFixture(t, 0, section("sec-a", 1))
	f.seed("r1", "s1", 10, "sec-a")
	f.svc.Start(context.Background())
	defer f.svc.Stop()

	result, err := f.svc.RunAllocation(context.Background(), dto.AllocateEnrollmentRequest{CourseID: "course-1", Async: true})
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)
	assert.Eventually(t, func() bool {
		return f.requests.get("r1").Status == models.EnrollmentApproved
	}, 2*time.Second, 5*time.Millisecond)
}
