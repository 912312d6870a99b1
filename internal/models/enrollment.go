package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EnrollmentRequestStatus represents the lifecycle of a course enrollment request.
type EnrollmentRequestStatus string

// Possible enrollment request statuses.
const (
	EnrollmentPending    EnrollmentRequestStatus = "PENDING"
	EnrollmentApproved   EnrollmentRequestStatus = "APPROVED"
	EnrollmentDenied     EnrollmentRequestStatus = "DENIED"
	EnrollmentWaitlisted EnrollmentRequestStatus = "WAITLISTED"
	EnrollmentCancelled  EnrollmentRequestStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible.
func (s EnrollmentRequestStatus) IsTerminal() bool {
	switch s {
	case EnrollmentApproved, EnrollmentDenied, EnrollmentCancelled:
		return true
	}
	return false
}

// Valid reports whether the status is known.
func (s EnrollmentRequestStatus) Valid() bool {
	switch s {
	case EnrollmentPending, EnrollmentApproved, EnrollmentDenied, EnrollmentWaitlisted, EnrollmentCancelled:
		return true
	}
	return false
}

// SectionPreference is one ranked section choice; rank 1 is most preferred.
type SectionPreference struct {
	SectionID string `json:"sectionId"`
	Rank      int    `json:"preferenceRank"`
}

// SectionPreferences is stored as a JSON column.
type SectionPreferences []SectionPreference

// Value implements driver.Valuer.
func (p SectionPreferences) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *SectionPreferences) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported preferences type %T", src)
	}
	return json.Unmarshal(raw, p)
}

// Ordered returns a copy sorted by rank.
func (p SectionPreferences) Ordered() SectionPreferences {
	out := append(SectionPreferences(nil), p...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// RankOf returns the rank of the section or 0 when it was not requested.
func (p SectionPreferences) RankOf(sectionID string) int {
	for _, pref := range p {
		if pref.SectionID == sectionID {
			return pref.Rank
		}
	}
	return 0
}

// EnrollmentRequest is a student's ranked request for a seat in one course.
// Values are snapshots: transitions return a new value and leave the receiver untouched.
type EnrollmentRequest struct {
	ID            string                  `db:"id" json:"id"`
	StudentID     string                  `db:"student_id" json:"studentId"`
	CourseID      string                  `db:"course_id" json:"courseId"`
	Preferences   SectionPreferences      `db:"preferences" json:"preferences"`
	PriorityScore float64                 `db:"priority_score" json:"priorityScore"`
	Status        EnrollmentRequestStatus `db:"status" json:"requestStatus"`
	// SectionID and PreferenceRank identify the section the request was approved or
	// waitlisted in; PreferenceRank is zero until then.
	SectionID        *string    `db:"section_id" json:"sectionId,omitempty"`
	PreferenceRank   int        `db:"preference_rank" json:"preferenceRank,omitempty"`
	WaitlistPosition *int       `db:"waitlist_position" json:"waitlistPosition,omitempty"`
	StatusReason     string     `db:"status_reason" json:"statusReason"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	ProcessedAt      *time.Time `db:"processed_at" json:"processedAt,omitempty"`
}

// IsWaitlist mirrors the boundary flag.
func (r EnrollmentRequest) IsWaitlist() bool {
	return r.Status == EnrollmentWaitlisted
}

// MarshalJSON exposes isWaitlist alongside the stored fields.
func (r EnrollmentRequest) MarshalJSON() ([]byte, error) {
	type alias EnrollmentRequest
	return json.Marshal(struct {
		alias
		IsWaitlist bool `json:"isWaitlist"`
	}{alias: alias(r), IsWaitlist: r.IsWaitlist()})
}

// TransitionError reports a forbidden status change.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (r EnrollmentRequest) transitionErr(to EnrollmentRequestStatus) error {
	return &TransitionError{Entity: "enrollment request", ID: r.ID, From: string(r.Status), To: string(to)}
}

// Approve seats the request in a section. Allowed from PENDING and WAITLISTED (promotion).
func (r EnrollmentRequest) Approve(sectionID string, reason string, at time.Time) (EnrollmentRequest, error) {
	if r.Status != EnrollmentPending && r.Status != EnrollmentWaitlisted {
		return r, r.transitionErr(EnrollmentApproved)
	}
	next := r.stamped(EnrollmentApproved, reason, at)
	next.SectionID = stringPtr(sectionID)
	next.PreferenceRank = r.Preferences.RankOf(sectionID)
	next.WaitlistPosition = nil
	return next, nil
}

// Waitlist queues a pending request at the given 1-based position.
func (r EnrollmentRequest) Waitlist(sectionID string, position int, reason string, at time.Time) (EnrollmentRequest, error) {
	if r.Status != EnrollmentPending {
		return r, r.transitionErr(EnrollmentWaitlisted)
	}
	if position < 1 {
		return r, fmt.Errorf("enrollment request %s: waitlist position must be positive, got %d", r.ID, position)
	}
	next := r.stamped(EnrollmentWaitlisted, reason, at)
	next.SectionID = stringPtr(sectionID)
	next.PreferenceRank = r.Preferences.RankOf(sectionID)
	next.WaitlistPosition = intPtr(position)
	return next, nil
}

// Deny rejects a pending request; a reason is mandatory.
func (r EnrollmentRequest) Deny(reason string, at time.Time) (EnrollmentRequest, error) {
	if r.Status != EnrollmentPending {
		return r, r.transitionErr(EnrollmentDenied)
	}
	if strings.TrimSpace(reason) == "" {
		return r, fmt.Errorf("enrollment request %s: denial requires a reason", r.ID)
	}
	next := r.stamped(EnrollmentDenied, reason, at)
	next.WaitlistPosition = nil
	return next, nil
}

// Cancel withdraws a pending or waitlisted request.
func (r EnrollmentRequest) Cancel(reason string, at time.Time) (EnrollmentRequest, error) {
	if r.Status != EnrollmentPending && r.Status != EnrollmentWaitlisted {
		return r, r.transitionErr(EnrollmentCancelled)
	}
	next := r.stamped(EnrollmentCancelled, reason, at)
	next.WaitlistPosition = nil
	return next, nil
}

// Reposition moves a waitlisted request to a new position without changing its status.
func (r EnrollmentRequest) Reposition(position int) (EnrollmentRequest, error) {
	if r.Status != EnrollmentWaitlisted {
		return r, r.transitionErr(EnrollmentWaitlisted)
	}
	next := r
	next.WaitlistPosition = intPtr(position)
	return next, nil
}

func (r EnrollmentRequest) stamped(status EnrollmentRequestStatus, reason string, at time.Time) EnrollmentRequest {
	next := r
	next.Preferences = append(SectionPreferences(nil), r.Preferences...)
	next.Status = status
	next.StatusReason = reason
	ts := at.UTC()
	next.ProcessedAt = &ts
	return next
}

// EnrollmentRequestFilter narrows list queries.
type EnrollmentRequestFilter struct {
	StudentID string
	CourseID  string
	SectionID string
	Status    []EnrollmentRequestStatus
	Page      int
	PageSize  int
}

// Section is a schedulable offering of a course with a seat limit.
type Section struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"courseId"`
	GradingPeriodID string    `db:"grading_period_id" json:"gradingPeriodId"`
	Name            string    `db:"name" json:"name"`
	Capacity        int       `db:"capacity" json:"capacity"`
	EnrolledCount   int       `db:"enrolled_count" json:"enrolledCount"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// SeatsAvailable returns remaining capacity, never negative.
func (s Section) SeatsAvailable() int {
	if s.EnrolledCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.EnrolledCount
}

// SectionFilter narrows section listings.
type SectionFilter struct {
	CourseID        string
	GradingPeriodID string
	Page            int
	PageSize        int
}

// SeatSource records what placed a student in a section.
type SeatSource string

const (
	SeatSourceEnrollment     SeatSource = "ENROLLMENT"
	SeatSourceScheduleChange SeatSource = "SCHEDULE_CHANGE"
)

// StudentSection is a student's seat in a section. HolderID is the request id the
// capacity tracker knows the seat by.
type StudentSection struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"studentId"`
	SectionID  string     `db:"section_id" json:"sectionId"`
	CourseID   string     `db:"course_id" json:"courseId"`
	HolderID   string     `db:"holder_id" json:"holderId"`
	Source     SeatSource `db:"source" json:"source"`
	Active     bool       `db:"active" json:"active"`
	JoinedAt   time.Time  `db:"joined_at" json:"joinedAt"`
	DroppedAt  *time.Time `db:"dropped_at" json:"droppedAt,omitempty"`
	DropReason *string    `db:"drop_reason" json:"dropReason,omitempty"`
}

func stringPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }
