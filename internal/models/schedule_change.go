package models

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleChangeType enumerates supported schedule changes.
type ScheduleChangeType string

const (
	ScheduleChangeAdd  ScheduleChangeType = "ADD"
	ScheduleChangeDrop ScheduleChangeType = "DROP"
	ScheduleChangeSwap ScheduleChangeType = "SWAP"
)

// AddsSection reports whether the change claims a new seat.
func (t ScheduleChangeType) AddsSection() bool {
	return t == ScheduleChangeAdd || t == ScheduleChangeSwap
}

// DropsSection reports whether the change gives a seat back.
func (t ScheduleChangeType) DropsSection() bool {
	return t == ScheduleChangeDrop || t == ScheduleChangeSwap
}

// ScheduleChangeStatus captures workflow states for schedule change requests.
type ScheduleChangeStatus string

const (
	ScheduleChangePending   ScheduleChangeStatus = "PENDING"
	ScheduleChangeApproved  ScheduleChangeStatus = "APPROVED"
	ScheduleChangeDenied    ScheduleChangeStatus = "DENIED"
	ScheduleChangeCompleted ScheduleChangeStatus = "COMPLETED"
	ScheduleChangeCancelled ScheduleChangeStatus = "CANCELLED"
)

// PriorityLevel orders how quickly a change must be handled.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "LOW"
	PriorityNormal PriorityLevel = "NORMAL"
	PriorityHigh   PriorityLevel = "HIGH"
	PriorityUrgent PriorityLevel = "URGENT"
)

// Rank maps the level onto 1 (LOW) .. 4 (URGENT); unknown levels rank 0.
func (p PriorityLevel) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityNormal:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	}
	return 0
}

// IsUrgent reports whether the urgent SLA applies.
func (p PriorityLevel) IsUrgent() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// ScheduleChangeRequest asks to add, drop or swap a section for a student.
type ScheduleChangeRequest struct {
	ID                 string               `db:"id" json:"id"`
	StudentID          string               `db:"student_id" json:"studentId"`
	RequestType        ScheduleChangeType   `db:"request_type" json:"requestType"`
	CurrentCourseID    *string              `db:"current_course_id" json:"currentCourseId,omitempty"`
	CurrentSectionID   *string              `db:"current_section_id" json:"currentSectionId,omitempty"`
	RequestedCourseID  *string              `db:"requested_course_id" json:"requestedCourseId,omitempty"`
	RequestedSectionID *string              `db:"requested_section_id" json:"requestedSectionId,omitempty"`
	Status             ScheduleChangeStatus `db:"status" json:"status"`
	PriorityLevel      PriorityLevel        `db:"priority_level" json:"priorityLevel"`
	Reason             string               `db:"reason" json:"reason"`
	ReviewedByID       *string              `db:"reviewed_by_id" json:"reviewedById,omitempty"`
	ReviewedAt         *time.Time           `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewNotes        *string              `db:"review_notes" json:"reviewNotes,omitempty"`
	DenialReason       *string              `db:"denial_reason" json:"denialReason,omitempty"`
	GradingPeriodID    *string              `db:"grading_period_id" json:"gradingPeriodId,omitempty"`
	AcademicYear       string               `db:"academic_year" json:"academicYear"`
	CanAutoApprove     bool                 `db:"can_auto_approve" json:"canAutoApprove"`
	DueAt              time.Time            `db:"due_at" json:"dueAt"`
	IsOverdue          bool                 `db:"is_overdue" json:"isOverdue"`
	EscalatedAt        *time.Time           `db:"escalated_at" json:"escalatedAt,omitempty"`
	EscalatedTo        *string              `db:"escalated_to" json:"escalatedTo,omitempty"`
	CompletedAt        *time.Time           `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt          time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time            `db:"updated_at" json:"updatedAt"`
}

func (r ScheduleChangeRequest) transitionErr(to ScheduleChangeStatus) error {
	return &TransitionError{Entity: "schedule change", ID: r.ID, From: string(r.Status), To: string(to)}
}

// Approve records the reviewer decision. Reviewer and timestamp are mandatory.
func (r ScheduleChangeRequest) Approve(reviewerID string, notes string, at time.Time) (ScheduleChangeRequest, error) {
	if r.Status != ScheduleChangePending {
		return r, r.transitionErr(ScheduleChangeApproved)
	}
	if strings.TrimSpace(reviewerID) == "" {
		return r, fmt.Errorf("schedule change %s: approval requires a reviewer", r.ID)
	}
	next := r
	next.Status = ScheduleChangeApproved
	next.ReviewedByID = stringPtr(reviewerID)
	ts := at.UTC()
	next.ReviewedAt = &ts
	next.UpdatedAt = ts
	if strings.TrimSpace(notes) != "" {
		next.ReviewNotes = stringPtr(notes)
	}
	return next, nil
}

// Deny rejects a pending change; the denial reason is mandatory.
func (r ScheduleChangeRequest) Deny(reviewerID string, reason string, notes string, at time.Time) (ScheduleChangeRequest, error) {
	if r.Status != ScheduleChangePending {
		return r, r.transitionErr(ScheduleChangeDenied)
	}
	if strings.TrimSpace(reason) == "" {
		return r, fmt.Errorf("schedule change %s: denial requires a reason", r.ID)
	}
	next := r
	next.Status = ScheduleChangeDenied
	next.DenialReason = stringPtr(reason)
	ts := at.UTC()
	next.UpdatedAt = ts
	if reviewerID != "" {
		next.ReviewedByID = stringPtr(reviewerID)
		next.ReviewedAt = &ts
	}
	if strings.TrimSpace(notes) != "" {
		next.ReviewNotes = stringPtr(notes)
	}
	return next, nil
}

// Complete marks an approved change as applied.
func (r ScheduleChangeRequest) Complete(at time.Time) (ScheduleChangeRequest, error) {
	if r.Status != ScheduleChangeApproved {
		return r, r.transitionErr(ScheduleChangeCompleted)
	}
	next := r
	next.Status = ScheduleChangeCompleted
	ts := at.UTC()
	next.CompletedAt = &ts
	next.UpdatedAt = ts
	return next, nil
}

// Cancel withdraws a change before any decision.
func (r ScheduleChangeRequest) Cancel(at time.Time) (ScheduleChangeRequest, error) {
	if r.Status != ScheduleChangePending {
		return r, r.transitionErr(ScheduleChangeCancelled)
	}
	next := r
	next.Status = ScheduleChangeCancelled
	next.UpdatedAt = at.UTC()
	return next, nil
}

// MarkOverdue flags a pending change past its due date. It never changes the status.
func (r ScheduleChangeRequest) MarkOverdue(escalateTo string, at time.Time) (ScheduleChangeRequest, bool) {
	if r.Status != ScheduleChangePending || r.IsOverdue || at.Before(r.DueAt) {
		return r, false
	}
	next := r
	next.IsOverdue = true
	ts := at.UTC()
	next.UpdatedAt = ts
	if escalateTo != "" {
		next.EscalatedAt = &ts
		next.EscalatedTo = stringPtr(escalateTo)
	}
	return next, true
}

// ScheduleChangeFilter constrains listing queries.
type ScheduleChangeFilter struct {
	StudentID   string
	Status      []ScheduleChangeStatus
	RequestType ScheduleChangeType
	OverdueOnly bool
	Limit       int
	Offset      int
}
