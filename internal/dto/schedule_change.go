package dto

import "github.com/noah-isme/sma-enrollment-api/internal/models"

// SubmitScheduleChangeRequest payload for an add, drop or swap.
type SubmitScheduleChangeRequest struct {
	StudentID          string                    `json:"studentId" validate:"required"`
	RequestType        models.ScheduleChangeType `json:"requestType" validate:"required,oneof=ADD DROP SWAP"`
	CurrentCourseID    string                    `json:"currentCourseId"`
	CurrentSectionID   string                    `json:"currentSectionId"`
	RequestedCourseID  string                    `json:"requestedCourseId"`
	RequestedSectionID string                    `json:"requestedSectionId"`
	PriorityLevel      models.PriorityLevel      `json:"priorityLevel" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	Reason             string                    `json:"reason" validate:"required,max=500"`
	GradingPeriodID    string                    `json:"gradingPeriodId"`
	AcademicYear       string                    `json:"academicYear"`
}

// ReviewDecision is the reviewer's verdict.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "APPROVE"
	DecisionDeny    ReviewDecision = "DENY"
)

// ReviewScheduleChangeRequest captures the reviewer decision.
type ReviewScheduleChangeRequest struct {
	Decision     ReviewDecision `json:"decision" validate:"required,oneof=APPROVE DENY"`
	Notes        string         `json:"notes" validate:"max=1000"`
	DenialReason string         `json:"denialReason" validate:"max=500"`
}

// SweepResult lists the requests newly flagged overdue.
type SweepResult struct {
	Flagged []models.ScheduleChangeRequest `json:"flagged"`
	Count   int                            `json:"count"`
}

// ScheduleChangeQuery mirrors supported listing filters.
type ScheduleChangeQuery struct {
	StudentID   string
	Status      []models.ScheduleChangeStatus
	RequestType models.ScheduleChangeType
	OverdueOnly bool
	Limit       int
	Offset      int
}
