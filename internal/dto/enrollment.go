package dto

import "github.com/noah-isme/sma-enrollment-api/internal/models"

// SectionPreferenceInput is one ranked section choice.
type SectionPreferenceInput struct {
	SectionID string `json:"sectionId" validate:"required"`
	Rank      int    `json:"preferenceRank" validate:"required,min=1"`
}

// SubmitEnrollmentRequest payload for requesting a seat in a course.
type SubmitEnrollmentRequest struct {
	StudentID     string                   `json:"studentId" validate:"required"`
	CourseID      string                   `json:"courseId" validate:"required"`
	Preferences   []SectionPreferenceInput `json:"preferences" validate:"required,min=1,dive"`
	PriorityScore float64                  `json:"priorityScore" validate:"gte=0"`
}

// AllocateEnrollmentRequest selects the pending requests to allocate. CourseID takes
// every pending request of the course; RequestIDs picks individual requests.
type AllocateEnrollmentRequest struct {
	CourseID   string   `json:"courseId"`
	RequestIDs []string `json:"requestIds"`
	Async      bool     `json:"async"`
}

// AllocationResult summarises one allocation batch.
type AllocationResult struct {
	JobID      string                     `json:"jobId,omitempty"`
	Requests   []models.EnrollmentRequest `json:"requests"`
	Approved   int                        `json:"approved"`
	Waitlisted int                        `json:"waitlisted"`
	Denied     int                        `json:"denied"`
}

// WithdrawEnrollmentRequest optional reason supplied by the student.
type WithdrawEnrollmentRequest struct {
	Reason string `json:"reason"`
}

// EnrollmentQuery mirrors supported listing filters.
type EnrollmentQuery struct {
	StudentID string
	CourseID  string
	SectionID string
	Status    []models.EnrollmentRequestStatus
	Page      int
	PageSize  int
}
