package dto

import "github.com/noah-isme/sma-enrollment-api/internal/models"

// CreateSectionRequest payload for opening a section.
type CreateSectionRequest struct {
	CourseID        string `json:"courseId" validate:"required"`
	GradingPeriodID string `json:"gradingPeriodId" validate:"required"`
	Name            string `json:"name" validate:"required,max=100"`
	Capacity        int    `json:"capacity" validate:"min=0"`
}

// UpdateCapacityRequest changes a section's seat limit.
type UpdateCapacityRequest struct {
	Capacity int `json:"capacity" validate:"min=0"`
}

// DropSeatRequest releases a student's seat.
type DropSeatRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

// WaitlistEntry is one queued holder with its 1-based position.
type WaitlistEntry struct {
	HolderID string `json:"holderId"`
	Position int    `json:"position"`
}

// SectionRoster is the live seat picture of a section.
type SectionRoster struct {
	Section        models.Section          `json:"section"`
	Enrolled       []models.StudentSection `json:"enrolled"`
	Waitlist       []WaitlistEntry         `json:"waitlist"`
	SeatsAvailable int                     `json:"seatsAvailable"`
}

// CapacityUpdateResult reports the new section state and who got promoted.
type CapacityUpdateResult struct {
	Section  models.Section             `json:"section"`
	Promoted []models.EnrollmentRequest `json:"promoted"`
}
