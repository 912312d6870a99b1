package dto

import "github.com/noah-isme/sma-enrollment-api/internal/models"

// CreateGradingPeriodRequest payload for a grading period. Dates are YYYY-MM-DD.
type CreateGradingPeriodRequest struct {
	AcademicYear string `json:"academicYear" validate:"required"`
	Name         string `json:"name" validate:"required,max=100"`
	Sequence     int    `json:"sequence" validate:"min=1"`
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// CreatePeriodTimerRequest payload for a section meeting window. Times are HH:MM.
type CreatePeriodTimerRequest struct {
	SectionID             string   `json:"sectionId" validate:"required"`
	PeriodNumber          int      `json:"periodNumber" validate:"min=1"`
	StartTime             string   `json:"startTime" validate:"required"`
	EndTime               string   `json:"endTime" validate:"required"`
	DaysOfWeek            []string `json:"daysOfWeek" validate:"required,min=1"`
	AttendanceOpensBefore int      `json:"attendanceOpensBefore" validate:"min=0,max=120"`
	AttendanceClosesAfter int      `json:"attendanceClosesAfter" validate:"min=0,max=120"`
}

// ConflictCheckRequest asks whether a student could take a section.
type ConflictCheckRequest struct {
	StudentID     string `json:"studentId" validate:"required"`
	SectionID     string `json:"sectionId" validate:"required"`
	DropSectionID string `json:"dropSectionId"`
}

// ConflictCheckResponse lists the overlapping meeting windows, if any.
type ConflictCheckResponse struct {
	Conflict  bool                    `json:"conflict"`
	Conflicts []models.PeriodConflict `json:"conflicts"`
}
