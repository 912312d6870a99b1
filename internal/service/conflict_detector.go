package service

import "github.com/noah-isme/sma-enrollment-api/internal/models"

// ScheduledSection is a section as it sits on a timetable: its meeting windows
// and the grading period it runs in. A nil GradingPeriod is treated as overlapping
// every other period.
type ScheduledSection struct {
	SectionID     string
	GradingPeriod *models.GradingPeriod
	Timers        []models.PeriodTimer
}

// ConflictDetector finds period-time overlaps between sections. It holds no
// state and may be shared between goroutines.
type ConflictDetector struct{}

// NewConflictDetector returns a detector.
func NewConflictDetector() ConflictDetector {
	return ConflictDetector{}
}

// Overlaps reports whether two sections ever meet at the same time. It is symmetric.
func (d ConflictDetector) Overlaps(a, b ScheduledSection) bool {
	return len(d.pairs(a, b)) > 0
}

// HasConflict reports whether adding candidate to the schedule creates an overlap.
// The section named by dropSectionID is ignored, as it leaves the schedule in a swap.
func (d ConflictDetector) HasConflict(schedule []ScheduledSection, candidate ScheduledSection, dropSectionID string) bool {
	return len(d.Conflicts(schedule, candidate, dropSectionID)) > 0
}

// Conflicts lists every overlapping pair of timers between the schedule and the
// candidate. A section already on the schedule conflicts with itself.
func (d ConflictDetector) Conflicts(schedule []ScheduledSection, candidate ScheduledSection, dropSectionID string) []models.PeriodConflict {
	var out []models.PeriodConflict
	for _, existing := range schedule {
		if dropSectionID != "" && existing.SectionID == dropSectionID {
			continue
		}
		out = append(out, d.pairs(existing, candidate)...)
	}
	return out
}

func (d ConflictDetector) pairs(existing, candidate ScheduledSection) []models.PeriodConflict {
	if existing.GradingPeriod != nil && candidate.GradingPeriod != nil &&
		!existing.GradingPeriod.Overlaps(*candidate.GradingPeriod) {
		return nil
	}
	var out []models.PeriodConflict
	for _, a := range existing.Timers {
		for _, b := range candidate.Timers {
			if !a.Overlaps(b) {
				continue
			}
			out = append(out, models.PeriodConflict{
				ExistingSectionID:  existing.SectionID,
				ExistingPeriod:     a.PeriodNumber,
				CandidateSectionID: candidate.SectionID,
				CandidatePeriod:    b.PeriodNumber,
				Days:               (a.Days & b.Days).Days(),
			})
		}
	}
	return out
}
