package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// GradingPeriod is a dated slice of an academic year (semester, quarter...).
type GradingPeriod struct {
	ID           string    `db:"id" json:"id"`
	AcademicYear string    `db:"academic_year" json:"academicYear"`
	Name         string    `db:"name" json:"name"`
	Sequence     int       `db:"sequence" json:"sequence"`
	StartDate    time.Time `db:"start_date" json:"startDate"`
	EndDate      time.Time `db:"end_date" json:"endDate"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Overlaps reports whether two grading periods share at least one day.
// Both bounds are inclusive dates.
func (g GradingPeriod) Overlaps(other GradingPeriod) bool {
	return !g.StartDate.After(other.EndDate) && !other.StartDate.After(g.EndDate)
}

// Contains reports whether the instant falls on a day inside the period.
func (g GradingPeriod) Contains(at time.Time) bool {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(dateOnly(g.StartDate)) && !day.After(dateOnly(g.EndDate))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// String renders the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON encodes the time as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DayMask is a bit set of weekdays, Monday = bit 0 through Sunday = bit 6.
type DayMask uint8

const (
	Monday DayMask = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = []struct {
	mask DayMask
	name string
}{
	{Monday, "MON"}, {Tuesday, "TUE"}, {Wednesday, "WED"}, {Thursday, "THU"},
	{Friday, "FRI"}, {Saturday, "SAT"}, {Sunday, "SUN"},
}

// ParseDays builds a mask from day abbreviations such as MON or Wednesday.
func ParseDays(days []string) (DayMask, error) {
	var mask DayMask
	for _, day := range days {
		key := strings.ToUpper(strings.TrimSpace(day))
		if len(key) > 3 {
			key = key[:3]
		}
		found := false
		for _, d := range dayNames {
			if d.name == key {
				mask |= d.mask
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown day %q", day)
		}
	}
	return mask, nil
}

// Days lists the abbreviations in the mask, Monday first.
func (m DayMask) Days() []string {
	out := make([]string, 0, 7)
	for _, d := range dayNames {
		if m&d.mask != 0 {
			out = append(out, d.name)
		}
	}
	return out
}

// Includes reports whether the weekday is in the mask.
func (m DayMask) Includes(day time.Weekday) bool {
	// time.Weekday starts on Sunday.
	idx := (int(day) + 6) % 7
	return m&(1<<uint(idx)) != 0
}

// PeriodTimer is a recurring daily window in which a section meets.
type PeriodTimer struct {
	ID           string    `db:"id" json:"id"`
	SectionID    string    `db:"section_id" json:"sectionId"`
	PeriodNumber int       `db:"period_number" json:"periodNumber"`
	StartTime    TimeOfDay `db:"start_minute" json:"startTime"`
	EndTime      TimeOfDay `db:"end_minute" json:"endTime"`
	Days         DayMask   `db:"days_mask" json:"-"`
	// Attendance may be taken from OpensBefore minutes before the start until
	// ClosesAfter minutes after it.
	AttendanceOpensBefore int       `db:"attendance_opens_before" json:"attendanceOpensBefore"`
	AttendanceClosesAfter int       `db:"attendance_closes_after" json:"attendanceClosesAfter"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
}

// MarshalJSON adds the readable day list to the payload.
func (p PeriodTimer) MarshalJSON() ([]byte, error) {
	type alias PeriodTimer
	return json.Marshal(struct {
		alias
		DaysOfWeek []string `json:"daysOfWeek"`
	}{alias: alias(p), DaysOfWeek: p.Days.Days()})
}

// UnmarshalJSON restores the day mask from daysOfWeek.
func (p *PeriodTimer) UnmarshalJSON(data []byte) error {
	type alias PeriodTimer
	aux := struct {
		*alias
		DaysOfWeek []string `json:"daysOfWeek"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	mask, err := ParseDays(aux.DaysOfWeek)
	if err != nil {
		return err
	}
	p.Days = mask
	return nil
}

// Valid enforces start < end and at least one meeting day.
func (p PeriodTimer) Valid() error {
	if p.StartTime < 0 || p.EndTime > 24*60 {
		return fmt.Errorf("period %d: time outside the day", p.PeriodNumber)
	}
	if p.StartTime >= p.EndTime {
		return fmt.Errorf("period %d: start %s must be before end %s", p.PeriodNumber, p.StartTime, p.EndTime)
	}
	if p.Days == 0 {
		return fmt.Errorf("period %d: no meeting days", p.PeriodNumber)
	}
	return nil
}

// Overlaps uses the half-open test on [start,end) for timers that share a day.
func (p PeriodTimer) Overlaps(other PeriodTimer) bool {
	if p.Days&other.Days == 0 {
		return false
	}
	return p.StartTime < other.EndTime && other.StartTime < p.EndTime
}

// WithinAttendanceWindow reports whether attendance can be recorded at the instant.
func (p PeriodTimer) WithinAttendanceWindow(at time.Time) bool {
	if !p.Days.Includes(at.Weekday()) {
		return false
	}
	minute := at.Hour()*60 + at.Minute()
	opens := int(p.StartTime) - p.AttendanceOpensBefore
	closes := int(p.StartTime) + p.AttendanceClosesAfter
	return minute >= opens && minute <= closes
}

// PeriodConflict names two overlapping timers.
type PeriodConflict struct {
	ExistingSectionID  string   `json:"existingSectionId"`
	ExistingPeriod     int      `json:"existingPeriod"`
	CandidateSectionID string   `json:"candidateSectionId"`
	CandidatePeriod    int      `json:"candidatePeriod"`
	Days               []string `json:"days"`
}
