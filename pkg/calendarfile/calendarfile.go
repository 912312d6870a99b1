package calendarfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Seed is the academic calendar as written in a YAML seed file.
type Seed struct {
	AcademicYear   string               `yaml:"academicYear"`
	GradingPeriods []GradingPeriodEntry `yaml:"gradingPeriods"`
	PeriodTimers   []PeriodTimerEntry   `yaml:"periodTimers"`
}

// GradingPeriodEntry describes one grading period with YYYY-MM-DD bounds.
type GradingPeriodEntry struct {
	Name     string `yaml:"name"`
	Sequence int    `yaml:"sequence"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
}

// StartDate parses Start.
func (g GradingPeriodEntry) StartDate() (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(g.Start))
}

// EndDate parses End.
func (g GradingPeriodEntry) EndDate() (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(g.End))
}

// PeriodTimerEntry describes when a section meets. Times are "HH:MM".
type PeriodTimerEntry struct {
	SectionID             string   `yaml:"section"`
	Period                int      `yaml:"period"`
	Start                 string   `yaml:"start"`
	End                   string   `yaml:"end"`
	Days                  []string `yaml:"days"`
	AttendanceOpensBefore int      `yaml:"attendanceOpensBefore"`
	AttendanceClosesAfter int      `yaml:"attendanceClosesAfter"`
}

// Parse decodes and checks a seed payload.
func Parse(data []byte) (*Seed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("calendarfile: payload is empty")
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("calendarfile: decode: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Load reads a seed file from disk. A missing file yields a nil seed.
func Load(path string) (*Seed, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("calendarfile: read %s: %w", trimmed, err)
	}
	seed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("calendarfile: %s: %w", trimmed, err)
	}
	return seed, nil
}

func (s *Seed) validate() error {
	if strings.TrimSpace(s.AcademicYear) == "" {
		return fmt.Errorf("calendarfile: academicYear is required")
	}
	for i, gp := range s.GradingPeriods {
		if strings.TrimSpace(gp.Name) == "" {
			return fmt.Errorf("calendarfile: grading period %d has no name", i+1)
		}
		start, err := gp.StartDate()
		if err != nil {
			return fmt.Errorf("calendarfile: grading period %s start: %w", gp.Name, err)
		}
		end, err := gp.EndDate()
		if err != nil {
			return fmt.Errorf("calendarfile: grading period %s end: %w", gp.Name, err)
		}
		if end.Before(start) {
			return fmt.Errorf("calendarfile: grading period %s ends before it starts", gp.Name)
		}
	}
	for i, pt := range s.PeriodTimers {
		if strings.TrimSpace(pt.SectionID) == "" {
			return fmt.Errorf("calendarfile: period timer %d has no section", i+1)
		}
		if len(pt.Days) == 0 {
			return fmt.Errorf("calendarfile: period timer %d for %s has no days", i+1, pt.SectionID)
		}
	}
	return nil
}
