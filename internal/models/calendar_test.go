package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, raw string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(raw)
	require.NoError(t, err)
	return v
}

func TestPeriodTimerOverlapHalfOpen(t *testing.T) {
	a := PeriodTimer{StartTime: mustTime(t, "09:00"), EndTime: mustTime(t, "09:50"), Days: Monday | Wednesday}
	b := PeriodTimer{StartTime: mustTime(t, "09:30"), EndTime: mustTime(t, "10:20"), Days: Monday}
	c := PeriodTimer{StartTime: mustTime(t, "09:50"), EndTime: mustTime(t, "10:40"), Days: Monday}
	d := PeriodTimer{StartTime: mustTime(t, "09:00"), EndTime: mustTime(t, "09:50"), Days: Tuesday}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c), "back-to-back periods do not overlap")
	assert.False(t, a.Overlaps(d), "no shared day")
}

func TestPeriodTimerValid(t *testing.T) {
	ok := PeriodTimer{PeriodNumber: 1, StartTime: 480, EndTime: 525, Days: Friday}
	require.NoError(t, ok.Valid())

	reversed := ok
	reversed.EndTime = 480
	require.Error(t, reversed.Valid())

	noDays := ok
	noDays.Days = 0
	require.Error(t, noDays.Valid())
}

func TestParseDaysAndMask(t *testing.T) {
	mask, err := ParseDays([]string{"mon", "Wednesday", "FRI"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MON", "WED", "FRI"}, mask.Days())
	assert.True(t, mask.Includes(time.Wednesday))
	assert.False(t, mask.Includes(time.Sunday))

	_, err = ParseDays([]string{"funday"})
	require.Error(t, err)
}

func TestPeriodTimerAttendanceWindow(t *testing.T) {
	timer := PeriodTimer{StartTime: mustTime(t, "08:00"), EndTime: mustTime(t, "08:45"), Days: Monday, AttendanceOpensBefore: 10, AttendanceClosesAfter: 15}
	monday := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, timer.WithinAttendanceWindow(monday.Add(7*time.Hour+55*time.Minute)))
	assert.True(t, timer.WithinAttendanceWindow(monday.Add(8*time.Hour+15*time.Minute)))
	assert.False(t, timer.WithinAttendanceWindow(monday.Add(8*time.Hour+16*time.Minute)))
	assert.False(t, timer.WithinAttendanceWindow(monday.Add(24*time.Hour+8*time.Hour)))
}

func TestTimeOfDayJSON(t *testing.T) {
	raw, err := json.Marshal(mustTime(t, "13:05"))
	require.NoError(t, err)
	assert.Equal(t, `"13:05"`, string(raw))

	var decoded TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"07:30"`), &decoded))
	assert.Equal(t, TimeOfDay(450), decoded)
	require.Error(t, json.Unmarshal([]byte(`"25:99"`), &decoded))
}

func TestGradingPeriodOverlap(t *testing.T) {
	s1 := GradingPeriod{StartDate: date(2025, 7, 14), EndDate: date(2025, 12, 19)}
	s2 := GradingPeriod{StartDate: date(2026, 1, 5), EndDate: date(2026, 6, 12)}
	q := GradingPeriod{StartDate: date(2025, 12, 19), EndDate: date(2026, 1, 10)}

	assert.False(t, s1.Overlaps(s2))
	assert.True(t, s1.Overlaps(q))
	assert.True(t, q.Overlaps(s2))
	assert.True(t, s1.Contains(time.Date(2025, 12, 19, 15, 0, 0, 0, time.UTC)))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodTimerJSONRoundTrip(t *testing.T) {
	in := PeriodTimer{ID: "pt-1", SectionID: "sec-a", PeriodNumber: 2, StartTime: 540, EndTime: 590, Days: Monday | Thursday, AttendanceOpensBefore: 5}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"daysOfWeek":["MON","THU"]`)

	var out PeriodTimer
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.Days, out.Days)
	assert.Equal(t, in.StartTime, out.StartTime)
	assert.Equal(t, in.AttendanceOpensBefore, out.AttendanceOpensBefore)
}
