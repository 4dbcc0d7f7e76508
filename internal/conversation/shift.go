package conversation

import (
	"fmt"
	"time"
)

// Shift is a coarse time-of-day bucket used to steer recommendations.
type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
	ShiftNight   Shift = "night"
)

// ShiftSchedule splits the day into morning [MorningStart, EveningStart), evening [EveningStart, 24) and
// night [0, MorningStart), evaluated in Location.
type ShiftSchedule struct {
	MorningStart int
	EveningStart int
	Location     *time.Location
}

// DefaultShiftSchedule is 08-16 morning, 16-24 evening, 00-08 night in UTC.
func DefaultShiftSchedule() ShiftSchedule {
	return ShiftSchedule{MorningStart: 8, EveningStart: 16, Location: time.UTC}
}

// At returns the shift containing t.
func (s ShiftSchedule) At(t time.Time) Shift {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	hour := t.In(loc).Hour()
	switch {
	case hour >= s.EveningStart:
		return ShiftEvening
	case hour >= s.MorningStart:
		return ShiftMorning
	default:
		return ShiftNight
	}
}

// Window renders the shift's hour range, e.g. "16:00-24:00".
func (s ShiftSchedule) Window(shift Shift) string {
	switch shift {
	case ShiftMorning:
		return fmt.Sprintf("%02d:00-%02d:00", s.MorningStart, s.EveningStart)
	case ShiftEvening:
		return fmt.Sprintf("%02d:00-24:00", s.EveningStart)
	default:
		return fmt.Sprintf("00:00-%02d:00", s.MorningStart)
	}
}

// Hint is the system-context clause describing the current shift.
func (s ShiftSchedule) Hint(t time.Time) string {
	shift := s.At(t)
	return fmt.Sprintf(
		"It is currently the %s shift (%s). When recommending a doctor or appointment, prefer resources working the %s shift.",
		shift, s.Window(shift), shift,
	)
}
