package types

import "time"

// Window day bounds.
const (
	MinWindowDays     = 1
	MaxWindowDays     = 30
	DefaultWindowDays = 3
)

// TimeWindow is an inclusive calendar-date range [Start, End].
type TimeWindow struct {
	Start Date
	End   Date
}

// ClampWindowDays forces days into [MinWindowDays, MaxWindowDays].
func ClampWindowDays(days int) int {
	if days < MinWindowDays {
		return MinWindowDays
	}
	if days > MaxWindowDays {
		return MaxWindowDays
	}
	return days
}

// NewTimeWindow returns the window ending on today's calendar date and
// starting days earlier. days is clamped.
func NewTimeWindow(today time.Time, days int) TimeWindow {
	days = ClampWindowDays(days)
	end := NewDate(today)
	return TimeWindow{
		Start: Date{end.AddDate(0, 0, -days)},
		End:   end,
	}
}

// Contains reports whether t falls on a calendar date inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	d := NewDate(t)
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}

// ContainsDate is Contains for an already-truncated date.
func (w TimeWindow) ContainsDate(d *Date) bool {
	if d == nil {
		return false
	}
	return w.Contains(d.Time)
}

func (w TimeWindow) String() string {
	return w.Start.String() + ".." + w.End.String()
}
