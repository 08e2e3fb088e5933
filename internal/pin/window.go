package pin

import (
	"fmt"
	"time"
)

// Kind selects the access window variant.
type Kind string

const (
	KindPermanent Kind = "permanent"
	KindScheduled Kind = "scheduled"
	KindTemporary Kind = "temporary"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Window is an access window. Only the fields of the active Kind are kept:
// Scheduled uses StartDate/EndDate, Temporary uses Date, and both use
// StartTime/EndTime. Empty bounds are open.
type Window struct {
	Kind      Kind   `json:"kind"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Date      string `json:"date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// Permanent returns the always-on window.
func Permanent() Window {
	return Window{Kind: KindPermanent}
}

// ParseKind parses a window kind, case-sensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPermanent, KindScheduled, KindTemporary:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown access window kind %q", s)
	}
}

// Normalize drops every field that does not belong to w.Kind.
func (w Window) Normalize() Window {
	switch w.Kind {
	case KindScheduled:
		return Window{Kind: w.Kind, StartDate: w.StartDate, EndDate: w.EndDate, StartTime: w.StartTime, EndTime: w.EndTime}
	case KindTemporary:
		return Window{Kind: w.Kind, Date: w.Date, StartTime: w.StartTime, EndTime: w.EndTime}
	default:
		return Permanent()
	}
}

// Validate checks field formats and ordering. A start time after the end
// time is an overnight window and is valid.
func (w Window) Validate() error {
	switch w.Kind {
	case KindPermanent:
		return nil
	case KindScheduled:
		start, err := parseDate("start_date", w.StartDate)
		if err != nil {
			return err
		}
		end, err := parseDate("end_date", w.EndDate)
		if err != nil {
			return err
		}
		if !start.IsZero() && !end.IsZero() && start.After(end) {
			return fmt.Errorf("start_date %s is after end_date %s", w.StartDate, w.EndDate)
		}
	case KindTemporary:
		if w.Date == "" {
			return fmt.Errorf("date is required for a temporary window")
		}
		if _, err := parseDate("date", w.Date); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown access window kind %q", w.Kind)
	}

	if (w.StartTime == "") != (w.EndTime == "") {
		return fmt.Errorf("start_time and end_time must be set together")
	}
	if _, err := parseClock("start_time", w.StartTime); err != nil {
		return err
	}
	if _, err := parseClock("end_time", w.EndTime); err != nil {
		return err
	}
	return nil
}

// Evaluator evaluates access windows in a fixed time zone.
type Evaluator struct {
	location *time.Location
}

// NewEvaluator creates a new window evaluator in loc, or local time if nil.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{location: loc}
}

// ActiveAt reports whether w grants access at the given instant. Invalid
// windows are never active.
func (e *Evaluator) ActiveAt(w Window, at time.Time) bool {
	if w.Kind == KindPermanent {
		return true
	}
	if w.Validate() != nil {
		return false
	}

	local := at.In(e.location)
	day := local.Format(dateLayout)
	clock := local.Format(timeLayout)

	switch w.Kind {
	case KindScheduled:
		if w.StartDate != "" && day < w.StartDate {
			return false
		}
		if w.EndDate != "" && day > w.EndDate {
			return false
		}
		return inClock(w.StartTime, w.EndTime, clock)
	case KindTemporary:
		if w.StartTime == "" {
			return day == w.Date
		}
		// Handle overnight windows (e.g., 22:00 to 06:00 the next morning)
		if w.StartTime > w.EndTime {
			next := mustDate(w.Date).AddDate(0, 0, 1).Format(dateLayout)
			return (day == w.Date && clock >= w.StartTime) || (day == next && clock <= w.EndTime)
		}
		return day == w.Date && clock >= w.StartTime && clock <= w.EndTime
	}
	return false
}

// ActiveNow reports whether w grants access right now.
func (e *Evaluator) ActiveNow(w Window) bool {
	return e.ActiveAt(w, time.Now())
}

// inClock checks a daily time range; empty bounds mean the whole day.
func inClock(start, end, clock string) bool {
	if start == "" {
		return true
	}
	if start > end {
		return clock >= start || clock <= end
	}
	return clock >= start && clock <= end
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil || len(s) != len(dateLayout) {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func parseClock(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil || len(s) != len(timeLayout) {
		return time.Time{}, fmt.Errorf("%s must be HH:MM", field)
	}
	return t, nil
}

func mustDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}
