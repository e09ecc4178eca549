package calendar

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"eastviewpta.org/internal/pta"
)

const (
	DefaultDays   = 30
	MaxDays       = 365
	DefaultLimit  = 5
	rangeRounding = time.Minute
)

// DefaultRange covers DefaultDays from now. The start is truncated so
// consecutive requests share a cache entry.
func DefaultRange(now time.Time) Range {
	return daysFrom(now, DefaultDays)
}

func daysFrom(now time.Time, days int) Range {
	start := now.UTC().Truncate(rangeRounding)
	return Range{Start: start, End: start.AddDate(0, 0, days)}
}

// ResolveRange turns listing query parameters into a Range. An explicit
// start/end pair wins over days; a lone bound is ignored.
func ResolveRange(startDate, endDate, days string, now time.Time) (Range, error) {
	var start, end time.Time
	var err error
	if s := strings.TrimSpace(startDate); s != "" {
		if start, err = parseDate(s); err != nil {
			return Range{}, &pta.ValidationError{Message: "valid start date is required"}
		}
	}
	if s := strings.TrimSpace(endDate); s != "" {
		if end, err = parseDate(s); err != nil {
			return Range{}, &pta.ValidationError{Message: "valid end date is required"}
		}
	}
	if !start.IsZero() && !end.IsZero() {
		if !end.After(start) {
			return Range{}, &pta.ValidationError{Message: "endDate must be after startDate"}
		}
		return Range{Start: start.UTC(), End: end.UTC()}, nil
	}
	if s := strings.TrimSpace(days); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxDays {
			return Range{}, &pta.ValidationError{Message: "days must be between 1 and 365"}
		}
		return daysFrom(now, n), nil
	}
	return DefaultRange(now), nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// Upcoming keeps events starting at or after now, soonest first.
func Upcoming(events []Event, now time.Time, limit int) []Event {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if !ev.Start.Before(now) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

const (
	dayLayout  = "Monday, January 2, 2006"
	timeLayout = "3:04 PM"
)

// FormatRange renders a human label for an event's span in loc. The provider
// stores all-day ends as the exclusive next day; the label is inclusive.
func FormatRange(start, end time.Time, allDay bool, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if allDay {
		// date-only values carry no zone, so they are not shifted into loc
		last := end
		if end.After(start) {
			last = end.AddDate(0, 0, -1)
		}
		if last.IsZero() || sameDay(start, last) {
			return start.Format(dayLayout)
		}
		return start.Format(dayLayout) + " - " + last.Format(dayLayout)
	}
	s := start.In(loc)
	if end.IsZero() {
		return s.Format(dayLayout) + ", " + s.Format(timeLayout)
	}
	e := end.In(loc)
	if sameDay(s, e) {
		return s.Format(dayLayout) + ", " + s.Format(timeLayout) + " - " + e.Format(timeLayout)
	}
	return s.Format(dayLayout) + ", " + s.Format(timeLayout) + " - " + e.Format(dayLayout) + ", " + e.Format(timeLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
