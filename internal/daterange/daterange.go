// Package daterange turns tool and CLI input into an inclusive calendar
// date range. It accepts explicit ISO dates, relative spans such as "7d"
// or "2w", and fixed presets such as "last_week". Weeks start on Monday.
package daterange

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// Preset names accepted by Preset and Parse.
const (
	Today     = "today"
	Yesterday = "yesterday"
	ThisWeek  = "this_week"
	LastWeek  = "last_week"
	ThisMonth = "this_month"
	LastMonth = "last_month"
)

// Presets lists the preset names in display order.
var Presets = []string{Today, Yesterday, ThisWeek, LastWeek, ThisMonth, LastMonth}

// ErrInvalid marks input that cannot be turned into a range.
var ErrInvalid = errors.New("invalid date range")

// relativeRegex matches spans like "7d" or "2w".
var relativeRegex = regexp.MustCompile(`^(\d+)([dw])$`)

// Range is an inclusive span of calendar days. Start and End are midnight in
// the location the range was built in.
type Range struct {
	Start time.Time
	End   time.Time
}

// New returns the range covering the days of start through end.
func New(start, end time.Time) (Range, error) {
	r := Range{Start: startOfDay(start), End: startOfDay(end)}
	if r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalid, r.EndDate(), r.StartDate())
	}
	return r, nil
}

// Day returns the single-day range containing t.
func Day(t time.Time) Range {
	d := startOfDay(t)
	return Range{Start: d, End: d}
}

// StartDate returns the first day as YYYY-MM-DD.
func (r Range) StartDate() string {
	return r.Start.Format(Layout)
}

// EndDate returns the last day as YYYY-MM-DD.
func (r Range) EndDate() string {
	return r.End.Format(Layout)
}

// Days returns the number of calendar days covered.
func (r Range) Days() int {
	// Round absorbs DST shifts between the two midnights.
	return int((r.End.Sub(r.Start).Hours()+12)/24) + 1
}

// Contains reports whether the YYYY-MM-DD date falls inside the range.
func (r Range) Contains(date string) bool {
	return date >= r.StartDate() && date <= r.EndDate()
}

// String formats the range as "start..end", or a single date.
func (r Range) String() string {
	if r.Start.Equal(r.End) {
		return r.StartDate()
	}
	return r.StartDate() + ".." + r.EndDate()
}

// Parse builds a range from tool or CLI input. period is a preset name or a
// relative span and excludes start and end. Otherwise start is required and
// may itself be relative; end defaults to today.
func Parse(start, end, period string, now time.Time) (Range, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	period = strings.TrimSpace(period)

	if period != "" {
		if start != "" || end != "" {
			return Range{}, fmt.Errorf("%w: use either a period or start/end dates, not both", ErrInvalid)
		}
		return Preset(period, now)
	}
	if start == "" {
		return Range{}, fmt.Errorf("%w: a start date or period is required", ErrInvalid)
	}

	from, err := parseStart(start, now)
	if err != nil {
		return Range{}, err
	}
	to := startOfDay(now)
	if end != "" {
		if to, err = parseDate(end, now.Location()); err != nil {
			return Range{}, err
		}
	}
	return New(from, to)
}

// Preset returns the range named by name relative to now. Relative spans
// ("7d", "2w") end today and include it.
func Preset(name string, now time.Time) (Range, error) {
	today := startOfDay(now)

	switch strings.ToLower(name) {
	case Today:
		return Range{Start: today, End: today}, nil
	case Yesterday:
		y := today.AddDate(0, 0, -1)
		return Range{Start: y, End: y}, nil
	case ThisWeek:
		return weekOf(today), nil
	case LastWeek:
		return weekOf(today.AddDate(0, 0, -7)), nil
	case ThisMonth:
		return monthOf(today), nil
	case LastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return monthOf(first.AddDate(0, 0, -1)), nil
	}

	if start, ok, err := relativeStart(name, today); ok {
		if err != nil {
			return Range{}, err
		}
		return Range{Start: start, End: today}, nil
	}
	return Range{}, fmt.Errorf("%w: unknown period %q; use one of %s, or a span like 7d or 2w",
		ErrInvalid, name, strings.Join(Presets, ", "))
}

func parseStart(value string, now time.Time) (time.Time, error) {
	if start, ok, err := relativeStart(value, startOfDay(now)); ok {
		return start, err
	}
	return parseDate(value, now.Location())
}

func parseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date; use YYYY-MM-DD", ErrInvalid, value)
	}
	return t, nil
}

// relativeStart resolves "Nd" or "Nw" to the first day of a span of N days or
// weeks ending today. ok is false when value is not a relative span.
func relativeStart(value string, today time.Time) (start time.Time, ok bool, err error) {
	matches := relativeRegex.FindStringSubmatch(strings.ToLower(value))
	if len(matches) != 3 {
		return time.Time{}, false, nil
	}

	n, err := strconv.Atoi(matches[1])
	if err != nil || n <= 0 {
		return time.Time{}, true, fmt.Errorf("%w: span %q must be positive", ErrInvalid, value)
	}
	days := n
	if matches[2] == "w" {
		days = n * 7
	}
	return today.AddDate(0, 0, -(days - 1)), true, nil
}

// weekOf returns Monday through Sunday of the ISO week containing day.
func weekOf(day time.Time) Range {
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7 // Sunday closes the ISO week
	}
	monday := day.AddDate(0, 0, -(wd - 1))
	return Range{Start: monday, End: monday.AddDate(0, 0, 6)}
}

func monthOf(day time.Time) Range {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	return Range{Start: first, End: first.AddDate(0, 1, -1)}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
