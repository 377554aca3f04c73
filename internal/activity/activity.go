// Package activity holds the pure transforms over commit dates: monthly
// bucketing, the calendar-aligned qualification window, the post-grace
// sustained activity count and the secondary health classification.
package activity

import (
	"time"

	"fork-harvester/internal/model"
)

const monthKeyLen = len("2006-01")

// ToMonthly buckets commit dates by their "YYYY-MM" prefix. A nil input means
// the repository was never resolved and yields nil; an empty input yields an
// empty, non-nil series. Dates too short to carry a month are dropped; use
// Bucket to see them.
func ToMonthly(dates []string) model.MonthlyTimeseries {
	series, _ := Bucket(dates)
	return series
}

// Bucket is ToMonthly that also returns the dates it could not bucket, so the
// series total plus len(skipped) always equals len(dates).
func Bucket(dates []string) (series model.MonthlyTimeseries, skipped []string) {
	if dates == nil {
		return nil, nil
	}
	series = make(model.MonthlyTimeseries)
	for _, d := range dates {
		if len(d) < monthKeyLen {
			skipped = append(skipped, d)
			continue
		}
		series[d[:monthKeyLen]]++
	}
	return series, skipped
}

// AddMonths moves t by n calendar months, clamping the day to the last day
// of the target month (Jan 31 + 1 month is Feb 28/29, not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// FloorToMonth returns midnight UTC on the first day of t's month.
func FloorToMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// QualificationWindow is the "first 3 months after fork creation" window. It
// is calendar aligned: from the first day of the creation month to three
// calendar months later, not 90 days.
func QualificationWindow(created time.Time) Window {
	start := FloorToMonth(created)
	return Window{Start: start, End: start.AddDate(0, 3, 0)}
}

// CommitsPostGrace counts commits at or after the first commit plus two
// calendar months. The anchor is the earliest commit, not the fork date.
// Unparseable dates are ignored.
func CommitsPostGrace(dates []string) int {
	parsed := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			continue
		}
		parsed = append(parsed, t)
	}
	if len(parsed) == 0 {
		return 0
	}

	first := parsed[0]
	for _, t := range parsed[1:] {
		if t.Before(first) {
			first = t
		}
	}
	cutoff := AddMonths(first, 2)

	count := 0
	for _, t := range parsed {
		if !t.Before(cutoff) {
			count++
		}
	}
	return count
}
