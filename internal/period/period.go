// Package period splits a date range into calendar-month windows.
package period

import (
	"iter"
	"time"
)

// Window is one collection period, both ends inclusive. End is always the last
// day of a month. The first window of a range may start mid-month and the last
// one may end after the range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Month is the first day of the window's month
func (w Window) Month() time.Time {
	return firstOfMonth(w.Start)
}

// Generate yields the month windows covering [start, end).
// No window starts at or after end. Each window ends the day before the first
// of the month that contains its start plus 31 days: a start late in a month
// followed by a shorter one (Jan 31) yields a first window that reaches the
// end of the following month.
func Generate(start, end time.Time) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		cursor := start
		for cursor.Before(end) {
			next := firstOfMonth(cursor.AddDate(0, 0, 31))
			if !yield(Window{Start: cursor, End: next.AddDate(0, 0, -1)}) {
				return
			}
			cursor = next
		}
	}
}

// Collect returns all windows of Generate(start, end)
func Collect(start, end time.Time) []Window {
	var windows []Window
	for w := range Generate(start, end) {
		windows = append(windows, w)
	}
	return windows
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
