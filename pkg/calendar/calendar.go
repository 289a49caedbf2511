// Package calendar implements month and year arithmetic that clamps to the
// last valid day of the target month instead of overflowing into the next one.
package calendar

import "time"

// AddMonthsClamped moves t forward by n calendar months keeping the day of
// month, clamped to the last day of the target month (Jan 31 + 1 -> Feb 28/29).
// Clock time and location are preserved.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	y += total / 12
	total %= 12
	if total < 0 {
		total += 12
		y--
	}
	month := time.Month(total + 1)
	if last := DaysIn(y, month); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(y, month, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// AddYearsClamped moves t forward by n years; Feb 29 lands on Feb 28 when the
// target year is not a leap year.
func AddYearsClamped(t time.Time, n int) time.Time {
	return AddMonthsClamped(t, 12*n)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
