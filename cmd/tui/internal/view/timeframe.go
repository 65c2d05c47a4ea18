package view

import (
	"time"
)

// Timeframe filters transactions by completion date.
type Timeframe int

const (
	TimeframeAll Timeframe = iota
	TimeframeThisWeek
	TimeframeThisMonth
	TimeframeLastMonth
	timeframeCount
)

func (t Timeframe) String() string {
	switch t {
	case TimeframeAll:
		return "All Time"
	case TimeframeThisWeek:
		return "This Week"
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	}

	return "Unknown"
}

func (t Timeframe) Next() Timeframe {
	return (t + 1) % timeframeCount
}

// Range returns the half-open [start, end) window of t as seen at now. ok is
// false for TimeframeAll.
func (t Timeframe) Range(now time.Time) (start, end time.Time, ok bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch t {
	case TimeframeThisWeek:
		// ISO weeks start on Monday.
		offset := int(today.Weekday())
		if offset == 0 {
			offset = 7
		}

		start = today.AddDate(0, 0, -offset+1)

		return start, start.AddDate(0, 0, 7), true
	case TimeframeThisMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

		return start, start.AddDate(0, 1, 0), true
	case TimeframeLastMonth:
		end = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

		return end.AddDate(0, -1, 0), end, true
	}

	return time.Time{}, time.Time{}, false
}
