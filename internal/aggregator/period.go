package aggregator

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("invalid date range")

// DefaultRange is the calendar month containing now.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// ParseRange parses optional ISO dates, filling blanks from the current month.
func ParseRange(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	start, end := DefaultRange(now)
	var err error
	if startStr != "" {
		if start, err = time.Parse(DateLayout, startStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidRange, startStr)
		}
	}
	if endStr != "" {
		if end, err = time.Parse(DateLayout, endStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidRange, endStr)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			end.Format(DateLayout), start.Format(DateLayout))
	}
	return start, end, nil
}
