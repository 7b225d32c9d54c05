package strk

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the accepted calendar date format.
const DateLayout = time.DateOnly

// MinValidDate is the first day delegation pools existed on mainnet.
var MinValidDate = time.Date(2024, 11, 26, 0, 0, 0, 0, time.UTC)

// Date range validation errors
var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrDateOutOfRange   = errors.New("date out of valid range")
	ErrInvertedDateSpan = errors.New("from must not be after to")
)

// DateRange selects delegations that started on a day in [From, To].
// A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange parses YYYY-MM-DD bounds. Empty strings leave the bound open.
// Dates before MinValidDate or after tomorrow (relative to now) are rejected.
func ParseDateRange(from, to string, now time.Time) (DateRange, error) {
	var r DateRange
	var err error

	if r.From, err = parseDate(from, now); err != nil {
		return DateRange{}, fmt.Errorf("from: %w", err)
	}
	if r.To, err = parseDate(to, now); err != nil {
		return DateRange{}, fmt.Errorf("to: %w", err)
	}

	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return DateRange{}, ErrInvertedDateSpan
	}
	return r, nil
}

func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q must be YYYY-MM-DD", ErrInvalidDate, s)
	}

	latest := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	if d.Before(MinValidDate) || d.After(latest) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrDateOutOfRange, s)
	}
	return d, nil
}

// Until returns the exclusive upper instant of the range, zero when open.
func (r DateRange) Until() time.Time {
	if r.To.IsZero() {
		return time.Time{}
	}
	return r.To.AddDate(0, 0, 1)
}

// IsOpen reports whether neither bound is set.
func (r DateRange) IsOpen() bool {
	return r.From.IsZero() && r.To.IsZero()
}
