package service

import (
	"time"

	pkgerrors "github.com/mkravets/sales-insights-service/pkg/errors"
)

// MonthRange returns the UTC boundaries of a calendar month as a
// start-inclusive, end-exclusive pair. The end is the first instant of the
// following month, so the last second of the month stays in range and
// December rolls over to January of the next year.
func MonthRange(year, month int) (time.Time, time.Time, error) {
	if year < 1 || year > 9999 {
		return time.Time{}, time.Time{}, pkgerrors.ErrInvalidYear
	}
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, pkgerrors.ErrInvalidMonth
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}
