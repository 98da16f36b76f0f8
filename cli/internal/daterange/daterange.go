package daterange

import (
	"time"

	"github.com/pkg/errors"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"

	// MaxDays bounds ranges given with day precision on both ends
	MaxDays = 31
)

// Range is an inclusive date range for a report
type Range struct {
	Start time.Time
	End   time.Time
}

// Parse builds a range from --start and --end values. Both accept YYYY-MM-DD
// or a month-only YYYY-MM:
//   - a month-only start begins on the first of that month
//   - a month-only end expands to the last day of that month
//   - a month-only start with no end ends on the last day of that month
//   - a day-precise start with no end ends now
//
// Ranges with day precision on both ends may span at most MaxDays days.
func Parse(start, end string, now time.Time) (Range, error) {
	if start == "" {
		return Range{}, errors.New("a start date is required")
	}
	loc := now.Location()

	s, startMonthOnly, err := parseDate(start, loc)
	if err != nil {
		return Range{}, errors.Errorf("invalid start date %q: use YYYY-MM-DD or YYYY-MM", start)
	}

	var r Range
	r.Start = s

	switch {
	case end != "":
		e, endMonthOnly, err := parseDate(end, loc)
		if err != nil {
			return Range{}, errors.Errorf("invalid end date %q: use YYYY-MM-DD or YYYY-MM", end)
		}
		if endMonthOnly {
			e = lastDayOfMonth(e)
		}
		r.End = e
		if r.Start.After(r.End) {
			return Range{}, errors.Errorf("start date %s must be earlier than or equal to end date %s",
				r.Start.Format(dayLayout), r.End.Format(dayLayout))
		}
		if !startMonthOnly && !endMonthOnly && r.Days() > MaxDays {
			return Range{}, errors.Errorf("date range must be within %d days, got %d", MaxDays, r.Days())
		}
	case startMonthOnly:
		r.End = lastDayOfMonth(s)
	default:
		r.End = now
		if r.Start.After(r.End) {
			return Range{}, errors.Errorf("start date %s is in the future", r.Start.Format(dayLayout))
		}
	}

	return r, nil
}

// MonthToDate returns the range from the first of now's month until now
func MonthToDate(now time.Time) Range {
	y, m, _ := now.Date()
	return Range{Start: time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), End: now}
}

// Days returns the number of calendar days between start and end.
// Daylight saving changes in between do not shift the count.
func (r Range) Days() int {
	return int(civilDay(r.End).Sub(civilDay(r.Start)).Hours() / 24)
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartArg formats the start as an inclusive sacct --starttime
func (r Range) StartArg() string {
	return r.Start.Format(dayLayout)
}

// EndArg formats the day after the end, so that the whole end day is
// covered by sacct's --endtime
func (r Range) EndArg() string {
	return r.End.AddDate(0, 0, 1).Format(dayLayout)
}

func (r Range) String() string {
	return r.Start.Format(dayLayout) + ".." + r.End.Format(dayLayout)
}

func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dayLayout, s, loc); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(monthLayout, s, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// lastDayOfMonth gets the last day by going to next month day 0
func lastDayOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}
