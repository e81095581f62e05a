// Package schedule holds the calendar arithmetic behind bookings: interval
// overlap and recurring-series expansion.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/seatsync/seatsync/internal/model"
)

// MaxSpanMonths bounds how far a recurring series may reach past its first
// date.
const MaxSpanMonths = 3

var (
	ErrEndBeforeStart = errors.New("recurrence ends before it starts")
	ErrSpanTooLong    = fmt.Errorf("recurrence may not extend more than %d months", MaxSpanMonths)
	ErrNoOccurrences  = errors.New("recurrence produces no dates")
)

// Overlaps reports whether the half-open ranges [s1,e1) and [s2,e2)
// intersect. Ranges that only touch at a boundary do not overlap.
func Overlaps(s1, e1, s2, e2 model.Clock) bool {
	return s1 < e2 && s2 < e1
}

// Frequency is the cadence of a recurring series.
type Frequency string

const (
	Daily  Frequency = "DAILY"
	Weekly Frequency = "WEEKLY"
)

var weekdayNames = map[string]time.Weekday{
	"SUN": time.Sunday,
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
}

// ParseWeekday converts a three-letter weekday name such as "MON".
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown weekday: %s", s)
	}
	return wd, nil
}

// Rule is a recurrence from Start to End inclusive.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	Start     model.Date
	End       model.Date
}

// Dates expands the rule into concrete calendar days in ascending order.
func (r Rule) Dates() ([]model.Date, error) {
	if r.End.Before(r.Start) {
		return nil, ErrEndBeforeStart
	}
	if r.End.After(r.Start.AddMonths(MaxSpanMonths)) {
		return nil, ErrSpanTooLong
	}

	var keep func(model.Date) bool
	switch r.Frequency {
	case Daily:
		keep = func(model.Date) bool { return true }
	case Weekly:
		selected := make(map[time.Weekday]bool, len(r.Weekdays))
		for _, wd := range r.Weekdays {
			selected[wd] = true
		}
		if len(selected) == 0 {
			selected[r.Start.Weekday()] = true
		}
		keep = func(d model.Date) bool { return selected[d.Weekday()] }
	default:
		return nil, fmt.Errorf("unknown frequency: %s", r.Frequency)
	}

	var dates []model.Date
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		if keep(d) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, ErrNoOccurrences
	}
	return dates, nil
}
