package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	Monthly Frequency = "monthly"
	Weekly  Frequency = "weekly"
	Yearly  Frequency = "yearly"
	OneTime Frequency = "one-time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

const maxYear = 9999

type (
	Frequency string

	// Date is a calendar day. The wrapped time is always midnight UTC.
	Date struct {
		time.Time
	}

	// Period is the (year, month) window a budget applies to.
	Period struct {
		Year  int
		Month int
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrDateOverflow     = errors.New("date out of range")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Date {
	return DateOf(time.Now().In(loc))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	if d.Time.Year() < 1 || d.Time.Year() > maxYear {
		return ErrDateOverflow
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year
func (d Date) Year() int { return d.Time.Year() }

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped moves d by n months keeping the day of month, or the last
// day of the target month when it is shorter (Jan 31 + 1 -> Feb 28/29).
func (d Date) AddMonthsClamped(n int) (Date, error) {
	return d.AddMonthsOnDay(n, d.Day())
}

// AddMonthsOnDay moves d by n months and lands on day, clamped to the length
// of the target month. Anchoring on the original day keeps a schedule from
// drifting after a short month (Jan 31 -> Feb 29 -> Mar 31).
func (d Date) AddMonthsOnDay(n, day int) (Date, error) {
	total := d.Year()*12 + (d.Month() - 1) + n
	year, month := total/12, time.Month(total%12+1)
	if total < 12 || year > maxYear {
		return Date{}, fmt.Errorf("%w: %s plus %d months", ErrDateOverflow, d, n)
	}
	if day < 1 || day > 31 {
		day = d.Day()
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, int(month), day), nil
}

// PeriodOf returns the budget period a date falls in.
func PeriodOf(d Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 || p.Year < 2000 || p.Year > maxYear {
		return ErrInvalidPeriod
	}
	return nil
}

// Start is the first day of the period.
func (p Period) Start() Date { return NewDate(p.Year, p.Month, 1) }

// End is the first day after the period.
func (p Period) End() Date { return NewDate(p.Year, p.Month+1, 1) }

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, p.Month) }

func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Weekly, Yearly, OneTime:
		return true
	}
	return false
}

// Advance returns the next due date after an occurrence on from. A one-time
// payment has no next occurrence: it comes back unchanged with active=false.
func (f Frequency) Advance(from Date) (next Date, active bool, err error) {
	return f.AdvanceOnDay(from, from.Day())
}

// AdvanceOnDay is Advance for a schedule anchored on a day of the month.
// Monthly and yearly payments return to that day whenever the target month
// is long enough; weekly and one-time payments ignore it.
func (f Frequency) AdvanceOnDay(from Date, day int) (next Date, active bool, err error) {
	switch f {
	case Weekly:
		next = from.AddDays(7)
		if next.Year() > maxYear {
			return Date{}, false, fmt.Errorf("%w: %s plus one week", ErrDateOverflow, from)
		}
		return next, true, nil
	case Monthly:
		next, err = from.AddMonthsOnDay(1, day)
		return next, err == nil, err
	case Yearly:
		next, err = from.AddMonthsOnDay(12, day)
		return next, err == nil, err
	case OneTime:
		return from, false, nil
	default:
		return Date{}, false, fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
}
