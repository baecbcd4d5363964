// Package dates resolves relative date tokens such as "yesterday" or
// "monday_of_previous_week" into concrete calendar dates.
//
// Every token is resolved against a single reference date ("today"). The
// poller reads today once per cycle so that all operations in a cycle agree
// on the same reference date.
package dates

import (
	"fmt"
	"time"
)

// Layout is the format used for full date tokens in query parameters.
const Layout = "2006/01/02"

// Token is a symbolic date parameter value.
type Token string

const (
	Today                   Token = "today"
	Yesterday               Token = "yesterday"
	FirstDayOfCurrentMonth  Token = "first_day_of_current_month"
	LastDayOfCurrentMonth   Token = "last_day_of_current_month"
	FirstDayOfPreviousMonth Token = "first_day_of_previous_month"
	LastDayOfPreviousMonth  Token = "last_day_of_previous_month"

	MondayOfCurrentWeek    Token = "monday_of_current_week"
	TuesdayOfCurrentWeek   Token = "tuesday_of_current_week"
	WednesdayOfCurrentWeek Token = "wednesday_of_current_week"
	ThursdayOfCurrentWeek  Token = "thursday_of_current_week"
	FridayOfCurrentWeek    Token = "friday_of_current_week"
	SaturdayOfCurrentWeek  Token = "saturday_of_current_week"
	SundayOfCurrentWeek    Token = "sunday_of_current_week"

	MondayOfPreviousWeek    Token = "monday_of_previous_week"
	TuesdayOfPreviousWeek   Token = "tuesday_of_previous_week"
	WednesdayOfPreviousWeek Token = "wednesday_of_previous_week"
	ThursdayOfPreviousWeek  Token = "thursday_of_previous_week"
	FridayOfPreviousWeek    Token = "friday_of_previous_week"
	SaturdayOfPreviousWeek  Token = "saturday_of_previous_week"
	SundayOfPreviousWeek    Token = "sunday_of_previous_week"

	CurrentDayOfMonth Token = "current_day_of_month"
	CurrentMonth      Token = "current_month"
	CurrentYear       Token = "current_year"
	PreviousMonth     Token = "previous_month"
)

// UnknownTokenError is returned when a token is not part of the table.
type UnknownTokenError struct {
	Token string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown date token %q", e.Token)
}

// resolution describes how a token turns into a parameter value: the date
// it stands for and the layout used to render it.
type resolution struct {
	date   func(today time.Time) time.Time
	layout string
}

func full(f func(today time.Time) time.Time) resolution {
	return resolution{date: f, layout: Layout}
}

func currentWeek(weekday int) resolution {
	return full(func(today time.Time) time.Time { return DayOfWeek(today, weekday) })
}

func previousWeek(weekday int) resolution {
	return full(func(today time.Time) time.Time { return DayOfPreviousWeek(today, weekday) })
}

var table = map[Token]resolution{
	Today:     full(func(today time.Time) time.Time { return today }),
	Yesterday: full(func(today time.Time) time.Time { return today.AddDate(0, 0, -1) }),
	FirstDayOfCurrentMonth: full(func(today time.Time) time.Time {
		return date(today.Year(), today.Month(), 1, today.Location())
	}),
	LastDayOfCurrentMonth: full(func(today time.Time) time.Time {
		return DayOfDifferentMonth(today, 1, 1).AddDate(0, 0, -1)
	}),
	FirstDayOfPreviousMonth: full(func(today time.Time) time.Time {
		return DayOfDifferentMonth(today, -1, 1)
	}),
	LastDayOfPreviousMonth: full(func(today time.Time) time.Time {
		return date(today.Year(), today.Month(), 1, today.Location()).AddDate(0, 0, -1)
	}),

	MondayOfCurrentWeek:    currentWeek(1),
	TuesdayOfCurrentWeek:   currentWeek(2),
	WednesdayOfCurrentWeek: currentWeek(3),
	ThursdayOfCurrentWeek:  currentWeek(4),
	FridayOfCurrentWeek:    currentWeek(5),
	SaturdayOfCurrentWeek:  currentWeek(6),
	SundayOfCurrentWeek:    currentWeek(7),

	MondayOfPreviousWeek:    previousWeek(1),
	TuesdayOfPreviousWeek:   previousWeek(2),
	WednesdayOfPreviousWeek: previousWeek(3),
	ThursdayOfPreviousWeek:  previousWeek(4),
	FridayOfPreviousWeek:    previousWeek(5),
	SaturdayOfPreviousWeek:  previousWeek(6),
	SundayOfPreviousWeek:    previousWeek(7),

	CurrentDayOfMonth: {date: func(today time.Time) time.Time { return today }, layout: "02"},
	CurrentMonth:      {date: func(today time.Time) time.Time { return today }, layout: "01"},
	CurrentYear:       {date: func(today time.Time) time.Time { return today }, layout: "2006"},
	PreviousMonth: {
		date:   func(today time.Time) time.Time { return DayOfDifferentMonth(today, -1, 1) },
		layout: "01",
	},
}

// Lookup reports whether s names a known token.
func Lookup(s string) (Token, bool) {
	t := Token(s)
	_, ok := table[t]
	return t, ok
}

// Tokens returns every known token. Order is not guaranteed.
func Tokens() []Token {
	out := make([]Token, 0, len(table))
	for t := range table {
		out = append(out, t)
	}
	return out
}

// Resolve returns the date a token stands for relative to today.
// For the partial tokens (current_month, previous_month, ...) the returned
// date is the one whose component is rendered by [Format].
func Resolve(t Token, today time.Time) (time.Time, error) {
	r, ok := table[t]
	if !ok {
		return time.Time{}, &UnknownTokenError{Token: string(t)}
	}
	return r.date(Truncate(today)), nil
}

// Format resolves a token and renders it the way it is sent to the API.
func Format(t Token, today time.Time) (string, error) {
	r, ok := table[t]
	if !ok {
		return "", &UnknownTokenError{Token: string(t)}
	}
	return r.date(Truncate(today)).Format(r.layout), nil
}

// Truncate drops the time of day, keeping the location.
func Truncate(t time.Time) time.Time {
	return date(t.Year(), t.Month(), t.Day(), t.Location())
}

// ISOWeekday returns the ISO weekday of t: Monday=1 through Sunday=7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// DayOfWeek returns the date with the given ISO weekday in the same ISO week as d.
func DayOfWeek(d time.Time, isoWeekday int) time.Time {
	return d.AddDate(0, 0, isoWeekday-ISOWeekday(d))
}

// DayOfPreviousWeek is [DayOfWeek] one week earlier.
func DayOfPreviousWeek(d time.Time, isoWeekday int) time.Time {
	return DayOfWeek(d, isoWeekday).AddDate(0, 0, -7)
}

// SameDayOfDifferentMonth shifts d by monthDelta calendar months. The day
// after d is shifted and then stepped back by one, so month ends stay month
// ends.
func SameDayOfDifferentMonth(d time.Time, monthDelta int) time.Time {
	return shiftMonths(d.AddDate(0, 0, 1), monthDelta).AddDate(0, 0, -1)
}

// DayOfDifferentMonth returns the given day of the month monthDelta months
// away from d.
func DayOfDifferentMonth(d time.Time, monthDelta, day int) time.Time {
	shifted := SameDayOfDifferentMonth(d, monthDelta)
	return date(shifted.Year(), shifted.Month(), day, d.Location())
}

// shiftMonths moves d by n months, clamping the day to the length of the
// target month (Jan 31 + 1 month = Feb 28/29).
func shiftMonths(d time.Time, n int) time.Time {
	total := int(d.Month()) - 1 + n
	year := d.Year() + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)

	day := d.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return date(year, month, day, d.Location())
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func date(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
