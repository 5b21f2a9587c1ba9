// Package timestamp reads the capture time embedded in a rainarea dataset id.
//
// Dataset ids end in the local capture time as four digits, HHMM in 24-hour
// notation: "202404261430" was captured at 14:30.
package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidClock is wrapped by every ParseError.
var ErrInvalidClock = errors.New("invalid clock time")

// ParseError reports a clock string that matched none of the accepted layouts.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse clock %q: %v", e.Value, ErrInvalidClock)
}

func (e *ParseError) Unwrap() error { return ErrInvalidClock }

// clockLayouts are the accepted forms of a wall-clock time of day.
var clockLayouts = []string{"15:04", "3:04 PM", "03:04 PM"}

// digits returns the trailing HHMM of id, or false when the last four bytes
// are not all ASCII digits.
func digits(id string) (hh, mm string, ok bool) {
	if len(id) < 4 {
		return "", "", false
	}
	tail := id[len(id)-4:]
	for i := 0; i < len(tail); i++ {
		if tail[i] < '0' || tail[i] > '9' {
			return "", "", false
		}
	}
	return tail[:2], tail[2:], true
}

// Label converts the id's trailing HHMM into a 12-hour label such as
// "2:30 PM". Ids without four trailing digits give "".
func Label(id string) string {
	hh, mm, ok := digits(id)
	if !ok {
		return ""
	}

	hour, _ := strconv.Atoi(hh)
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	switch {
	case hour == 0:
		hour = 12
	case hour > 12:
		hour -= 12
	}
	return fmt.Sprintf("%d:%s %s", hour, mm, suffix)
}

// Clock returns the id's trailing HHMM as "HH:MM", or "" when absent.
func Clock(id string) string {
	hh, mm, ok := digits(id)
	if !ok {
		return ""
	}
	return hh + ":" + mm
}

// ParseClock parses a time of day in 24-hour ("15:04") or 12-hour
// ("3:04 PM") form. The date part of the result is meaningless; only
// differences between parsed values are.
func ParseClock(s string) (time.Time, error) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Value: s}
}

// MinutesBetween returns t1 − t2 in whole minutes, treating both as times on
// the same day. No midnight rollover is applied.
func MinutesBetween(t1, t2 string) (int, error) {
	a, err := ParseClock(t1)
	if err != nil {
		return 0, err
	}
	b, err := ParseClock(t2)
	if err != nil {
		return 0, err
	}
	return int(a.Sub(b) / time.Minute), nil
}
