// Package timeparse turns user-entered deadline and reminder expressions
// into instants. All results are in now's location.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindDeadline Kind = "deadline"
	KindReminder Kind = "reminder"
)

var (
	ErrInvalidTimeExpression = errors.New("timeparse: invalid time expression")
	ErrReminderInPast        = errors.New("timeparse: reminder time must be in the future")
	ErrReminderTooFar        = errors.New("timeparse: reminder more than one year ahead")
)

// MaxReminderAhead bounds how far in the future a reminder may be set.
const MaxReminderAhead = 365 * 24 * time.Hour

// Amounts beyond this horizon are rejected before they can overflow.
const maxRelative = 100 * 365 * 24 * time.Hour

var examples = map[Kind][]string{
	KindDeadline: {"in 2 hours", "in 3 days", "2024-12-31 17:00", "12/31/2024", "14:30"},
	KindReminder: {"in 30 minutes", "in 2 hours", "14:30", "2024-12-31 17:00", "2024-12-31"},
}

type InvalidTimeExpressionError struct {
	Input string
	Kind  Kind
}

func (e *InvalidTimeExpressionError) Error() string {
	return fmt.Sprintf("invalid %s format: %q (try %s)", e.Kind, e.Input, strings.Join(e.Examples(), ", "))
}

func (e *InvalidTimeExpressionError) Unwrap() error {
	return ErrInvalidTimeExpression
}

func (e *InvalidTimeExpressionError) Examples() []string {
	return append([]string(nil), examples[e.Kind]...)
}

var (
	relativePattern = regexp.MustCompile(`^in\s+(\d+)\s*([a-z]+)$`)
	timeOnlyPattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	dateTimePattern = regexp.MustCompile(`^(\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{4})\s+(\d{1,2}:\d{2}(?::\d{2})?)$`)
	isoDatePattern  = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`)
	slashPattern    = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
)

var deadlineUnits = map[string]time.Duration{
	"minute": time.Minute, "minutes": time.Minute,
	"hour": time.Hour, "hours": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour,
	"week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

var reminderUnits = map[string]time.Duration{
	"min": time.Minute, "mins": time.Minute,
	"hr": time.Hour, "hrs": time.Hour,
	"month": 30 * 24 * time.Hour, "months": 30 * 24 * time.Hour,
	"year": 365 * 24 * time.Hour, "years": 365 * 24 * time.Hour,
}

func init() {
	for k, v := range deadlineUnits {
		reminderUnits[k] = v
	}
}

// ParseDeadline accepts relative offsets, dates with times, a bare time
// (today, or tomorrow once passed) and bare dates, which resolve to 23:59.
func ParseDeadline(text string, now time.Time) (time.Time, error) {
	return parse(text, now, KindDeadline, deadlineUnits, 23, 59)
}

// ParseReminderTime is ParseDeadline with the wider unit set and bare dates
// resolving to 09:00.
func ParseReminderTime(text string, now time.Time) (time.Time, error) {
	return parse(text, now, KindReminder, reminderUnits, 9, 0)
}

// CheckReminderWindow rejects fire times that are not strictly after now or
// lie more than MaxReminderAhead beyond it.
func CheckReminderWindow(at, now time.Time) error {
	if !at.After(now) {
		return ErrReminderInPast
	}
	if at.After(now.Add(MaxReminderAhead)) {
		return ErrReminderTooFar
	}
	return nil
}

func parse(text string, now time.Time, kind Kind, units map[string]time.Duration, dateHour, dateMinute int) (time.Time, error) {
	input := strings.ToLower(strings.Join(strings.Fields(text), " "))
	invalid := &InvalidTimeExpressionError{Input: strings.TrimSpace(text), Kind: kind}
	if input == "" {
		return time.Time{}, invalid
	}
	loc := now.Location()

	if m := relativePattern.FindStringSubmatch(input); m != nil {
		unit, ok := units[m[2]]
		if !ok {
			return time.Time{}, invalid
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > int64(maxRelative/unit) {
			return time.Time{}, invalid
		}
		return now.Add(time.Duration(n) * unit), nil
	}

	if m := dateTimePattern.FindStringSubmatch(input); m != nil {
		date, ok := parseDate(m[1], loc)
		if !ok {
			return time.Time{}, invalid
		}
		clock, ok := parseClock(m[2])
		if !ok {
			return time.Time{}, invalid
		}
		return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc), nil
	}

	if timeOnlyPattern.MatchString(input) {
		clock, ok := parseClock(input)
		if !ok {
			return time.Time{}, invalid
		}
		at := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		if !at.After(now) {
			at = time.Date(now.Year(), now.Month(), now.Day()+1, clock.Hour(), clock.Minute(), 0, 0, loc)
		}
		return at, nil
	}

	if date, ok := parseDate(input, loc); ok {
		return time.Date(date.Year(), date.Month(), date.Day(), dateHour, dateMinute, 0, 0, loc), nil
	}
	return time.Time{}, invalid
}

// parseDate reads YYYY-MM-DD or a slash date. Slash dates are month first;
// day first is used only when month first is not a valid date.
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	switch {
	case isoDatePattern.MatchString(s):
		t, err := time.ParseInLocation("2006-1-2", s, loc)
		return t, err == nil
	case slashPattern.MatchString(s):
		if t, err := time.ParseInLocation("1/2/2006", s, loc); err == nil {
			return t, true
		}
		t, err := time.ParseInLocation("2/1/2006", s, loc)
		return t, err == nil
	}
	return time.Time{}, false
}

func parseClock(s string) (time.Time, bool) {
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	return t, err == nil
}
