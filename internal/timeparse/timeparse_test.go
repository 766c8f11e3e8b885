package timeparse

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)

func TestParseDeadline(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"in 2 hours", now.Add(2 * time.Hour)},
		{"In 1 Hour", now.Add(time.Hour)},
		{"in 30 minutes", now.Add(30 * time.Minute)},
		{"in 3days", now.Add(72 * time.Hour)},
		{"in 2 weeks", now.Add(14 * 24 * time.Hour)},
		{"2024-12-31 17:00", time.Date(2024, 12, 31, 17, 0, 0, 0, time.UTC)},
		{"2024-12-31 17:00:30", time.Date(2024, 12, 31, 17, 0, 30, 0, time.UTC)},
		{"12/31/2024 9:15", time.Date(2024, 12, 31, 9, 15, 0, 0, time.UTC)},
		{"2024-12-31", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)},
		{"12/31/2024", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)},
		{"25/12/2024", time.Date(2024, 12, 25, 23, 59, 0, 0, time.UTC)},
		{"03/04/2024", time.Date(2024, 3, 4, 23, 59, 0, 0, time.UTC)},
		{"16:30", time.Date(2024, 6, 15, 16, 30, 0, 0, time.UTC)},
		{"14:00", time.Date(2024, 6, 16, 14, 0, 0, 0, time.UTC)},
		{"9:05", time.Date(2024, 6, 16, 9, 5, 0, 0, time.UTC)},
		{"  2024-12-31  ", time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDeadline(tc.in, now)
		if err != nil {
			t.Fatalf("ParseDeadline(%q): unexpected error %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDeadline(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseReminderTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"in 2 hours", now.Add(2 * time.Hour)},
		{"in 5 mins", now.Add(5 * time.Minute)},
		{"in 1 min", now.Add(time.Minute)},
		{"in 3 hrs", now.Add(3 * time.Hour)},
		{"in 1 month", now.Add(30 * 24 * time.Hour)},
		{"in 1 year", now.Add(365 * 24 * time.Hour)},
		{"2024-12-31", time.Date(2024, 12, 31, 9, 0, 0, 0, time.UTC)},
		{"31/12/2024", time.Date(2024, 12, 31, 9, 0, 0, 0, time.UTC)},
		{"2024-12-31 17:00", time.Date(2024, 12, 31, 17, 0, 0, 0, time.UTC)},
		{"13:59", time.Date(2024, 6, 16, 13, 59, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseReminderTime(tc.in, now)
		if err != nil {
			t.Fatalf("ParseReminderTime(%q): unexpected error %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseReminderTime(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseRejectsInvalidExpressions(t *testing.T) {
	inputs := []string{"", "tomorrow", "in hours", "in 2 fortnights", "in 5 mins extra", "2024-13-40", "32/13/2024", "25:00", "12:7", "99999999999999999999 hours"}
	for _, in := range inputs {
		_, err := ParseDeadline(in, now)
		if !errors.Is(err, ErrInvalidTimeExpression) {
			t.Fatalf("ParseDeadline(%q): expected ErrInvalidTimeExpression, got %v", in, err)
		}
	}

	if _, err := ParseDeadline("in 5 mins", now); err == nil {
		t.Fatal("expected abbreviations to be reminder-only")
	}
	if _, err := ParseDeadline("in 999999999 weeks", now); err == nil {
		t.Fatal("expected overflowing amount to be rejected")
	}

	_, err := ParseReminderTime("next tuesday", now)
	var ite *InvalidTimeExpressionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTimeExpressionError, got %T", err)
	}
	if ite.Input != "next tuesday" || ite.Kind != KindReminder {
		t.Fatalf("unexpected error fields: %#v", ite)
	}
	if !strings.Contains(err.Error(), "in 30 minutes") {
		t.Fatalf("expected example formats in message, got %q", err.Error())
	}
}

func TestParseUsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := now.In(loc)
	got, err := ParseDeadline("2024-12-31", local)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Location() != loc || got.Hour() != 23 {
		t.Fatalf("expected 23:59 in caller location, got %v", got)
	}
}

func TestCheckReminderWindow(t *testing.T) {
	if err := CheckReminderWindow(now.Add(time.Minute), now); err != nil {
		t.Fatalf("expected near future to pass, got %v", err)
	}
	if err := CheckReminderWindow(now, now); !errors.Is(err, ErrReminderInPast) {
		t.Fatalf("expected ErrReminderInPast, got %v", err)
	}
	if err := CheckReminderWindow(now.Add(MaxReminderAhead), now); err != nil {
		t.Fatalf("expected exactly one year ahead to pass, got %v", err)
	}
	if err := CheckReminderWindow(now.Add(MaxReminderAhead+time.Second), now); !errors.Is(err, ErrReminderTooFar) {
		t.Fatalf("expected ErrReminderTooFar, got %v", err)
	}
}
