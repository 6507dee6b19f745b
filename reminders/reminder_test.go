package reminders

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// Wednesday 2026-03-04 10:00 local.
var wednesday = time.Date(2026, 3, 4, 10, 0, 0, 0, time.Local)

func ids(list []Reminder) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func TestToday(t *testing.T) {
	created := wednesday.Add(-2 * time.Hour).UnixMilli()
	yesterday := wednesday.AddDate(0, 0, -1).UnixMilli()

	list := []Reminder{
		{ID: "late", RemindAt: "18:30", Days: []string{"W"}},
		{ID: "early", RemindAt: "10:00", Days: []string{"M", "W"}},
		{ID: "grace", RemindAt: "09:55", Days: []string{"W"}},
		{ID: "past", RemindAt: "09:54", Days: []string{"W"}},
		{ID: "other-day", RemindAt: "11:00", Days: []string{"TH"}},
		{ID: "paused", RemindAt: "11:00", Days: []string{"W"}, IsPaused: true},
		{ID: "once-today", RemindAt: "12:00", CreatedAt: created},
		{ID: "once-old", RemindAt: "12:00", CreatedAt: yesterday},
	}

	got := ids(Today(list, wednesday))
	want := []string{"grace", "early", "once-today", "late"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Today mismatch (-want +got):\n%s", diff)
	}
}

func TestToday_Empty(t *testing.T) {
	got := Today(nil, wednesday)
	if got == nil || len(got) != 0 {
		t.Fatalf("Today(nil) = %#v, want empty non-nil", got)
	}
}

func TestDayCode(t *testing.T) {
	if c := DayCode(wednesday.Weekday()); c != "W" {
		t.Fatalf("DayCode = %q, want W", c)
	}
	if c := DayCode(time.Sunday); c != "SU" {
		t.Fatalf("DayCode(Sunday) = %q", c)
	}
}

func TestInputValidate(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		ok   bool
	}{
		{"valid recurring", Input{Text: "Stretch", RemindAt: "09:30", Days: []string{"M", "FR"}}, true},
		{"valid one-time", Input{Text: "Call mom", RemindAt: "23:59"}, true},
		{"empty text", Input{Text: "  ", RemindAt: "09:30"}, false},
		{"bad hour", Input{Text: "x", RemindAt: "24:00"}, false},
		{"bad minute", Input{Text: "x", RemindAt: "10:60"}, false},
		{"no colon", Input{Text: "x", RemindAt: "0930"}, false},
		{"short", Input{Text: "x", RemindAt: "9:30"}, false},
		{"unknown day", Input{Text: "x", RemindAt: "09:30", Days: []string{"MO"}}, false},
		{"duplicate day", Input{Text: "x", RemindAt: "09:30", Days: []string{"M", "M"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestMinutes(t *testing.T) {
	if m := (Reminder{RemindAt: "01:05"}).Minutes(); m != 65 {
		t.Fatalf("Minutes = %d, want 65", m)
	}
	if m := (Reminder{RemindAt: "bogus"}).Minutes(); m != -1 {
		t.Fatalf("Minutes(bogus) = %d, want -1", m)
	}
}
