// CLAUDE:SUMMARY Reminder model, input validation, and the Today filter used by the message API.
// Package reminders stores the user's daily reminders and serves them to the
// ad engine through a small action-based message API.
package reminders

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MaxReminders caps the number of stored reminders.
const MaxReminders = 100

// graceMinutes keeps reminders that fired shortly before now.
const graceMinutes = 5

var (
	// ErrLimit is returned when creating a reminder would exceed MaxReminders.
	ErrLimit = fmt.Errorf("reminders: maximum of %d reminders reached", MaxReminders)
	// ErrNotFound is returned when an update targets an unknown id.
	ErrNotFound = errors.New("reminders: not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("reminders: invalid reminder")
)

// dayCodes indexes day codes by time.Weekday.
var dayCodes = [7]string{"SU", "M", "T", "W", "TH", "FR", "SA"}

// Reminder is a stored reminder. JSON names follow the message API.
type Reminder struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	RemindAt  string   `json:"remindAt"`
	Days      []string `json:"days"`
	CreatedAt int64    `json:"createdAt"`
	IsPaused  bool     `json:"isPaused"`
}

// Input is the payload of a save. An empty ID creates a reminder; a nil
// IsPaused keeps the stored value on update.
type Input struct {
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text"`
	RemindAt string   `json:"remindAt"`
	Days     []string `json:"days"`
	IsPaused *bool    `json:"isPaused,omitempty"`
}

// DayCode returns the code for a weekday ("SU", "M", ... "SA").
func DayCode(d time.Weekday) string { return dayCodes[d] }

// Validate checks text, time of day, and day codes.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalid)
	}
	if _, err := minutesOf(in.RemindAt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(in.Days))
	for _, d := range in.Days {
		if !slices.Contains(dayCodes[:], d) {
			return fmt.Errorf("%w: unknown day %q", ErrInvalid, d)
		}
		if seen[d] {
			return fmt.Errorf("%w: duplicate day %q", ErrInvalid, d)
		}
		seen[d] = true
	}
	return nil
}

// OneTime reports whether the reminder has no recurring days.
func (r Reminder) OneTime() bool { return len(r.Days) == 0 }

// Minutes returns the reminder's time of day in minutes since midnight,
// or -1 when RemindAt is malformed.
func (r Reminder) Minutes() int {
	m, err := minutesOf(r.RemindAt)
	if err != nil {
		return -1
	}
	return m
}

func minutesOf(hhmm string) (int, error) {
	h, m, ok := strings.Cut(hhmm, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, fmt.Errorf("remindAt %q: want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("remindAt %q: bad hour", hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("remindAt %q: bad minute", hhmm)
	}
	return hour*60 + minute, nil
}

// Today returns the reminders due for display at now: not paused, recurring
// on now's weekday or created today when one-time, and not older than five
// minutes. The result is sorted by time of day.
func Today(list []Reminder, now time.Time) []Reminder {
	today := DayCode(now.Weekday())
	y, mo, d := now.Date()
	cutoff := now.Hour()*60 + now.Minute() - graceMinutes

	out := make([]Reminder, 0, len(list))
	for _, r := range list {
		if r.IsPaused {
			continue
		}
		if r.OneTime() {
			cy, cm, cd := time.UnixMilli(r.CreatedAt).In(now.Location()).Date()
			if cy != y || cm != mo || cd != d {
				continue
			}
		} else if !slices.Contains(r.Days, today) {
			continue
		}
		if r.Minutes() < cutoff {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b Reminder) int { return a.Minutes() - b.Minutes() })
	return out
}
