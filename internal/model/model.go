package model

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *string
	CreatedAt  time.Time
}

// Event is a single calendar entry. Date and the HH:MM start/end strings are
// kept apart; they are only combined into an instant by the reminder code.
type Event struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description,omitempty"`
	Date            civil.Date `json:"date"`
	StartTime       string     `json:"startTime"`
	EndTime         string     `json:"endTime"`
	Color           string     `json:"color,omitempty" validate:"omitempty,palette"`
	ReminderEnabled bool       `json:"reminderEnabled"`
	ReminderMinutes int        `json:"reminderMinutes" validate:"gte=0"`
	IsShared        bool       `json:"isShared"`
	SharedWith      []string   `json:"sharedWith,omitempty" validate:"dive,email"`
	Order           int        `json:"order"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt,omitempty"`
}

const (
	DefaultColor           = "#3b82f6"
	DefaultReminderMinutes = 15
)

// Palette is the fixed set of display colours an event may carry.
var Palette = []string{
	"#3b82f6", // blue
	"#ef4444", // red
	"#10b981", // green
	"#f59e0b", // amber
	"#8b5cf6", // purple
	"#ec4899", // pink
}

// ReminderChoices are the lead times offered to users, in minutes.
var ReminderChoices = []int{5, 15, 30, 60, 1440}

func InPalette(c string) bool {
	for _, p := range Palette {
		if strings.EqualFold(p, c) {
			return true
		}
	}
	return false
}

// ApplyDefaults fills the colour and lead time the way the form did when the
// fields were left untouched.
func (e *Event) ApplyDefaults() {
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if e.ReminderMinutes == 0 {
		e.ReminderMinutes = DefaultReminderMinutes
	}
	e.Title = strings.TrimSpace(e.Title)
}

// ParseClock parses a 24-hour HH:MM wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

// StartAt combines the event day with its start time in loc, seconds zeroed.
func (e Event) StartAt(loc *time.Location) (time.Time, error) {
	h, m, err := ParseClock(e.StartTime)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "startTime", Value: e.StartTime, Err: err}
	}
	return civil.DateTime{Date: e.Date, Time: civil.Time{Hour: h, Minute: m}}.In(loc), nil
}

// EndAt is StartAt for the end time. An end before the start is returned
// as-is; no cross-midnight handling is done.
func (e Event) EndAt(loc *time.Location) (time.Time, error) {
	h, m, err := ParseClock(e.EndTime)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "endTime", Value: e.EndTime, Err: err}
	}
	return civil.DateTime{Date: e.Date, Time: civil.Time{Hour: h, Minute: m}}.In(loc), nil
}
