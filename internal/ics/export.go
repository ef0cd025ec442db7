// Package ics renders a user's events as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	ical "github.com/arran4/golang-ical"

	"smart-calendar-api/internal/model"
)

const productID = "-//smart-calendar-api//EN"

// Build returns a calendar with one VEVENT per event. Events whose times do
// not parse are logged and left out.
func Build(name string, events []model.Event, loc *time.Location, logger *slog.Logger) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	cal.SetXWRTimezone(loc.String())

	for _, e := range events {
		if err := addEvent(cal, e, loc); err != nil {
			logger.Warn("ics export skipped event", "event_id", e.ID, "err", err)
		}
	}
	return cal
}

// Write serializes Build's result to w.
func Write(w io.Writer, name string, events []model.Event, loc *time.Location, logger *slog.Logger) error {
	_, err := io.WriteString(w, Build(name, events, loc, logger).Serialize())
	return err
}

func addEvent(cal *ical.Calendar, e model.Event, loc *time.Location) error {
	start, err := e.StartAt(loc)
	if err != nil {
		return err
	}
	end, err := e.EndAt(loc)
	if err != nil {
		return err
	}

	ev := cal.AddEvent(e.ID)
	stamp := e.CreatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	} else {
		ev.SetCreatedTime(e.CreatedAt)
	}
	ev.SetDtStampTime(stamp)
	if !e.UpdatedAt.IsZero() {
		ev.SetModifiedAt(e.UpdatedAt)
	}
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(e.Title)
	if e.Description != "" {
		ev.SetDescription(e.Description)
	}
	if e.Color != "" {
		ev.SetProperty("COLOR", e.Color)
	}
	for _, who := range e.SharedWith {
		ev.AddAttendee(who)
	}

	if e.ReminderEnabled && e.ReminderMinutes > 0 {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", e.ReminderMinutes))
		alarm.SetProperty(ical.ComponentPropertyDescription, "Reminder: "+e.Title)
	}
	return nil
}
