// Package api defines the calendar.v1 gRPC service: its messages, a JSON
// codec, the service descriptor and a typed client.
package api

import (
	"cloud.google.com/go/civil"

	"smart-calendar-api/internal/model"
	"smart-calendar-api/internal/reminder"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by Register, Login and Refresh.
type AuthResponse struct {
	UserID       string `json:"userId"`
	Name         string `json:"name,omitempty"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type CreateEventRequest struct {
	Event model.Event `json:"event"`
}

type GetEventRequest struct {
	ID string `json:"id"`
}

type UpdateEventRequest struct {
	Event model.Event `json:"event"`
}

type EventResponse struct {
	Event model.Event `json:"event"`
}

// ListEventsRequest lists every event, or one day's events in display
// order when Date is set.
type ListEventsRequest struct {
	Date *civil.Date `json:"date,omitempty"`
}

type ListEventsResponse struct {
	Events []model.Event `json:"events"`
}

type DeleteEventRequest struct {
	ID string `json:"id"`
}

type DeleteEventResponse struct{}

type ReorderEventsRequest struct {
	Date civil.Date `json:"date"`
	IDs  []string   `json:"ids"`
}

// ReorderEventsResponse carries the day as now ordered. Warnings name order
// writes that did not persist; the call still succeeds.
type ReorderEventsResponse struct {
	Events   []model.Event `json:"events"`
	Warnings []string      `json:"warnings,omitempty"`
}

type ShareEventRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type ListRemindersRequest struct{}

type ListRemindersResponse struct {
	Reminders []reminder.Pending `json:"reminders"`
}
