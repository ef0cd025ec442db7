// Package notify presents reminder alerts, best effort.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Alert struct {
	OwnerID string    `json:"ownerId"`
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	FireAt  time.Time `json:"fireAt"`
}

// Presenter shows an alert to the user.
type Presenter interface {
	Present(ctx context.Context, a Alert) error
}

// Dispatcher gates presentation on the notification permission. It never
// returns an error: denied or missing capability means a silent no-op.
type Dispatcher struct {
	perm      *Permission
	presenter Presenter
	log       *slog.Logger
}

// New builds a dispatcher. A nil presenter means the host cannot show
// notifications at all.
func New(perm *Permission, presenter Presenter, logger *slog.Logger) *Dispatcher {
	if perm == nil {
		perm = NewPermission(Denied, nil)
	}
	return &Dispatcher{perm: perm, presenter: presenter, log: logger.With("component", "notify")}
}

// Reminder builds the alert text shown for an event reminder.
func Reminder(ownerID, eventID, title string, minutes int, fireAt time.Time) Alert {
	return Alert{
		OwnerID: ownerID,
		EventID: eventID,
		Title:   "Reminder: " + title,
		Body:    fmt.Sprintf("Starting in %d minutes", minutes),
		FireAt:  fireAt,
	}
}

// Dispatch presents a when permission allows it. Safe for concurrent use.
func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) {
	if d.presenter == nil {
		d.log.Debug("no presenter, alert dropped", "event_id", a.EventID)
		return
	}

	st, err := d.perm.Resolve(ctx)
	if err != nil {
		d.log.Debug("permission request failed", "err", err, "event_id", a.EventID)
		return
	}
	if st != Granted {
		d.log.Debug("alert dropped", "reason", "permission "+string(st), "event_id", a.EventID)
		return
	}

	if err := d.presenter.Present(ctx, a); err != nil {
		d.log.Warn("present alert failed", "err", err, "event_id", a.EventID, "owner", a.OwnerID)
	}
}
