// Package calendar owns one user's working set of events together with the
// reminder scheduler and the order synchronizer that act on it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"smart-calendar-api/internal/clock"
	"smart-calendar-api/internal/metrics"
	"smart-calendar-api/internal/model"
	"smart-calendar-api/internal/ordering"
	"smart-calendar-api/internal/reminder"
)

// EventStore is the persistence the controller needs. Every call is scoped
// to an owner.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	ListEvents(ctx context.Context, ownerID string) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error
	UpdateEventOrder(ctx context.Context, ownerID, id string, order int) error
	ShareEvent(ctx context.Context, ownerID, id string, sharedWith []string) error
	DeleteEvent(ctx context.Context, ownerID, id string) error
}

type Deps struct {
	Store      EventStore
	Clock      clock.Clock
	Location   *time.Location
	Horizon    time.Duration
	Dispatcher reminder.Dispatcher
	Logger     *slog.Logger
	Metrics    *metrics.Counters
}

func (d *Deps) defaults() {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCounters()
	}
}

type Controller struct {
	owner string
	store EventStore
	clock clock.Clock
	loc   *time.Location
	sched *reminder.Scheduler
	order *ordering.Synchronizer
	log   *slog.Logger

	mu     sync.RWMutex
	events []model.Event
}

func NewController(ownerID string, d Deps) *Controller {
	d.defaults()
	log := d.Logger.With("owner", ownerID)
	return &Controller{
		owner: ownerID,
		store: d.Store,
		clock: d.Clock,
		loc:   d.Location,
		sched: reminder.New(reminder.Options{
			Clock:      d.Clock,
			Location:   d.Location,
			Horizon:    d.Horizon,
			Dispatcher: d.Dispatcher,
			Logger:     log,
			Metrics:    d.Metrics,
		}),
		order: ordering.New(d.Store, log, d.Metrics),
		log:   log.With("component", "calendar"),
	}
}

func (c *Controller) Owner() string { return c.owner }

// Load replaces the working set with the store's view and re-arms every
// reminder from scratch. The lock is held from the fetch through the re-arm
// so a concurrent mutation is either fully before or fully after it.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, err := c.store.ListEvents(ctx, c.owner)
	if err != nil {
		return &model.PersistenceError{Op: "list events", Err: err}
	}
	c.events = list

	res := c.sched.Reset(list, c.clock.Now())
	for _, err := range res.Failed {
		c.log.Warn("event not schedulable", "err", err)
	}
	c.log.Debug("events loaded", "count", len(list), "armed", len(res.Armed))
	return nil
}

// Events returns a copy of the working set.
func (c *Controller) Events() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *Controller) Get(id string) (model.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.indexLocked(id)
	if i < 0 {
		return model.Event{}, model.ErrNotFound
	}
	return c.events[i], nil
}

// Day returns the events on date in display order.
func (c *Controller) Day(date civil.Date) []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dayLocked(date)
}

func (c *Controller) dayLocked(date civil.Date) []model.Event {
	var out []model.Event
	for _, e := range c.events {
		if e.Date == date {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (c *Controller) indexLocked(id string) int {
	for i := range c.events {
		if c.events[i].ID == id {
			return i
		}
	}
	return -1
}

// Create stores a new event at the end of its day and arms its reminder.
func (c *Controller) Create(ctx context.Context, e model.Event) (model.Event, error) {
	e.ID = ""
	e.OwnerID = c.owner
	if err := checkEvent(&e); err != nil {
		return model.Event{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e.Order = len(c.dayLocked(e.Date))
	if err := c.store.CreateEvent(ctx, &e); err != nil {
		return model.Event{}, &model.PersistenceError{Op: "create event", Err: err}
	}
	c.events = append(c.events, e)
	c.schedule(e)
	return e, nil
}

// Update replaces an existing event's editable fields and re-arms its
// reminder. Order and CreatedAt are kept from the stored copy.
func (c *Controller) Update(ctx context.Context, e model.Event) (model.Event, error) {
	e.OwnerID = c.owner
	if err := checkEvent(&e); err != nil {
		return model.Event{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(e.ID)
	if i < 0 {
		return model.Event{}, model.ErrNotFound
	}
	prev := c.events[i]
	e.Order = prev.Order
	e.CreatedAt = prev.CreatedAt
	if e.Date != prev.Date {
		e.Order = len(c.dayLocked(e.Date))
	}

	if err := c.store.UpdateEvent(ctx, &e); err != nil {
		return model.Event{}, &model.PersistenceError{Op: "update event", EventID: e.ID, Err: err}
	}
	if e.Order != prev.Order {
		if err := c.store.UpdateEventOrder(ctx, c.owner, e.ID, e.Order); err != nil {
			c.log.Warn("order write after move failed", "event_id", e.ID, "err", err)
		}
	}
	c.events[i] = e
	c.sched.Cancel(e.ID)
	c.schedule(e)
	return e, nil
}

// Delete removes the event and cancels any pending reminder for it.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeleteEvent(ctx, c.owner, id); err != nil {
		return &model.PersistenceError{Op: "delete event", EventID: id, Err: err}
	}
	if i := c.indexLocked(id); i >= 0 {
		c.events = append(c.events[:i], c.events[i+1:]...)
	}
	c.sched.Cancel(id)
	return nil
}

// Reorder applies a new order for date. ids must name exactly the events on
// that day. A non-validation error lists order writes that failed; the new
// order has been applied in memory regardless.
func (c *Controller) Reorder(ctx context.Context, date civil.Date, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	day := c.dayLocked(date)
	if len(ids) != len(day) {
		return &model.ValidationError{
			Field: "ids",
			Err:   fmt.Errorf("got %d ids for %d events on %s", len(ids), len(day), date),
		}
	}
	byID := make(map[string]model.Event, len(day))
	for _, e := range day {
		byID[e.ID] = e
	}
	seq := make([]model.Event, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return &model.ValidationError{Field: "ids", Value: id, Err: errors.New("not on this day or repeated")}
		}
		delete(byID, id)
		seq = append(seq, e)
	}
	return c.order.ApplyReorder(ctx, lockedSet{c}, seq)
}

// lockedSet is the working set as seen from inside Reorder, which already
// holds c.mu.
type lockedSet struct{ c *Controller }

// ReplaceDay copies only Order onto the events with matching ids.
func (s lockedSet) ReplaceDay(seq []model.Event) {
	for _, e := range seq {
		if i := s.c.indexLocked(e.ID); i >= 0 {
			s.c.events[i].Order = e.Order
		}
	}
}

// Share adds email to the event's collaborator list. Sharing is advisory
// only; it grants nothing.
func (c *Controller) Share(ctx context.Context, id, email string) (model.Event, error) {
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return model.Event{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return model.Event{}, model.ErrNotFound
	}
	e := c.events[i]
	next := make([]string, 0, len(e.SharedWith)+1)
	next = append(next, e.SharedWith...)
	dup := false
	for _, s := range next {
		if strings.EqualFold(s, email) {
			dup = true
			break
		}
	}
	if !dup {
		next = append(next, email)
	}

	if err := c.store.ShareEvent(ctx, c.owner, id, next); err != nil {
		return model.Event{}, &model.PersistenceError{Op: "share event", EventID: id, Err: err}
	}
	e.SharedWith = next
	e.IsShared = true
	c.events[i] = e
	return e, nil
}

func (c *Controller) Reminders() []reminder.Pending {
	return c.sched.Pending()
}

func (c *Controller) Close() {
	c.sched.Stop()
}

func (c *Controller) schedule(e model.Event) {
	res := c.sched.Schedule([]model.Event{e}, c.clock.Now())
	for _, err := range res.Failed {
		c.log.Warn("event not schedulable", "event_id", e.ID, "err", err)
	}
}
