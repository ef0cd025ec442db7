// Package reminder arms one-shot timers for events whose reminder falls
// inside the look-ahead horizon.
package reminder

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"smart-calendar-api/internal/clock"
	"smart-calendar-api/internal/metrics"
	"smart-calendar-api/internal/model"
	"smart-calendar-api/internal/notify"
)

const DefaultHorizon = 24 * time.Hour

// Dispatcher receives an alert when a timer fires.
type Dispatcher interface {
	Dispatch(ctx context.Context, a notify.Alert)
}

type Options struct {
	Clock      clock.Clock
	Location   *time.Location
	Horizon    time.Duration
	Dispatcher Dispatcher
	Logger     *slog.Logger
	Metrics    *metrics.Counters
	// DispatchTimeout bounds a single dispatch call.
	DispatchTimeout time.Duration
}

// Pending is an armed reminder that has not fired yet.
type Pending struct {
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	FireAt  time.Time `json:"fireAt"`
}

// Result summarises one Schedule pass.
type Result struct {
	Armed   []string
	Skipped int
	// Failed holds one ValidationError per event that could not be evaluated.
	Failed []error
}

type armed struct {
	timer clock.Timer
	gen   uint64
	p     Pending
}

// Scheduler keeps at most one armed timer per event id.
type Scheduler struct {
	clock    clock.Clock
	loc      *time.Location
	horizon  time.Duration
	dispatch Dispatcher
	log      *slog.Logger
	m        *metrics.Counters
	timeout  time.Duration

	mu    sync.Mutex
	gen   uint64
	armed map[string]*armed
}

func New(o Options) *Scheduler {
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Horizon <= 0 {
		o.Horizon = DefaultHorizon
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewCounters()
	}
	if o.DispatchTimeout <= 0 {
		o.DispatchTimeout = 10 * time.Second
	}
	return &Scheduler{
		clock:    o.Clock,
		loc:      o.Location,
		horizon:  o.Horizon,
		dispatch: o.Dispatcher,
		log:      o.Logger.With("component", "reminder"),
		m:        o.Metrics,
		timeout:  o.DispatchTimeout,
		armed:    make(map[string]*armed),
	}
}

// FireAt is the event start minus its lead time, in loc.
func FireAt(e model.Event, loc *time.Location) (time.Time, error) {
	start, err := e.StartAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(-time.Duration(e.ReminderMinutes) * time.Minute), nil
}

// Admit reports whether fireAt lies strictly inside (now, now+horizon).
func Admit(fireAt, now time.Time, horizon time.Duration) bool {
	return fireAt.After(now) && fireAt.Before(now.Add(horizon))
}

// Schedule evaluates events against now and arms a timer for each one whose
// reminder is due within the horizon. Re-arming an id replaces its previous
// timer; an armed id that no longer qualifies is cancelled.
func (s *Scheduler) Schedule(events []model.Event, now time.Time) Result {
	var res Result
	ctx := context.Background()

	for _, e := range events {
		if !e.ReminderEnabled || e.ReminderMinutes <= 0 {
			s.Cancel(e.ID)
			continue
		}

		fireAt, err := FireAt(e, s.loc)
		if err != nil {
			s.log.Warn("reminder skipped", "event_id", e.ID, "err", err)
			s.Cancel(e.ID)
			res.Failed = append(res.Failed, err)
			s.m.RemindersSkipped.Add(ctx, 1)
			continue
		}

		if !Admit(fireAt, now, s.horizon) {
			s.Cancel(e.ID)
			res.Skipped++
			s.m.RemindersSkipped.Add(ctx, 1)
			continue
		}

		s.arm(e, fireAt)
		res.Armed = append(res.Armed, e.ID)
		s.m.RemindersArmed.Add(ctx, 1)
	}

	if len(res.Armed) > 0 || len(res.Failed) > 0 {
		s.log.Debug("reminders scheduled", "armed", len(res.Armed), "skipped", res.Skipped, "failed", len(res.Failed))
	}
	return res
}

// Reset cancels every armed timer and schedules events from scratch.
func (s *Scheduler) Reset(events []model.Event, now time.Time) Result {
	s.Stop()
	return s.Schedule(events, now)
}

// arm measures the delay against the scheduler's own clock, which is the
// clock the timer runs on.
func (s *Scheduler) arm(e model.Event, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.armed[e.ID]; ok {
		old.timer.Stop()
	}
	s.gen++
	gen := s.gen
	a := &armed{gen: gen, p: Pending{EventID: e.ID, Title: e.Title, FireAt: fireAt}}
	alert := notify.Reminder(e.OwnerID, e.ID, e.Title, e.ReminderMinutes, fireAt)
	a.timer = s.clock.AfterFunc(fireAt.Sub(s.clock.Now()), func() { s.fire(e.ID, gen, alert) })
	s.armed[e.ID] = a
}

func (s *Scheduler) fire(id string, gen uint64, alert notify.Alert) {
	s.mu.Lock()
	a, ok := s.armed[id]
	if !ok || a.gen != gen {
		// replaced or cancelled after the timer was already running
		s.mu.Unlock()
		return
	}
	delete(s.armed, id)
	s.mu.Unlock()

	s.m.RemindersFired.Add(context.Background(), 1)
	if s.dispatch == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.dispatch.Dispatch(ctx, alert)
}

// Cancel stops the armed timer for id, if any.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.armed[id]
	if !ok {
		return false
	}
	a.timer.Stop()
	delete(s.armed, id)
	return true
}

// Stop cancels every armed timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.armed {
		a.timer.Stop()
		delete(s.armed, id)
	}
}

// Pending lists armed reminders ordered by fire time.
func (s *Scheduler) Pending() []Pending {
	s.mu.Lock()
	out := make([]Pending, 0, len(s.armed))
	for _, a := range s.armed {
		out = append(out, a.p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}
