// Package ordering persists a drag-reorder of one day's events as
// positional order values.
package ordering

import (
	"context"
	"errors"
	"log/slog"

	"smart-calendar-api/internal/metrics"
	"smart-calendar-api/internal/model"
)

// OrderWriter persists a single event's position.
type OrderWriter interface {
	UpdateEventOrder(ctx context.Context, ownerID, id string, order int) error
}

// WorkingSet is the in-memory collection the reorder is applied to first.
// ReplaceDay takes the new positions from the Order field of each event,
// matched by id; other fields are not written back.
type WorkingSet interface {
	ReplaceDay(seq []model.Event)
}

type Synchronizer struct {
	store OrderWriter
	log   *slog.Logger
	m     *metrics.Counters
}

func New(store OrderWriter, logger *slog.Logger, m *metrics.Counters) *Synchronizer {
	if m == nil {
		m = metrics.NewCounters()
	}
	return &Synchronizer{store: store, log: logger.With("component", "ordering"), m: m}
}

// ApplyReorder takes the full reordered sequence for one day. The working
// set is updated before anything is written; then order = i is written for
// each position in sequence order. Failed writes are logged and collected,
// the rest still go out, and nothing is rolled back.
func (s *Synchronizer) ApplyReorder(ctx context.Context, set WorkingSet, seq []model.Event) error {
	next := make([]model.Event, len(seq))
	copy(next, seq)
	for i := range next {
		next[i].Order = i
	}
	set.ReplaceDay(next)

	var errs []error
	for i, e := range next {
		s.m.OrderWrites.Add(ctx, 1)
		if err := s.store.UpdateEventOrder(ctx, e.OwnerID, e.ID, i); err != nil {
			s.m.OrderWriteErrors.Add(ctx, 1)
			s.log.Error("order write failed", "event_id", e.ID, "order", i, "err", err)
			errs = append(errs, &model.PersistenceError{Op: "update order", EventID: e.ID, Err: err})
		}
	}
	return errors.Join(errs...)
}
