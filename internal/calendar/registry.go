package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Registry hands out one loaded Controller per owner.
type Registry struct {
	deps Deps

	mu    sync.Mutex
	ctrls map[string]*Controller
	cron  *cron.Cron
}

func NewRegistry(d Deps) *Registry {
	d.defaults()
	return &Registry{deps: d, ctrls: make(map[string]*Controller)}
}

// For returns the owner's controller, creating and loading it on first use.
// Loading runs outside the registry lock; if two callers race on the same
// owner the first to finish wins and the other controller is discarded.
func (r *Registry) For(ctx context.Context, ownerID string) (*Controller, error) {
	r.mu.Lock()
	c, ok := r.ctrls[ownerID]
	r.mu.Unlock()
	if ok {
		return c, nil
	}

	c = NewController(ownerID, r.deps)
	if err := c.Load(ctx); err != nil {
		c.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.ctrls[ownerID]; ok {
		c.Close()
		return cur, nil
	}
	r.ctrls[ownerID] = c
	return c, nil
}

func (r *Registry) snapshot() []*Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Controller, 0, len(r.ctrls))
	for _, c := range r.ctrls {
		out = append(out, c)
	}
	return out
}

// Refresh reloads every known controller. Reminders that were outside the
// horizon on the last pass are armed once they come within it.
func (r *Registry) Refresh(ctx context.Context) error {
	var errs []error
	for _, c := range r.snapshot() {
		if err := c.Load(ctx); err != nil {
			r.deps.Logger.Error("refresh failed", "owner", c.Owner(), "err", err)
			errs = append(errs, fmt.Errorf("owner %s: %w", c.Owner(), err))
		}
	}
	return errors.Join(errs...)
}

// StartRefresh runs Refresh on a standard five-field cron schedule.
func (r *Registry) StartRefresh(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_ = r.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	c.Start()
	r.deps.Logger.Info("reminder refresh scheduled", "spec", spec)
	return nil
}

// Close stops the refresh job and every controller's timers.
func (r *Registry) Close() {
	r.mu.Lock()
	cr := r.cron
	r.cron = nil
	ctrls := r.ctrls
	r.ctrls = make(map[string]*Controller)
	r.mu.Unlock()

	if cr != nil {
		<-cr.Stop().Done()
	}
	for _, c := range ctrls {
		c.Close()
	}
}
