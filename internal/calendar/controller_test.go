package calendar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-calendar-api/internal/clock"
	"smart-calendar-api/internal/model"
	"smart-calendar-api/internal/notify"
	"smart-calendar-api/internal/store/sqlite"
)

var (
	today = civil.Date{Year: 2026, Month: time.March, Day: 10}
	now   = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	quiet = slog.New(slog.DiscardHandler)
)

type alerts struct {
	mu  sync.Mutex
	got []notify.Alert
}

func (a *alerts) Dispatch(_ context.Context, al notify.Alert) {
	a.mu.Lock()
	a.got = append(a.got, al)
	a.mu.Unlock()
}

func (a *alerts) ids() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, al := range a.got {
		out = append(out, al.EventID)
	}
	return out
}

// flaky fails order writes for the ids in failOrder.
type flaky struct {
	EventStore
	failOrder map[string]bool
}

func (f *flaky) UpdateEventOrder(ctx context.Context, owner, id string, order int) error {
	if f.failOrder[id] {
		return errors.New("network down")
	}
	return f.EventStore.UpdateEventOrder(ctx, owner, id, order)
}

// gated parks the first armed ListEvents for owner after it has read the
// store, and the first armed UpdateEventOrder before it writes, until
// release is closed.
type gated struct {
	EventStore
	owner     string
	listArmed atomic.Bool
	ordArmed  atomic.Bool
	entered   chan struct{}
	release   chan struct{}
}

func newGated(st EventStore, owner string) *gated {
	return &gated{EventStore: st, owner: owner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gated) ListEvents(ctx context.Context, owner string) ([]model.Event, error) {
	list, err := g.EventStore.ListEvents(ctx, owner)
	if owner == g.owner && g.listArmed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return list, err
}

func (g *gated) UpdateEventOrder(ctx context.Context, owner, id string, order int) error {
	if g.ordArmed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.EventStore.UpdateEventOrder(ctx, owner, id, order)
}

type fixture struct {
	store *sqlite.Store
	clk   *clock.Fake
	sink  *alerts
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{store: st, clk: clock.NewFake(now), sink: &alerts{}}
	f.deps = Deps{
		Store:      st,
		Clock:      f.clk,
		Location:   time.UTC,
		Dispatcher: f.sink,
		Logger:     quiet,
	}
	return f
}

func (f *fixture) controller(t *testing.T, owner string) *Controller {
	t.Helper()
	c := NewController(owner, f.deps)
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func draft(title, start string) model.Event {
	return model.Event{
		Title:           title,
		Date:            today,
		StartTime:       start,
		EndTime:         "23:00",
		ReminderEnabled: true,
		ReminderMinutes: 15,
	}
}

func TestCreateAppliesDefaultsAndArms(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")

	in := draft("  Standup ", "9:05")
	in.ReminderMinutes = 0
	e, err := c.Create(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "owner-1", e.OwnerID)
	assert.Equal(t, "Standup", e.Title)
	assert.Equal(t, model.DefaultColor, e.Color)
	assert.Equal(t, model.DefaultReminderMinutes, e.ReminderMinutes)
	assert.Equal(t, "09:05", e.StartTime)

	pending := c.Reminders()
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].EventID)

	f.clk.Advance(time.Hour)
	assert.Equal(t, []string{e.ID}, f.sink.ids())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")

	tests := []struct {
		name  string
		edit  func(*model.Event)
		field string
	}{
		{"blank title", func(e *model.Event) { e.Title = "  " }, "title"},
		{"bad start", func(e *model.Event) { e.StartTime = "9am" }, "startTime"},
		{"bad end", func(e *model.Event) { e.EndTime = "25:00" }, "endTime"},
		{"off palette", func(e *model.Event) { e.Color = "#000000" }, "color"},
		{"negative lead", func(e *model.Event) { e.ReminderMinutes = -1 }, "reminderMinutes"},
		{"bad collaborator", func(e *model.Event) { e.SharedWith = []string{"nope"} }, "sharedWith[0]"},
		{"no date", func(e *model.Event) { e.Date = civil.Date{} }, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := draft("x", "09:00")
			tt.edit(&e)
			_, err := c.Create(context.Background(), e)
			require.Error(t, err)

			var ve *model.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, c.Events())
}

func TestEndBeforeStartAccepted(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")

	e := draft("Night shift", "22:00")
	e.EndTime = "06:00"
	_, err := c.Create(context.Background(), e)
	assert.NoError(t, err)
}

func TestCreateAppendsToDay(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	a, err := c.Create(ctx, draft("a", "12:00"))
	require.NoError(t, err)
	b, err := c.Create(ctx, draft("b", "09:00"))
	require.NoError(t, err)

	other := draft("c", "09:00")
	other.Date = today.AddDays(1)
	o, err := c.Create(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, b.Order)
	assert.Equal(t, 0, o.Order)

	day := c.Day(today)
	require.Len(t, day, 2)
	assert.Equal(t, []string{a.ID, b.ID}, []string{day[0].ID, day[1].ID})
}

func TestUpdateCancelsAndReschedules(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e, err := c.Create(ctx, draft("Standup", "09:00"))
	require.NoError(t, err)

	e.StartTime = "11:00"
	e.Title = "Standup (late)"
	upd, err := c.Update(ctx, e)
	require.NoError(t, err)
	assert.False(t, upd.UpdatedAt.IsZero())
	assert.Equal(t, e.CreatedAt, upd.CreatedAt)

	f.clk.Advance(time.Hour)
	assert.Empty(t, f.sink.ids(), "stale reminder must not fire")

	f.clk.Advance(2 * time.Hour)
	assert.Equal(t, []string{e.ID}, f.sink.ids())

	got, err := c.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Standup (late)", got.Title)
}

func TestUpdateDisablingReminderCancels(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e, err := c.Create(ctx, draft("Standup", "09:00"))
	require.NoError(t, err)
	e.ReminderEnabled = false
	_, err = c.Update(ctx, e)
	require.NoError(t, err)

	assert.Empty(t, c.Reminders())
	f.clk.Advance(2 * time.Hour)
	assert.Empty(t, f.sink.ids())
}

func TestUpdateUnknown(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	e := draft("x", "09:00")
	e.ID = "missing"
	_, err := c.Update(context.Background(), e)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteCancelsReminder(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e, err := c.Create(ctx, draft("Standup", "09:00"))
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, e.ID))

	assert.Empty(t, c.Events())
	assert.Empty(t, c.Reminders())
	f.clk.Advance(2 * time.Hour)
	assert.Empty(t, f.sink.ids())

	err = c.Delete(ctx, e.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	var pe *model.PersistenceError
	assert.True(t, errors.As(err, &pe))
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e1, _ := c.Create(ctx, draft("e1", "09:00"))
	e2, _ := c.Create(ctx, draft("e2", "10:00"))
	e3, _ := c.Create(ctx, draft("e3", "11:00"))

	require.NoError(t, c.Reorder(ctx, today, []string{e2.ID, e1.ID, e3.ID}))

	day := c.Day(today)
	assert.Equal(t, []string{e2.ID, e1.ID, e3.ID}, []string{day[0].ID, day[1].ID, day[2].ID})

	stored, err := f.store.ListEvents(ctx, "owner-1")
	require.NoError(t, err)
	orders := map[string]int{}
	for _, e := range stored {
		orders[e.ID] = e.Order
	}
	assert.Equal(t, map[string]int{e2.ID: 0, e1.ID: 1, e3.ID: 2}, orders)
}

func TestReorderRejectsMismatchedIDs(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e1, _ := c.Create(ctx, draft("e1", "09:00"))
	e2, _ := c.Create(ctx, draft("e2", "10:00"))

	for name, ids := range map[string][]string{
		"short":    {e1.ID},
		"repeated": {e1.ID, e1.ID},
		"foreign":  {e1.ID, "elsewhere"},
	} {
		t.Run(name, func(t *testing.T) {
			err := c.Reorder(ctx, today, ids)
			assert.True(t, model.IsValidation(err), "got %v", err)
		})
	}

	day := c.Day(today)
	assert.Equal(t, []string{e1.ID, e2.ID}, []string{day[0].ID, day[1].ID})
}

func TestReorderPartialFailureKeepsOptimisticOrder(t *testing.T) {
	f := newFixture(t)
	fl := &flaky{EventStore: f.store, failOrder: map[string]bool{}}
	f.deps.Store = fl
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e1, _ := c.Create(ctx, draft("e1", "09:00"))
	e2, _ := c.Create(ctx, draft("e2", "10:00"))
	fl.failOrder[e1.ID] = true

	err := c.Reorder(ctx, today, []string{e2.ID, e1.ID})
	require.Error(t, err)
	assert.False(t, model.IsValidation(err))

	day := c.Day(today)
	assert.Equal(t, []string{e2.ID, e1.ID}, []string{day[0].ID, day[1].ID})
}

func TestShare(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e, _ := c.Create(ctx, draft("Lunch", "12:00"))

	_, err := c.Share(ctx, e.ID, "not-an-email")
	assert.True(t, model.IsValidation(err))

	got, err := c.Share(ctx, e.ID, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsShared)

	got, err = c.Share(ctx, e.ID, " ANA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com"}, got.SharedWith)

	_, err = c.Share(ctx, "missing", "bo@example.com")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLoadRestoresAndArms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.controller(t, "owner-1")
	soon, _ := c.Create(ctx, draft("soon", "09:00"))
	later := draft("later", "09:00")
	later.Date = today.AddDays(3)
	_, _ = c.Create(ctx, later)
	c.Close()

	again := f.controller(t, "owner-1")
	assert.Len(t, again.Events(), 2)
	pending := again.Reminders()
	require.Len(t, pending, 1)
	assert.Equal(t, soon.ID, pending[0].EventID)

	assert.Empty(t, f.controller(t, "owner-2").Events())
}

func TestRegistryRefreshArmsNewlyDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := NewRegistry(f.deps)
	t.Cleanup(reg.Close)

	c, err := reg.For(ctx, "owner-1")
	require.NoError(t, err)
	same, err := reg.For(ctx, "owner-1")
	require.NoError(t, err)
	assert.Same(t, c, same)

	tomorrow := draft("tomorrow", "09:00")
	tomorrow.Date = today.AddDays(1)
	e, err := c.Create(ctx, tomorrow)
	require.NoError(t, err)
	assert.Empty(t, c.Reminders(), "outside the look-ahead window")

	f.clk.Set(now.Add(12 * time.Hour))
	require.NoError(t, reg.Refresh(ctx))

	pending := c.Reminders()
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].EventID)
}

func TestRegistryStartRefreshRejectsBadSpec(t *testing.T) {
	reg := NewRegistry(newFixture(t).deps)
	t.Cleanup(reg.Close)
	assert.Error(t, reg.StartRefresh("every tuesday"))
	assert.NoError(t, reg.StartRefresh("*/15 * * * *"))
}

func TestLoadDuringCreateKeepsEvent(t *testing.T) {
	f := newFixture(t)
	g := newGated(f.store, "owner-1")
	f.deps.Store = g
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	g.listArmed.Store(true)
	loaded := make(chan error, 1)
	go func() { loaded <- c.Load(ctx) }()
	<-g.entered

	created := make(chan model.Event, 1)
	go func() {
		e, err := c.Create(ctx, draft("Standup", "09:00"))
		assert.NoError(t, err)
		created <- e
	}()
	close(g.release)
	require.NoError(t, <-loaded)
	e := <-created

	_, err := c.Get(e.ID)
	require.NoError(t, err)
	pending := c.Reminders()
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].EventID)
}

func TestLoadDuringDeleteKeepsItDeleted(t *testing.T) {
	f := newFixture(t)
	g := newGated(f.store, "owner-1")
	f.deps.Store = g
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e, err := c.Create(ctx, draft("Standup", "09:00"))
	require.NoError(t, err)

	g.listArmed.Store(true)
	loaded := make(chan error, 1)
	go func() { loaded <- c.Load(ctx) }()
	<-g.entered

	deleted := make(chan error, 1)
	go func() { deleted <- c.Delete(ctx, e.ID) }()
	close(g.release)
	require.NoError(t, <-loaded)
	require.NoError(t, <-deleted)

	_, err = c.Get(e.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, c.Reminders())

	f.clk.Advance(time.Hour)
	assert.Empty(t, f.sink.ids())
}

func TestShareDuringReorderIsKept(t *testing.T) {
	f := newFixture(t)
	g := newGated(f.store, "owner-1")
	f.deps.Store = g
	c := f.controller(t, "owner-1")
	ctx := context.Background()

	e1, _ := c.Create(ctx, draft("e1", "09:00"))
	e2, _ := c.Create(ctx, draft("e2", "10:00"))

	g.ordArmed.Store(true)
	reordered := make(chan error, 1)
	go func() { reordered <- c.Reorder(ctx, today, []string{e2.ID, e1.ID}) }()
	<-g.entered

	shared := make(chan error, 1)
	go func() {
		_, err := c.Share(ctx, e2.ID, "ana@example.com")
		shared <- err
	}()
	close(g.release)
	require.NoError(t, <-reordered)
	require.NoError(t, <-shared)

	got, err := c.Get(e2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com"}, got.SharedWith)
	assert.Equal(t, 0, got.Order)
}

func TestReorderWritesOnlyOrder(t *testing.T) {
	f := newFixture(t)
	c := f.controller(t, "owner-1")

	e, err := c.Create(context.Background(), draft("current", "09:00"))
	require.NoError(t, err)

	stale := e
	stale.Title = "stale"
	stale.Order = 4
	c.mu.Lock()
	lockedSet{c}.ReplaceDay([]model.Event{stale})
	c.mu.Unlock()

	got, err := c.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "current", got.Title)
	assert.Equal(t, 4, got.Order)
}

func TestRegistrySlowLoadDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	g := newGated(f.store, "slow")
	f.deps.Store = g
	reg := NewRegistry(f.deps)
	t.Cleanup(reg.Close)
	ctx := context.Background()

	g.listArmed.Store(true)
	slow := make(chan *Controller, 1)
	go func() {
		c, err := reg.For(ctx, "slow")
		assert.NoError(t, err)
		slow <- c
	}()
	<-g.entered

	fast := make(chan error, 1)
	go func() {
		_, err := reg.For(ctx, "fast")
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loading one owner blocked another")
	}

	close(g.release)
	c := <-slow
	again, err := reg.For(ctx, "slow")
	require.NoError(t, err)
	assert.Same(t, c, again)
}
