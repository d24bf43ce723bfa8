// Package refresh reloads an appointment collection on a cron schedule and
// reports status changes between loads.
package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/scheduling"
)

// Source is a reloadable appointment list, normally a
// *collection.Store[scheduling.Appointment].
type Source interface {
	Load(ctx context.Context) error
	Items() []scheduling.Appointment
}

// Change is one appointment whose status moved between two loads. From is
// empty for an appointment seen for the first time; To is empty for one
// that disappeared.
type Change struct {
	ID   int64
	From scheduling.Status
	To   scheduling.Status
}

type Watcher struct {
	src      Source
	schedule string
	onChange func(Change)
	logger   zerolog.Logger

	// polling serializes whole polls so a slow load never replaces a newer
	// baseline.
	polling sync.Mutex

	mu      sync.Mutex
	last    map[int64]scheduling.Status
	primed  bool
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// New validates schedule, a standard cron expression or a descriptor such as
// "@every 30s", and returns a stopped watcher.
func New(src Source, schedule string, onChange func(Change), logger zerolog.Logger) (*Watcher, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse watch schedule %q: %w", schedule, err)
	}
	if onChange == nil {
		onChange = func(Change) {}
	}
	return &Watcher{src: src, schedule: schedule, onChange: onChange, logger: logger}, nil
}

// Start takes a baseline load and then polls on the schedule until ctx is
// done or Stop is called. The baseline emits no changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cron != nil || w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	w.mu.Unlock()

	if _, err := w.Poll(w.ctx); err != nil {
		w.Stop()
		return err
	}
	if _, err := w.cron.AddFunc(w.schedule, w.tick); err != nil {
		w.Stop()
		return fmt.Errorf("schedule refresh: %w", err)
	}
	w.cron.Start()
	w.logger.Info().Str("schedule", w.schedule).Msg("watching appointments")

	go func() {
		<-w.ctx.Done()
		w.Stop()
	}()
	return nil
}

func (w *Watcher) tick() {
	if _, err := w.Poll(w.ctx); err != nil {
		w.logger.Warn().Err(err).Msg("refresh appointments")
	}
}

// Poll reloads the source once and reports what changed since the previous
// load. The first poll only records a baseline. Concurrent calls run one
// after another; onChange must not call Poll.
func (w *Watcher) Poll(ctx context.Context) ([]Change, error) {
	w.polling.Lock()
	defer w.polling.Unlock()

	if err := w.src.Load(ctx); err != nil {
		return nil, fmt.Errorf("reload appointments: %w", err)
	}
	current := make(map[int64]scheduling.Status)
	for _, a := range w.src.Items() {
		current[a.AppointmentID] = a.Status
	}

	w.mu.Lock()
	var changes []Change
	if w.primed {
		changes = Diff(w.last, current)
	}
	w.last, w.primed = current, true
	w.mu.Unlock()

	for _, c := range changes {
		w.logger.Debug().Int64("appointment_id", c.ID).Str("from", string(c.From)).Str("to", string(c.To)).Msg("appointment changed")
		w.onChange(c)
	}
	return changes, nil
}

// Stop cancels polling and waits for a running poll to return. It is safe to
// call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	c, cancel := w.cron, w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}

// Diff compares two id to status snapshots, ordered by id.
func Diff(before, after map[int64]scheduling.Status) []Change {
	var out []Change
	for id, to := range after {
		if from, ok := before[id]; !ok || from != to {
			out = append(out, Change{ID: id, From: before[id], To: to})
		}
	}
	for id, from := range before {
		if _, ok := after[id]; !ok {
			out = append(out, Change{ID: id, From: from})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
