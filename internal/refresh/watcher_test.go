package refresh

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/scheduling"
)

type fakeSource struct {
	mu     sync.Mutex
	rounds [][]scheduling.Appointment
	loads  int
	err    error
}

func (f *fakeSource) Load(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.loads++
	return nil
}

func (f *fakeSource) Items() []scheduling.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.loads - 1
	if i >= len(f.rounds) {
		i = len(f.rounds) - 1
	}
	return f.rounds[i]
}

func appt(id int64, s scheduling.Status) scheduling.Appointment {
	return scheduling.Appointment{AppointmentID: id, Status: s}
}

func TestDiff(t *testing.T) {
	before := map[int64]scheduling.Status{1: scheduling.StatusPending, 2: scheduling.StatusConfirmed, 3: scheduling.StatusPending}
	after := map[int64]scheduling.Status{1: scheduling.StatusConfirmed, 2: scheduling.StatusConfirmed, 4: scheduling.StatusPending}

	want := []Change{
		{ID: 1, From: scheduling.StatusPending, To: scheduling.StatusConfirmed},
		{ID: 3, From: scheduling.StatusPending},
		{ID: 4, To: scheduling.StatusPending},
	}
	if got := Diff(before, after); !reflect.DeepEqual(got, want) {
		t.Errorf("Diff = %+v, want %+v", got, want)
	}
	if got := Diff(after, after); len(got) != 0 {
		t.Errorf("identical snapshots must not differ, got %+v", got)
	}
}

func TestPoll_BaselineThenChanges(t *testing.T) {
	src := &fakeSource{rounds: [][]scheduling.Appointment{
		{appt(1, scheduling.StatusPending), appt(2, scheduling.StatusPending)},
		{appt(1, scheduling.StatusConfirmed), appt(2, scheduling.StatusPending)},
	}}
	var seen []Change
	w, err := New(src, "@every 1h", func(c Change) { seen = append(seen, c) }, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	if changes, err := w.Poll(ctx); err != nil || len(changes) != 0 {
		t.Fatalf("baseline poll: %v %v", changes, err)
	}
	changes, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	want := []Change{{ID: 1, From: scheduling.StatusPending, To: scheduling.StatusConfirmed}}
	if !reflect.DeepEqual(changes, want) || !reflect.DeepEqual(seen, want) {
		t.Errorf("changes = %+v, callback saw %+v", changes, seen)
	}
}

func TestPoll_LoadErrorKeepsBaseline(t *testing.T) {
	src := &fakeSource{rounds: [][]scheduling.Appointment{{appt(1, scheduling.StatusPending)}}}
	w, err := New(src, "@every 1h", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := w.Poll(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	src.err = errors.New("connection refused")
	if _, err := w.Poll(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if len(w.last) != 1 {
		t.Error("a failed load must not reset the baseline")
	}
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	if _, err := New(&fakeSource{}, "every now and then", nil, zerolog.Nop()); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{rounds: [][]scheduling.Appointment{{appt(1, scheduling.StatusPending)}}}
	w, err := New(src, "@every 1h", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if src.loads != 1 {
		t.Errorf("start must take a baseline, loads = %d", src.loads)
	}
	w.Stop()
	w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Error("a stopped watcher cannot restart")
	}
}

func TestStart_BaselineFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("unauthorized")}
	w, err := New(src, "@every 1h", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected baseline error")
	}
	w.Stop()
}

// stallingSource reads the backend status when Load starts. The load armed
// with hold blocks until release is closed before publishing its snapshot.
type stallingSource struct {
	mu      sync.Mutex
	backend scheduling.Status
	items   []scheduling.Appointment
	hold    bool
	entered chan struct{}
	release chan struct{}
}

func (s *stallingSource) Load(context.Context) error {
	s.mu.Lock()
	snap, hold := s.backend, s.hold
	s.hold = false
	s.mu.Unlock()

	if hold {
		close(s.entered)
		<-s.release
	}
	s.mu.Lock()
	s.items = []scheduling.Appointment{appt(1, snap)}
	s.mu.Unlock()
	return nil
}

func (s *stallingSource) Items() []scheduling.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

func (s *stallingSource) set(status scheduling.Status) {
	s.mu.Lock()
	s.backend = status
	s.mu.Unlock()
}

func TestPoll_ConcurrentPollsNeverGoBackwards(t *testing.T) {
	src := &stallingSource{
		backend: scheduling.StatusPending,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	var (
		mu  sync.Mutex
		got []Change
	)
	w, err := New(src, "@every 1h", func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if _, err := w.Poll(ctx); err != nil {
		t.Fatalf("baseline: %v", err)
	}

	src.mu.Lock()
	src.hold = true
	src.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.Poll(ctx)
	}()
	<-src.entered

	// The slow poll already read PENDING; the backend now moves on.
	src.set(scheduling.StatusConfirmed)
	go func() {
		defer wg.Done()
		w.Poll(ctx)
	}()
	close(src.release)
	wg.Wait()

	// A third poll must see nothing new.
	if _, err := w.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}

	want := []Change{{ID: 1, From: scheduling.StatusPending, To: scheduling.StatusConfirmed}}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("changes = %+v, want %+v", got, want)
	}
}
