package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hydrogem/pool-dashboard/services/api/models"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    int
	latestFn func(call int) (*models.Reading, error)
}

func (f *fakeSource) LatestReading(ctx context.Context) (*models.Reading, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.latestFn == nil {
		return nil, nil
	}
	return f.latestFn(call)
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSubscriber struct {
	ch       chan models.Reading
	released int
	once     sync.Once
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan models.Reading, 8)}
}

func (f *fakeSubscriber) Subscribe() (<-chan models.Reading, func()) {
	return f.ch, func() {
		f.once.Do(func() {
			f.released++
			close(f.ch)
		})
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestView_MountFetchReplacesStaleInitial(t *testing.T) {
	fresh := at("fresh", 30)
	src := &fakeSource{latestFn: func(int) (*models.Reading, error) { return &fresh, nil }}
	sub := newFakeSubscriber()
	now := t0.Add(time.Hour)

	v := NewView(src, sub, Options{Now: func() time.Time { return now }})
	defer v.Release()

	initial := at("server", 10)
	if err := v.Mount(context.Background(), &initial); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	s := v.Snapshot()
	if s.Reading == nil || s.Reading.ID != "fresh" {
		t.Fatalf("Expected mount fetch to win, got %+v", s.Reading)
	}
	if !s.LastRefresh.Equal(now) {
		t.Errorf("Expected last refresh %v, got %v", now, s.LastRefresh)
	}
	if src.Calls() != 1 {
		t.Errorf("Expected exactly one mount fetch, got %d", src.Calls())
	}
}

func TestView_MountWithoutInitialAndEmptyTable(t *testing.T) {
	src := &fakeSource{}
	v := NewView(src, newFakeSubscriber(), Options{})
	defer v.Release()

	if err := v.Mount(context.Background(), nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	s := v.Snapshot()
	if s.Reading != nil {
		t.Errorf("Expected no reading, got %+v", s.Reading)
	}
	if s.LastRefresh.IsZero() {
		t.Error("Expected empty result to stamp last refresh")
	}
}

func TestView_FetchErrorIsSwallowed(t *testing.T) {
	boom := errors.New("connection refused")
	src := &fakeSource{latestFn: func(int) (*models.Reading, error) { return nil, boom }}
	v := NewView(src, newFakeSubscriber(), Options{})
	defer v.Release()

	initial := at("server", 10)
	if err := v.Mount(context.Background(), &initial); err != nil {
		t.Fatalf("Mount must not fail on fetch errors: %v", err)
	}

	s := v.Snapshot()
	if s.Reading == nil || s.Reading.ID != "server" {
		t.Error("Expected initial reading to stay")
	}
	if !s.LastRefresh.IsZero() {
		t.Error("Expected failed fetch not to stamp last refresh")
	}
	if !s.Stale {
		t.Error("Expected failed fetch to mark view stale")
	}

	if err := v.Refresh(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected Refresh to report the error, got %v", err)
	}
}

func TestView_PushAndFetchRace(t *testing.T) {
	// The manual fetch returns an older row than the push delivered.
	older := at("older", 5)
	src := &fakeSource{latestFn: func(call int) (*models.Reading, error) {
		if call == 1 {
			return nil, nil
		}
		return &older, nil
	}}
	sub := newFakeSubscriber()
	v := NewView(src, sub, Options{})
	defer v.Release()

	if err := v.Mount(context.Background(), nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	sub.ch <- at("pushed", 20)
	waitFor(t, "push to apply", func() bool {
		s := v.Snapshot()
		return s.Reading != nil && s.Reading.ID == "pushed"
	})

	if err := v.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := v.Snapshot().Reading.ID; got != "pushed" {
		t.Errorf("Expected stale fetch result to be discarded, got %s", got)
	}
}

func TestView_UpdatesCarryNewestState(t *testing.T) {
	src := &fakeSource{}
	sub := newFakeSubscriber()
	v := NewView(src, sub, Options{})
	defer v.Release()

	if err := v.Mount(context.Background(), nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	sub.ch <- at("x", 1)
	waitFor(t, "push to apply", func() bool { return v.Snapshot().Reading != nil })

	select {
	case s := <-v.Updates():
		if s.Reading == nil || s.Reading.ID != "x" {
			t.Errorf("Expected newest state on Updates, got %+v", s.Reading)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a pending update")
	}
}

func TestView_ReleaseTearsDown(t *testing.T) {
	sub := newFakeSubscriber()
	v := NewView(&fakeSource{}, sub, Options{PollInterval: time.Hour})

	if err := v.Mount(context.Background(), nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	v.Release()
	v.Release()

	if sub.released != 1 {
		t.Errorf("Expected subscription released once, got %d", sub.released)
	}

	for range v.Updates() {
	}

	// Refresh after release must not panic or change state.
	before := v.Snapshot()
	_ = v.Refresh(context.Background())
	if !v.Snapshot().LastRefresh.Equal(before.LastRefresh) {
		t.Error("Expected released view to ignore observations")
	}
}

func TestView_MountTwice(t *testing.T) {
	v := NewView(&fakeSource{}, newFakeSubscriber(), Options{})
	defer v.Release()

	if err := v.Mount(context.Background(), nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if err := v.Mount(context.Background(), nil); !errors.Is(err, ErrAlreadyMounted) {
		t.Errorf("Expected ErrAlreadyMounted, got %v", err)
	}
}

func TestView_PeriodicPoll(t *testing.T) {
	src := &fakeSource{}
	v := NewView(src, newFakeSubscriber(), Options{PollInterval: 20 * time.Millisecond})
	defer v.Release()

	if err := v.Mount(context.Background(), nil); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	waitFor(t, "scheduled polls", func() bool { return src.Calls() >= 3 })
}
