package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/hydrogem/pool-dashboard/services/api/models"
)

// LatestSource is the "latest row" point query.
type LatestSource interface {
	LatestReading(ctx context.Context) (*models.Reading, error)
}

// Subscriber hands out insert subscriptions. The returned func releases it.
type Subscriber interface {
	Subscribe() (<-chan models.Reading, func())
}

// Options tune a View.
type Options struct {
	PollInterval time.Duration // 0 disables the periodic fetch
	Now          func() time.Time
}

// ErrAlreadyMounted is returned by a second Mount of the same View.
var ErrAlreadyMounted = errors.New("view already mounted")

// View is one mounted instance of the live reading panel.
type View struct {
	source LatestSource
	sub    Subscriber
	opts   Options

	mu       sync.Mutex
	state    State
	updates  chan State
	mounted  bool
	released bool

	cancel      context.CancelFunc
	unsubscribe func()
	scheduler   *gocron.Scheduler
	consumed    chan struct{}
	releaseOnce sync.Once
}

// NewView builds an unmounted view.
func NewView(source LatestSource, sub Subscriber, opts Options) *View {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &View{
		source:  source,
		sub:     sub,
		opts:    opts,
		updates: make(chan State, 1),
	}
}

// Mount seeds the view with initial (nil means no data yet), acquires the push
// subscription, starts the periodic fetch and runs one fetch to catch rows
// inserted after initial was read. The caller must call Release.
func (v *View) Mount(ctx context.Context, initial *models.Reading) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return ErrAlreadyMounted
	}
	v.mounted = true
	if initial != nil {
		r := *initial
		v.state = State{Reading: &r}
	}
	v.publishLocked()
	v.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel

	ch, unsubscribe := v.sub.Subscribe()
	v.unsubscribe = unsubscribe
	v.consumed = make(chan struct{})
	go v.consume(ch)

	if v.opts.PollInterval > 0 {
		s := gocron.NewScheduler(time.UTC)
		s.SingletonModeAll()
		if _, err := s.Every(v.opts.PollInterval).WaitForSchedule().Do(func() {
			_ = v.Refresh(ctx)
		}); err != nil {
			v.Release()
			return err
		}
		v.scheduler = s
		s.StartAsync()
	}

	_ = v.Refresh(ctx)
	return nil
}

// Refresh runs the latest-row query and merges the result. A failed query
// leaves the reading and last refresh untouched and marks the state stale;
// the error is returned for logging only.
func (v *View) Refresh(ctx context.Context) error {
	r, err := v.source.LatestReading(ctx)
	switch {
	case err != nil:
		v.apply(FailedPoll())
		return err
	case r == nil:
		v.apply(EmptyPoll())
	default:
		v.apply(Candidate(*r))
	}
	return nil
}

// Snapshot returns the current state.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Updates delivers the newest state after each change. Intermediate states
// may be skipped. The channel is closed by Release.
func (v *View) Updates() <-chan State {
	return v.updates
}

// Release tears down the subscription, the scheduler and the update channel.
// Safe to call more than once and before Mount.
func (v *View) Release() {
	v.releaseOnce.Do(func() {
		if v.cancel != nil {
			v.cancel()
		}
		if v.scheduler != nil {
			v.scheduler.Stop()
		}
		if v.unsubscribe != nil {
			v.unsubscribe()
			<-v.consumed
		}

		v.mu.Lock()
		v.released = true
		close(v.updates)
		v.mu.Unlock()
	})
}

func (v *View) consume(ch <-chan models.Reading) {
	defer close(v.consumed)
	for r := range ch {
		v.apply(Candidate(r))
	}
}

func (v *View) apply(o Observation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.released {
		return
	}
	v.state = Apply(v.state, o, v.opts.Now())
	v.publishLocked()
}

// publishLocked replaces any undelivered state with the current one.
func (v *View) publishLocked() {
	if v.released {
		return
	}
	select {
	case <-v.updates:
	default:
	}
	v.updates <- v.state
}
