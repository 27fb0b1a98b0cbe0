package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/hydrogem/pool-dashboard/services/api/models"
)

// Broadcaster fans inserted readings out to subscribers. Each subscriber has
// a one-slot mailbox that always holds the newest undelivered reading, so a
// slow consumer never blocks the listener and never misses the latest row.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan models.Reading
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan models.Reading)}
}

// Subscribe registers a subscriber. The release func removes it and closes
// the channel; calling it more than once is safe.
func (b *Broadcaster) Subscribe() (<-chan models.Reading, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.Reading, 1)
	b.subs[id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, release
}

// Publish delivers r to every subscriber.
func (b *Broadcaster) Publish(r models.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		offer(ch, r)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// offer puts r into the mailbox, keeping whichever of r and the pending value
// is newer. Only Publish writes to the channel and it holds the lock.
func offer(ch chan models.Reading, r models.Reading) {
	select {
	case ch <- r:
		return
	default:
	}
	select {
	case pending := <-ch:
		if pending.NewerThan(r) {
			r = pending
		}
	default:
	}
	ch <- r
}

// Listener turns Postgres insert notifications into published readings.
type Listener struct {
	store   *Store
	channel string
	out     *Broadcaster
}

// NewListener returns a listener for the given notification channel.
func NewListener(store *Store, channel string, out *Broadcaster) *Listener {
	return &Listener{store: store, channel: channel, out: out}
}

// Run holds one pooled connection in LISTEN mode until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := l.store.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	log.Printf("listening for inserts on %s", l.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		r, err := DecodeReading([]byte(n.Payload))
		if err != nil {
			log.Printf("dropping %s payload: %v", l.channel, err)
			continue
		}
		l.out.Publish(r)
	}
}

// DecodeReading parses a row_to_json payload and applies the range checks.
func DecodeReading(payload []byte) (models.Reading, error) {
	var r models.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return models.Reading{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := r.Validate(); err != nil {
		return models.Reading{}, fmt.Errorf("validate payload: %w", err)
	}
	return r, nil
}
