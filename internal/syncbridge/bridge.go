// ABOUTME: Bounded wait for an asynchronous snapshot refresh to reflect a published intent
// ABOUTME: One caller at a time; released on match, after max refreshes, or on timeout

package syncbridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Counter reports membership of a key in a snapshot. *bdi.BeliefSet and
// *bdi.DesireSet satisfy it.
type Counter interface {
	Count(key bdi.Fingerprint) int
}

// Result describes how an Await ended.
type Result struct {
	// Matched is true when a refresh showed the expected count.
	Matched bool
	// Refreshes is the number of non-matching refreshes observed.
	Refreshes int
	// TimedOut is true when the wall-clock limit released the caller.
	TimedOut bool
}

type waiter struct {
	key      bdi.Fingerprint
	expected int
	counter  int
	matched  bool
	released bool
	done     chan struct{}
}

func (w *waiter) release() {
	if !w.released {
		w.released = true
		close(w.done)
	}
}

// Bridge serializes callers waiting on one (kind, operation) pair.
type Bridge struct {
	name         string
	maxRefreshes int
	timeout      time.Duration
	logger       *slog.Logger

	slot chan struct{}

	mu     sync.Mutex
	active *waiter
}

// New creates a bridge. maxRefreshes bounds the snapshots a caller waits
// for; timeout, when positive, bounds the wall-clock wait as well.
func New(name string, maxRefreshes int, timeout time.Duration, logger *slog.Logger) *Bridge {
	if maxRefreshes < 1 {
		maxRefreshes = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		name:         name,
		maxRefreshes: maxRefreshes,
		timeout:      timeout,
		logger:       logger.With("component", "syncbridge", "bridge", name),
		slot:         make(chan struct{}, 1),
	}
}

// Name returns the bridge name.
func (b *Bridge) Name() string {
	return b.name
}

// Await registers interest in key reaching expected membership, runs
// publish, then blocks until released. The waiter is registered before
// publish runs so a refresh caused by publish is never missed. A second
// caller blocks until the first has been released.
func (b *Bridge) Await(ctx context.Context, key bdi.Fingerprint, expected int, publish func() error) (Result, error) {
	select {
	case b.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-b.slot }()

	w := &waiter{key: key, expected: expected, done: make(chan struct{})}
	b.mu.Lock()
	b.active = w
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.active = nil
		b.mu.Unlock()
	}()

	if publish != nil {
		if err := publish(); err != nil {
			return Result{}, fmt.Errorf("%s: publish: %w", b.name, err)
		}
	}

	var timeout <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var res Result
	select {
	case <-w.done:
	case <-timeout:
		res.TimedOut = true
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	b.mu.Lock()
	res.Matched = w.matched
	res.Refreshes = w.counter
	b.mu.Unlock()

	if !res.Matched {
		b.logger.Debug("released without match",
			"key", key,
			"refreshes", res.Refreshes,
			"timed_out", res.TimedOut)
	}
	return res, nil
}

// OnSnapshotRefresh feeds one new snapshot to the waiting caller, if any.
func (b *Bridge) OnSnapshotRefresh(snapshot Counter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.active
	if w == nil || w.released {
		return
	}
	if snapshot.Count(w.key) == w.expected {
		w.matched = true
		w.release()
		return
	}
	w.counter++
	if w.counter >= b.maxRefreshes {
		w.release()
	}
}

// Waiting reports whether a caller is registered.
func (b *Bridge) Waiting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil && !b.active.released
}
