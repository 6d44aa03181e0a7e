// ABOUTME: Embedded authoritative belief/desire store for standalone agents
// ABOUTME: Applies mutation intents from the bus and republishes full snapshots

package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Store owns the authoritative sets of one agent. Every applied intent,
// including one that changes nothing, is followed by a snapshot of the
// affected set.
type Store struct {
	ch     *Channels
	logger *slog.Logger

	mu      sync.Mutex
	beliefs *orderedSet[bdi.Belief]
	desires *orderedSet[bdi.Desire]
	subs    []Subscription
}

// NewStore creates a store seeded with initial beliefs and desires.
func NewStore(ch *Channels, initialBeliefs []bdi.Belief, initialDesires []bdi.Desire, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		ch:      ch,
		logger:  logger.With("component", "store"),
		beliefs: newOrderedSet[bdi.Belief](),
		desires: newOrderedSet[bdi.Desire](),
	}
	for _, b := range initialBeliefs {
		s.beliefs.put(b.Fingerprint(), b)
	}
	current := bdi.NewBeliefSet(s.beliefs.list())
	for _, d := range initialDesires {
		if d.IsFulfilled(current) {
			continue
		}
		s.desires.put(d.Fingerprint(), d)
	}
	return s
}

// Start subscribes to the intent channels and publishes the initial snapshots.
func (s *Store) Start(ctx context.Context) error {
	type binding struct {
		channel string
		sub     func() (Subscription, error)
	}
	bindings := []binding{
		{ChanAddBelief, func() (Subscription, error) {
			return s.ch.OnBelief(ChanAddBelief, func(b bdi.Belief) { s.ApplyAddBelief(ctx, b) })
		}},
		{ChanDelBelief, func() (Subscription, error) {
			return s.ch.OnBelief(ChanDelBelief, func(b bdi.Belief) { s.ApplyDelBelief(ctx, b) })
		}},
		{ChanAddDesire, func() (Subscription, error) {
			return s.ch.OnDesire(ChanAddDesire, func(d bdi.Desire) { s.ApplyAddDesire(ctx, d) })
		}},
		{ChanDelDesire, func() (Subscription, error) {
			return s.ch.OnDesire(ChanDelDesire, func(d bdi.Desire) { s.ApplyDelDesire(ctx, d) })
		}},
	}

	for _, b := range bindings {
		sub, err := b.sub()
		if err != nil {
			s.Stop()
			return err
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishBeliefsLocked(ctx)
	s.publishDesiresLocked(ctx)

	s.logger.Info("store started",
		"beliefs", s.beliefs.len(),
		"desires", s.desires.len())
	return nil
}

// Stop unsubscribes from the intent channels.
func (s *Store) Stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", "error", err)
		}
	}
}

// ApplyAddBelief inserts b or updates its value.
func (s *Store) ApplyAddBelief(ctx context.Context, b bdi.Belief) {
	if err := b.Validate(); err != nil {
		s.logger.Warn("ignoring invalid belief", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beliefs.put(b.Fingerprint(), b)
	s.logger.Debug("belief added", "belief", b.String())
	s.publishBeliefsLocked(ctx)
}

// ApplyDelBelief removes b by identity.
func (s *Store) ApplyDelBelief(ctx context.Context, b bdi.Belief) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beliefs.remove(b.Fingerprint()) {
		s.logger.Debug("belief removed", "belief", b.String())
	}
	s.publishBeliefsLocked(ctx)
}

// ApplyAddDesire inserts d unless its target already holds.
func (s *Store) ApplyAddDesire(ctx context.Context, d bdi.Desire) {
	if err := d.Validate(); err != nil {
		s.logger.Warn("ignoring invalid desire", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.IsFulfilled(bdi.NewBeliefSet(s.beliefs.list())) {
		s.logger.Debug("desire already fulfilled, not inserted", "desire", d.Name)
	} else {
		s.desires.put(d.Fingerprint(), d)
		s.logger.Debug("desire added", "desire", d.Name, "priority", d.Priority)
	}
	s.publishDesiresLocked(ctx)
}

// ApplyDelDesire removes d by identity.
func (s *Store) ApplyDelDesire(ctx context.Context, d bdi.Desire) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.desires.remove(d.Fingerprint()) {
		s.logger.Debug("desire removed", "desire", d.Name)
	}
	s.publishDesiresLocked(ctx)
}

// Beliefs returns the authoritative beliefs.
func (s *Store) Beliefs() []bdi.Belief {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beliefs.list()
}

// Desires returns the authoritative desires.
func (s *Store) Desires() []bdi.Desire {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desires.list()
}

// Snapshots are published under the lock so subscribers see them in
// mutation order.
func (s *Store) publishBeliefsLocked(ctx context.Context) {
	if err := s.ch.PublishBeliefSet(ctx, s.beliefs.list()); err != nil {
		s.logger.Error("failed to publish belief set", "error", err)
	}
}

func (s *Store) publishDesiresLocked(ctx context.Context) {
	if err := s.ch.PublishDesireSet(ctx, s.desires.list()); err != nil {
		s.logger.Error("failed to publish desire set", "error", err)
	}
}

// orderedSet keeps insertion order with keyed upsert and removal.
type orderedSet[T any] struct {
	index map[bdi.Fingerprint]int
	items []T
	keys  []bdi.Fingerprint
}

func newOrderedSet[T any]() *orderedSet[T] {
	return &orderedSet[T]{index: make(map[bdi.Fingerprint]int)}
}

func (o *orderedSet[T]) put(key bdi.Fingerprint, v T) {
	if i, ok := o.index[key]; ok {
		o.items[i] = v
		return
	}
	o.index[key] = len(o.items)
	o.items = append(o.items, v)
	o.keys = append(o.keys, key)
}

func (o *orderedSet[T]) remove(key bdi.Fingerprint) bool {
	i, ok := o.index[key]
	if !ok {
		return false
	}
	o.items = append(o.items[:i], o.items[i+1:]...)
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	delete(o.index, key)
	for j := i; j < len(o.keys); j++ {
		o.index[o.keys[j]] = j
	}
	return true
}

func (o *orderedSet[T]) list() []T {
	out := make([]T, len(o.items))
	copy(out, o.items)
	return out
}

func (o *orderedSet[T]) len() int {
	return len(o.items)
}
