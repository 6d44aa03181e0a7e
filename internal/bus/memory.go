// ABOUTME: In-memory fan-out bus for single-process deployments and tests
// ABOUTME: Each subscriber owns a buffered queue drained by its own goroutine

package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the queue length of each subscriber.
	subscriberBufferSize = 256
)

type message struct {
	subject string
	data    []byte
}

type memorySub struct {
	bus     *Memory
	subject string
	id      string
	ch      chan message
	done    chan struct{}
	once    sync.Once
}

func (s *memorySub) Unsubscribe() error {
	s.bus.remove(s.subject, s.id)
	return nil
}

func (s *memorySub) stop() {
	s.once.Do(func() { close(s.done) })
}

// Memory is an in-process Bus. Publish blocks while a subscriber's queue is
// full, so intents are never dropped.
type Memory struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*memorySub // subject -> subID -> sub
	closed      bool
	logger      *slog.Logger
}

// NewMemory creates an in-memory bus. Pass nil logger for default.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		subscribers: make(map[string]map[string]*memorySub),
		logger:      logger.With("component", "bus", "backend", "memory"),
	}
}

// Subscribe registers h for messages on subject.
func (m *Memory) Subscribe(subject string, h Handler) (Subscription, error) {
	sub := &memorySub{
		bus:     m,
		subject: subject,
		id:      uuid.New().String(),
		ch:      make(chan message, subscriberBufferSize),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := m.subscribers[subject]; !ok {
		m.subscribers[subject] = make(map[string]*memorySub)
	}
	m.subscribers[subject][sub.id] = sub
	m.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-sub.ch:
				h(msg.subject, msg.data)
			case <-sub.done:
				return
			}
		}
	}()

	m.logger.Debug("subscriber added", "subject", subject, "sub_id", sub.id)
	return sub, nil
}

// Publish delivers data to every subscriber of subject.
func (m *Memory) Publish(ctx context.Context, subject string, data []byte) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	subs := m.subscribers[subject]
	targets := make([]*memorySub, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	m.mu.RUnlock()

	msg := message{subject: subject, data: data}
	for _, s := range targets {
		select {
		case s.ch <- msg:
		case <-s.done:
			// Unsubscribed while publishing.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) remove(subject, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, ok := m.subscribers[subject]
	if !ok {
		return
	}
	sub, exists := subs[id]
	if !exists {
		return
	}
	delete(subs, id)
	sub.stop()
	if len(subs) == 0 {
		delete(m.subscribers, subject)
	}
	m.logger.Debug("subscriber removed", "subject", subject, "sub_id", id)
}

// Close stops every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for subject, subs := range m.subscribers {
		for id, sub := range subs {
			sub.stop()
			delete(subs, id)
		}
		delete(m.subscribers, subject)
	}
	m.closed = true
	m.logger.Debug("bus closed")
	return nil
}
