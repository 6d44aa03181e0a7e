// ABOUTME: Mock plan library for testing
// ABOUTME: Counts calls and can be told to fail

package planlib

import (
	"context"
	"errors"
	"sync"

	"github.com/2389/coven-bdi/internal/bdi"
)

// ErrMockFailure is returned by a MockLibrary with Fail set.
var ErrMockFailure = errors.New("mock plan library failure")

// MockLibrary is an in-memory Library.
type MockLibrary struct {
	mu      sync.Mutex
	plans   map[bdi.Fingerprint]bdi.Plan
	inserts []bdi.Plan
	lookups int
	fail    bool
	closed  bool
}

// NewMockLibrary creates an empty MockLibrary.
func NewMockLibrary() *MockLibrary {
	return &MockLibrary{plans: make(map[bdi.Fingerprint]bdi.Plan)}
}

// SetFail makes every subsequent call fail.
func (m *MockLibrary) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// Insert stores plan.
func (m *MockLibrary) Insert(ctx context.Context, plan bdi.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrLibraryClosed
	}
	if m.fail {
		return ErrMockFailure
	}
	m.plans[plan.Fingerprint()] = plan
	m.inserts = append(m.inserts, plan)
	return nil
}

// Lookup returns the stored plan for key.
func (m *MockLibrary) Lookup(ctx context.Context, key bdi.Fingerprint) (bdi.Plan, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.closed {
		return bdi.Plan{}, false, ErrLibraryClosed
	}
	if m.fail {
		return bdi.Plan{}, false, ErrMockFailure
	}
	p, ok := m.plans[key]
	return p, ok, nil
}

// Close marks the library closed.
func (m *MockLibrary) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Inserts returns every successfully inserted plan in order.
func (m *MockLibrary) Inserts() []bdi.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bdi.Plan(nil), m.inserts...)
}

// Lookups returns the number of Lookup calls.
func (m *MockLibrary) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}
