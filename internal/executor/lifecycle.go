// ABOUTME: Action lifecycle state machine: unconfigured, inactive and active
// ABOUTME: Transitions run an optional hook and only commit when the hook succeeds

package executor

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned for a transition not allowed from the
// current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is a lifecycle state.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateInactive     State = "inactive"
	StateActive       State = "active"
)

// Transition names a lifecycle transition.
type Transition string

const (
	TransitionConfigure  Transition = "configure"
	TransitionActivate   Transition = "activate"
	TransitionDeactivate Transition = "deactivate"
	TransitionCleanup    Transition = "cleanup"
)

var transitions = map[Transition]struct{ from, to State }{
	TransitionConfigure:  {StateUnconfigured, StateInactive},
	TransitionActivate:   {StateInactive, StateActive},
	TransitionDeactivate: {StateActive, StateInactive},
	TransitionCleanup:    {StateInactive, StateUnconfigured},
}

// Hooks run on the matching transition. A hook error aborts the transition
// and leaves the state unchanged.
type Hooks struct {
	OnConfigure  func() error
	OnActivate   func() error
	OnDeactivate func() error
	OnCleanup    func() error
}

func (h Hooks) get(t Transition) func() error {
	switch t {
	case TransitionConfigure:
		return h.OnConfigure
	case TransitionActivate:
		return h.OnActivate
	case TransitionDeactivate:
		return h.OnDeactivate
	case TransitionCleanup:
		return h.OnCleanup
	}
	return nil
}

// Lifecycle tracks the state of one action instance.
type Lifecycle struct {
	mu    sync.Mutex
	state State
	hooks Hooks
}

// NewLifecycle starts in StateUnconfigured.
func NewLifecycle(hooks Hooks) *Lifecycle {
	return &Lifecycle{state: StateUnconfigured, hooks: hooks}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) Configure() error  { return l.apply(TransitionConfigure) }
func (l *Lifecycle) Activate() error   { return l.apply(TransitionActivate) }
func (l *Lifecycle) Deactivate() error { return l.apply(TransitionDeactivate) }
func (l *Lifecycle) Cleanup() error    { return l.apply(TransitionCleanup) }

func (l *Lifecycle) apply(t Transition) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tr := transitions[t]
	if l.state != tr.from {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t, l.state)
	}
	if hook := l.hooks.get(t); hook != nil {
		if err := hook(); err != nil {
			return fmt.Errorf("%s hook: %w", t, err)
		}
	}
	l.state = tr.to
	return nil
}

// Shutdown walks the lifecycle back to StateUnconfigured from any state.
func (l *Lifecycle) Shutdown() error {
	var errs []error
	if l.State() == StateActive {
		if err := l.Deactivate(); err != nil {
			errs = append(errs, err)
		}
	}
	if l.State() == StateInactive {
		if err := l.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
