// ABOUTME: Action registry types: work functions, invocations and the built-in actions
// ABOUTME: Built-ins wait, assert or retract beliefs locally, or write a belief to a peer

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/2389/coven-bdi/internal/bdi"
)

// ErrUnknownAction is returned when a plan names an unregistered action.
var ErrUnknownAction = errors.New("unknown action")

// Built-in action names.
const (
	ActionWait               = "wait"
	ActionAssertBelief       = "assert_belief"
	ActionRetractBelief      = "retract_belief"
	ActionRemoteAssertBelief = "remote_assert_belief"
)

// IntentPublisher sends local mutation intents to the agent's store.
type IntentPublisher interface {
	AddBelief(ctx context.Context, b bdi.Belief) error
	DelBelief(ctx context.Context, b bdi.Belief) error
	AddDesire(ctx context.Context, d bdi.Desire) error
	DelDesire(ctx context.Context, d bdi.Desire) error
}

// PeerRequester performs belief writes on other agents.
type PeerRequester interface {
	UpdBelief(ctx context.Context, peer string, b bdi.Belief, add bool) (accepted, updated bool, err error)
}

// Invocation is what a running action can see and use.
type Invocation struct {
	Action  bdi.PlanAction
	PlanID  string
	Index   int
	Started time.Time
	Intents IntentPublisher
	Peers   PeerRequester
	Logger  *slog.Logger
	State   map[string]any
}

// WorkFunc advances an action by one step and reports its progress in
// [0,1]. Progress 1 completes the action; an error fails it.
type WorkFunc func(ctx context.Context, inv *Invocation, step int) (float64, error)

// Spec describes a registered action.
type Spec struct {
	Name string
	// Hz is the step frequency. Zero uses the executor default.
	Hz float64
	// Setup runs on activation, before the first step.
	Setup func(ctx context.Context, inv *Invocation) error
	// Teardown runs on deactivation, including after an abort.
	Teardown func(inv *Invocation)
	Work     WorkFunc
}

// Builtins returns the built-in action specs.
func Builtins() []Spec {
	return []Spec{
		{Name: ActionWait, Hz: 20, Setup: setupWait, Work: workWait},
		{Name: ActionAssertBelief, Work: beliefIntent(true)},
		{Name: ActionRetractBelief, Work: beliefIntent(false)},
		{Name: ActionRemoteAssertBelief, Hz: 2, Work: workRemoteAssert},
	}
}

func setupWait(ctx context.Context, inv *Invocation) error {
	if len(inv.Action.Args) != 1 {
		return fmt.Errorf("wait takes one argument (seconds), got %d", len(inv.Action.Args))
	}
	secs, err := strconv.ParseFloat(inv.Action.Args[0], 64)
	if err != nil || secs < 0 {
		return fmt.Errorf("wait: invalid duration %q", inv.Action.Args[0])
	}
	inv.State["duration"] = time.Duration(secs * float64(time.Second))
	return nil
}

func workWait(ctx context.Context, inv *Invocation, step int) (float64, error) {
	d, _ := inv.State["duration"].(time.Duration)
	if d <= 0 {
		return 1, nil
	}
	return float64(time.Since(inv.Started)) / float64(d), nil
}

func beliefIntent(add bool) WorkFunc {
	return func(ctx context.Context, inv *Invocation, step int) (float64, error) {
		b, err := bdi.BeliefFromArgs(inv.Action.Args)
		if err != nil {
			return 0, err
		}
		if inv.Intents == nil {
			return 0, errors.New("no intent channel")
		}
		if add {
			err = inv.Intents.AddBelief(ctx, b)
		} else {
			err = inv.Intents.DelBelief(ctx, b)
		}
		if err != nil {
			return 0, fmt.Errorf("publishing %s: %w", b, err)
		}
		return 1, nil
	}
}

// remoteAttempts bounds the steps remote_assert_belief spends on a peer.
const remoteAttempts = 10

// workRemoteAssert expects "peer belief-args..." and retries until the
// peer reports the belief written.
func workRemoteAssert(ctx context.Context, inv *Invocation, step int) (float64, error) {
	if len(inv.Action.Args) < 2 {
		return 0, errors.New("remote_assert_belief needs a peer and a belief")
	}
	if inv.Peers == nil {
		return 0, errors.New("no peer client")
	}
	peer := inv.Action.Args[0]
	b, err := bdi.BeliefFromArgs(inv.Action.Args[1:])
	if err != nil {
		return 0, err
	}
	accepted, updated, err := inv.Peers.UpdBelief(ctx, peer, b, true)
	switch {
	case err == nil && !accepted:
		return 0, fmt.Errorf("peer %s refused belief %s", peer, b)
	case err == nil && updated:
		return 1, nil
	case step+1 >= remoteAttempts:
		return 0, fmt.Errorf("peer %s did not confirm belief %s after %d attempts", peer, b, remoteAttempts)
	case err != nil:
		inv.Logger.Debug("peer request failed, retrying", "peer", peer, "error", err)
	}
	return float64(step+1) / float64(remoteAttempts+1), nil
}
