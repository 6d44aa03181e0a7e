// ABOUTME: Tests for the action lifecycle and the plan executor
// ABOUTME: Uses recording intent, status and feedback sinks

package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-bdi/internal/bdi"
)

func TestLifecycle_Transitions(t *testing.T) {
	var calls []string
	hook := func(name string) func() error {
		return func() error { calls = append(calls, name); return nil }
	}
	lc := NewLifecycle(Hooks{
		OnConfigure:  hook("configure"),
		OnActivate:   hook("activate"),
		OnDeactivate: hook("deactivate"),
		OnCleanup:    hook("cleanup"),
	})
	assert.Equal(t, StateUnconfigured, lc.State())

	require.NoError(t, lc.Configure())
	assert.Equal(t, StateInactive, lc.State())
	require.NoError(t, lc.Activate())
	assert.Equal(t, StateActive, lc.State())

	assert.ErrorIs(t, lc.Configure(), ErrInvalidTransition)
	assert.ErrorIs(t, lc.Cleanup(), ErrInvalidTransition)

	require.NoError(t, lc.Deactivate())
	require.NoError(t, lc.Cleanup())
	assert.Equal(t, StateUnconfigured, lc.State())
	assert.Equal(t, []string{"configure", "activate", "deactivate", "cleanup"}, calls)
}

func TestLifecycle_HookErrorKeepsState(t *testing.T) {
	boom := errors.New("no hardware")
	lc := NewLifecycle(Hooks{OnActivate: func() error { return boom }})

	require.NoError(t, lc.Configure())
	err := lc.Activate()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateInactive, lc.State())
}

func TestLifecycle_ShutdownFromActive(t *testing.T) {
	lc := NewLifecycle(Hooks{})
	require.NoError(t, lc.Configure())
	require.NoError(t, lc.Activate())

	require.NoError(t, lc.Shutdown())
	assert.Equal(t, StateUnconfigured, lc.State())
	assert.NoError(t, lc.Shutdown())
}

type recordingIntents struct {
	mu    sync.Mutex
	added []bdi.Belief
	dels  []bdi.Belief
}

func (r *recordingIntents) AddBelief(_ context.Context, b bdi.Belief) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, b)
	return nil
}

func (r *recordingIntents) DelBelief(_ context.Context, b bdi.Belief) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dels = append(r.dels, b)
	return nil
}

func (r *recordingIntents) AddDesire(context.Context, bdi.Desire) error { return nil }
func (r *recordingIntents) DelDesire(context.Context, bdi.Desire) error { return nil }

func (r *recordingIntents) addedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.added)
}

type recordingStatus struct {
	mu       sync.Mutex
	statuses []bdi.ExecutionStatus
}

func (r *recordingStatus) ReportExecution(_ context.Context, st bdi.ExecutionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
	return nil
}

func (r *recordingStatus) list() []bdi.ExecutionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bdi.ExecutionStatus(nil), r.statuses...)
}

type feedbackLog struct {
	mu    sync.Mutex
	infos []bdi.PlanExecutionInfo
}

func (f *feedbackLog) record(info bdi.PlanExecutionInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, info)
}

func (f *feedbackLog) with(status bdi.ActionStatus) []bdi.PlanExecutionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bdi.PlanExecutionInfo
	for _, i := range f.infos {
		if i.Status == status {
			out = append(out, i)
		}
	}
	return out
}

func (f *feedbackLog) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.infos)
}

type harness struct {
	exec     *Executor
	intents  *recordingIntents
	reporter *recordingStatus
	feedback *feedbackLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{intents: &recordingIntents{}, reporter: &recordingStatus{}, feedback: &feedbackLog{}}
	h.exec = New(Config{AgentID: "robot1", DefaultHz: 100}, Deps{
		Intents:  h.intents,
		Reporter: h.reporter,
		Feedback: h.feedback.record,
	})
	t.Cleanup(h.exec.Stop)
	return h
}

func assertAction(b bdi.Belief, start float64) bdi.PlanAction {
	return bdi.PlanAction{Name: ActionAssertBelief, Args: bdi.BeliefArgs(b), PlannedStart: start, Duration: 1}
}

var (
	cleanKitchen = bdi.NewPredicate("clean", "kitchen")
	cleanHall    = bdi.NewPredicate("clean", "hall")
)

func TestExecute_RunsActionsInOrder(t *testing.T) {
	h := newHarness(t)
	plan := bdi.Plan{ID: "p1", Index: 3, Final: true, Actions: []bdi.PlanAction{
		assertAction(cleanKitchen, 0),
		assertAction(cleanHall, 1),
	}}

	require.NoError(t, h.exec.Execute(plan))

	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionSucceeded)) == 2 }, time.Second, 5*time.Millisecond)
	done := h.feedback.with(bdi.ActionSucceeded)
	assert.Equal(t, 0, done[0].ActionIndex)
	assert.Equal(t, 1, done[1].ActionIndex)
	assert.Equal(t, "p1", done[1].PlanID)

	h.intents.mu.Lock()
	require.Len(t, h.intents.added, 2)
	assert.True(t, h.intents.added[0].Equal(cleanKitchen))
	h.intents.mu.Unlock()

	assert.Eventually(t, func() bool { return len(h.reporter.list()) == 2 }, time.Second, 5*time.Millisecond)
	st := h.reporter.list()[1]
	assert.Equal(t, "robot1", st.AgentID)
	assert.Equal(t, 3, st.ExecutingPlanIndex)
	assert.Equal(t, "(assert_belief clean hall)", st.ExecutingAction)
	assert.Equal(t, 1.0, st.PlannedStartTime)

	assert.Eventually(t, func() bool { _, running := h.exec.Running(); return !running }, time.Second, 5*time.Millisecond)
}

func TestExecute_UnknownAction(t *testing.T) {
	h := newHarness(t)
	err := h.exec.Execute(bdi.Plan{ID: "p1", Actions: []bdi.PlanAction{{Name: "fly"}}})
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, running := h.exec.Running()
	assert.False(t, running)
}

func TestExecute_ProvisionalPlanIdlesUntilExtended(t *testing.T) {
	h := newHarness(t)
	plan := bdi.Plan{ID: "p1", Actions: []bdi.PlanAction{assertAction(cleanKitchen, 0)}}
	require.NoError(t, h.exec.Execute(plan))

	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionSucceeded)) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	id, running := h.exec.Running()
	assert.True(t, running, "a provisional plan waits for more actions")
	assert.Equal(t, "p1", id)

	plan.Actions = append(plan.Actions, assertAction(cleanHall, 1))
	plan.Final = true
	require.NoError(t, h.exec.Extend(plan))

	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionSucceeded)) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, h.intents.addedCount(), "first action is not repeated")
	assert.Eventually(t, func() bool { _, running := h.exec.Running(); return !running }, time.Second, 5*time.Millisecond)
}

func TestExtend_WrongPlan(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.exec.Extend(bdi.Plan{ID: "nope"}), ErrNotRunning)
}

func TestAbort_StopsFeedback(t *testing.T) {
	h := newHarness(t)
	plan := bdi.Plan{ID: "p1", Final: true, Actions: []bdi.PlanAction{
		{Name: ActionWait, Args: []string{"10"}},
		assertAction(cleanKitchen, 10),
	}}
	require.NoError(t, h.exec.Execute(plan))
	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionRunning)) > 0 }, time.Second, 5*time.Millisecond)

	h.exec.Abort("other")
	_, running := h.exec.Running()
	assert.True(t, running)

	h.exec.Abort("p1")
	_, running = h.exec.Running()
	assert.False(t, running)

	n := h.feedback.len()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, h.feedback.len())
	assert.Empty(t, h.feedback.with(bdi.ActionFailed))
	assert.Equal(t, 0, h.intents.addedCount())
}

func TestExecute_ReplacesRunningPlan(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.exec.Execute(bdi.Plan{ID: "slow", Final: true, Actions: []bdi.PlanAction{{Name: ActionWait, Args: []string{"10"}}}}))
	require.NoError(t, h.exec.Execute(bdi.Plan{ID: "fast", Final: true, Actions: []bdi.PlanAction{assertAction(cleanHall, 0)}}))

	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionSucceeded)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "fast", h.feedback.with(bdi.ActionSucceeded)[0].PlanID)
}

func TestExecute_ActionFailureReported(t *testing.T) {
	h := newHarness(t)
	plan := bdi.Plan{ID: "p1", Final: true, Actions: []bdi.PlanAction{
		{Name: ActionRetractBelief},
		assertAction(cleanKitchen, 1),
	}}
	require.NoError(t, h.exec.Execute(plan))

	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionFailed)) == 1 }, time.Second, 5*time.Millisecond)
	failed := h.feedback.with(bdi.ActionFailed)[0]
	assert.Equal(t, 0, failed.ActionIndex)
	assert.NotEmpty(t, failed.Message)
	assert.Equal(t, 0, h.intents.addedCount(), "plan stops at the failed action")
}

func TestWaitAction(t *testing.T) {
	h := newHarness(t)
	start := time.Now()
	require.NoError(t, h.exec.Execute(bdi.Plan{ID: "p1", Final: true, Actions: []bdi.PlanAction{{Name: ActionWait, Args: []string{"0.1"}}}}))

	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionSucceeded)) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	var last float64
	for _, info := range h.feedback.with(bdi.ActionRunning) {
		assert.GreaterOrEqual(t, info.Progress, last)
		last = info.Progress
	}
}

func TestWaitAction_BadArgument(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.exec.Execute(bdi.Plan{ID: "p1", Final: true, Actions: []bdi.PlanAction{{Name: ActionWait, Args: []string{"soon"}}}}))
	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionFailed)) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRegister_CustomAction(t *testing.T) {
	h := newHarness(t)
	var tornDown bool
	var mu sync.Mutex
	require.NoError(t, h.exec.Register(Spec{
		Name: "count",
		Hz:   200,
		Work: func(ctx context.Context, inv *Invocation, step int) (float64, error) {
			return float64(step) / 3, nil
		},
		Teardown: func(*Invocation) {
			mu.Lock()
			tornDown = true
			mu.Unlock()
		},
	}))
	assert.Contains(t, h.exec.Actions(), "count")
	assert.Error(t, h.exec.Register(Spec{Name: "broken"}))

	require.NoError(t, h.exec.Execute(bdi.Plan{ID: "p1", Final: true, Actions: []bdi.PlanAction{{Name: "count"}}}))
	assert.Eventually(t, func() bool { return len(h.feedback.with(bdi.ActionSucceeded)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return tornDown }, time.Second, 5*time.Millisecond)
}

type fakePeers struct {
	mu      sync.Mutex
	calls   int
	confirm int
}

func (f *fakePeers) UpdBelief(_ context.Context, peer string, b bdi.Belief, add bool) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return true, f.calls >= f.confirm, nil
}

func TestRemoteAssertBelief(t *testing.T) {
	peers := &fakePeers{confirm: 2}
	feedback := &feedbackLog{}
	exec := New(Config{AgentID: "robot1"}, Deps{Peers: peers, Feedback: feedback.record})
	t.Cleanup(exec.Stop)
	require.NoError(t, exec.Register(Spec{Name: ActionRemoteAssertBelief, Hz: 100, Work: workRemoteAssert}))

	args := append([]string{"robot2"}, bdi.BeliefArgs(cleanHall)...)
	require.NoError(t, exec.Execute(bdi.Plan{ID: "p1", Final: true, Actions: []bdi.PlanAction{{Name: ActionRemoteAssertBelief, Args: args}}}))

	assert.Eventually(t, func() bool { return len(feedback.with(bdi.ActionSucceeded)) == 1 }, time.Second, 5*time.Millisecond)
	peers.mu.Lock()
	assert.Equal(t, 2, peers.calls)
	peers.mu.Unlock()
}
