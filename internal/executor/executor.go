// ABOUTME: Plan executor running one plan at a time, action by action, on a background goroutine
// ABOUTME: Reports per-action feedback and publishes execution status on each activation

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/coven-bdi/internal/bdi"
)

// ErrNotRunning is returned by Extend for a plan that is not executing.
var ErrNotRunning = errors.New("plan not running")

const (
	defaultHz     = 10.0
	statusTimeout = 2 * time.Second
)

// StatusReporter receives the action that just became active.
type StatusReporter interface {
	ReportExecution(ctx context.Context, st bdi.ExecutionStatus) error
}

// StatusPublisher broadcasts execution status on the agent bus.
type StatusPublisher interface {
	PublishExecutionStatus(ctx context.Context, st bdi.ExecutionStatus) error
}

// Config holds executor settings.
type Config struct {
	AgentID   string
	DefaultHz float64
}

// Deps are the executor's collaborators. All may be nil.
type Deps struct {
	Intents  IntentPublisher
	Peers    PeerRequester
	Reporter StatusReporter
	Status   StatusPublisher
	Feedback func(bdi.PlanExecutionInfo)
	Logger   *slog.Logger
}

type planRun struct {
	id     string
	cancel context.CancelFunc
	grown  chan struct{}

	mu   sync.Mutex
	plan bdi.Plan
}

func (r *planRun) actionAt(i int) (bdi.PlanAction, int, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < len(r.plan.Actions) {
		return r.plan.Actions[i], r.plan.Index, r.plan.Final, true
	}
	return bdi.PlanAction{}, r.plan.Index, r.plan.Final, false
}

// Executor runs plans. Execute, Extend and Abort never block on action work.
type Executor struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	specs    map[string]Spec
	run      *planRun
	feedback func(bdi.PlanExecutionInfo)
	wg       sync.WaitGroup
}

// New creates an executor with the built-in actions registered.
func New(cfg Config, deps Deps) *Executor {
	if cfg.DefaultHz <= 0 {
		cfg.DefaultHz = defaultHz
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With("component", "executor"),
		specs:    make(map[string]Spec),
		feedback: deps.Feedback,
	}
	for _, spec := range Builtins() {
		e.specs[spec.Name] = spec
	}
	return e
}

// SetFeedback installs the feedback sink. Used when the consumer is built
// after the executor.
func (e *Executor) SetFeedback(fn func(bdi.PlanExecutionInfo)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feedback = fn
}

// Register adds or replaces an action.
func (e *Executor) Register(spec Spec) error {
	if spec.Name == "" {
		return errors.New("action name is required")
	}
	if spec.Work == nil {
		return fmt.Errorf("action %q: work function is required", spec.Name)
	}
	if spec.Hz < 0 {
		return fmt.Errorf("action %q: negative frequency", spec.Name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.specs[spec.Name] = spec
	return nil
}

// Actions lists the registered action names.
func (e *Executor) Actions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.specs))
	for n := range e.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Executor) checkLocked(plan bdi.Plan) error {
	for _, a := range plan.Actions {
		if _, ok := e.specs[a.Name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAction, a.Name)
		}
	}
	return nil
}

// Execute starts plan, aborting any plan already running.
func (e *Executor) Execute(plan bdi.Plan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkLocked(plan); err != nil {
		return err
	}
	if e.run != nil {
		e.logger.Debug("replacing running plan", "old_plan_id", e.run.id, "plan_id", plan.ID)
		e.run.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &planRun{id: plan.ID, cancel: cancel, grown: make(chan struct{}, 1), plan: plan}
	e.run = r
	e.wg.Add(1)
	go e.runPlan(ctx, r)

	e.logger.Info("executing plan", "plan_id", plan.ID, "desire", plan.Desire.Name, "actions", len(plan.Actions))
	return nil
}

// Extend replaces the running plan's action list with a longer revision.
// Actions already started are not restarted.
func (e *Executor) Extend(plan bdi.Plan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.run
	if r == nil || r.id != plan.ID {
		return fmt.Errorf("%w: %s", ErrNotRunning, plan.ID)
	}
	if err := e.checkLocked(plan); err != nil {
		return err
	}
	r.mu.Lock()
	r.plan = plan
	r.mu.Unlock()

	select {
	case r.grown <- struct{}{}:
	default:
	}
	e.logger.Debug("extended plan", "plan_id", plan.ID, "actions", len(plan.Actions), "final", plan.Final)
	return nil
}

// Abort stops the plan if it is the one running.
func (e *Executor) Abort(planID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run == nil || e.run.id != planID {
		return
	}
	e.run.cancel()
	e.run = nil
	e.logger.Info("aborted plan", "plan_id", planID)
}

// Running returns the id of the running plan.
func (e *Executor) Running() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return "", false
	}
	return e.run.id, true
}

// Stop aborts any running plan and waits for its goroutine.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.run != nil {
		e.run.cancel()
		e.run = nil
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) runPlan(ctx context.Context, r *planRun) {
	defer e.wg.Done()
	defer e.finish(r)

	for idx := 0; ; idx++ {
		action, planIndex, final, ok := r.actionAt(idx)
		for !ok {
			if final {
				e.logger.Debug("plan finished", "plan_id", r.id, "actions", idx)
				return
			}
			// Provisional plan exhausted: idle until extended.
			select {
			case <-ctx.Done():
				return
			case <-r.grown:
			}
			action, planIndex, final, ok = r.actionAt(idx)
		}

		if err := e.runAction(ctx, r.id, planIndex, idx, action); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("action failed", "plan_id", r.id, "action", action.FullName(), "error", err)
			e.emit(ctx, bdi.PlanExecutionInfo{
				PlanID:      r.id,
				ActionIndex: idx,
				ActionName:  action.FullName(),
				Status:      bdi.ActionFailed,
				Message:     err.Error(),
			})
			return
		}
	}
}

func (e *Executor) finish(r *planRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == r {
		e.run = nil
	}
	r.cancel()
}

func (e *Executor) runAction(ctx context.Context, planID string, planIndex, idx int, action bdi.PlanAction) error {
	e.mu.Lock()
	spec, ok := e.specs[action.Name]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action.Name)
	}

	inv := &Invocation{
		Action:  action,
		PlanID:  planID,
		Index:   idx,
		Intents: e.deps.Intents,
		Peers:   e.deps.Peers,
		Logger:  e.logger.With("plan_id", planID, "action", action.FullName()),
		State:   make(map[string]any),
	}
	lc := NewLifecycle(Hooks{
		OnActivate: func() error {
			inv.Started = time.Now()
			if spec.Setup != nil {
				if err := spec.Setup(ctx, inv); err != nil {
					return err
				}
			}
			e.reportActivation(planIndex, action)
			return nil
		},
		OnDeactivate: func() error {
			if spec.Teardown != nil {
				spec.Teardown(inv)
			}
			return nil
		},
	})
	if err := lc.Configure(); err != nil {
		return err
	}
	defer func() {
		if err := lc.Shutdown(); err != nil {
			inv.Logger.Warn("action shutdown failed", "error", err)
		}
	}()
	if err := lc.Activate(); err != nil {
		return err
	}

	info := bdi.PlanExecutionInfo{PlanID: planID, ActionIndex: idx, ActionName: action.FullName(), Status: bdi.ActionRunning}
	e.emit(ctx, info)

	hz := spec.Hz
	if hz <= 0 {
		hz = e.cfg.DefaultHz
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()

	for step := 0; ; step++ {
		p, err := spec.Work(ctx, inv, step)
		if err != nil {
			return err
		}
		if p >= 1 {
			info.Status = bdi.ActionSucceeded
			info.Progress = 1
			e.emit(ctx, info)
			return nil
		}
		if p < 0 {
			p = 0
		}
		info.Progress = p
		e.emit(ctx, info)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// emit delivers feedback unless the run was aborted.
func (e *Executor) emit(ctx context.Context, info bdi.PlanExecutionInfo) {
	if ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	fn := e.feedback
	e.mu.Unlock()
	if fn != nil {
		fn(info)
	}
}

func (e *Executor) reportActivation(planIndex int, action bdi.PlanAction) {
	st := bdi.ExecutionStatus{
		AgentID:            e.cfg.AgentID,
		ExecutingPlanIndex: planIndex,
		ExecutingAction:    action.FullName(),
		PlannedStartTime:   action.PlannedStart,
	}
	if e.deps.Reporter == nil && e.deps.Status == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
		defer cancel()
		if e.deps.Reporter != nil {
			if err := e.deps.Reporter.ReportExecution(ctx, st); err != nil {
				e.logger.Debug("failed to report execution status to planner", "error", err)
			}
		}
		if e.deps.Status != nil {
			if err := e.deps.Status.PublishExecutionStatus(ctx, st); err != nil {
				e.logger.Debug("failed to publish execution status", "error", err)
			}
		}
	}()
}
