// ABOUTME: In-process planner that emits one belief-asserting action per unmet target
// ABOUTME: Streams growing plan prefixes before the final plan; used by tests and cmd/fake-planner

package planner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/wire"
)

// AssertBeliefAction is the action name the fake planner emits. Its
// arguments are the target belief encoded with bdi.BeliefArgs.
const AssertBeliefAction = "assert_belief"

// FakeConfig tunes the fake planner.
type FakeConfig struct {
	// StepDelay is the pause before each streamed result.
	StepDelay time.Duration
	// ActionDuration is the expected duration reported for each action.
	ActionDuration time.Duration
	// Unsolvable lists desire names the planner always fails.
	Unsolvable []string
}

// Fake implements wire.PlannerServer.
type Fake struct {
	cfg    FakeConfig
	logger *slog.Logger

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	reports []bdi.ExecutionStatus
	served  int
}

// NewFake creates a fake planner.
func NewFake(cfg FakeConfig, logger *slog.Logger) *Fake {
	if cfg.ActionDuration <= 0 {
		cfg.ActionDuration = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fake{
		cfg:    cfg,
		logger: logger.With("component", "fake_planner"),
		active: make(map[string]context.CancelFunc),
	}
}

// Search streams prefixes of length 1..n-1 followed by the terminal plan.
func (f *Fake) Search(req *bdi.SearchRequest, stream wire.Planner_SearchServer) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	f.mu.Lock()
	f.active[req.SearchID] = cancel
	f.served++
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.active, req.SearchID)
		f.mu.Unlock()
	}()

	logger := f.logger.With("search_id", req.SearchID, "desire", req.Desire.Name)
	logger.Info("search requested", "beliefs", len(req.Beliefs))

	if f.unsolvable(req.Desire.Name) {
		if err := f.pause(ctx); err != nil {
			return err
		}
		return stream.Send(&bdi.SearchResult{SearchID: req.SearchID, Terminal: true, Reason: "no plan found"})
	}

	actions := f.plan(req)
	for n := 1; n < len(actions); n++ {
		if err := f.pause(ctx); err != nil {
			return err
		}
		err := stream.Send(&bdi.SearchResult{SearchID: req.SearchID, Actions: actions[:n]})
		if err != nil {
			return err
		}
	}
	if err := f.pause(ctx); err != nil {
		return err
	}
	logger.Info("search finished", "actions", len(actions))
	return stream.Send(&bdi.SearchResult{SearchID: req.SearchID, Actions: actions, Terminal: true, Success: true})
}

func (f *Fake) plan(req *bdi.SearchRequest) []bdi.PlanAction {
	held := bdi.NewBeliefSet(req.Beliefs)
	dur := f.cfg.ActionDuration.Seconds()
	var actions []bdi.PlanAction
	for _, target := range req.Desire.Target {
		if b, ok := held.Get(target.Fingerprint()); ok && b.Equal(target) {
			continue
		}
		actions = append(actions, bdi.PlanAction{
			Name:         AssertBeliefAction,
			Args:         bdi.BeliefArgs(target),
			PlannedStart: float64(len(actions)) * dur,
			Duration:     dur,
		})
	}
	return actions
}

func (f *Fake) pause(ctx context.Context) error {
	if f.cfg.StepDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return status.Error(codes.Canceled, "search stopped")
	case <-time.After(f.cfg.StepDelay):
		return nil
	}
}

func (f *Fake) unsolvable(name string) bool {
	for _, n := range f.cfg.Unsolvable {
		if n == name {
			return true
		}
	}
	return false
}

// Stop cancels a running search.
func (f *Fake) Stop(ctx context.Context, in *wire.StopRequest) (*wire.StopResponse, error) {
	f.mu.Lock()
	cancel, ok := f.active[in.SearchID]
	f.mu.Unlock()
	if ok {
		cancel()
		f.logger.Info("search stopped", "search_id", in.SearchID)
	}
	return &wire.StopResponse{Stopped: ok}, nil
}

// ReportExecution records the status.
func (f *Fake) ReportExecution(ctx context.Context, in *bdi.ExecutionStatus) (*wire.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, *in)
	return &wire.Ack{}, nil
}

// Reports returns the recorded execution statuses.
func (f *Fake) Reports() []bdi.ExecutionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bdi.ExecutionStatus(nil), f.reports...)
}

// Served returns how many searches were requested.
func (f *Fake) Served() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.served
}
