// ABOUTME: Serves cross-agent belief and desire requests against the mirrored sets
// ABOUTME: Writes publish local intents and wait on a SyncBridge for the store to reflect them

package multiagent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/coven-bdi/internal/auth"
	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/mirror"
	"github.com/2389/coven-bdi/internal/syncbridge"
	"github.com/2389/coven-bdi/internal/wire"
)

// IntentPublisher sends local mutation intents to the agent's store.
type IntentPublisher interface {
	AddBelief(ctx context.Context, b bdi.Belief) error
	DelBelief(ctx context.Context, b bdi.Belief) error
	AddDesire(ctx context.Context, d bdi.Desire) error
	DelDesire(ctx context.Context, d bdi.Desire) error
}

// HandlerConfig bounds how long write requests wait for the store.
type HandlerConfig struct {
	MaxWaitUpdates int
	WaitTimeout    time.Duration
}

// Handler implements wire.AgentRequestsServer.
type Handler struct {
	policy  *Policy
	mirror  *mirror.Mirror
	intents IntentPublisher
	logger  *slog.Logger

	beliefAdd *syncbridge.Bridge
	beliefDel *syncbridge.Bridge
	desireAdd *syncbridge.Bridge
	desireDel *syncbridge.Bridge
}

var _ wire.AgentRequestsServer = (*Handler)(nil)

// NewHandler creates a handler reading m and publishing through intents.
// The caller feeds snapshots through OnBeliefSet and OnDesireSet.
func NewHandler(policy *Policy, m *mirror.Mirror, intents IntentPublisher, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "requests")
	bridge := func(name string) *syncbridge.Bridge {
		return syncbridge.New(name, cfg.MaxWaitUpdates, cfg.WaitTimeout, logger)
	}
	return &Handler{
		policy:    policy,
		mirror:    m,
		intents:   intents,
		logger:    logger,
		beliefAdd: bridge("belief_add"),
		beliefDel: bridge("belief_del"),
		desireAdd: bridge("desire_add"),
		desireDel: bridge("desire_del"),
	}
}

// OnBeliefSet mirrors a belief snapshot and refreshes the belief bridges.
func (h *Handler) OnBeliefSet(snap bdi.BeliefSetSnapshot) *bdi.BeliefSet {
	set := h.mirror.SetBeliefs(snap)
	h.beliefAdd.OnSnapshotRefresh(set)
	h.beliefDel.OnSnapshotRefresh(set)
	return set
}

// OnDesireSet mirrors a desire snapshot and refreshes the desire bridges.
func (h *Handler) OnDesireSet(snap bdi.DesireSetSnapshot) *bdi.DesireSet {
	set := h.mirror.SetDesires(snap)
	h.desireAdd.OnSnapshotRefresh(set)
	h.desireDel.OnSnapshotRefresh(set)
	return set
}

// authorize checks the caller's token group and the policy. A refusal is
// logged and reported as accepted=false by the caller.
func (h *Handler) authorize(ctx context.Context, group string, kind wire.Kind, op wire.Op) bool {
	if a := auth.FromContext(ctx); a != nil && !a.Permits(group) {
		h.logger.Warn("request group does not match token",
			"group", group, "token_group", a.Group, "kind", kind, "op", op)
		return false
	}
	if !h.policy.Accepts(group, kind, op) {
		h.logger.Info("request refused", "group", group, "kind", kind, "op", op)
		return false
	}
	return true
}

func publishFailed(err error) error {
	return status.Errorf(codes.Unavailable, "publishing intent: %v", err)
}

// IsAcceptedOperation reports the policy decision for group.
func (h *Handler) IsAcceptedOperation(ctx context.Context, req *wire.IsAcceptedOperationRequest) (*wire.IsAcceptedOperationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	accepted, maxPr := h.policy.IsAcceptedOperation(req.Group, req.Kind, req.Op)
	return &wire.IsAcceptedOperationResponse{Accepted: accepted, MaxPriority: maxPr}, nil
}

// CheckBelief reports whether the belief is in the mirrored set.
func (h *Handler) CheckBelief(ctx context.Context, req *wire.BeliefRequest) (*wire.CheckResponse, error) {
	if err := req.Belief.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !h.authorize(ctx, req.Group, wire.KindBelief, wire.OpCheck) {
		return &wire.CheckResponse{}, nil
	}
	return &wire.CheckResponse{Accepted: true, Found: h.mirror.Beliefs().Contains(req.Belief)}, nil
}

// AddBelief publishes an add intent and waits for the belief to appear.
func (h *Handler) AddBelief(ctx context.Context, req *wire.BeliefRequest) (*wire.UpdateResponse, error) {
	if err := req.Belief.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !h.authorize(ctx, req.Group, wire.KindBelief, wire.OpWrite) {
		return &wire.UpdateResponse{}, nil
	}

	b := req.Belief
	_, err := h.beliefAdd.Await(ctx, b.Fingerprint(), 1, func() error {
		return h.intents.AddBelief(ctx, b)
	})
	if err != nil {
		return nil, h.waitError(err)
	}
	updated := h.mirror.Beliefs().Contains(b)
	h.logger.Debug("add belief", "group", req.Group, "belief", b.String(), "updated", updated)
	return &wire.UpdateResponse{Accepted: true, Updated: updated}, nil
}

// DelBelief publishes a delete intent and waits for the belief to vanish.
func (h *Handler) DelBelief(ctx context.Context, req *wire.BeliefRequest) (*wire.UpdateResponse, error) {
	if err := req.Belief.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !h.authorize(ctx, req.Group, wire.KindBelief, wire.OpWrite) {
		return &wire.UpdateResponse{}, nil
	}

	b := req.Belief
	_, err := h.beliefDel.Await(ctx, b.Fingerprint(), 0, func() error {
		return h.intents.DelBelief(ctx, b)
	})
	if err != nil {
		return nil, h.waitError(err)
	}
	updated := !h.mirror.Beliefs().Contains(b)
	h.logger.Debug("del belief", "group", req.Group, "belief", b.String(), "updated", updated)
	return &wire.UpdateResponse{Accepted: true, Updated: updated}, nil
}

// CheckDesire reports whether the desire is in the mirrored set.
func (h *Handler) CheckDesire(ctx context.Context, req *wire.DesireRequest) (*wire.CheckResponse, error) {
	if req.Desire.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "desire name is required")
	}
	if !h.authorize(ctx, req.Group, wire.KindDesire, wire.OpCheck) {
		return &wire.CheckResponse{}, nil
	}
	return &wire.CheckResponse{Accepted: true, Found: h.mirror.Desires().Contains(req.Desire)}, nil
}

// AddDesire clamps the priority to the group's cap, publishes the add
// intent and waits for the desire to appear. A desire whose target
// already holds is pruned by the store and reported as updated without
// waiting.
func (h *Handler) AddDesire(ctx context.Context, req *wire.DesireRequest) (*wire.UpdateResponse, error) {
	if !h.authorize(ctx, req.Group, wire.KindDesire, wire.OpWrite) {
		return &wire.UpdateResponse{}, nil
	}
	limit := h.policy.MaxPriority(req.Group)
	if limit < 0 {
		return &wire.UpdateResponse{}, nil
	}
	d := req.Desire.ClampPriority(limit)
	if err := d.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if d.IsFulfilled(h.mirror.Beliefs()) {
		if err := h.intents.AddDesire(ctx, d); err != nil {
			return nil, publishFailed(err)
		}
		h.logger.Debug("add desire already fulfilled", "group", req.Group, "desire", d.Name)
		return &wire.UpdateResponse{Accepted: true, Updated: true}, nil
	}

	_, err := h.desireAdd.Await(ctx, d.Fingerprint(), 1, func() error {
		return h.intents.AddDesire(ctx, d)
	})
	if err != nil {
		return nil, h.waitError(err)
	}
	updated := h.mirror.Desires().Contains(d) || d.IsFulfilled(h.mirror.Beliefs())
	h.logger.Debug("add desire",
		"group", req.Group,
		"desire", d.Name,
		"priority", d.Priority,
		"updated", updated)
	return &wire.UpdateResponse{Accepted: true, Updated: updated}, nil
}

// DelDesire publishes a delete intent and waits for the desire to vanish.
func (h *Handler) DelDesire(ctx context.Context, req *wire.DesireRequest) (*wire.UpdateResponse, error) {
	if req.Desire.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "desire name is required")
	}
	if !h.authorize(ctx, req.Group, wire.KindDesire, wire.OpWrite) {
		return &wire.UpdateResponse{}, nil
	}

	d := req.Desire
	_, err := h.desireDel.Await(ctx, d.Fingerprint(), 0, func() error {
		return h.intents.DelDesire(ctx, d)
	})
	if err != nil {
		return nil, h.waitError(err)
	}
	updated := !h.mirror.Desires().Contains(d)
	h.logger.Debug("del desire", "group", req.Group, "desire", d.Name, "updated", updated)
	return &wire.UpdateResponse{Accepted: true, Updated: updated}, nil
}

// waitError maps a failed wait to a gRPC status. Exhausting the wait
// budget is not an error and never reaches here.
func (h *Handler) waitError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	h.logger.Error("intent publish failed", "error", err)
	return publishFailed(err)
}
