// ABOUTME: Authorization policy for cross-agent requests by requester group
// ABOUTME: Allow-lists per kind and operation plus per-group desire priority caps

package multiagent

import (
	"slices"

	"github.com/2389/coven-bdi/internal/config"
	"github.com/2389/coven-bdi/internal/wire"
)

// Policy decides which groups may check or write beliefs and desires.
// It is immutable after construction.
type Policy struct {
	beliefsR []string
	beliefsW []string
	desiresR []string
	desiresW []string
	maxPr    []float64
}

// NewPolicy builds a policy from the requests section of the config.
// accept_desires_max_pr is positional: entry i caps the group at index i
// of accept_desires_w.
func NewPolicy(cfg config.RequestsConfig) *Policy {
	return &Policy{
		beliefsR: slices.Clone(cfg.AcceptBeliefsR),
		beliefsW: slices.Clone(cfg.AcceptBeliefsW),
		desiresR: slices.Clone(cfg.AcceptDesiresR),
		desiresW: slices.Clone(cfg.AcceptDesiresW),
		maxPr:    slices.Clone(cfg.AcceptDesiresMaxPr),
	}
}

func (p *Policy) list(kind wire.Kind, op wire.Op) []string {
	switch {
	case kind == wire.KindBelief && op == wire.OpCheck:
		return p.beliefsR
	case kind == wire.KindBelief && op == wire.OpWrite:
		return p.beliefsW
	case kind == wire.KindDesire && op == wire.OpCheck:
		return p.desiresR
	case kind == wire.KindDesire && op == wire.OpWrite:
		return p.desiresW
	}
	return nil
}

// Accepts reports whether group is allow-listed for op on kind.
func (p *Policy) Accepts(group string, kind wire.Kind, op wire.Op) bool {
	return group != "" && slices.Contains(p.list(kind, op), group)
}

// MaxPriority returns the desire priority cap of group, or
// wire.NoPriorityCap when the group may not write desires. An allow-listed
// group without a cap entry is capped at 0.
func (p *Policy) MaxPriority(group string) float64 {
	i := slices.Index(p.desiresW, group)
	if group == "" || i < 0 {
		return wire.NoPriorityCap
	}
	if i >= len(p.maxPr) {
		return 0
	}
	return min(max(p.maxPr[i], 0), 1)
}

// IsAcceptedOperation answers the policy query. MaxPriority is only
// reported for desire writes.
func (p *Policy) IsAcceptedOperation(group string, kind wire.Kind, op wire.Op) (bool, float64) {
	accepted := p.Accepts(group, kind, op)
	if accepted && kind == wire.KindDesire && op == wire.OpWrite {
		return true, p.MaxPriority(group)
	}
	return accepted, wire.NoPriorityCap
}
