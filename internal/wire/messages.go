// ABOUTME: Request and response messages of the cross-agent and planner services
// ABOUTME: Refusals travel as accepted=false values, never as errors

package wire

import (
	"fmt"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Kind is the object kind a request targets.
type Kind string

const (
	KindBelief Kind = "belief"
	KindDesire Kind = "desire"
)

// Op is the operation class a request performs.
type Op string

const (
	OpCheck Op = "check"
	OpWrite Op = "write"
)

// NoPriorityCap is reported as MaxPriority when no cap applies.
const NoPriorityCap = -1.0

// RequestIDHeader is the metadata key carrying a per-request id. A write
// retried with the same id replays the first response.
const RequestIDHeader = "x-request-id"

// IsAcceptedOperationRequest asks whether a group may perform op on kind.
type IsAcceptedOperationRequest struct {
	Group string `json:"group"`
	Kind  Kind   `json:"kind"`
	Op    Op     `json:"op"`
}

// Validate checks kind and op are known.
func (r *IsAcceptedOperationRequest) Validate() error {
	switch r.Kind {
	case KindBelief, KindDesire:
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	switch r.Op {
	case OpCheck, OpWrite:
	default:
		return fmt.Errorf("unknown op %q", r.Op)
	}
	return nil
}

// IsAcceptedOperationResponse carries the policy decision. MaxPriority is
// meaningful for desire writes only and NoPriorityCap otherwise.
type IsAcceptedOperationResponse struct {
	Accepted    bool    `json:"accepted"`
	MaxPriority float64 `json:"max_priority"`
}

// BeliefRequest targets one belief on behalf of a requester group.
type BeliefRequest struct {
	Group  string     `json:"group"`
	Belief bdi.Belief `json:"belief"`
}

// DesireRequest targets one desire on behalf of a requester group.
type DesireRequest struct {
	Group  string     `json:"group"`
	Desire bdi.Desire `json:"desire"`
}

// CheckResponse answers a membership check. Found is meaningful only when
// Accepted is true.
type CheckResponse struct {
	Accepted bool `json:"accepted"`
	Found    bool `json:"found"`
}

// UpdateResponse answers an add or delete. Updated is the observed outcome
// after the bounded wait and is advisory when false.
type UpdateResponse struct {
	Accepted bool `json:"accepted"`
	Updated  bool `json:"updated"`
}

// StopRequest cancels an in-flight search.
type StopRequest struct {
	AgentID  string `json:"agent_id"`
	SearchID string `json:"search_id"`
}

// StopResponse reports whether a search was cancelled.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// Ack is an empty acknowledgement.
type Ack struct{}
