// ABOUTME: Plan, search and execution message types exchanged with planner and executor
// ABOUTME: A plan is an ordered list of grounded actions bound to the desire it serves

package bdi

import (
	"strings"
	"time"
)

// PlanAction is one grounded action of a plan.
type PlanAction struct {
	Name         string   `json:"name"`
	Args         []string `json:"args,omitempty"`
	PlannedStart float64  `json:"planned_start"` // seconds from plan start
	Duration     float64  `json:"duration"`      // expected seconds
}

// FullName renders the action as "(name arg1 arg2)".
func (a PlanAction) FullName() string {
	return "(" + strings.TrimSpace(a.Name+" "+strings.Join(a.Args, " ")) + ")"
}

// Plan is an action sequence expected to establish Desire's target.
type Plan struct {
	ID      string       `json:"id"`
	Index   int          `json:"index"` // planner segment index, echoed in ExecutionStatus
	Desire  Desire       `json:"desire"`
	Actions []PlanAction `json:"actions"`

	// Final is false while an incremental search may still revise the plan.
	Final bool `json:"final"`
	// Cached is set once the plan came from, or was written to, the plan library.
	Cached bool `json:"cached,omitempty"`
}

// Fingerprint is the fingerprint of the desire the plan serves.
func (p Plan) Fingerprint() Fingerprint {
	return p.Desire.Fingerprint()
}

// Intention is a committed desire with the plan pursuing it.
type Intention struct {
	Desire    Desire    `json:"desire"`
	Plan      Plan      `json:"plan"`
	Progress  float64   `json:"progress"`
	StartedAt time.Time `json:"started_at"`
}

// ActionStatus is the execution state of a single plan action.
type ActionStatus string

const (
	ActionWaiting   ActionStatus = "waiting"
	ActionRunning   ActionStatus = "running"
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
)

// PlanExecutionInfo is execution feedback for one action of a plan.
type PlanExecutionInfo struct {
	PlanID      string       `json:"plan_id"`
	ActionIndex int          `json:"action_index"`
	ActionName  string       `json:"action_name"`
	Status      ActionStatus `json:"status"`
	Progress    float64      `json:"progress"`
	Message     string       `json:"message,omitempty"`
}

// ExecutionStatus tells the planner which action just became active.
type ExecutionStatus struct {
	AgentID            string  `json:"agent_id"`
	ExecutingPlanIndex int     `json:"executing_plan_index"`
	ExecutingAction    string  `json:"executing_action"`
	PlannedStartTime   float64 `json:"planned_start_time"`
}

// SearchRequest asks the planner for a plan fulfilling Desire from Beliefs.
type SearchRequest struct {
	AgentID  string   `json:"agent_id"`
	SearchID string   `json:"search_id"`
	Desire   Desire   `json:"desire"`
	Beliefs  []Belief `json:"beliefs"`
}

// SearchResult is one streamed planner notification. Non-terminal results
// carry the current action prefix; a terminal result ends the stream.
type SearchResult struct {
	SearchID  string       `json:"search_id"`
	PlanIndex int          `json:"plan_index"`
	Actions   []PlanAction `json:"actions"`
	Terminal  bool         `json:"terminal"`
	Success   bool         `json:"success"`
	Reason    string       `json:"reason,omitempty"`
}
