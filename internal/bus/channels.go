// ABOUTME: Typed agent channels: snapshot broadcasts and local mutation intents over a Bus
// ABOUTME: Messages are JSON on subjects of the form bdi.<agent_id>.<channel>

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/2389/coven-bdi/internal/bdi"
)

// Channel names under an agent's subject prefix.
const (
	ChanBeliefSet       = "belief_set"
	ChanDesireSet       = "desire_set"
	ChanAddBelief       = "add_belief"
	ChanDelBelief       = "del_belief"
	ChanAddDesire       = "add_desire"
	ChanDelDesire       = "del_desire"
	ChanExecutionStatus = "execution_status"
)

// Subject returns the bus subject of an agent's channel.
func Subject(agentID, channel string) string {
	return "bdi." + agentID + "." + channel
}

// Channels is the typed view of one agent's subjects.
type Channels struct {
	bus     Bus
	agentID string
	logger  *slog.Logger
}

// NewChannels binds the channels of agentID to b.
func NewChannels(b Bus, agentID string, logger *slog.Logger) *Channels {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channels{
		bus:     b,
		agentID: agentID,
		logger:  logger.With("component", "channels", "agent_id", agentID),
	}
}

// AgentID returns the owning agent id.
func (c *Channels) AgentID() string {
	return c.agentID
}

// Bus returns the underlying transport.
func (c *Channels) Bus() Bus {
	return c.bus
}

func (c *Channels) publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", channel, err)
	}
	return c.bus.Publish(ctx, Subject(c.agentID, channel), data)
}

// AddBelief publishes an add intent.
func (c *Channels) AddBelief(ctx context.Context, b bdi.Belief) error {
	return c.publish(ctx, ChanAddBelief, b)
}

// DelBelief publishes a delete intent.
func (c *Channels) DelBelief(ctx context.Context, b bdi.Belief) error {
	return c.publish(ctx, ChanDelBelief, b)
}

// AddDesire publishes an add intent.
func (c *Channels) AddDesire(ctx context.Context, d bdi.Desire) error {
	return c.publish(ctx, ChanAddDesire, d)
}

// DelDesire publishes a delete intent.
func (c *Channels) DelDesire(ctx context.Context, d bdi.Desire) error {
	return c.publish(ctx, ChanDelDesire, d)
}

// PublishBeliefSet broadcasts a full belief snapshot.
func (c *Channels) PublishBeliefSet(ctx context.Context, beliefs []bdi.Belief) error {
	return c.publish(ctx, ChanBeliefSet, bdi.BeliefSetSnapshot{AgentID: c.agentID, Beliefs: beliefs})
}

// PublishDesireSet broadcasts a full desire snapshot.
func (c *Channels) PublishDesireSet(ctx context.Context, desires []bdi.Desire) error {
	return c.publish(ctx, ChanDesireSet, bdi.DesireSetSnapshot{AgentID: c.agentID, Desires: desires})
}

// PublishExecutionStatus tells the planner which action became active.
func (c *Channels) PublishExecutionStatus(ctx context.Context, st bdi.ExecutionStatus) error {
	st.AgentID = c.agentID
	return c.publish(ctx, ChanExecutionStatus, st)
}

// OnBeliefSet delivers this agent's belief snapshots to fn.
func (c *Channels) OnBeliefSet(fn func(bdi.BeliefSetSnapshot)) (Subscription, error) {
	return SubscribeBeliefSet(c.bus, c.agentID, c.logger, fn)
}

// OnDesireSet delivers this agent's desire snapshots to fn.
func (c *Channels) OnDesireSet(fn func(bdi.DesireSetSnapshot)) (Subscription, error) {
	return subscribeJSON(c.bus, Subject(c.agentID, ChanDesireSet), c.logger, fn)
}

// OnBelief delivers belief intents of one channel (ChanAddBelief or ChanDelBelief).
func (c *Channels) OnBelief(channel string, fn func(bdi.Belief)) (Subscription, error) {
	return subscribeJSON(c.bus, Subject(c.agentID, channel), c.logger, fn)
}

// OnDesire delivers desire intents of one channel (ChanAddDesire or ChanDelDesire).
func (c *Channels) OnDesire(channel string, fn func(bdi.Desire)) (Subscription, error) {
	return subscribeJSON(c.bus, Subject(c.agentID, channel), c.logger, fn)
}

// OnExecutionStatus delivers execution status updates of this agent.
func (c *Channels) OnExecutionStatus(fn func(bdi.ExecutionStatus)) (Subscription, error) {
	return subscribeJSON(c.bus, Subject(c.agentID, ChanExecutionStatus), c.logger, fn)
}

// SubscribeBeliefSet delivers the belief snapshots of any agent, used to
// monitor a peer's beliefs.
func SubscribeBeliefSet(b Bus, agentID string, logger *slog.Logger, fn func(bdi.BeliefSetSnapshot)) (Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return subscribeJSON(b, Subject(agentID, ChanBeliefSet), logger, fn)
}

func subscribeJSON[T any](b Bus, subject string, logger *slog.Logger, fn func(T)) (Subscription, error) {
	return b.Subscribe(subject, func(subject string, data []byte) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			logger.Warn("dropping undecodable message", "subject", subject, "error", err)
			return
		}
		fn(v)
	})
}
