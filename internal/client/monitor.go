// ABOUTME: Monitoring of desires added on peers through their belief snapshots
// ABOUTME: One bus subscription per peer keeps the latest belief set locally

package client

import (
	"errors"
	"sync"

	"github.com/2389/coven-bdi/internal/bdi"
	"github.com/2389/coven-bdi/internal/bus"
)

// ErrNoBus is returned by Monitor when the client has no bus.
var ErrNoBus = errors.New("monitoring requires a bus")

type monitor struct {
	sub bus.Subscription

	mu      sync.Mutex
	beliefs *bdi.BeliefSet
	desires map[bdi.Fingerprint]bdi.Desire
}

func (m *monitor) update(snap bdi.BeliefSetSnapshot) {
	set := bdi.NewBeliefSet(snap.Beliefs)
	m.mu.Lock()
	m.beliefs = set
	m.mu.Unlock()
}

// Monitor starts tracking d on peer. The first call for a peer subscribes
// to its belief snapshots.
func (c *Client) Monitor(peer string, d bdi.Desire) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cfg.Bus == nil {
		return ErrNoBus
	}
	if m, ok := c.monitors[peer]; ok {
		m.mu.Lock()
		m.desires[d.Fingerprint()] = d
		m.mu.Unlock()
		return nil
	}

	m := &monitor{desires: map[bdi.Fingerprint]bdi.Desire{d.Fingerprint(): d}}
	sub, err := bus.SubscribeBeliefSet(c.cfg.Bus, peer, c.logger, m.update)
	if err != nil {
		return err
	}
	m.sub = sub
	c.monitors[peer] = m
	c.logger.Debug("monitoring peer beliefs", "peer", peer, "desire", d.Name)
	return nil
}

// IsMonitoredDesireFulfilled reports whether d is monitored on peer and
// its target holds in the peer's latest belief snapshot.
func (c *Client) IsMonitoredDesireFulfilled(peer string, d bdi.Desire) bool {
	c.mu.Lock()
	m, ok := c.monitors[peer]
	c.mu.Unlock()
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	monitored, ok := m.desires[d.Fingerprint()]
	if !ok || m.beliefs == nil {
		return false
	}
	return monitored.IsFulfilled(m.beliefs)
}

// Unmonitor stops tracking d on peer, and unsubscribes when no desire of
// the peer remains.
func (c *Client) Unmonitor(peer string, d bdi.Desire) error {
	c.mu.Lock()
	m, ok := c.monitors[peer]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	m.mu.Lock()
	delete(m.desires, d.Fingerprint())
	empty := len(m.desires) == 0
	m.mu.Unlock()
	if empty {
		delete(c.monitors, peer)
	}
	c.mu.Unlock()

	if empty {
		return m.sub.Unsubscribe()
	}
	return nil
}
