// ABOUTME: Desire type with target condition, priority and optional deadline
// ABOUTME: A desire is fulfilled when every target belief holds in a belief set

package bdi

import (
	"fmt"
	"strings"
	"time"
)

// Desire is a goal the agent may commit to.
type Desire struct {
	Name     string        `json:"name" yaml:"name" toml:"name"`
	Params   []Param       `json:"params,omitempty" yaml:"params,omitempty" toml:"params"`
	Target   []Belief      `json:"target" yaml:"target" toml:"target"`
	Priority float64       `json:"priority" yaml:"priority" toml:"priority"`
	Deadline time.Duration `json:"deadline,omitempty" yaml:"deadline,omitempty" toml:"deadline"`
}

// Fingerprint returns the identity of the desire (name and parameters).
// Priority, deadline and target are excluded.
func (d Desire) Fingerprint() Fingerprint {
	return fingerprint("desire", d.Name, d.Params)
}

// IsFulfilled reports whether every target belief is present in beliefs.
// Function targets also require an equal value. A desire with an empty
// target is never fulfilled.
func (d Desire) IsFulfilled(beliefs *BeliefSet) bool {
	if len(d.Target) == 0 || beliefs == nil {
		return false
	}
	for _, target := range d.Target {
		held, ok := beliefs.Get(target.Fingerprint())
		if !ok || !held.Equal(target) {
			return false
		}
	}
	return true
}

// ClampPriority returns a copy with priority forced into [0, limit].
func (d Desire) ClampPriority(limit float64) Desire {
	out := d
	if out.Priority > limit {
		out.Priority = limit
	}
	if out.Priority < 0 {
		out.Priority = 0
	}
	return out
}

// Validate checks the desire is well formed.
func (d Desire) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("desire name is required")
	}
	if d.Priority < 0 || d.Priority > 1 {
		return fmt.Errorf("desire %q: priority %v outside [0,1]", d.Name, d.Priority)
	}
	for _, b := range d.Target {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("desire %q target: %w", d.Name, err)
		}
	}
	return nil
}

func (d Desire) String() string {
	targets := make([]string, len(d.Target))
	for i, b := range d.Target {
		targets[i] = b.String()
	}
	return fmt.Sprintf("%s[pr=%.2f] -> %s", d.Name, d.Priority, strings.Join(targets, " "))
}
