// ABOUTME: Immutable belief and desire sets plus their full-state snapshot messages
// ABOUTME: Sets are built once and shared read-only between goroutines

package bdi

import "sort"

// BeliefSetSnapshot is the full-state broadcast of an agent's beliefs.
type BeliefSetSnapshot struct {
	AgentID string   `json:"agent_id"`
	Beliefs []Belief `json:"beliefs"`
}

// DesireSetSnapshot is the full-state broadcast of an agent's desires.
type DesireSetSnapshot struct {
	AgentID string   `json:"agent_id"`
	Desires []Desire `json:"desires"`
}

// BeliefSet is an immutable set of beliefs keyed by fingerprint.
// The zero value and nil are both valid empty sets.
type BeliefSet struct {
	byKey map[Fingerprint]Belief
	order []Fingerprint
}

// NewBeliefSet builds a set from beliefs. Later duplicates overwrite
// earlier ones but keep the first position.
func NewBeliefSet(beliefs []Belief) *BeliefSet {
	s := &BeliefSet{byKey: make(map[Fingerprint]Belief, len(beliefs))}
	for _, b := range beliefs {
		key := b.Fingerprint()
		if _, exists := s.byKey[key]; !exists {
			s.order = append(s.order, key)
		}
		s.byKey[key] = b
	}
	return s
}

// Get returns the belief with the given fingerprint.
func (s *BeliefSet) Get(key Fingerprint) (Belief, bool) {
	if s == nil {
		return Belief{}, false
	}
	b, ok := s.byKey[key]
	return b, ok
}

// Count returns 1 if the key is a member and 0 otherwise.
func (s *BeliefSet) Count(key Fingerprint) int {
	if _, ok := s.Get(key); ok {
		return 1
	}
	return 0
}

// Contains reports membership of b by identity.
func (s *BeliefSet) Contains(b Belief) bool {
	_, ok := s.Get(b.Fingerprint())
	return ok
}

// Len returns the number of beliefs.
func (s *BeliefSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// List returns the beliefs in insertion order.
func (s *BeliefSet) List() []Belief {
	if s == nil {
		return nil
	}
	out := make([]Belief, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}

// DesireSet is an immutable set of desires keyed by fingerprint.
type DesireSet struct {
	byKey map[Fingerprint]Desire
	order []Fingerprint
}

// NewDesireSet builds a set from desires, keeping first-seen order.
func NewDesireSet(desires []Desire) *DesireSet {
	s := &DesireSet{byKey: make(map[Fingerprint]Desire, len(desires))}
	for _, d := range desires {
		key := d.Fingerprint()
		if _, exists := s.byKey[key]; !exists {
			s.order = append(s.order, key)
		}
		s.byKey[key] = d
	}
	return s
}

// Get returns the desire with the given fingerprint.
func (s *DesireSet) Get(key Fingerprint) (Desire, bool) {
	if s == nil {
		return Desire{}, false
	}
	d, ok := s.byKey[key]
	return d, ok
}

// Count returns 1 if the key is a member and 0 otherwise.
func (s *DesireSet) Count(key Fingerprint) int {
	if _, ok := s.Get(key); ok {
		return 1
	}
	return 0
}

// Contains reports membership of d by identity.
func (s *DesireSet) Contains(d Desire) bool {
	_, ok := s.Get(d.Fingerprint())
	return ok
}

// Len returns the number of desires.
func (s *DesireSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// List returns the desires in insertion order.
func (s *DesireSet) List() []Desire {
	if s == nil {
		return nil
	}
	out := make([]Desire, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}

// ByPriority returns the desires sorted by descending priority, ties kept
// in insertion order.
func (s *DesireSet) ByPriority() []Desire {
	out := s.List()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
