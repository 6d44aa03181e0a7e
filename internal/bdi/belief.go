// ABOUTME: Belief type, parameter encoding and fingerprint derivation
// ABOUTME: A belief is a ground fact identified by name and ordered parameters

package bdi

import (
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint is the identity key of a belief or desire.
type Fingerprint string

// BeliefKind is the semantic type tag of a belief.
type BeliefKind string

const (
	// KindInstance declares an object of a given type (name=object, params=[type]).
	KindInstance BeliefKind = "instance"
	// KindPredicate is a boolean fact that holds when present.
	KindPredicate BeliefKind = "predicate"
	// KindFunction is a numeric fluent; Value carries the number.
	KindFunction BeliefKind = "function"
)

// Valid reports whether k is one of the known kinds.
func (k BeliefKind) Valid() bool {
	switch k {
	case KindInstance, KindPredicate, KindFunction:
		return true
	}
	return false
}

// Param is a typed belief parameter.
type Param struct {
	Value string `json:"value" yaml:"value" toml:"value"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty" toml:"type"`
}

// Belief is a ground fact known to the agent.
type Belief struct {
	Name   string     `json:"name" yaml:"name" toml:"name"`
	Params []Param    `json:"params,omitempty" yaml:"params,omitempty" toml:"params"`
	Value  float64    `json:"value,omitempty" yaml:"value,omitempty" toml:"value"`
	Kind   BeliefKind `json:"kind" yaml:"kind" toml:"kind"`
}

// NewPredicate builds a predicate belief from untyped parameter values.
func NewPredicate(name string, params ...string) Belief {
	return Belief{Name: name, Params: untyped(params), Kind: KindPredicate}
}

// NewFunction builds a numeric function belief.
func NewFunction(name string, value float64, params ...string) Belief {
	return Belief{Name: name, Params: untyped(params), Value: value, Kind: KindFunction}
}

// NewInstance declares object name of the given type.
func NewInstance(name, typ string) Belief {
	return Belief{Name: name, Params: []Param{{Value: typ}}, Kind: KindInstance}
}

func untyped(values []string) []Param {
	if len(values) == 0 {
		return nil
	}
	params := make([]Param, len(values))
	for i, v := range values {
		params[i] = Param{Value: v}
	}
	return params
}

// Fingerprint returns the identity of the belief: kind, name and parameters.
// Value is excluded.
func (b Belief) Fingerprint() Fingerprint {
	return fingerprint(string(b.kindOrDefault()), b.Name, b.Params)
}

// Validate checks the belief is well formed.
func (b Belief) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("belief name is required")
	}
	if b.Kind != "" && !b.Kind.Valid() {
		return fmt.Errorf("belief %q: unknown kind %q", b.Name, b.Kind)
	}
	return nil
}

// Equal compares identity and, for functions, value.
func (b Belief) Equal(other Belief) bool {
	if b.Fingerprint() != other.Fingerprint() {
		return false
	}
	if b.kindOrDefault() == KindFunction {
		return b.Value == other.Value
	}
	return true
}

// String renders the belief the way planners print ground atoms.
func (b Belief) String() string {
	vals := make([]string, len(b.Params))
	for i, p := range b.Params {
		vals[i] = p.Value
	}
	s := "(" + strings.TrimSpace(b.Name+" "+strings.Join(vals, " ")) + ")"
	if b.kindOrDefault() == KindFunction {
		s = fmt.Sprintf("(= %s %g)", s, b.Value)
	}
	return s
}

func (b Belief) kindOrDefault() BeliefKind {
	if b.Kind == "" {
		return KindPredicate
	}
	return b.Kind
}

// fingerprint quotes every field so distinct tuples never share a key,
// e.g. `"predicate":"at"("r1","kitchen":"waypoint")`.
func fingerprint(kind, name string, params []Param) Fingerprint {
	var sb strings.Builder
	sb.WriteString(strconv.Quote(kind))
	sb.WriteByte(':')
	sb.WriteString(strconv.Quote(name))
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Quote(p.Value))
		if p.Type != "" {
			sb.WriteByte(':')
			sb.WriteString(strconv.Quote(p.Type))
		}
	}
	sb.WriteByte(')')
	return Fingerprint(sb.String())
}
