// ABOUTME: Tests for fingerprints, set membership and desire fulfillment
// ABOUTME: Covers identity rules, function values and priority clamping

package bdi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeliefFingerprint_IgnoresValue(t *testing.T) {
	a := NewFunction("battery", 10, "r1")
	b := NewFunction("battery", 90, "r1")

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.False(t, a.Equal(b), "function beliefs with different values are not equal")
}

func TestBeliefFingerprint_ParamsAreOrdered(t *testing.T) {
	a := NewPredicate("on", "a", "b")
	b := NewPredicate("on", "b", "a")

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestBeliefFingerprint_KindMatters(t *testing.T) {
	pred := NewPredicate("kitchen", "waypoint")
	inst := NewInstance("kitchen", "waypoint")

	assert.NotEqual(t, pred.Fingerprint(), inst.Fingerprint())
}

func TestBeliefFingerprint_DefaultKindIsPredicate(t *testing.T) {
	b := Belief{Name: "clear", Params: []Param{{Value: "a"}}}
	assert.Equal(t, NewPredicate("clear", "a").Fingerprint(), b.Fingerprint())
}

func TestBeliefFingerprint_TypeIsNotPartOfValue(t *testing.T) {
	a := Belief{Name: "at", Params: []Param{{Value: "a-b"}}}
	b := Belief{Name: "at", Params: []Param{{Value: "a", Type: "b"}}}

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestBeliefFingerprint_SeparatorInValue(t *testing.T) {
	one := NewPredicate("at", "x,y")
	two := NewPredicate("at", "x", "y")

	assert.NotEqual(t, one.Fingerprint(), two.Fingerprint())
	assert.False(t, NewBeliefSet([]Belief{one}).Contains(two))

	paren := NewPredicate("at(x", ")")
	assert.NotEqual(t, paren.Fingerprint(), NewPredicate("at", "x)(").Fingerprint())
}

func TestDesireFingerprint_SeparatorInParams(t *testing.T) {
	a := Desire{Name: "go", Params: []Param{{Value: "r1,dock"}}}
	b := Desire{Name: "go", Params: []Param{{Value: "r1"}, {Value: "dock"}}}

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestDesireFingerprint_IgnoresPriorityAndDeadline(t *testing.T) {
	a := Desire{Name: "tidy", Priority: 0.2}
	b := Desire{Name: "tidy", Priority: 0.9, Deadline: time.Minute}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestBeliefSet_Membership(t *testing.T) {
	set := NewBeliefSet([]Belief{
		NewPredicate("on", "a", "b"),
		NewPredicate("clear", "a"),
		NewPredicate("on", "a", "b"),
	})

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 1, set.Count(NewPredicate("on", "a", "b").Fingerprint()))
	assert.Equal(t, 0, set.Count(NewPredicate("on", "b", "a").Fingerprint()))
	assert.True(t, set.Contains(NewPredicate("clear", "a")))
}

func TestBeliefSet_NilIsEmpty(t *testing.T) {
	var set *BeliefSet
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Contains(NewPredicate("x")))
	assert.Empty(t, set.List())
}

func TestDesire_IsFulfilled(t *testing.T) {
	d := Desire{
		Name: "stack",
		Target: []Belief{
			NewPredicate("on", "a", "b"),
			NewFunction("holding_count", 0),
		},
	}

	tests := []struct {
		name    string
		beliefs []Belief
		want    bool
	}{
		{"empty", nil, false},
		{"partial", []Belief{NewPredicate("on", "a", "b")}, false},
		{"function value differs", []Belief{NewPredicate("on", "a", "b"), NewFunction("holding_count", 1)}, false},
		{"all hold", []Belief{NewPredicate("on", "a", "b"), NewFunction("holding_count", 0), NewPredicate("clear", "a")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsFulfilled(NewBeliefSet(tt.beliefs)))
		})
	}
}

func TestDesire_EmptyTargetNeverFulfilled(t *testing.T) {
	d := Desire{Name: "nothing"}
	assert.False(t, d.IsFulfilled(NewBeliefSet([]Belief{NewPredicate("x")})))
}

func TestDesire_ClampPriority(t *testing.T) {
	assert.Equal(t, 0.5, Desire{Priority: 0.9}.ClampPriority(0.5).Priority)
	assert.Equal(t, 0.3, Desire{Priority: 0.3}.ClampPriority(0.5).Priority)
	assert.Equal(t, 0.0, Desire{Priority: -1}.ClampPriority(0.5).Priority)
	assert.Equal(t, 0.0, Desire{Priority: 0.7}.ClampPriority(0).Priority)
}

func TestDesire_Validate(t *testing.T) {
	require.NoError(t, Desire{Name: "ok", Priority: 1}.Validate())
	assert.Error(t, Desire{Name: "", Priority: 0.5}.Validate())
	assert.Error(t, Desire{Name: "high", Priority: 1.5}.Validate())
	assert.Error(t, Desire{Name: "bad", Target: []Belief{{Name: "x", Kind: "weird"}}}.Validate())
}

func TestDesireSet_ByPriority(t *testing.T) {
	set := NewDesireSet([]Desire{
		{Name: "low", Priority: 0.1},
		{Name: "first-high", Priority: 0.8},
		{Name: "second-high", Priority: 0.8},
	})

	ordered := set.ByPriority()
	require.Len(t, ordered, 3)
	assert.Equal(t, "first-high", ordered[0].Name)
	assert.Equal(t, "second-high", ordered[1].Name)
	assert.Equal(t, "low", ordered[2].Name)
}

func TestBelief_String(t *testing.T) {
	assert.Equal(t, "(on a b)", NewPredicate("on", "a", "b").String())
	assert.Equal(t, "(= (battery r1) 42)", NewFunction("battery", 42, "r1").String())
}

func TestPlanAction_FullName(t *testing.T) {
	a := PlanAction{Name: "move", Args: []string{"r1", "kitchen", "bedroom"}}
	assert.Equal(t, "(move r1 kitchen bedroom)", a.FullName())
	assert.Equal(t, "(noop)", PlanAction{Name: "noop"}.FullName())
}

func TestBeliefArgs_RoundTrip(t *testing.T) {
	for _, b := range []Belief{
		NewPredicate("in", "r1", "kitchen"),
		NewPredicate("clear"),
		NewFunction("battery", 42.5, "r1"),
		NewInstance("kitchen", "waypoint"),
	} {
		got, err := BeliefFromArgs(BeliefArgs(b))
		require.NoError(t, err, b.String())
		assert.True(t, got.Equal(b), "%s decoded as %s", b, got)
	}
}

func TestBeliefFromArgs_Invalid(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"=", "battery"},
		{"=", "battery", "full"},
		{"-", "kitchen"},
	} {
		_, err := BeliefFromArgs(args)
		assert.Error(t, err, "%v", args)
	}
}
