// ABOUTME: Encoding of a belief as plan action arguments
// ABOUTME: Used by belief-asserting actions the planner emits and the executor runs

package bdi

import (
	"fmt"
	"strconv"
)

// BeliefArgs encodes b as action arguments:
//
//	predicate: name param...
//	function:  = name value param...
//	instance:  - name type
func BeliefArgs(b Belief) []string {
	params := make([]string, len(b.Params))
	for i, p := range b.Params {
		params[i] = p.Value
	}
	switch b.kindOrDefault() {
	case KindFunction:
		return append([]string{"=", b.Name, strconv.FormatFloat(b.Value, 'g', -1, 64)}, params...)
	case KindInstance:
		typ := ""
		if len(params) > 0 {
			typ = params[0]
		}
		return []string{"-", b.Name, typ}
	default:
		return append([]string{b.Name}, params...)
	}
}

// BeliefFromArgs decodes arguments produced by BeliefArgs.
func BeliefFromArgs(args []string) (Belief, error) {
	if len(args) == 0 {
		return Belief{}, fmt.Errorf("no belief arguments")
	}
	switch args[0] {
	case "=":
		if len(args) < 3 {
			return Belief{}, fmt.Errorf("function belief needs name and value, got %v", args)
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return Belief{}, fmt.Errorf("function belief %q value: %w", args[1], err)
		}
		return NewFunction(args[1], v, args[3:]...), nil
	case "-":
		if len(args) != 3 {
			return Belief{}, fmt.Errorf("instance belief needs name and type, got %v", args)
		}
		return NewInstance(args[1], args[2]), nil
	default:
		return NewPredicate(args[0], args[1:]...), nil
	}
}
