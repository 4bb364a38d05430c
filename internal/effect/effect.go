// Package effect holds the declarative variable mutations attached to
// nodes, choices and puzzles.
package effect

import "fmt"

// Op is the mutation applied by an Effect.
type Op string

const (
	OpAdd Op = "add"
	OpSet Op = "set"
)

// Effect mutates one named variable.
type Effect struct {
	Op    Op      `json:"op" yaml:"op"`
	Var   string  `json:"var" yaml:"var"`
	Value float64 `json:"value" yaml:"value"`
}

// Validate reports a malformed effect.
func (e Effect) Validate() error {
	if e.Var == "" {
		return fmt.Errorf("effect has no var")
	}
	switch e.Op {
	case OpAdd, OpSet:
		return nil
	default:
		return fmt.Errorf("effect on %q has unknown op %q", e.Var, e.Op)
	}
}

// Apply mutates vars in order. A missing var counts as zero for add.
// Values are never clamped.
func Apply(vars map[string]float64, effects []Effect) {
	for _, e := range effects {
		switch e.Op {
		case OpAdd:
			vars[e.Var] += e.Value
		case OpSet:
			vars[e.Var] = e.Value
		}
	}
}
