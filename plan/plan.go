// Package plan models the structured output of the reasoning service: an
// ordered list of typed operations, optional rationale, and the optional
// clarification request that suspends execution pending a human choice.
//
// Operations form a closed sum type — one concrete struct per kind,
// dispatched by exhaustive type switch — so adding an operation is a
// compile-visible change, not a stringly-typed one.
package plan

import (
	"fmt"
	"strings"
)

// Clarification asks the user to disambiguate before a plan is finalized.
type Clarification struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Plan is the ordered operation list produced for one user instruction.
// A plan is created per prompt, consumed once, then discarded.
//
// Invariant: when Clarification is set, Operations is empty and nothing is
// ever executed from this plan.
type Plan struct {
	Operations    []Op
	Rationale     string
	Clarification *Clarification
}

// Validate checks the plan-level invariant and every operation's arguments.
func (p *Plan) Validate() error {
	if p.Clarification != nil {
		if len(p.Operations) > 0 {
			return &ValidationError{Field: "operations", Msg: "plan carries both a clarification and operations"}
		}
		if strings.TrimSpace(p.Clarification.Question) == "" {
			return &ValidationError{Field: "needsClarification.question", Msg: "empty question"}
		}
		return nil
	}
	for i, op := range p.Operations {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, op.Kind(), err)
		}
	}
	return nil
}

// ValidationError reports malformed input: an empty prompt, an unknown
// operation kind, or arguments outside their schema.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}
