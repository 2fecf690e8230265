// Package strategy implements the closed family of economic strategies
// (spec §4.5): Adaptive Allocator, Fixed-Price Arbitrage, and the legacy
// Winter Adaptive planner, each behind the narrow
// {Name, Enabled, Evaluate} capability — no inheritance, no interface
// beyond what a selector needs. Selector itself is a plain
// priority-ordered slice, the thin in-scope sliver of the "Strategy
// Selector" collaborator contract named in spec.md §2.
package strategy

import (
	"context"
	"fmt"

	"github.com/solardispatch/core/pkg/types"
)

// Strategy is the capability every economic strategy implements (spec
// §4.5). evaluate's domain-level "context" argument is split here into
// Go's context.Context (cancellation/logging, per the teacher's idiom)
// and the EvaluationContext the spec actually means.
type Strategy interface {
	Name() string
	Enabled() bool
	Evaluate(ctx context.Context, ec types.EvaluationContext) (types.BlockEvaluation, error)
}

// Selector holds the closed set of strategies in priority order and
// returns the first enabled one's evaluation. It is deliberately a slice,
// not a map or reflection-driven registry — selection is sequential
// first-match, per spec §4.5.
type Selector struct {
	Strategies []Strategy
}

// Evaluate returns the first enabled strategy's evaluation. An error here
// means the collaborator misconfigured the selector (no strategy
// enabled), not a failure of the core's pure decision logic.
func (s Selector) Evaluate(ctx context.Context, ec types.EvaluationContext) (types.BlockEvaluation, error) {
	for _, st := range s.Strategies {
		if st.Enabled() {
			return st.Evaluate(ctx, ec)
		}
	}
	return types.BlockEvaluation{}, fmt.Errorf("strategy selector: no enabled strategy among %d configured", len(s.Strategies))
}
