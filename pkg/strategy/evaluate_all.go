package strategy

import (
	"context"
	"sync"

	"github.com/solardispatch/core/pkg/types"
)

// NamedEvaluation pairs a strategy's name with the evaluation it produced
// (or the error it returned), for comparison/backtesting tooling.
type NamedEvaluation struct {
	Name       string
	Evaluation types.BlockEvaluation
	Err        error
}

// EvaluateAll runs every strategy in strategies concurrently and returns
// one NamedEvaluation per strategy, in the same order. Unlike Selector,
// this evaluates the whole set regardless of Enabled() — it exists for
// comparison/backtesting, not for picking the one decision a controller
// acts on.
//
// Each context is already immutable and independently owned by the
// caller, so the only concurrency primitive needed is the fan-out/fan-in
// WaitGroup; there is no shared mutable state to guard with a mutex
// (unlike the teacher's pkg/utility.Map and pkg/ess.Map, which protect a
// shared result map with sync.Mutex because their workers write into one
// map concurrently).
func EvaluateAll(ctx context.Context, strategies []Strategy, ec types.EvaluationContext) []NamedEvaluation {
	results := make([]NamedEvaluation, len(strategies))

	var wg sync.WaitGroup
	for i, st := range strategies {
		wg.Add(1)
		go func(i int, st Strategy) {
			defer wg.Done()
			eval, err := st.Evaluate(ctx, ec)
			results[i] = NamedEvaluation{Name: st.Name(), Evaluation: eval, Err: err}
		}(i, st)
	}
	wg.Wait()

	return results
}
