// Package replay re-runs endpoint evaluations. It can recompute stored
// run pairs from their persisted per-turn rows, and run self-contained
// JSON fixtures that carry a transcript and expectations.
package replay

import (
	"encoding/json"
	"fmt"

	"github.com/zackbrooks84/Ember/internal/endpoint"
	"github.com/zackbrooks84/Ember/internal/runio"
	"github.com/zackbrooks84/Ember/internal/store"
)

// #region types
// PairResult is the outcome of re-evaluating one stored run pair. Err is
// set when the pair could not be recomputed; the batch continues past it.
type PairResult struct {
	EvalID        string
	IdentityRunID string
	NullRunID     string
	Result        endpoint.Result
	Stored        endpoint.Result
	Matches       bool
	Err           error
}

// Summary aggregates a replay batch.
type Summary struct {
	Total      int
	Recomputed int
	Failed     int
	Mismatches int
	E1Passes   int
	E3Passes   int
}
// #endregion types

// #region replay
// Replay recomputes the most recent stored evaluations from their per-turn
// rows. A pair whose runs cannot be loaded is reported with Err set and
// does not stop the batch.
func Replay(st *store.Store, limit int) ([]PairResult, error) {
	evals, err := st.ListEvaluations(limit)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	results := make([]PairResult, 0, len(evals))
	for _, ev := range evals {
		results = append(results, replayPair(st, ev))
	}
	return results, nil
}

func replayPair(st *store.Store, ev store.EvalRecord) PairResult {
	pr := PairResult{
		EvalID:        ev.EvalID,
		IdentityRunID: ev.IdentityRunID,
		NullRunID:     ev.NullRunID,
	}

	identityRows, err := st.GetTurns(ev.IdentityRunID)
	if err != nil {
		pr.Err = fmt.Errorf("identity turns: %w", err)
		return pr
	}
	nullRows, err := st.GetTurns(ev.NullRunID)
	if err != nil {
		pr.Err = fmt.Errorf("null turns: %w", err)
		return pr
	}

	pr.Result = endpoint.Evaluate(
		runio.XiSeries(identityRows), runio.XiSeries(nullRows),
		runio.PtSeries(identityRows), runio.PtSeries(nullRows),
	)

	// Stored summaries carry the pass flags; NaN statistic fields do not
	// survive a JSON round trip, so the comparison sticks to the booleans.
	var stored endpoint.Result
	if err := json.Unmarshal([]byte(ev.SummaryJSON), &stored); err == nil {
		pr.Stored = stored
		pr.Matches = stored.E1Pass == pr.Result.E1Pass && stored.E3Pass == pr.Result.E3Pass
	}
	return pr
}

// Summarize computes aggregate stats from a replay batch.
func Summarize(results []PairResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		s.Recomputed++
		if !r.Matches {
			s.Mismatches++
		}
		if r.Result.E1Pass {
			s.E1Passes++
		}
		if r.Result.E3Pass {
			s.E3Passes++
		}
	}
	return s
}
// #endregion replay
