// Package harness turns a transcript into per-turn stability metrics. Each
// line is embedded, then drift, vector similarity and anchor alignment are
// computed turn by turn, alongside a lock-in point where the trajectory is
// considered settled.
package harness

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/zackbrooks84/Ember/internal/anchor"
	"github.com/zackbrooks84/Ember/internal/drift"
	"github.com/zackbrooks84/Ember/internal/embed"
	"github.com/zackbrooks84/Ember/internal/runio"
)

// #region params
const defaultEwmaAlpha = 0.3

// Params governs per-turn metric computation and lock-in detection.
type Params struct {
	// K is how many consecutive turns xi must stay at or below EpsXi.
	K int
	// M is how many consecutive turns (1 - lvs) must stay at or below EpsLVS.
	M int
	EpsXi     float64
	EpsLVS    float64
	EwmaAlpha float64
}

// DefaultParams returns the standard lock-in thresholds.
func DefaultParams() Params {
	return Params{K: 5, M: 5, EpsXi: 0.02, EpsLVS: 0.015, EwmaAlpha: defaultEwmaAlpha}
}
// #endregion params

// #region arm-result
// ArmResult holds the metric trajectory of one experiment arm.
type ArmResult struct {
	Rows  []runio.TurnRow
	Xi    []float64
	Pt    []float64
	Tlock int
}
// #endregion arm-result

// #region run-arm
// RunArm embeds lines and computes per-turn metrics for one arm. runType
// and provider label the emitted rows.
func RunArm(ctx context.Context, e embed.Embedder, lines []string, runType, provider string, p Params) (ArmResult, error) {
	if len(lines) == 0 {
		return ArmResult{}, fmt.Errorf("run %s arm: empty transcript", runType)
	}
	if p.EwmaAlpha <= 0 || p.EwmaAlpha > 1 {
		p.EwmaAlpha = defaultEwmaAlpha
	}

	vectors, err := embed.Trajectory(ctx, e, lines)
	if err != nil {
		return ArmResult{}, fmt.Errorf("embed %s arm: %w", runType, err)
	}

	anchorDir, err := anchorDirection(ctx, e)
	if err != nil {
		return ArmResult{}, fmt.Errorf("anchor direction: %w", err)
	}

	var xi []float64
	if len(vectors) >= 2 {
		xi, err = drift.ComputeXi(vectors)
		if err != nil {
			return ArmResult{}, fmt.Errorf("compute xi: %w", err)
		}
	}

	rows := make([]runio.TurnRow, len(vectors))
	pt := make([]float64, len(vectors))
	ewma := 0.0
	for t, vec := range vectors {
		row := runio.TurnRow{T: t, RunType: runType, Provider: provider}
		if t == 0 {
			row.LVS = 1.0
		} else {
			row.LVS = embed.CosineSimilarity(vectors[t-1], vec)
			x := xi[t-1]
			row.Xi = &x
			if t == 1 {
				ewma = x
			} else {
				ewma = p.EwmaAlpha*x + (1-p.EwmaAlpha)*ewma
			}
			ev := ewma
			row.EwmaXi = &ev
		}
		pt[t] = embed.CosineSimilarity(vec, anchorDir)
		ptv := pt[t]
		row.Pt = &ptv
		rows[t] = row
	}

	return ArmResult{
		Rows:  rows,
		Xi:    xi,
		Pt:    pt,
		Tlock: Tlock(rows, p),
	}, nil
}
// #endregion run-arm

// #region anchor-direction
// anchorDirection embeds every canonical anchor phrase and returns their
// mean vector. Pt is the cosine of each turn vector against it.
func anchorDirection(ctx context.Context, e embed.Embedder) ([]float64, error) {
	anchors := anchor.Canonical()
	phrases := make([]string, len(anchors))
	for i, a := range anchors {
		phrases[i] = a.Phrase
	}
	vecs, err := embed.Trajectory(ctx, e, phrases)
	if err != nil {
		return nil, err
	}
	return embed.MeanVector(vecs), nil
}
// #endregion anchor-direction

// #region tlock
// Tlock returns the first turn t from which xi stays at or below EpsXi
// for K consecutive turns and (1 - lvs) stays at or below EpsLVS for M
// consecutive turns, or -1 when the trajectory never settles.
func Tlock(rows []runio.TurnRow, p Params) int {
	if p.K < 1 || p.M < 1 {
		return -1
	}
	for t := 1; t < len(rows); t++ {
		if t+p.K > len(rows) || t+p.M > len(rows) {
			break
		}
		if xiSettled(rows[t:t+p.K], p.EpsXi) && lvsSettled(rows[t:t+p.M], p.EpsLVS) {
			return t
		}
	}
	return -1
}

func xiSettled(rows []runio.TurnRow, eps float64) bool {
	for _, r := range rows {
		if r.Xi == nil || *r.Xi > eps {
			return false
		}
	}
	return true
}

func lvsSettled(rows []runio.TurnRow, eps float64) bool {
	for _, r := range rows {
		if 1-r.LVS > eps {
			return false
		}
	}
	return true
}
// #endregion tlock

// #region null-protocol
// NullTranscript builds the null arm from a transcript: keep every
// stride-th line, then shuffle the survivors with a seeded generator so
// the arm is reproducible.
func NullTranscript(lines []string, stride int, seed int64) []string {
	if stride < 1 {
		stride = 1
	}
	var kept []string
	for i := 0; i < len(lines); i += stride {
		kept = append(kept, lines[i])
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(kept), func(i, j int) {
		kept[i], kept[j] = kept[j], kept[i]
	})
	return kept
}
// #endregion null-protocol

// #region run-pair
// RunPair runs the identity arm over lines as given and the null arm over
// the stride-subsampled shuffle of the same lines.
func RunPair(ctx context.Context, e embed.Embedder, lines []string, provider string, stride int, seed int64, p Params) (identity, null ArmResult, err error) {
	identity, err = RunArm(ctx, e, lines, "identity", provider, p)
	if err != nil {
		return ArmResult{}, ArmResult{}, err
	}
	null, err = RunArm(ctx, e, NullTranscript(lines, stride, seed), "null", provider, p)
	if err != nil {
		return ArmResult{}, ArmResult{}, err
	}
	return identity, null, nil
}
// #endregion run-pair
