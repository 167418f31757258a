// Package drift quantifies step-to-step movement of a latent state
// trajectory. The tension series ξ is the L2 norm of successive Ψ
// differences; summaries and last-window medians feed the endpoint
// evaluator.
package drift

import (
	"errors"
	"fmt"
	"math"

	"github.com/zackbrooks84/Ember/internal/stats"
)

// #region errors

// ErrInsufficientData reports a trajectory too short to difference.
var ErrInsufficientData = errors.New("trajectory must contain at least 2 state vectors")

// DimensionMismatchError reports a vector whose dimensionality differs from
// the first vector of the trajectory. It is a distinct kind from
// ErrInsufficientData so callers can tell a data-quality bug from a
// legitimately short run.
type DimensionMismatchError struct {
	Index int
	Want  int
	Got   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("state vector %d has dimension %d, want %d", e.Index, e.Got, e.Want)
}

// #endregion errors

// #region compute-xi

// ComputeXi computes the tension series ξ over a trajectory of state
// vectors: xi[i-1] = ||psi[i] - psi[i-1]||_2 for i = 1..len(psi)-1.
// All vectors must share the dimensionality of psi[0]. Validation runs
// before any computation; on error no partial output is returned.
func ComputeXi(psi [][]float64) ([]float64, error) {
	if len(psi) < 2 {
		return nil, ErrInsufficientData
	}

	dim := len(psi[0])
	for i, v := range psi {
		if len(v) != dim {
			return nil, &DimensionMismatchError{Index: i, Want: dim, Got: len(v)}
		}
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("state vector %d contains a non-finite component", i)
			}
		}
	}

	xi := make([]float64, len(psi)-1)
	for i := 1; i < len(psi); i++ {
		var sum float64
		for j := 0; j < dim; j++ {
			d := psi[i][j] - psi[i-1][j]
			sum += d * d
		}
		xi[i-1] = math.Sqrt(sum)
	}
	return xi, nil
}

// ComputeXiScalar treats a scalar trajectory as 1-D vectors and computes ξ.
// Used by the simulator, which evolves a single Ψ value per step.
func ComputeXiScalar(psi []float64) ([]float64, error) {
	vecs := make([][]float64, len(psi))
	for i, p := range psi {
		vecs[i] = []float64{p}
	}
	return ComputeXi(vecs)
}

// #endregion compute-xi

// #region summary

// Summary condenses a ξ series for quick assertions and dashboards.
type Summary struct {
	Mean  float64 `json:"mean"`
	Final float64 `json:"final"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Trend float64 `json:"trend"`
}

// MovingAverage smooths xs with a trailing window. Partial windows are used
// at the start so the output always has the same length as the input.
// A window of 1 (or less) is the identity.
func MovingAverage(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	if window <= 1 {
		copy(out, xs)
		return out
	}

	acc := 0.0
	for i, x := range xs {
		acc += x
		if i >= window {
			acc -= xs[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = acc / float64(n)
	}
	return out
}

// StabilizationSummary summarizes a ξ series, optionally smoothing it with
// a trailing moving average first. Trend is smoothed last minus smoothed
// first. An empty series yields an all-zero summary rather than an error;
// consumers rely on this no-op convention.
func StabilizationSummary(xi []float64, maWindow int) Summary {
	if len(xi) == 0 {
		return Summary{}
	}

	xs := MovingAverage(xi, maWindow)
	sum := 0.0
	mn := xs[0]
	mx := xs[0]
	for _, x := range xs {
		sum += x
		if x < mn {
			mn = x
		}
		if x > mx {
			mx = x
		}
	}
	return Summary{
		Mean:  sum / float64(len(xs)),
		Final: xs[len(xs)-1],
		Min:   mn,
		Max:   mx,
		Trend: xs[len(xs)-1] - xs[0],
	}
}

// LastKMedian returns the median of the last k elements of the series, or
// of the whole series when it is shorter than k. NaN on an empty series.
func LastKMedian(xs []float64, k int) float64 {
	if len(xs) > k {
		xs = xs[len(xs)-k:]
	}
	return stats.Median(xs)
}

// #endregion summary
