// Package stats implements the nonparametric routines used by the endpoint
// evaluator: median, Mann-Whitney U with tie-corrected normal approximation,
// and Cliff's delta. All functions return NaN on empty input rather than
// erroring, so callers can propagate degenerate data as sentinels.
package stats

import (
	"math"
	"sort"
)

// #region median

// Median returns the median of xs, or NaN when xs is empty.
// The input slice is not modified.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}

// #endregion median

// #region mann-whitney

// MannWhitneyU computes the Mann-Whitney U statistic for sample x against
// sample y, and a two-sided p-value from the tie-corrected normal
// approximation with continuity correction. Ties receive average ranks.
//
// U is computed for x, so U above its midpoint n1*n2/2 means x tends to
// rank higher than y. Returns (NaN, NaN) when either sample is empty.
// When every value is tied the variance collapses; p is reported as 1.
func MannWhitneyU(x, y []float64) (u float64, p float64) {
	n1 := len(x)
	n2 := len(y)
	if n1 == 0 || n2 == 0 {
		return math.NaN(), math.NaN()
	}

	type tagged struct {
		value float64
		fromX bool
	}
	combined := make([]tagged, 0, n1+n2)
	for _, v := range x {
		combined = append(combined, tagged{v, true})
	}
	for _, v := range y {
		combined = append(combined, tagged{v, false})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].value < combined[j].value })

	// Assign average ranks across tie groups and accumulate the tie
	// correction term sum(t^3 - t) over tie group sizes t.
	n := n1 + n2
	rankSumX := 0.0
	tieTerm := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && combined[j].value == combined[i].value {
			j++
		}
		// Ranks are 1-based; members of the tie group [i, j) all get the
		// average rank of the positions they span.
		avgRank := float64(i+j+1) / 2.0
		t := float64(j - i)
		if t > 1 {
			tieTerm += t*t*t - t
		}
		for k := i; k < j; k++ {
			if combined[k].fromX {
				rankSumX += avgRank
			}
		}
		i = j
	}

	u = rankSumX - float64(n1)*float64(n1+1)/2.0

	mu := float64(n1) * float64(n2) / 2.0
	nf := float64(n)
	variance := float64(n1) * float64(n2) / 12.0 * ((nf + 1) - tieTerm/(nf*(nf-1)))
	if variance <= 0 {
		return u, 1.0
	}
	sigma := math.Sqrt(variance)

	// Continuity correction toward the mean.
	z := (u - mu)
	switch {
	case z > 0:
		z -= 0.5
	case z < 0:
		z += 0.5
	}
	z /= sigma

	p = 2.0 * normalSF(math.Abs(z))
	if p > 1.0 {
		p = 1.0
	}
	if p < 0.0 {
		p = 0.0
	}
	return u, p
}

// normalSF is the standard normal survival function P(Z > z).
func normalSF(z float64) float64 {
	return 0.5 * math.Erfc(z/math.Sqrt2)
}

// #endregion mann-whitney

// #region cliffs-delta

// CliffsDelta computes the pairwise-dominance effect size between x and y:
// (#pairs x>y - #pairs x<y) / (len(x)*len(y)), in [-1, 1].
// Returns NaN when either sample is empty.
func CliffsDelta(x, y []float64) float64 {
	n1 := len(x)
	n2 := len(y)
	if n1 == 0 || n2 == 0 {
		return math.NaN()
	}

	greater := 0
	less := 0
	for _, a := range x {
		for _, b := range y {
			switch {
			case a > b:
				greater++
			case a < b:
				less++
			}
		}
	}
	return float64(greater-less) / (float64(n1) * float64(n2))
}

// #endregion cliffs-delta
