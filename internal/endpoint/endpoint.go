// Package endpoint judges a two-arm drift experiment: a treatment
// ("identity") arm against a control ("null") arm. It is the tolerant
// boundary of the pipeline — degenerate input series produce NaN endpoints
// and false verdicts instead of errors, so batch sweeps over many
// experiment files keep moving when one run is malformed.
package endpoint

import (
	"encoding/json"
	"math"

	"github.com/zackbrooks84/Ember/internal/stats"
)

// windowSize is the endpoint comparison window: verdicts and rank tests use
// the last (and for trends, first) 10 points of each series. Shorter series
// degrade to the whole series.
const windowSize = 10

// #region result

// Result bundles both verdicts with the statistics behind them.
// Field names mirror the evaluation summary JSON schema.
type Result struct {
	E1IdentityMedianXiLast10  float64 `json:"E1_identity_median_xi_last10"`
	E1NullMedianXiLast10      float64 `json:"E1_null_median_xi_last10"`
	MannWhitneyU              float64 `json:"mann_whitney_U"`
	MannWhitneyP              float64 `json:"mann_whitney_p"`
	CliffsDeltaNullVsIdentity float64 `json:"cliffs_delta_null_vs_identity"`
	PtTrendIdentity           float64 `json:"Pt_trend_identity"`
	PtTrendNull               float64 `json:"Pt_trend_null"`
	E1Pass                    bool    `json:"E1_pass"`
	E3Pass                    bool    `json:"E3_pass"`
}

// MarshalJSON renders non-finite statistics as null so degenerate results
// stay serializable.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"E1_identity_median_xi_last10":  nullIfNonFinite(r.E1IdentityMedianXiLast10),
		"E1_null_median_xi_last10":      nullIfNonFinite(r.E1NullMedianXiLast10),
		"mann_whitney_U":                nullIfNonFinite(r.MannWhitneyU),
		"mann_whitney_p":                nullIfNonFinite(r.MannWhitneyP),
		"cliffs_delta_null_vs_identity": nullIfNonFinite(r.CliffsDeltaNullVsIdentity),
		"Pt_trend_identity":             nullIfNonFinite(r.PtTrendIdentity),
		"Pt_trend_null":                 nullIfNonFinite(r.PtTrendNull),
		"E1_pass":                       r.E1Pass,
		"E3_pass":                       r.E3Pass,
	})
}

func nullIfNonFinite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// #endregion result

// #region windows

func lastWindow(xs []float64) []float64 {
	if len(xs) > windowSize {
		return xs[len(xs)-windowSize:]
	}
	return xs
}

func firstWindow(xs []float64) []float64 {
	if len(xs) > windowSize {
		return xs[:windowSize]
	}
	return xs
}

// PtTrend is median(last window) - median(first window) of a persistence
// series. Positive means rising anchor persistence. NaN on an empty series.
func PtTrend(pt []float64) float64 {
	if len(pt) == 0 {
		return math.NaN()
	}
	return stats.Median(lastWindow(pt)) - stats.Median(firstWindow(pt))
}

// #endregion windows

// #region evaluate

// Evaluate compares identity vs null ξ and persistence series and returns
// both verdicts with supporting statistics.
//
// E1: identity's last-window median ξ is below null's. E3: identity's
// persistence trend is positive and exceeds max(0, null's trend). The rank
// test and effect size are ordered null-vs-identity so a positive effect
// means null tension ranks higher.
func Evaluate(xiIdentity, xiNull, ptIdentity, ptNull []float64) Result {
	xiIDLast := lastWindow(xiIdentity)
	xiNuLast := lastWindow(xiNull)

	e1ID := stats.Median(xiIDLast)
	e1Nu := stats.Median(xiNuLast)
	e1Pass := finite(e1ID) && finite(e1Nu) && e1ID < e1Nu

	u, p := stats.MannWhitneyU(xiNuLast, xiIDLast)
	d := stats.CliffsDelta(xiNuLast, xiIDLast)

	ptID := PtTrend(ptIdentity)
	ptNu := PtTrend(ptNull)
	e3Pass := finite(ptID) && finite(ptNu) && ptID > math.Max(0, ptNu)

	return Result{
		E1IdentityMedianXiLast10:  e1ID,
		E1NullMedianXiLast10:      e1Nu,
		MannWhitneyU:              u,
		MannWhitneyP:              p,
		CliffsDeltaNullVsIdentity: d,
		PtTrendIdentity:           ptID,
		PtTrendNull:               ptNu,
		E1Pass:                    e1Pass,
		E3Pass:                    e3Pass,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion evaluate
