package anchor

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// #region params

// Params are the tunables for dynamic salience weighting.
type Params struct {
	// FreqGain scales how strongly observation frequency raises weight.
	FreqGain float64 `json:"freq_gain" yaml:"freq_gain"`
	// FreqNorm normalizes frequency via tanh(count/FreqNorm) so weights
	// cannot run away with count.
	FreqNorm float64 `json:"freq_norm" yaml:"freq_norm"`
	// EffectGain scales the observed-effect EMA contribution.
	EffectGain float64 `json:"effect_gain" yaml:"effect_gain"`
	// EffectEMAAlpha is the EMA smoothing factor for effect updates.
	EffectEMAAlpha float64 `json:"effect_ema_alpha" yaml:"effect_ema_alpha"`
	// StalenessPenaltyPerHour decays weight per hour since last seen.
	StalenessPenaltyPerHour float64 `json:"staleness_penalty_per_hour" yaml:"staleness_penalty_per_hour"`
	// MinWeight and MaxWeight clamp every computed weight.
	MinWeight float64 `json:"min_weight" yaml:"min_weight"`
	MaxWeight float64 `json:"max_weight" yaml:"max_weight"`
}

// DefaultParams returns the reference weighting configuration.
func DefaultParams() Params {
	return Params{
		FreqGain:                0.25,
		FreqNorm:                8.0,
		EffectGain:              0.5,
		EffectEMAAlpha:          0.3,
		StalenessPenaltyPerHour: 0.01,
		MinWeight:               0.1,
		MaxWeight:               1.5,
	}
}

// #endregion params

// #region stats

// Stats accumulates per-phrase evidence. Created lazily on first
// observation, updated on every Observe, never deleted.
type Stats struct {
	Phrase    string    `json:"phrase"`
	Count     int       `json:"count"`
	EMAEffect float64   `json:"ema_effect"`
	LastSeen  time.Time `json:"last_seen"`
}

// Evidence carries the optional before/after measurements for one
// observation. Nil pointers mean "not measured"; a frequency-only
// observation has all four nil. A zero Timestamp means "now".
type Evidence struct {
	XiBefore        *float64
	XiAfter         *float64
	StabilityBefore *float64
	StabilityAfter  *float64
	Timestamp       time.Time
}

// #endregion stats

// #region weighter

// defaultBaseWeight applies when WeightFor is asked about a phrase that is
// not in the canonical base.
const defaultBaseWeight = 1.0

// Weighter maintains dynamic, evidence-driven weights for anchors. The
// canonical base is never mutated; learned state lives in the stats
// overlay. Not safe for concurrent use without external synchronization.
type Weighter struct {
	base   []Anchor
	stats  map[string]*Stats
	params Params
	now    func() time.Time
}

// NewWeighter creates a weighter over the given canonical base.
func NewWeighter(base []Anchor, params Params) *Weighter {
	w := &Weighter{
		base:   make([]Anchor, len(base)),
		stats:  make(map[string]*Stats, len(base)),
		params: params,
		now:    time.Now,
	}
	copy(w.base, base)
	for _, a := range w.base {
		w.stats[a.Phrase] = &Stats{Phrase: a.Phrase}
	}
	return w
}

// Observe records one anchor observation. With a complete ξ pair the
// instantaneous effect is XiBefore - XiAfter (positive = tension dropped);
// with a complete stability pair it is StabilityAfter - StabilityBefore
// (positive = stability rose). The effect folds into the EMA. Without
// either pair only frequency and last-seen are updated. Phrases outside
// the canonical base accumulate stats but are never surfaced by
// WeightedAnchors.
func (w *Weighter) Observe(phrase string, ev Evidence) {
	s, ok := w.stats[phrase]
	if !ok {
		s = &Stats{Phrase: phrase}
		w.stats[phrase] = s
	}

	s.Count++
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = w.now()
	}
	s.LastSeen = ts

	effect := 0.0
	switch {
	case ev.XiBefore != nil && ev.XiAfter != nil:
		effect = *ev.XiBefore - *ev.XiAfter
	case ev.StabilityBefore != nil && ev.StabilityAfter != nil:
		effect = *ev.StabilityAfter - *ev.StabilityBefore
	}
	if effect != 0.0 {
		alpha := w.params.EffectEMAAlpha
		s.EMAEffect = (1-alpha)*s.EMAEffect + alpha*effect
	}
}

// WeightFor computes the current dynamic weight for a phrase:
// base + tanh(count/freqNorm)·freqGain + emaEffect·effectGain −
// stalenessPenaltyPerHour·hoursSinceLastSeen, clamped into
// [MinWeight, MaxWeight]. Staleness is measured against call time, so
// weight decays between observations down to MinWeight.
func (w *Weighter) WeightFor(phrase string) float64 {
	base := defaultBaseWeight
	for _, a := range w.base {
		if a.Phrase == phrase {
			base = a.Weight
			break
		}
	}
	return w.weightFor(phrase, base, w.now())
}

func (w *Weighter) weightFor(phrase string, baseWeight float64, now time.Time) float64 {
	p := w.params
	s, ok := w.stats[phrase]
	if !ok {
		return clampWeight(baseWeight, p)
	}

	freqNorm := p.FreqNorm
	if freqNorm <= 0 {
		freqNorm = 1e-9
	}
	freqTerm := math.Tanh(float64(s.Count)/freqNorm) * p.FreqGain
	effectTerm := s.EMAEffect * p.EffectGain

	staleTerm := 0.0
	if !s.LastSeen.IsZero() {
		hours := now.Sub(s.LastSeen).Hours()
		if hours > 0 {
			staleTerm = -p.StalenessPenaltyPerHour * hours
		}
	}

	return clampWeight(baseWeight+freqTerm+effectTerm+staleTerm, p)
}

func clampWeight(v float64, p Params) float64 {
	if v < p.MinWeight {
		return p.MinWeight
	}
	if v > p.MaxWeight {
		return p.MaxWeight
	}
	return v
}

// WeightedAnchors returns the canonical anchors with weights replaced by
// the current dynamic weights. Phrase and category are untouched; only
// canonical phrases are ever returned.
func (w *Weighter) WeightedAnchors() []Anchor {
	now := w.now()
	out := make([]Anchor, len(w.base))
	for i, a := range w.base {
		out[i] = Anchor{
			Phrase:   a.Phrase,
			Category: a.Category,
			Weight:   w.weightFor(a.Phrase, a.Weight, now),
		}
	}
	return out
}

// #endregion weighter

// #region snapshot

// Snapshot is the serializable weighter state: params plus all accumulated
// stats, keyed by phrase. Round-trips without loss.
type Snapshot struct {
	Params Params           `json:"params"`
	Stats  map[string]Stats `json:"stats"`
}

// Snapshot captures the weighter's full learned state.
func (w *Weighter) Snapshot() Snapshot {
	stats := make(map[string]Stats, len(w.stats))
	for k, v := range w.stats {
		stats[k] = *v
	}
	return Snapshot{Params: w.params, Stats: stats}
}

// FromSnapshot rebuilds a weighter over base from a serialized snapshot.
func FromSnapshot(base []Anchor, snap Snapshot) *Weighter {
	w := NewWeighter(base, snap.Params)
	for k, v := range snap.Stats {
		s := v
		if s.Phrase == "" {
			s.Phrase = k
		}
		w.stats[k] = &s
	}
	return w
}

// MarshalSnapshot serializes the weighter state to JSON.
func (w *Weighter) MarshalSnapshot() ([]byte, error) {
	data, err := json.Marshal(w.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("marshal weighter snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot rebuilds a weighter over base from snapshot JSON.
func UnmarshalSnapshot(base []Anchor, data []byte) (*Weighter, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal weighter snapshot: %w", err)
	}
	return FromSnapshot(base, snap), nil
}

// #endregion snapshot
