// Package sim generates controlled synthetic Ψ(t) trajectories under
// competing stabilizing (anchor) and destabilizing (attack) event
// processes. A deterministic cubic baseline plus seeded Gaussian noise
// drives the scalar state; anchors pull Ψ toward the target Φ, attacks
// push it away. The resulting ξ series validates the drift metric and the
// endpoint evaluator under known dynamics.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/zackbrooks84/Ember/internal/drift"
)

// #region params

// Poly holds cubic baseline coefficients: Ψ(t) = a·t³ + b·t² + c·t + d.
// Defaults are the empirical stabilization curve.
type Poly struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
	C float64 `json:"c" yaml:"c"`
	D float64 `json:"d" yaml:"d"`
}

// Value evaluates the polynomial at t.
func (p Poly) Value(t float64) float64 {
	return ((p.A*t+p.B)*t+p.C)*t + p.D
}

// DefaultPoly returns the empirical cubic coefficients.
func DefaultPoly() Poly {
	return Poly{A: 0.0072, B: -0.144, C: 0.72, D: 0.0}
}

// Params configures one simulation run. Passed by value; Simulate never
// mutates it.
type Params struct {
	Steps int     `json:"steps" yaml:"steps"`
	Dt    float64 `json:"dt" yaml:"dt"`
	Phi   float64 `json:"phi" yaml:"phi"`
	Poly  Poly    `json:"poly" yaml:"poly"`
	Seed  int64   `json:"seed" yaml:"seed"`

	// Noise and per-step event probabilities.
	NoiseSigma    float64 `json:"noise_sigma" yaml:"noise_sigma"`
	AnchorDensity float64 `json:"anchor_density" yaml:"anchor_density"`
	AttackRate    float64 `json:"attack_rate" yaml:"attack_rate"`

	// Event strengths.
	AnchorPull float64 `json:"anchor_pull" yaml:"anchor_pull"`
	AttackPush float64 `json:"attack_push" yaml:"attack_push"`

	// Ψ clamps.
	MinPsi float64 `json:"min_psi" yaml:"min_psi"`
	MaxPsi float64 `json:"max_psi" yaml:"max_psi"`
}

// DefaultParams returns the reference simulation configuration.
func DefaultParams() Params {
	return Params{
		Steps:         60,
		Dt:            0.25,
		Phi:           1.0,
		Poly:          DefaultPoly(),
		Seed:          7,
		NoiseSigma:    0.02,
		AnchorDensity: 0.25,
		AttackRate:    0.10,
		AnchorPull:    0.08,
		AttackPush:    0.10,
		MinPsi:        0.0,
		MaxPsi:        1.2,
	}
}

// Validate checks parameter ranges. It runs before simulation starts so a
// bad configuration never yields partial output.
func (p Params) Validate() error {
	if p.Steps < 2 {
		return fmt.Errorf("steps must be at least 2, got %d", p.Steps)
	}
	if p.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", p.Dt)
	}
	if p.NoiseSigma < 0 {
		return fmt.Errorf("noise_sigma must be non-negative, got %g", p.NoiseSigma)
	}
	if p.AnchorDensity < 0 || p.AnchorDensity > 1 {
		return fmt.Errorf("anchor_density must be in [0, 1], got %g", p.AnchorDensity)
	}
	if p.AttackRate < 0 || p.AttackRate > 1 {
		return fmt.Errorf("attack_rate must be in [0, 1], got %g", p.AttackRate)
	}
	if p.MinPsi >= p.MaxPsi {
		return fmt.Errorf("min_psi %g must be below max_psi %g", p.MinPsi, p.MaxPsi)
	}
	return nil
}

// #endregion params

// #region output

// Output bundles a completed run: time axis, Ψ trajectory, ξ series, the
// step indices where events fired, and a ξ summary.
type Output struct {
	T         []float64     `json:"t"`
	Psi       []float64     `json:"psi"`
	Xi        []float64     `json:"xi"`
	AnchorsAt []int         `json:"anchors_at"`
	AttacksAt []int         `json:"attacks_at"`
	Summary   drift.Summary `json:"summary"`
}

// #endregion output

// #region simulate

// Simulate runs a full Ψ(t) → Φ simulation. Identical Params (including
// Seed) reproduce the identical event draws, noise samples and output.
//
// Per step i in 1..Steps-1: start from the cubic baseline plus Gaussian
// noise; with probability AnchorDensity pull Ψ toward Φ by AnchorPull;
// with probability AttackRate push Ψ away from Φ by AttackPush (direction
// chosen to increase distance from Φ). Both events are independent draws
// and may fire on the same step; the attack applies after the anchor.
// Ψ is clamped into [MinPsi, MaxPsi] before commit.
func Simulate(params Params) (Output, error) {
	if err := params.Validate(); err != nil {
		return Output{}, fmt.Errorf("sim params: %w", err)
	}

	rng := rand.New(rand.NewSource(params.Seed))

	t := make([]float64, params.Steps)
	psi := make([]float64, params.Steps)
	for i := 0; i < params.Steps; i++ {
		t[i] = float64(i) * params.Dt
		psi[i] = params.Poly.Value(t[i])
	}

	var anchorsAt, attacksAt []int
	for i := 1; i < params.Steps; i++ {
		value := psi[i] + rng.NormFloat64()*params.NoiseSigma

		if rng.Float64() < params.AnchorDensity {
			anchorsAt = append(anchorsAt, i)
			value += (params.Phi - value) * params.AnchorPull
		}

		if rng.Float64() < params.AttackRate {
			attacksAt = append(attacksAt, i)
			// Above Φ pushes down, at or below Φ pushes up.
			if value > params.Phi {
				value -= params.AttackPush
			} else {
				value += params.AttackPush
			}
		}

		psi[i] = clamp(value, params.MinPsi, params.MaxPsi)
	}

	xi, err := drift.ComputeXiScalar(psi)
	if err != nil {
		return Output{}, fmt.Errorf("compute xi: %w", err)
	}

	return Output{
		T:         t,
		Psi:       psi,
		Xi:        xi,
		AnchorsAt: anchorsAt,
		AttacksAt: attacksAt,
		Summary:   drift.StabilizationSummary(xi, 1),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion simulate
