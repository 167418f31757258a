package sim

import (
	"math"
	"testing"
)

func TestSimulateDeterministicForSeed(t *testing.T) {
	params := DefaultParams()

	a, err := Simulate(params)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := Simulate(params)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(a.Psi) != len(b.Psi) {
		t.Fatalf("psi lengths differ: %d vs %d", len(a.Psi), len(b.Psi))
	}
	for i := range a.Psi {
		if a.Psi[i] != b.Psi[i] {
			t.Fatalf("psi[%d] differs: %v vs %v", i, a.Psi[i], b.Psi[i])
		}
	}
	for i := range a.Xi {
		if a.Xi[i] != b.Xi[i] {
			t.Fatalf("xi[%d] differs: %v vs %v", i, a.Xi[i], b.Xi[i])
		}
	}
	if len(a.AnchorsAt) != len(b.AnchorsAt) || len(a.AttacksAt) != len(b.AttacksAt) {
		t.Fatal("event indices differ between identical runs")
	}
	for i := range a.AnchorsAt {
		if a.AnchorsAt[i] != b.AnchorsAt[i] {
			t.Fatalf("anchor index %d differs", i)
		}
	}
}

func TestSimulateSeedChangesDraws(t *testing.T) {
	p1 := DefaultParams()
	p2 := DefaultParams()
	p2.Seed = 99

	a, err := Simulate(p1)
	if err != nil {
		t.Fatalf("seed 7: %v", err)
	}
	b, err := Simulate(p2)
	if err != nil {
		t.Fatalf("seed 99: %v", err)
	}

	same := true
	for i := range a.Psi {
		if a.Psi[i] != b.Psi[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical trajectories")
	}
}

func TestSimulateClampsPsi(t *testing.T) {
	params := DefaultParams()
	params.NoiseSigma = 0.5
	params.AttackRate = 1.0
	params.AttackPush = 2.0
	params.Steps = 200

	out, err := Simulate(params)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for i, v := range out.Psi {
		if v < params.MinPsi || v > params.MaxPsi {
			t.Fatalf("psi[%d] = %v outside [%v, %v]", i, v, params.MinPsi, params.MaxPsi)
		}
	}
}

func TestSimulateNoNoiseNoEventsFollowsBaseline(t *testing.T) {
	params := DefaultParams()
	params.NoiseSigma = 0
	params.AnchorDensity = 0
	params.AttackRate = 0
	params.MaxPsi = 100 // keep the raw cubic unclamped

	out, err := Simulate(params)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	for i, v := range out.Psi {
		want := params.Poly.Value(float64(i) * params.Dt)
		want = clamp(want, params.MinPsi, params.MaxPsi)
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("psi[%d] = %v, want baseline %v", i, v, want)
		}
	}
	if len(out.AnchorsAt) != 0 || len(out.AttacksAt) != 0 {
		t.Fatal("events fired with zero probabilities")
	}
}

func TestSimulateAnchorEffectGradient(t *testing.T) {
	// With noise and attacks off and an anchor on every step, stronger
	// pulls must flatten the trajectory: mean xi ordered none > weak > strong.
	meanXi := func(pull float64) float64 {
		params := DefaultParams()
		params.NoiseSigma = 0
		params.AttackRate = 0
		params.AnchorDensity = 1
		params.AnchorPull = pull
		out, err := Simulate(params)
		if err != nil {
			t.Fatalf("Simulate pull=%g: %v", pull, err)
		}
		return out.Summary.Mean
	}

	none := meanXi(0)
	weak := meanXi(0.1)
	strong := meanXi(0.5)

	if !(strong < weak) {
		t.Errorf("strong pull mean xi %v not below weak %v", strong, weak)
	}
	if !(weak < none) {
		t.Errorf("weak pull mean xi %v not below unanchored %v", weak, none)
	}
}

func TestSimulateOutputShapes(t *testing.T) {
	out, err := Simulate(DefaultParams())
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(out.T) != 60 || len(out.Psi) != 60 {
		t.Fatalf("t/psi lengths = %d/%d, want 60/60", len(out.T), len(out.Psi))
	}
	if len(out.Xi) != 59 {
		t.Fatalf("len(xi) = %d, want 59", len(out.Xi))
	}
	for i, x := range out.Xi {
		if x < 0 {
			t.Fatalf("xi[%d] = %v, want >= 0", i, x)
		}
	}
	for _, idx := range out.AnchorsAt {
		if idx < 1 || idx >= 60 {
			t.Fatalf("anchor index %d out of range", idx)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero steps", func(p *Params) { p.Steps = 0 }},
		{"negative steps", func(p *Params) { p.Steps = -5 }},
		{"one step", func(p *Params) { p.Steps = 1 }},
		{"zero dt", func(p *Params) { p.Dt = 0 }},
		{"negative dt", func(p *Params) { p.Dt = -0.25 }},
		{"negative noise", func(p *Params) { p.NoiseSigma = -0.1 }},
		{"anchor density above 1", func(p *Params) { p.AnchorDensity = 1.5 }},
		{"negative attack rate", func(p *Params) { p.AttackRate = -0.2 }},
		{"inverted clamps", func(p *Params) { p.MinPsi = 2; p.MaxPsi = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			if _, err := Simulate(params); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestDefaultParamsValid(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
}

func TestPolyValue(t *testing.T) {
	p := Poly{A: 1, B: 2, C: 3, D: 4}
	// 1*8 + 2*4 + 3*2 + 4 = 26 at t=2
	if got := p.Value(2); math.Abs(got-26) > 1e-12 {
		t.Fatalf("Value(2) = %v, want 26", got)
	}
}
