package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/zackbrooks84/Ember/internal/embed"
	"github.com/zackbrooks84/Ember/internal/endpoint"
	"github.com/zackbrooks84/Ember/internal/harness"
)

// #region fixture-types

// Fixture is a self-contained evaluation case: one transcript, the null
// protocol settings, lock-in thresholds and the expected endpoint flags.
type Fixture struct {
	Description string          `json:"description"`
	Transcript  []string        `json:"transcript"`
	Stride      int             `json:"stride"`
	Seed        int64           `json:"seed"`
	Params      FixtureParams   `json:"params"`
	Expected    FixtureExpected `json:"expected"`
}

// FixtureParams mirrors harness.Params with JSON tags.
type FixtureParams struct {
	K      int     `json:"k"`
	M      int     `json:"m"`
	EpsXi  float64 `json:"eps_xi"`
	EpsLVS float64 `json:"eps_lvs"`
}

// FixtureExpected captures the expected endpoint flags.
type FixtureExpected struct {
	E1Pass bool `json:"E1_pass"`
	E3Pass bool `json:"E3_pass"`
}

// FixtureOutcome is the result of running one fixture.
type FixtureOutcome struct {
	Description string
	Result      endpoint.Result
	Identity    harness.ArmResult
	Null        harness.ArmResult
	Matches     bool
}

// #endregion fixture-types

// #region fixture-run

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Transcript) == 0 {
		return nil, fmt.Errorf("fixture %s: empty transcript", path)
	}
	return &f, nil
}

// HarnessParams converts the fixture thresholds, falling back to defaults
// for unset fields.
func (f *Fixture) HarnessParams() harness.Params {
	p := harness.DefaultParams()
	if f.Params.K > 0 {
		p.K = f.Params.K
	}
	if f.Params.M > 0 {
		p.M = f.Params.M
	}
	if f.Params.EpsXi > 0 {
		p.EpsXi = f.Params.EpsXi
	}
	if f.Params.EpsLVS > 0 {
		p.EpsLVS = f.Params.EpsLVS
	}
	return p
}

// Run executes the fixture's identity and null arms and evaluates the
// endpoints against the fixture's expectations.
func (f *Fixture) Run(ctx context.Context, e embed.Embedder, provider string) (FixtureOutcome, error) {
	stride := f.Stride
	if stride < 1 {
		stride = 1
	}
	identity, null, err := harness.RunPair(ctx, e, f.Transcript, provider, stride, f.Seed, f.HarnessParams())
	if err != nil {
		return FixtureOutcome{}, fmt.Errorf("run fixture: %w", err)
	}

	result := endpoint.Evaluate(identity.Xi, null.Xi, identity.Pt, null.Pt)
	return FixtureOutcome{
		Description: f.Description,
		Result:      result,
		Identity:    identity,
		Null:        null,
		Matches:     result.E1Pass == f.Expected.E1Pass && result.E3Pass == f.Expected.E3Pass,
	}, nil
}

// #endregion fixture-run
