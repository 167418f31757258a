package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zackbrooks84/Ember/internal/runio"
	"github.com/zackbrooks84/Ember/internal/sim"
	"github.com/zackbrooks84/Ember/internal/store"
	"github.com/zackbrooks84/Ember/internal/telemetry"
)

func newSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the stabilizer simulation",
		Long: `sim generates a synthetic stabilization trajectory: a cubic baseline
with Gaussian noise, anchor events pulling toward the attractor and
attack events pushing away. The same seed reproduces the same run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			params := cfg.Sim
			flags := cmd.Flags()
			if flags.Changed("steps") {
				params.Steps, _ = flags.GetInt("steps")
			}
			if flags.Changed("seed") {
				params.Seed, _ = flags.GetInt64("seed")
			}
			if flags.Changed("noise-sigma") {
				params.NoiseSigma, _ = flags.GetFloat64("noise-sigma")
			}
			if flags.Changed("anchor-density") {
				params.AnchorDensity, _ = flags.GetFloat64("anchor-density")
			}
			if flags.Changed("attack-rate") {
				params.AttackRate, _ = flags.GetFloat64("attack-rate")
			}

			out, err := sim.Simulate(params)
			if err != nil {
				return err
			}

			emitGlyphs(cfg.Logging.EventLog, out.Xi)

			logger.Info("simulation complete",
				"steps", params.Steps,
				"seed", params.Seed,
				"anchors", len(out.AnchorsAt),
				"attacks", len(out.AttacksAt),
				"final_xi", out.Summary.Final,
			)

			if outPath, _ := flags.GetString("out"); outPath != "" {
				if err := runio.WriteJSON(outPath, out); err != nil {
					return err
				}
			}

			if save, _ := flags.GetBool("store"); save {
				runID, err := storeSimRun(cfg.DBPath, params, out)
				if err != nil {
					return err
				}
				logger.Info("simulation stored", "run_id", runID)
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out.Summary)
			}
			s := out.Summary
			fmt.Fprintf(cmd.OutOrStdout(),
				"steps=%d anchors=%d attacks=%d\nxi mean=%.4f final=%.4f min=%.4f max=%.4f trend=%.4f\n",
				params.Steps, len(out.AnchorsAt), len(out.AttacksAt),
				s.Mean, s.Final, s.Min, s.Max, s.Trend)
			return nil
		},
	}

	d := sim.DefaultParams()
	cmd.Flags().Int("steps", d.Steps, "Number of simulation steps")
	cmd.Flags().Int64("seed", d.Seed, "Random seed")
	cmd.Flags().Float64("noise-sigma", d.NoiseSigma, "Gaussian noise sigma")
	cmd.Flags().Float64("anchor-density", d.AnchorDensity, "Per-step anchor probability")
	cmd.Flags().Float64("attack-rate", d.AttackRate, "Per-step attack probability")
	cmd.Flags().String("out", "", "Write the full trajectory as JSON to this path")
	cmd.Flags().Bool("store", false, "Persist the trajectory as a run in the database")
	return cmd
}

// storeSimRun persists a simulated trajectory as a run. Psi is scalar,
// so the vector-similarity column is pinned to 1.
func storeSimRun(dbPath string, params sim.Params, out sim.Output) (string, error) {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	rows := make([]runio.TurnRow, len(out.Psi))
	for i := range out.Psi {
		rows[i] = runio.TurnRow{T: i, LVS: 1.0, RunType: "sim", Provider: "sim"}
		if i > 0 {
			x := out.Xi[i-1]
			rows[i].Xi = &x
		}
	}

	rec, err := st.CreateRun(store.RunRecord{
		RunType:    "sim",
		Provider:   "sim",
		Seed:       params.Seed,
		Tlock:      -1,
		ParamsJSON: string(paramsJSON),
	}, rows)
	if err != nil {
		return "", err
	}
	return rec.RunID, nil
}

// emitGlyphs writes spike and relief glyph events for each step-to-step
// xi delta that crosses the thresholds.
func emitGlyphs(path string, xi []float64) {
	events := telemetry.NewEventLog(path)
	defer events.Close()
	for i := 1; i < len(xi); i++ {
		g := telemetry.GlyphForXiDelta(xi[i-1], xi[i],
			telemetry.DefaultSpikeThreshold, telemetry.DefaultReliefThreshold)
		if g != "" {
			events.Glyph(g, fmt.Sprintf("t=%d", i+1))
		}
	}
}
