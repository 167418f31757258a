package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zackbrooks84/Ember/internal/anchor"
	"github.com/zackbrooks84/Ember/internal/store"
	"github.com/zackbrooks84/Ember/internal/telemetry"
)

func newWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show effective anchor weights",
		Long: `weights prints the canonical anchors with their current effective
weights. The weighter state is loaded from the latest stored snapshot
when one exists. With --observe an anchor observation is folded in and
a new snapshot is saved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			w, err := loadWeighter(st)
			if err != nil {
				return err
			}

			if phrase, _ := cmd.Flags().GetString("observe"); phrase != "" {
				// Unset flags stay nil so a bare --observe is a
				// frequency-only observation.
				ev := anchor.Evidence{Timestamp: time.Now().UTC()}
				if cmd.Flags().Changed("xi-before") {
					xiBefore, _ := cmd.Flags().GetFloat64("xi-before")
					ev.XiBefore = &xiBefore
				}
				if cmd.Flags().Changed("xi-after") {
					xiAfter, _ := cmd.Flags().GetFloat64("xi-after")
					ev.XiAfter = &xiAfter
				}
				w.Observe(phrase, ev)
				data, err := w.MarshalSnapshot()
				if err != nil {
					return fmt.Errorf("marshal snapshot: %w", err)
				}
				if err := st.SaveWeighterSnapshot(string(data)); err != nil {
					return err
				}
				fields := map[string]any{
					"phrase": phrase,
					"weight": w.WeightFor(phrase),
				}
				if ev.XiBefore != nil {
					fields["xi_before"] = *ev.XiBefore
				}
				if ev.XiAfter != nil {
					fields["xi_after"] = *ev.XiAfter
				}
				events := telemetry.NewEventLog(cfg.Logging.EventLog)
				events.Log("anchor_observation", fields)
				events.Close()
				logger.Info("anchor observation recorded", "phrase", phrase)
			}

			if exportPath, _ := cmd.Flags().GetString("export"); exportPath != "" {
				data, err := w.MarshalSnapshot()
				if err != nil {
					return fmt.Errorf("marshal snapshot: %w", err)
				}
				if err := os.WriteFile(exportPath, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
			}

			weighted := w.WeightedAnchors()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(weighted)
			}
			for _, a := range weighted {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s  %.3f  %s\n", a.Category, a.Weight, a.Phrase)
			}
			return nil
		},
	}

	cmd.Flags().String("observe", "", "Anchor phrase to record an observation for")
	cmd.Flags().Float64("xi-before", 0, "Drift before the anchor fired")
	cmd.Flags().Float64("xi-after", 0, "Drift after the anchor fired")
	cmd.Flags().String("export", "", "Write the weighter snapshot JSON to this path")
	return cmd
}

// loadWeighter restores the latest snapshot, or starts fresh when the
// store has none.
func loadWeighter(st *store.Store) (*anchor.Weighter, error) {
	snapshotJSON, err := st.LatestWeighterSnapshot()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return anchor.NewWeighter(anchor.Canonical(), anchor.DefaultParams()), nil
		}
		return nil, err
	}
	w, err := anchor.UnmarshalSnapshot(anchor.Canonical(), []byte(snapshotJSON))
	if err != nil {
		return nil, fmt.Errorf("restore weighter: %w", err)
	}
	return w, nil
}
