package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zackbrooks84/Ember/internal/embed"
	"github.com/zackbrooks84/Ember/internal/replay"
	"github.com/zackbrooks84/Ember/internal/store"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-evaluate stored run pairs or run a fixture file",
		Long: `replay recomputes endpoint evaluations. Without flags it re-runs the
most recent stored pairs from their persisted per-turn rows and reports
whether the pass flags still match. With --fixture it runs a
self-contained JSON case instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			if fixturePath, _ := cmd.Flags().GetString("fixture"); fixturePath != "" {
				return runFixture(cmd, cfg.Harness.Dim, fixturePath)
			}

			limit, _ := cmd.Flags().GetInt("limit")
			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			results, err := replay.Replay(st, limit)
			if err != nil {
				return err
			}
			summary := replay.Summarize(results)

			for _, r := range results {
				if r.Err != nil {
					logger.Warn("pair skipped", "eval_id", r.EvalID, "error", r.Err)
				}
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"pairs=%d recomputed=%d failed=%d mismatches=%d E1=%d E3=%d\n",
				summary.Total, summary.Recomputed, summary.Failed,
				summary.Mismatches, summary.E1Passes, summary.E3Passes)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Number of recent evaluations to replay")
	cmd.Flags().String("fixture", "", "Run this JSON fixture instead of the store")
	return cmd
}

func runFixture(cmd *cobra.Command, dim int, path string) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	out, err := f.Run(cmd.Context(), embed.NewHashProvider(dim), "hash")
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"description": out.Description,
			"result":      out.Result,
			"t_lock":      out.Identity.Tlock,
			"matches":     out.Matches,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nE1=%v E3=%v Tlock=%d expectations matched=%v\n",
		out.Description, out.Result.E1Pass, out.Result.E3Pass, out.Identity.Tlock, out.Matches)
	return nil
}
