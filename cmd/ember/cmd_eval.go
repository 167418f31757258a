package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zackbrooks84/Ember/internal/endpoint"
	"github.com/zackbrooks84/Ember/internal/runio"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate stability endpoints over two per-turn CSV files",
		Long: `eval loads an identity arm and a null arm from per-turn CSVs and
computes the stability endpoints: last-10 median drift comparison (E1),
anchor-alignment trend comparison (E3), Mann-Whitney U and Cliff's
delta. Blank cells are treated as absent, never as zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			identityPath, _ := cmd.Flags().GetString("identity")
			nullPath, _ := cmd.Flags().GetString("null")
			tlock, _ := cmd.Flags().GetInt("tlock")
			outPath, _ := cmd.Flags().GetString("out")

			identityRows, err := runio.ReadTurnCSV(identityPath)
			if err != nil {
				return err
			}
			nullRows, err := runio.ReadTurnCSV(nullPath)
			if err != nil {
				return err
			}

			result := endpoint.Evaluate(
				runio.XiSeries(identityRows), runio.XiSeries(nullRows),
				runio.PtSeries(identityRows), runio.PtSeries(nullRows),
			)
			summary := runio.EvalSummary{
				Result: result,
				Provenance: runio.Provenance{
					Tlock:  tlock,
					K:      cfg.Harness.K,
					M:      cfg.Harness.M,
					EpsXi:  cfg.Harness.EpsXi,
					EpsLVS: cfg.Harness.EpsLVS,
				},
			}

			if outPath != "" {
				if err := runio.WriteJSON(outPath, summary); err != nil {
					return err
				}
			}

			summaryJSON, err := json.Marshal(summary)
			if err != nil {
				return fmt.Errorf("marshal summary: %w", err)
			}
			return printSummary(cmd, summaryJSON, result)
		},
	}

	cmd.Flags().String("identity", "", "Identity arm per-turn CSV")
	cmd.Flags().String("null", "", "Null arm per-turn CSV")
	cmd.Flags().Int("tlock", -1, "Lock-in turn to carry into the summary")
	cmd.Flags().String("out", "", "Write the evaluation summary JSON to this path")
	cmd.MarkFlagRequired("identity")
	cmd.MarkFlagRequired("null")
	return cmd
}
