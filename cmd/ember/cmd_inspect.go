package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zackbrooks84/Ember/internal/store"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect stored runs and evaluations",
	}
	cmd.AddCommand(newInspectRunsCmd(), newInspectEvalsCmd(), newInspectTurnsCmd())
	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return store.NewStore(cfg.DBPath)
}

func newInspectRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := st.ListRuns(limit)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(runs)
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %-6s  seed=%-4d Tlock=%-3d  %s\n",
					r.RunID, r.RunType, r.Provider, r.Seed, r.Tlock,
					r.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of runs to list")
	return cmd
}

func newInspectEvalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evals",
		Short: "List recent endpoint evaluations",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			evals, err := st.ListEvaluations(limit)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(evals)
			}
			for _, e := range evals {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  identity=%s null=%s  %s\n  %s\n",
					e.EvalID, e.IdentityRunID, e.NullRunID,
					e.CreatedAt.Format(time.RFC3339), e.SummaryJSON)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of evaluations to list")
	return cmd
}

func newInspectTurnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "turns <run-id>",
		Short: "Show the per-turn rows of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.GetTurns(args[0])
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(rows)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "t\txi\tlvs\tPt\tewma_xi")
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%.4f\t%s\t%s\n",
					r.T, optCell(r.Xi), r.LVS, optCell(r.Pt), optCell(r.EwmaXi))
			}
			return nil
		},
	}
}

func optCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
