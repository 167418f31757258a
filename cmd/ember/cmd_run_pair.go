package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zackbrooks84/Ember/internal/anchor"
	"github.com/zackbrooks84/Ember/internal/drift"
	"github.com/zackbrooks84/Ember/internal/embed"
	"github.com/zackbrooks84/Ember/internal/endpoint"
	"github.com/zackbrooks84/Ember/internal/harness"
	"github.com/zackbrooks84/Ember/internal/runio"
	"github.com/zackbrooks84/Ember/internal/stats"
	"github.com/zackbrooks84/Ember/internal/store"
)

func newRunPairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-pair",
		Short: "Run identity and null arms over a transcript and evaluate endpoints",
		Long: `run-pair embeds a transcript twice: once as given (identity arm) and
once stride-subsampled and shuffled (null arm). Both arms are persisted,
the stability endpoints are evaluated over the pair, and the flat
evaluation summary is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			transcriptPath, _ := cmd.Flags().GetString("transcript")
			provider, _ := cmd.Flags().GetString("provider")
			seed, _ := cmd.Flags().GetInt64("seed")
			outDir, _ := cmd.Flags().GetString("out-dir")

			lines, err := readTranscript(transcriptPath)
			if err != nil {
				return err
			}

			embedder := embed.NewHashProvider(cfg.Harness.Dim)
			params := harness.Params{
				K:      cfg.Harness.K,
				M:      cfg.Harness.M,
				EpsXi:  cfg.Harness.EpsXi,
				EpsLVS: cfg.Harness.EpsLVS,
			}

			identity, null, err := harness.RunPair(cmd.Context(), embedder, lines,
				provider, cfg.Harness.Stride, seed, params)
			if err != nil {
				return err
			}

			result := endpoint.Evaluate(identity.Xi, null.Xi, identity.Pt, null.Pt)
			summary := runio.EvalSummary{
				Result: result,
				Provenance: runio.Provenance{
					Tlock:  identity.Tlock,
					K:      params.K,
					M:      params.M,
					EpsXi:  params.EpsXi,
					EpsLVS: params.EpsLVS,
				},
			}
			summaryJSON, err := json.Marshal(summary)
			if err != nil {
				return fmt.Errorf("marshal summary: %w", err)
			}

			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			identityRec, err := st.CreateRun(store.RunRecord{
				RunType: "identity", Provider: provider, Seed: seed, Tlock: identity.Tlock,
			}, identity.Rows)
			if err != nil {
				return err
			}
			nullRec, err := st.CreateRun(store.RunRecord{
				RunType: "null", Provider: provider, Seed: seed, Tlock: null.Tlock,
			}, null.Rows)
			if err != nil {
				return err
			}
			evalRec, err := st.RecordEvaluation(identityRec.RunID, nullRec.RunID, string(summaryJSON))
			if err != nil {
				return err
			}

			logger.Info("run pair evaluated",
				"eval_id", evalRec.EvalID,
				"identity_run", identityRec.RunID,
				"null_run", nullRec.RunID,
				"t_lock", identity.Tlock,
				"e1_pass", result.E1Pass,
				"e3_pass", result.E3Pass,
			)

			if err := observeAnchors(st, logger, lines, identity.Xi, params.K); err != nil {
				return err
			}

			if outDir != "" {
				if err := runio.WriteTurnCSV(filepath.Join(outDir, "identity.csv"), identity.Rows); err != nil {
					return err
				}
				if err := runio.WriteTurnCSV(filepath.Join(outDir, "null.csv"), null.Rows); err != nil {
					return err
				}
				if err := runio.WriteJSON(filepath.Join(outDir, "eval.json"), summary); err != nil {
					return err
				}
			}

			return printSummary(cmd, summaryJSON, result)
		},
	}

	cmd.Flags().String("transcript", "", "Path to transcript file, one turn per line")
	cmd.Flags().String("provider", "hash", "Embedding provider label")
	cmd.Flags().Int64("seed", 7, "Seed for the null arm shuffle")
	cmd.Flags().String("out-dir", "", "Directory for per-arm CSVs and the evaluation JSON")
	cmd.MarkFlagRequired("transcript")
	return cmd
}

// observeAnchors folds canonical anchors detected in the transcript into
// the weighter. The evidence pair is the identity arm's early versus late
// drift: first-k median as before, last-k median as after, so a run whose
// drift declines credits the anchors that appeared in it.
func observeAnchors(st *store.Store, logger *slog.Logger, lines []string, xi []float64, k int) error {
	detected := anchor.Find(lines...)
	if len(detected) == 0 || len(xi) == 0 {
		return nil
	}

	w, err := loadWeighter(st)
	if err != nil {
		return err
	}

	if k < 1 || k > len(xi) {
		k = len(xi)
	}
	before := stats.Median(xi[:k])
	after := drift.LastKMedian(xi, k)
	evidence := anchor.Evidence{
		XiBefore:  &before,
		XiAfter:   &after,
		Timestamp: time.Now().UTC(),
	}
	for _, a := range detected {
		w.Observe(a.Phrase, evidence)
	}

	data, err := w.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := st.SaveWeighterSnapshot(string(data)); err != nil {
		return err
	}

	logger.Info("anchors observed",
		"count", len(detected),
		"xi_first_median", before,
		"xi_last_median", after,
	)
	return nil
}

// readTranscript loads one turn per line, skipping blank lines.
func readTranscript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("transcript %s has no turns", path)
	}
	return lines, nil
}

func printSummary(cmd *cobra.Command, summaryJSON []byte, result endpoint.Result) error {
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		fmt.Fprintln(cmd.OutOrStdout(), string(summaryJSON))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"E1 pass=%v (identity median %.4f vs null median %.4f)\nE3 pass=%v (Pt trend identity %.4f vs null %.4f)\nMann-Whitney U=%.2f p=%.4f, Cliff's delta=%.3f\n",
		result.E1Pass, result.E1IdentityMedianXiLast10, result.E1NullMedianXiLast10,
		result.E3Pass, result.PtTrendIdentity, result.PtTrendNull,
		result.MannWhitneyU, result.MannWhitneyP, result.CliffsDeltaNullVsIdentity)
	return nil
}
