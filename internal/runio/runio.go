// Package runio reads and writes the tabular boundary formats: per-turn
// CSV rows for one experiment arm and flat JSON evaluation summaries.
// The CSV loader is tolerant in the same way the evaluator is: blank or
// malformed xi/Pt cells (xi is always blank at t=0) are treated as
// absent, never as zero.
package runio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zackbrooks84/Ember/internal/endpoint"
)

// #region rows

// TurnRow is one per-turn record of an experiment arm. Xi, Pt and EwmaXi
// are nil when the cell is absent.
type TurnRow struct {
	T        int
	Xi       *float64
	LVS      float64
	Pt       *float64
	EwmaXi   *float64
	RunType  string // "identity" | "null"
	Provider string
}

var csvHeader = []string{"t", "xi", "lvs", "Pt", "ewma_xi", "run_type", "provider"}

// WriteTurnCSV writes rows to path, creating parent directories.
func WriteTurnCSV(path string, rows []TurnRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.T),
			formatOpt(r.Xi),
			formatFloat(r.LVS),
			formatOpt(r.Pt),
			formatOpt(r.EwmaXi),
			r.RunType,
			r.Provider,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row t=%d: %w", r.T, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadTurnCSV reads per-turn rows from path. Columns are located by
// header name so column order does not matter. Blank or unparsable
// optional cells come back nil.
func ReadTurnCSV(path string) ([]TurnRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}

	rows := make([]TurnRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		var row TurnRow
		row.T, _ = strconv.Atoi(get("t"))
		row.Xi = parseOpt(get("xi"))
		if v, err := strconv.ParseFloat(get("lvs"), 64); err == nil {
			row.LVS = v
		}
		row.Pt = parseOpt(get("Pt"))
		row.EwmaXi = parseOpt(get("ewma_xi"))
		row.RunType = get("run_type")
		row.Provider = get("provider")
		rows = append(rows, row)
	}
	return rows, nil
}

// XiSeries collects the present xi values of rows, in order.
func XiSeries(rows []TurnRow) []float64 {
	return collect(rows, func(r TurnRow) *float64 { return r.Xi })
}

// PtSeries collects the present Pt values of rows, in order.
func PtSeries(rows []TurnRow) []float64 {
	return collect(rows, func(r TurnRow) *float64 { return r.Pt })
}

func collect(rows []TurnRow, field func(TurnRow) *float64) []float64 {
	var out []float64
	for _, r := range rows {
		if v := field(r); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOpt(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// #endregion rows

// #region summary

// Provenance carries upstream run metadata through the evaluation summary
// untouched. The evaluator never interprets these fields.
type Provenance struct {
	Tlock  int     `json:"Tlock"`
	K      int     `json:"k"`
	M      int     `json:"m"`
	EpsXi  float64 `json:"eps_xi"`
	EpsLVS float64 `json:"eps_lvs"`
}

// EvalSummary is the flat evaluation summary: every endpoint result field
// plus the provenance fields, all at the top level.
type EvalSummary struct {
	Result     endpoint.Result
	Provenance Provenance
}

// MarshalJSON flattens result and provenance into a single object.
func (s EvalSummary) MarshalJSON() ([]byte, error) {
	resultJSON, err := json.Marshal(s.Result)
	if err != nil {
		return nil, err
	}
	flat := make(map[string]any)
	if err := json.Unmarshal(resultJSON, &flat); err != nil {
		return nil, err
	}

	provJSON, err := json.Marshal(s.Provenance)
	if err != nil {
		return nil, err
	}
	prov := make(map[string]any)
	if err := json.Unmarshal(provJSON, &prov); err != nil {
		return nil, err
	}
	for k, v := range prov {
		flat[k] = v
	}
	return json.Marshal(flat)
}

// WriteJSON writes v as indented JSON to path, creating parent
// directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// #endregion summary
