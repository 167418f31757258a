// Package store persists experiment runs, their per-turn rows, evaluation
// outcomes and salience-weighter snapshots in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zackbrooks84/Ember/internal/runio"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	run_type     TEXT NOT NULL,
	provider     TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	t_lock       INTEGER NOT NULL DEFAULT -1,
	params_json  TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	run_id   TEXT NOT NULL,
	t        INTEGER NOT NULL,
	xi       REAL,
	lvs      REAL NOT NULL,
	pt       REAL,
	ewma_xi  REAL,
	PRIMARY KEY (run_id, t),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
	eval_id          TEXT PRIMARY KEY,
	identity_run_id  TEXT NOT NULL,
	null_run_id      TEXT NOT NULL,
	summary_json     TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	FOREIGN KEY (identity_run_id) REFERENCES runs(run_id),
	FOREIGN KEY (null_run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS weighter_snapshots (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_json  TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
`
// #endregion schema

// #region records
// RunRecord describes one stored experiment arm.
type RunRecord struct {
	RunID      string
	RunType    string // "identity" | "null"
	Provider   string
	Seed       int64
	Tlock      int
	ParamsJSON string
	CreatedAt  time.Time
}

// EvalRecord is one stored endpoint evaluation over a run pair.
type EvalRecord struct {
	EvalID        string
	IdentityRunID string
	NullRunID     string
	SummaryJSON   string
	CreatedAt     time.Time
}
// #endregion records

// #region store-struct
// Store manages run history in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region create-run
// CreateRun inserts a run and its per-turn rows in one transaction. The
// returned record carries the generated run ID.
func (s *Store) CreateRun(rec RunRecord, rows []runio.TurnRow) (RunRecord, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return RunRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var paramsPtr interface{}
	if rec.ParamsJSON != "" {
		paramsPtr = rec.ParamsJSON
	}

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, run_type, provider, seed, t_lock, params_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.RunType, rec.Provider, rec.Seed, rec.Tlock, paramsPtr,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO turns (run_id, t, xi, lvs, pt, ewma_xi) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("prepare turns: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(
			rec.RunID, row.T, optFloat(row.Xi), row.LVS, optFloat(row.Pt), optFloat(row.EwmaXi),
		); err != nil {
			return RunRecord{}, fmt.Errorf("insert turn t=%d: %w", row.T, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return RunRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}
// #endregion create-run

// #region get-run
// GetRun retrieves a run record by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	var paramsJSON sql.NullString
	var createdStr string

	err := s.db.QueryRow(
		`SELECT run_id, run_type, provider, seed, t_lock, params_json, created_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.RunType, &rec.Provider, &rec.Seed, &rec.Tlock, &paramsJSON, &createdStr)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	if paramsJSON.Valid {
		rec.ParamsJSON = paramsJSON.String
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}
// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, run_type, provider, seed, t_lock, params_json, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var paramsJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.RunID, &rec.RunType, &rec.Provider, &rec.Seed,
			&rec.Tlock, &paramsJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if paramsJSON.Valid {
			rec.ParamsJSON = paramsJSON.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-runs

// #region get-turns
// GetTurns retrieves the per-turn rows of a run in turn order. Run type
// and provider are filled from the run record.
func (s *Store) GetTurns(runID string) ([]runio.TurnRow, error) {
	rec, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT t, xi, lvs, pt, ewma_xi FROM turns WHERE run_id = ? ORDER BY t`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get turns %s: %w", runID, err)
	}
	defer rows.Close()

	var out []runio.TurnRow
	for rows.Next() {
		var row runio.TurnRow
		var xi, pt, ewma sql.NullFloat64
		if err := rows.Scan(&row.T, &xi, &row.LVS, &pt, &ewma); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		row.Xi = nullFloat(xi)
		row.Pt = nullFloat(pt)
		row.EwmaXi = nullFloat(ewma)
		row.RunType = rec.RunType
		row.Provider = rec.Provider
		out = append(out, row)
	}
	return out, rows.Err()
}
// #endregion get-turns

// #region record-evaluation
// RecordEvaluation stores an endpoint evaluation over a run pair.
func (s *Store) RecordEvaluation(identityRunID, nullRunID, summaryJSON string) (EvalRecord, error) {
	rec := EvalRecord{
		EvalID:        uuid.New().String(),
		IdentityRunID: identityRunID,
		NullRunID:     nullRunID,
		SummaryJSON:   summaryJSON,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO evaluations (eval_id, identity_run_id, null_run_id, summary_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.EvalID, rec.IdentityRunID, rec.NullRunID, rec.SummaryJSON,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return EvalRecord{}, fmt.Errorf("insert evaluation: %w", err)
	}
	return rec, nil
}
// #endregion record-evaluation

// #region list-evaluations
// ListEvaluations returns the most recent evaluations.
func (s *Store) ListEvaluations(limit int) ([]EvalRecord, error) {
	rows, err := s.db.Query(
		`SELECT eval_id, identity_run_id, null_run_id, summary_json, created_at
		 FROM evaluations ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var records []EvalRecord
	for rows.Next() {
		var rec EvalRecord
		var createdStr string
		if err := rows.Scan(&rec.EvalID, &rec.IdentityRunID, &rec.NullRunID,
			&rec.SummaryJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-evaluations

// #region weighter-snapshots
// SaveWeighterSnapshot appends a serialized salience-weighter state.
func (s *Store) SaveWeighterSnapshot(snapshotJSON string) error {
	_, err := s.db.Exec(
		`INSERT INTO weighter_snapshots (snapshot_json, created_at) VALUES (?, ?)`,
		snapshotJSON, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestWeighterSnapshot returns the most recent snapshot, or sql.ErrNoRows
// when none has been saved.
func (s *Store) LatestWeighterSnapshot() (string, error) {
	var snapshotJSON string
	err := s.db.QueryRow(
		`SELECT snapshot_json FROM weighter_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&snapshotJSON)
	if err != nil {
		return "", fmt.Errorf("latest snapshot: %w", err)
	}
	return snapshotJSON, nil
}
// #endregion weighter-snapshots

// #region null-helpers
func optFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
// #endregion null-helpers
