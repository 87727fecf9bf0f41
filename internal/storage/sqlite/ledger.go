package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/timeutil"
)

// Run statuses.
const (
	RunStarted   = "started"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Ledger records iteration runs and the spectra each run selected. It is the
// audit trail of a chain of iterations and outlives any single result
// directory.
type Ledger struct {
	*sql.DB
	clock timeutil.Clock
}

// Run is one row of the runs table.
type Run struct {
	ID          string
	Iteration   int
	ResultDir   string
	ConfigJSON  string
	PoolSize    int
	LabeledSize int
	Status      string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the run is in progress
}

// Selection is one spectrum picked by a run. PredictedLabel is -1 and Entropy
// is zero for zero-iteration picks, which have no prediction.
type Selection struct {
	Set            string
	Position       int
	PoolIndex      int
	Filename       string
	PredictedLabel int
	Entropy        float64
}

// OpenLedger opens (creating if needed) the ledger at path and brings its
// schema up to date.
func OpenLedger(path string) (*Ledger, error) {
	l, err := ConnectLedger(path)
	if err != nil {
		return nil, err
	}
	if err := l.MigrateUp(); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to migrate ledger %s: %w", path, err)
	}
	if version, _, err := l.MigrateVersion(); err == nil {
		monitoring.Logf("ledger %s at schema version %d", path, version)
	}
	return l, nil
}

// ConnectLedger opens the ledger at path without touching its schema. Use it
// for migration commands; everything else should call OpenLedger.
func ConnectLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	return &Ledger{DB: db, clock: timeutil.RealClock{}}, nil
}

// BeginRun inserts a run in the started state and returns its ID.
func (l *Ledger) BeginRun(iteration int, resultDir string, configJSON []byte) (string, error) {
	id := uuid.New().String()
	_, err := l.Exec(`INSERT INTO runs (run_id, iteration, result_dir, config_json, status, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, iteration, resultDir, string(configJSON), RunStarted, l.clock.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// RecordSelections stores the spectra a run selected.
func (l *Ledger) RecordSelections(runID string, selections []Selection) error {
	tx, err := l.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO run_selections
		(run_id, set_name, position, pool_index, filename, predicted_label, entropy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare selection insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range selections {
		var pred sql.NullInt64
		var entropy sql.NullFloat64
		if s.PredictedLabel >= 0 {
			pred = sql.NullInt64{Int64: int64(s.PredictedLabel), Valid: true}
			entropy = sql.NullFloat64{Float64: s.Entropy, Valid: true}
		}
		if _, err := stmt.Exec(runID, s.Set, s.Position, s.PoolIndex, s.Filename, pred, entropy); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record %s selection %s: %w", s.Set, s.Filename, err)
		}
	}
	return tx.Commit()
}

// FinishRun marks a run as finished. A nil runErr records success.
func (l *Ledger) FinishRun(runID string, poolSize, labeledSize int, runErr error) error {
	status, msg := RunSucceeded, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	res, err := l.Exec(`UPDATE runs SET pool_size = ?, labeled_size = ?, status = ?, error = ?, finished_unix_nanos = ?
		WHERE run_id = ?`,
		poolSize, labeledSize, status, msg, l.clock.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Runs lists every recorded run, oldest first.
func (l *Ledger) Runs() ([]Run, error) {
	rows, err := l.Query(`SELECT run_id, iteration, result_dir, config_json, pool_size, labeled_size,
		status, error, started_unix_nanos, finished_unix_nanos
		FROM runs ORDER BY started_unix_nanos, iteration`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Iteration, &r.ResultDir, &r.ConfigJSON, &r.PoolSize, &r.LabeledSize,
			&r.Status, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Selections lists the spectra recorded for runID, grouped by set.
func (l *Ledger) Selections(runID string) ([]Selection, error) {
	rows, err := l.Query(`SELECT set_name, position, pool_index, filename, predicted_label, entropy
		FROM run_selections WHERE run_id = ? ORDER BY set_name, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections: %w", err)
	}
	defer rows.Close()

	var out []Selection
	for rows.Next() {
		var s Selection
		var pred sql.NullInt64
		var entropy sql.NullFloat64
		if err := rows.Scan(&s.Set, &s.Position, &s.PoolIndex, &s.Filename, &pred, &entropy); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		s.PredictedLabel = -1
		if pred.Valid {
			s.PredictedLabel = int(pred.Int64)
		}
		s.Entropy = entropy.Float64
		out = append(out, s)
	}
	return out, rows.Err()
}

// TimesSelected counts how many runs picked filename for the given set.
func (l *Ledger) TimesSelected(filename, set string) (int, error) {
	var n int
	err := l.QueryRow(`SELECT COUNT(DISTINCT run_id) FROM run_selections WHERE filename = ? AND set_name = ?`,
		filename, set).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count selections of %s: %w", filename, err)
	}
	return n, nil
}
