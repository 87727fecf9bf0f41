package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

// schema.sql creates the dataset container tables.
//
//go:embed schema.sql
var schemaSQL string

// Container kinds recorded in dataset_meta.
const (
	KindPool     = "pool"
	KindTraining = "training"
	KindResult   = "result"
)

// Selection set names.
const (
	SetOracle    = "oracle"
	SetPerfEst   = "perf_est"
	SetCandidate = "candidate"
)

const (
	metaKind  = "kind"
	metaWave  = "wave"
	metaSets  = "selection_sets"
	metaModel = "model"
)

// Bundle is the result of one iteration. Index sets are offsets into Spectra.
// A nil PredictedLabels/Entropies marks a zero-iteration bundle; a nil
// Candidate or Model means the field was not persisted.
type Bundle struct {
	Spectra         *spectra.Dataset
	PredictedLabels []int
	Entropies       []float64
	Oracle          []int
	PerfEst         []int
	Candidate       []int
	Model           []byte
}

// Validate checks that every per-spectrum array and index set lines up with
// the bundled spectra.
func (b *Bundle) Validate() error {
	if b.Spectra == nil {
		return fmt.Errorf("bundle has no spectra")
	}
	if err := b.Spectra.Validate(); err != nil {
		return err
	}
	n := b.Spectra.Len()
	if b.PredictedLabels != nil && len(b.PredictedLabels) != n {
		return fmt.Errorf("bundle has %d spectra but %d predicted labels", n, len(b.PredictedLabels))
	}
	if b.Entropies != nil && len(b.Entropies) != n {
		return fmt.Errorf("bundle has %d spectra but %d entropies", n, len(b.Entropies))
	}
	for name, set := range b.sets() {
		for _, i := range set {
			if i < 0 || i >= n {
				return fmt.Errorf("%s index %d out of range [0, %d)", name, i, n)
			}
		}
	}
	return nil
}

func (b *Bundle) sets() map[string][]int {
	sets := map[string][]int{}
	if b.Oracle != nil {
		sets[SetOracle] = b.Oracle
	}
	if b.PerfEst != nil {
		sets[SetPerfEst] = b.PerfEst
	}
	if b.Candidate != nil {
		sets[SetCandidate] = b.Candidate
	}
	return sets
}

// WritePool writes an unlabeled dataset to path.
func WritePool(path string, ds *spectra.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	return writeContainer(path, func(tx *sql.Tx) error {
		if err := putMeta(tx, metaKind, []byte(KindPool)); err != nil {
			return err
		}
		return insertSpectra(tx, ds, false, nil, nil)
	})
}

// WriteTraining writes a labeled dataset to path.
func WriteTraining(path string, ds *spectra.Dataset) error {
	if !ds.Labeled() {
		return fmt.Errorf("training data for %s has no labels", path)
	}
	if err := ds.Validate(); err != nil {
		return err
	}
	return writeContainer(path, func(tx *sql.Tx) error {
		if err := putMeta(tx, metaKind, []byte(KindTraining)); err != nil {
			return err
		}
		return insertSpectra(tx, ds, true, nil, nil)
	})
}

// WriteResult writes an iteration result bundle to path.
func WriteResult(path string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return writeContainer(path, func(tx *sql.Tx) error {
		if err := putMeta(tx, metaKind, []byte(KindResult)); err != nil {
			return err
		}
		if b.Model != nil {
			if err := putMeta(tx, metaModel, b.Model); err != nil {
				return err
			}
		}
		if err := insertSpectra(tx, b.Spectra, false, b.PredictedLabels, b.Entropies); err != nil {
			return err
		}

		var names []string
		for _, name := range []string{SetOracle, SetPerfEst, SetCandidate} {
			set, ok := b.sets()[name]
			if !ok {
				continue
			}
			names = append(names, name)
			for pos, idx := range set {
				if _, err := tx.Exec(`INSERT INTO selections (set_name, position, row_index) VALUES (?, ?, ?)`,
					name, pos, idx); err != nil {
					return fmt.Errorf("failed to insert %s selection: %w", name, err)
				}
			}
		}
		return putMeta(tx, metaSets, []byte(strings.Join(names, ",")))
	})
}

// ReadPool reads the spectra of any container as an unlabeled dataset. A
// result bundle can therefore serve as the next iteration's pool.
func ReadPool(path string) (*spectra.Dataset, error) {
	db, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ds, _, _, err := readSpectra(db, path, false)
	return ds, err
}

// ReadTraining reads a labeled dataset written by WriteTraining.
func ReadTraining(path string) (*spectra.Dataset, error) {
	db, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	kind, err := getMeta(db, metaKind)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if string(kind) != KindTraining {
		return nil, fmt.Errorf("%s holds %q data, expected %q", path, kind, KindTraining)
	}
	ds, _, _, err := readSpectra(db, path, true)
	return ds, err
}

// ReadResult reads a bundle written by WriteResult.
func ReadResult(path string) (*Bundle, error) {
	db, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	kind, err := getMeta(db, metaKind)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if string(kind) != KindResult {
		return nil, fmt.Errorf("%s holds %q data, expected %q", path, kind, KindResult)
	}

	ds, predicted, entropies, err := readSpectra(db, path, false)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Spectra: ds, PredictedLabels: predicted, Entropies: entropies}

	model, err := getMeta(db, metaModel)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read model from %s: %w", path, err)
	default:
		b.Model = model
	}

	names, err := getMeta(db, metaSets)
	if err != nil {
		return nil, fmt.Errorf("failed to read selection sets from %s: %w", path, err)
	}
	for _, name := range strings.Split(string(names), ",") {
		if name == "" {
			continue
		}
		set, err := readSelection(db, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s selection from %s: %w", name, path, err)
		}
		switch name {
		case SetOracle:
			b.Oracle = set
		case SetPerfEst:
			b.PerfEst = set
		case SetCandidate:
			b.Candidate = set
		}
	}
	return b, nil
}

// writeContainer builds the container in a sibling temporary file and renames
// it over path once every row is committed.
func writeContainer(path string, fill func(tx *sql.Tx) error) error {
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear %s: %w", tmp, err)
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := fillContainer(db, fill); err != nil {
		db.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	monitoring.Logf("wrote %s", path)
	return nil
}

func fillContainer(db *sql.DB, fill func(tx *sql.Tx) error) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fill(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// openExisting opens path without creating it.
func openExisting(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	return db, nil
}

func putMeta(tx *sql.Tx, key string, value []byte) error {
	if _, err := tx.Exec(`INSERT OR REPLACE INTO dataset_meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func getMeta(db *sql.DB, key string) ([]byte, error) {
	var value []byte
	if err := db.QueryRow(`SELECT value FROM dataset_meta WHERE key = ?`, key).Scan(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func insertSpectra(tx *sql.Tx, ds *spectra.Dataset, withLabels bool, predicted []int, entropies []float64) error {
	if err := putMeta(tx, metaWave, encodeFloats(ds.Wave)); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO spectra (row_index, filename, flux, label, predicted_label, entropy)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectra insert: %w", err)
	}
	defer stmt.Close()

	for i, name := range ds.Filenames {
		var label, pred sql.NullInt64
		var entropy sql.NullFloat64
		if withLabels {
			label = sql.NullInt64{Int64: int64(ds.Labels[i]), Valid: true}
		}
		if predicted != nil {
			pred = sql.NullInt64{Int64: int64(predicted[i]), Valid: true}
		}
		if entropies != nil {
			entropy = sql.NullFloat64{Float64: entropies[i], Valid: true}
		}
		if _, err := stmt.Exec(i, name, encodeFloats(ds.Fluxes[i]), label, pred, entropy); err != nil {
			return fmt.Errorf("failed to insert spectrum %d (%s): %w", i, name, err)
		}
	}
	return nil
}

// readSpectra loads every spectrum row in order. Predicted labels and
// entropies are returned only when every row carries them.
func readSpectra(db *sql.DB, path string, withLabels bool) (*spectra.Dataset, []int, []float64, error) {
	waveBlob, err := getMeta(db, metaWave)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read wave from %s: %w", path, err)
	}
	wave, err := decodeFloats(waveBlob)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decode wave from %s: %w", path, err)
	}

	rows, err := db.Query(`SELECT filename, flux, label, predicted_label, entropy FROM spectra ORDER BY row_index`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to query spectra from %s: %w", path, err)
	}
	defer rows.Close()

	ds := spectra.Empty(withLabels)
	ds.Wave = wave
	predicted := []int{}
	entropies := []float64{}
	hasPredicted, hasEntropy := true, true
	for rows.Next() {
		var (
			name    string
			blob    []byte
			label   sql.NullInt64
			pred    sql.NullInt64
			entropy sql.NullFloat64
		)
		if err := rows.Scan(&name, &blob, &label, &pred, &entropy); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to scan spectrum from %s: %w", path, err)
		}
		flux, err := decodeFloats(blob)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to decode flux of %s in %s: %w", name, path, err)
		}
		if withLabels {
			if !label.Valid {
				return nil, nil, nil, fmt.Errorf("spectrum %s in %s has no label", name, path)
			}
			ds.Labels = append(ds.Labels, int(label.Int64))
		}
		ds.Filenames = append(ds.Filenames, name)
		ds.Fluxes = append(ds.Fluxes, flux)

		hasPredicted = hasPredicted && pred.Valid
		hasEntropy = hasEntropy && entropy.Valid
		predicted = append(predicted, int(pred.Int64))
		entropies = append(entropies, entropy.Float64)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read spectra from %s: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if !hasPredicted || ds.Len() == 0 {
		predicted = nil
	}
	if !hasEntropy || ds.Len() == 0 {
		entropies = nil
	}
	return ds, predicted, entropies, nil
}

func readSelection(db *sql.DB, name string) ([]int, error) {
	rows, err := db.Query(`SELECT row_index FROM selections WHERE set_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := []int{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		set = append(set, idx)
	}
	return set, rows.Err()
}

// Store exposes the container functions as methods so the iteration
// controller can depend on an interface.
type Store struct{}

// ReadPool implements the controller's dataset store.
func (Store) ReadPool(path string) (*spectra.Dataset, error) { return ReadPool(path) }

// ReadTraining implements the controller's dataset store.
func (Store) ReadTraining(path string) (*spectra.Dataset, error) { return ReadTraining(path) }

// WriteTraining implements the controller's dataset store.
func (Store) WriteTraining(path string, ds *spectra.Dataset) error { return WriteTraining(path, ds) }

// WriteResult implements the controller's dataset store.
func (Store) WriteResult(path string, b *Bundle) error { return WriteResult(path, b) }
