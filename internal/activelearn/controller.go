// Package activelearn runs one iteration of the active-learning loop.
//
// An iteration reads the labeled set and the unlabeled pool named by its
// configuration, trains a classifier, ranks the pool by prediction entropy,
// selects spectra for the oracle and for performance estimation, writes the
// results into the result directory and emits the configuration of the next
// iteration. Iteration 0 has no classifier and only seeds the first oracle
// batch from the raw pool.
//
// Iterations communicate only through the files they write. A run either
// completes or fails; nothing is retried.
package activelearn

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/spectra.report/internal/classifier"
	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/dimreduc"
	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/selection"
	"github.com/banshee-data/spectra.report/internal/spectra"
	"github.com/banshee-data/spectra.report/internal/storage/sqlite"
)

// Store reads and writes dataset container files.
type Store interface {
	ReadPool(path string) (*spectra.Dataset, error)
	ReadTraining(path string) (*spectra.Dataset, error)
	WriteTraining(path string, ds *spectra.Dataset) error
	WriteResult(path string, b *sqlite.Bundle) error
}

// Ledger records runs and their selections.
type Ledger interface {
	BeginRun(iteration int, resultDir string, configJSON []byte) (string, error)
	RecordSelections(runID string, selections []sqlite.Selection) error
	FinishRun(runID string, poolSize, labeledSize int, runErr error) error
	TimesSelected(filename, set string) (int, error)
}

// Options configures a Controller. Zero values select the defaults noted on
// each field.
type Options struct {
	FileSystem fsutil.FileSystem     // JSON documents; default OS
	Store      Store                 // dataset containers; default sqlite.Store
	Classifier classifier.Classifier // default classifier.NewSoftmax(Seed)
	Projector  dimreduc.Projector    // default dimreduc.PCA
	Rand       rand.Source           // perf-est sampling; nil uses the global source
	Ledger     Ledger                // optional run ledger
	Plots      bool                  // also render dim_reduc.png and dim_reduc.html
	Seed       uint64                // seeds the default classifier
}

// Controller executes iterations.
type Controller struct {
	fs         fsutil.FileSystem
	store      Store
	classifier classifier.Classifier
	projector  dimreduc.Projector
	rand       rand.Source
	ledger     Ledger
	plots      bool
}

// Outcome summarises a completed iteration.
type Outcome struct {
	Next        config.Config
	Indexes     selection.Indexes
	PoolSize    int // spectra predicted on (raw pool size for iteration 0)
	LabeledSize int

	// Reselected lists oracle picks that an earlier run in the ledger had
	// already sent to the oracle. Always empty without a ledger.
	Reselected []string
}

// New returns a Controller for opts.
func New(opts Options) *Controller {
	c := &Controller{
		fs:         opts.FileSystem,
		store:      opts.Store,
		classifier: opts.Classifier,
		projector:  opts.Projector,
		rand:       opts.Rand,
		ledger:     opts.Ledger,
		plots:      opts.Plots,
	}
	if c.fs == nil {
		c.fs = fsutil.OSFileSystem{}
	}
	if c.store == nil {
		c.store = sqlite.Store{}
	}
	if c.classifier == nil {
		c.classifier = classifier.NewSoftmax(opts.Seed)
	}
	if c.projector == nil {
		c.projector = dimreduc.PCA{}
	}
	return c
}

// Run executes the iteration described by cfg. cfg must carry a result
// directory (see config.Config.WithResultDir).
func (c *Controller) Run(cfg config.Config) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ResultDirPath == "" {
		return nil, spectra.Validationf("no result directory given")
	}

	paths, err := resolveArtifacts(cfg.ResultDirPath)
	if err != nil {
		return nil, err
	}
	r := &run{cfg: cfg, paths: paths}
	if r.id, err = c.beginRun(cfg); err != nil {
		return nil, err
	}

	var out *Outcome
	if cfg.Iteration == 0 {
		out, err = c.runZero(r)
	} else {
		out, err = c.runRegular(r)
	}

	// new_config.json is only written for runs the ledger has accepted.
	if ferr := c.finishRun(r.id, out, err); ferr != nil && err == nil {
		return nil, fmt.Errorf("iteration %d: %w", cfg.Iteration, ferr)
	}
	if err != nil {
		return nil, fmt.Errorf("iteration %d: %w", cfg.Iteration, err)
	}
	if err := out.Next.Save(c.fs, r.paths.newConfig); err != nil {
		_ = c.finishRun(r.id, out, err)
		return nil, fmt.Errorf("iteration %d: %w", cfg.Iteration, err)
	}
	monitoring.Logf("iteration %d complete: %d oracle, %d perf-est, %d candidate spectra; next iteration %d",
		cfg.Iteration, len(out.Indexes.Oracle), len(out.Indexes.PerfEst), len(out.Indexes.Candidate), out.Next.Iteration)
	return out, nil
}

// run is the state shared by the steps of one iteration.
type run struct {
	cfg   config.Config
	id    string // ledger run ID; empty without a ledger
	paths artifacts
}

func (c *Controller) beginRun(cfg config.Config) (string, error) {
	if c.ledger == nil {
		return "", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config for ledger: %w", err)
	}
	id, err := c.ledger.BeginRun(cfg.Iteration, cfg.ResultDirPath, data)
	if err != nil {
		return "", err
	}
	monitoring.Logf("ledger run %s started", id)
	return id, nil
}

func (c *Controller) finishRun(runID string, out *Outcome, runErr error) error {
	if c.ledger == nil {
		return nil
	}
	var pool, labeled int
	if out != nil {
		pool, labeled = out.PoolSize, out.LabeledSize
	}
	if err := c.ledger.FinishRun(runID, pool, labeled, runErr); err != nil {
		monitoring.Logf("ledger: failed to finish run %s: %v", runID, err)
		return err
	}
	return nil
}
