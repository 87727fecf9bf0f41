package activelearn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/spectra.report/internal/classifier"
	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/selection"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

// regularResult is everything a regular iteration persists.
type regularResult struct {
	labeled *spectra.Dataset
	pool    *spectra.Dataset
	pred    selection.Predictions
	idx     selection.Indexes
	model   classifier.Model
	history config.History
	next    config.Config
}

func (c *Controller) runRegular(r *run) (*Outcome, error) {
	cfg := r.cfg
	defer monitoring.Stage(fmt.Sprintf("iteration %d", cfg.Iteration))()

	history, err := config.LoadHistory(c.fs, cfg)
	if err != nil {
		return nil, err
	}

	labeled, err := LoadLabeledSet(c.fs, c.store, cfg)
	if err != nil {
		return nil, err
	}
	if labeled.Len() == 0 {
		return nil, spectra.Validationf("labeled set is empty: set training_data_path or training_data_to_add_path")
	}

	pool, err := c.store.ReadPool(cfg.PoolDataPath)
	if err != nil {
		return nil, err
	}
	filtered, err := ReconcilePool(pool, labeled)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("pool: %d spectra read, %d left to predict", pool.Len(), filtered.Len())

	hp := cfg.Hyperparameters()
	model, probs, err := c.fitAndPredict(labeled, filtered, len(cfg.Classes), hp)
	if err != nil {
		return nil, err
	}

	pred := selection.Summarize(probs)
	policy := selection.Policy{
		Classes:          cfg.Classes,
		CandidateClasses: cfg.CandidateClasses,
		OracleBatchSize:  cfg.OracleBatchSize,
		PerfEstBatchSize: cfg.PerfEstBatchSize,
	}
	idx := policy.Select(pred, c.rand)

	next, err := config.Next(cfg, history)
	if err != nil {
		return nil, err
	}

	res := regularResult{
		labeled: labeled,
		pool:    filtered,
		pred:    pred,
		idx:     idx,
		model:   model,
		history: history,
		next:    next,
	}
	reselected, err := c.persistRegular(r, res)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Next:        next,
		Indexes:     idx,
		PoolSize:    filtered.Len(),
		LabeledSize: labeled.Len(),
		Reselected:  reselected,
	}, nil
}

// fitAndPredict trains on the labeled set and returns the probability matrix
// for pool. The classifier sees the labeled set as loaded; any rebalancing
// happens inside it and never reaches the persisted training data.
func (c *Controller) fitAndPredict(labeled, pool *spectra.Dataset, classes int, hp classifier.Hyperparameters) (classifier.Model, *mat.Dense, error) {
	done := monitoring.Stage("train")
	model, err := c.classifier.Train(labeled.Fluxes, labeled.Labels, labeled.Points(), classes, hp)
	done()
	if err != nil {
		return nil, nil, fmt.Errorf("train: %w", err)
	}

	done = monitoring.Stage("predict")
	probs, err := c.classifier.Predict(model, pool.Fluxes, pool.Points(), hp)
	done()
	if err != nil {
		return nil, nil, fmt.Errorf("predict: %w", err)
	}
	if probs == nil {
		return nil, nil, fmt.Errorf("predict: classifier returned no probabilities")
	}
	if rows, cols := probs.Dims(); rows != pool.Len() || cols != classes {
		return nil, nil, fmt.Errorf("predict: got %dx%d probabilities for %d spectra and %d classes",
			rows, cols, pool.Len(), classes)
	}
	return model, probs, nil
}
