package config

import (
	"slices"

	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

// History is the performance-estimation history: one batch of pool indexes
// per completed regular iteration.
type History [][]int

// Next derives the configuration of the following iteration from cfg. It is
// a pure function; cfg is left untouched.
//
// A regular iteration n requires len(history) == n-1 and fails with a
// validation error otherwise.
func Next(cfg Config, history History) (Config, error) {
	next := cfg.clone()
	next.ResultDirPath = ""
	next.Iteration = cfg.Iteration + 1
	next.PoolDataPath = cfg.ResultPath(ResultFile)
	next.TrainingDataToAddPath = cfg.ResultPath(ResultFile)
	next.OracleDataToAddPath = cfg.ResultPath(OracleFile)

	if cfg.Iteration == 0 {
		// No history exists until the first regular iteration completes.
		next.PerfEstListPath = ""
		return next, nil
	}

	if err := ValidateHistory(cfg.Iteration, history); err != nil {
		return Config{}, err
	}
	next.TrainingDataPath = cfg.ResultPath(TrainingFile)
	next.PerfEstListPath = cfg.ResultPath(PerfEstFile)
	return next, nil
}

// ValidateHistory checks that a regular iteration received exactly one
// history batch per earlier regular iteration.
func ValidateHistory(iteration int, history History) error {
	if iteration < 1 {
		return spectra.Validationf("iteration %d has no performance-estimation history", iteration)
	}
	if len(history) != iteration-1 {
		return spectra.Validationf("iteration %d expects %d performance-estimation batches, got %d",
			iteration, iteration-1, len(history))
	}
	return nil
}

// LoadHistory reads the history for a regular iteration. Iteration 1 starts
// with an empty history and never reads perf_est_list_path.
func LoadHistory(fsys fsutil.FileSystem, cfg Config) (History, error) {
	if cfg.Iteration == 1 {
		return History{}, nil
	}
	if cfg.PerfEstListPath == "" {
		return nil, spectra.Validationf("iteration %d requires perf_est_list_path", cfg.Iteration)
	}
	var history History
	if err := fsutil.ReadJSON(fsys, cfg.PerfEstListPath, &history); err != nil {
		return nil, err
	}
	if err := ValidateHistory(cfg.Iteration, history); err != nil {
		return nil, err
	}
	return history, nil
}

// Append returns a new history with batch added at the end.
func (h History) Append(batch []int) History {
	out := make(History, 0, len(h)+1)
	out = append(out, h...)
	if batch == nil {
		batch = []int{}
	}
	return append(out, batch)
}

// SaveHistory writes h as JSON to path.
func SaveHistory(fsys fsutil.FileSystem, path string, h History) error {
	if h == nil {
		h = History{}
	}
	return fsutil.WriteJSON(fsys, path, h)
}

func (c Config) clone() Config {
	out := c
	out.Classes = slices.Clone(c.Classes)
	out.CandidateClasses = slices.Clone(c.CandidateClasses)
	return out
}
