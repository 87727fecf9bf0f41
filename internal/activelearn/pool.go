package activelearn

import (
	"github.com/banshee-data/spectra.report/internal/spectra"
)

// ReconcilePool prepares the prediction batch: the pool deduplicated by
// filename (first occurrence wins) minus every spectrum already labeled.
// The pool must share the labeled set's wave axis and must not end up empty.
func ReconcilePool(pool, labeled *spectra.Dataset) (*spectra.Dataset, error) {
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	if !spectra.SameWave(pool.Wave, labeled.Wave) {
		return nil, spectra.Validationf("pool and training data have different wave axes (%d vs %d points)",
			len(pool.Wave), len(labeled.Wave))
	}
	filtered := pool.DedupByFilename().Without(labeled.FilenameSet())
	if filtered.Len() == 0 {
		return nil, spectra.Validationf("every pool spectrum is already in the training data")
	}
	return filtered, nil
}
