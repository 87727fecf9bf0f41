package activelearn

import (
	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/selection"
	"github.com/banshee-data/spectra.report/internal/spectra"
	"github.com/banshee-data/spectra.report/internal/storage/sqlite"
)

// runZero seeds the first oracle batch: the first oracle_batch_size spectra
// of the raw pool, in file order.
func (c *Controller) runZero(r *run) (*Outcome, error) {
	defer monitoring.Stage("iteration 0")()

	pool, err := c.store.ReadPool(r.cfg.PoolDataPath)
	if err != nil {
		return nil, err
	}
	if pool.Len() == 0 {
		return nil, spectra.Validationf("pool %s is empty", r.cfg.PoolDataPath)
	}
	monitoring.Logf("pool: %d spectra with %d points", pool.Len(), pool.Points())

	idx := selection.Indexes{Oracle: ZeroOracleIndexes(pool.Len(), r.cfg.OracleBatchSize)}

	// new_config.json is written by Run once the ledger has the outcome.
	next, err := config.Next(r.cfg, nil)
	if err != nil {
		return nil, err
	}

	if err := c.store.WriteResult(r.paths.result, &sqlite.Bundle{Spectra: pool, Oracle: idx.Oracle}); err != nil {
		return nil, err
	}
	if err := c.writePrepSpectra(r, pool, idx.Oracle); err != nil {
		return nil, err
	}
	reselected, err := c.recordSelections(r, pool, idx, nil)
	if err != nil {
		return nil, err
	}
	return &Outcome{Next: next, Indexes: idx, PoolSize: pool.Len(), Reselected: reselected}, nil
}

// ZeroOracleIndexes returns 0..min(k, n)-1.
func ZeroOracleIndexes(n, k int) []int {
	if k > n {
		k = n
	}
	if k < 0 {
		k = 0
	}
	out := make([]int, k)
	for i := range out {
		out[i] = i
	}
	return out
}
