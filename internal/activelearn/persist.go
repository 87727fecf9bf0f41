package activelearn

import (
	"fmt"

	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/report"
	"github.com/banshee-data/spectra.report/internal/security"
	"github.com/banshee-data/spectra.report/internal/selection"
	"github.com/banshee-data/spectra.report/internal/spectra"
	"github.com/banshee-data/spectra.report/internal/storage/sqlite"
)

// artifacts holds the output paths of one iteration, all inside the result
// directory.
type artifacts struct {
	result       string
	training     string
	prepSpectra  string
	dimReduc     string
	dimReducPNG  string
	dimReducHTML string
	perfEst      string
	newConfig    string
}

func resolveArtifacts(dir string) (artifacts, error) {
	if err := security.ValidateResultDir(dir); err != nil {
		return artifacts{}, err
	}
	var a artifacts
	for _, f := range []struct {
		dst  *string
		name string
	}{
		{&a.result, config.ResultFile},
		{&a.training, config.TrainingFile},
		{&a.prepSpectra, config.PrepSpectraFile},
		{&a.dimReduc, config.DimReducFile},
		{&a.dimReducPNG, config.DimReducPNGFile},
		{&a.dimReducHTML, config.DimReducHTML},
		{&a.perfEst, config.PerfEstFile},
		{&a.newConfig, config.NewConfigFile},
	} {
		path, err := security.ArtifactPath(dir, f.name)
		if err != nil {
			return artifacts{}, err
		}
		*f.dst = path
	}
	return a, nil
}

// persistRegular writes every output of a regular iteration except the next
// configuration, which Run writes last so that its presence marks a complete
// result directory. Each file is replaced atomically.
func (c *Controller) persistRegular(r *run, res regularResult) ([]string, error) {
	cfg := r.cfg
	defer monitoring.Stage("persist")()

	if err := c.store.WriteTraining(r.paths.training, res.labeled); err != nil {
		return nil, err
	}

	bundle := &sqlite.Bundle{
		Spectra:         res.pool,
		PredictedLabels: res.pred.Labels,
		Entropies:       res.pred.Entropies,
		Oracle:          res.idx.Oracle,
		PerfEst:         res.idx.PerfEst,
	}
	if cfg.ShowCandidates {
		bundle.Candidate = res.idx.Candidate
	}
	if cfg.SaveModel {
		if res.model == nil {
			return nil, fmt.Errorf("save_model is set but no model was trained")
		}
		data, err := res.model.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to serialise model: %w", err)
		}
		bundle.Model = data
	}
	if err := c.store.WriteResult(r.paths.result, bundle); err != nil {
		return nil, err
	}

	shown := [][]int{res.idx.Oracle, res.idx.PerfEst}
	if cfg.ShowCandidates {
		shown = append(shown, res.idx.Candidate)
	}
	if err := c.writePrepSpectra(r, res.pool, selection.Union(shown...)); err != nil {
		return nil, err
	}

	if err := c.writeDimReduc(r, res.labeled); err != nil {
		return nil, err
	}

	if err := config.SaveHistory(c.fs, r.paths.perfEst, res.history.Append(res.idx.PerfEst)); err != nil {
		return nil, err
	}
	return c.recordSelections(r, res.pool, res.idx, &res.pred)
}

func (c *Controller) writePrepSpectra(r *run, pool *spectra.Dataset, idx []int) error {
	ps, err := report.NewPrepSpectra(pool, idx)
	if err != nil {
		return err
	}
	return report.WritePrepSpectra(c.fs, r.paths.prepSpectra, ps)
}

// writeDimReduc projects the labeled set to 2-D and writes the embedding,
// plus the scatter renders when plots are enabled.
func (c *Controller) writeDimReduc(r *run, labeled *spectra.Dataset) error {
	emb, err := c.projector.Project(labeled.Fluxes)
	if err != nil {
		return fmt.Errorf("dimensionality reduction: %w", err)
	}
	d, err := report.NewDimReduc(emb, labeled.Labels, r.cfg.Classes)
	if err != nil {
		return err
	}
	if err := report.WriteDimReduc(c.fs, r.paths.dimReduc, d); err != nil {
		return err
	}
	if !c.plots {
		return nil
	}
	if err := report.WriteScatterPNG(c.fs, r.paths.dimReducPNG, d); err != nil {
		return err
	}
	return report.WriteScatterHTML(c.fs, r.paths.dimReducHTML, d)
}

// recordSelections copies the selected spectra into the run ledger. pred is
// nil for iteration 0. It returns the oracle picks that earlier runs had
// already sent to the oracle; a pick the oracle has seen before usually means
// its labels never made it back into the training data.
func (c *Controller) recordSelections(r *run, pool *spectra.Dataset, idx selection.Indexes, pred *selection.Predictions) ([]string, error) {
	if c.ledger == nil {
		return nil, nil
	}

	var reselected []string
	for _, i := range idx.Oracle {
		name := pool.Filenames[i]
		n, err := c.ledger.TimesSelected(name, sqlite.SetOracle)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			reselected = append(reselected, name)
		}
	}
	if len(reselected) > 0 {
		monitoring.Logf("warning: %d oracle picks were already sent to the oracle in earlier runs: %s",
			len(reselected), abbreviate(reselected, 10))
	}

	var rows []sqlite.Selection
	add := func(set string, indexes []int) {
		for pos, i := range indexes {
			s := sqlite.Selection{Set: set, Position: pos, PoolIndex: i, Filename: pool.Filenames[i], PredictedLabel: -1}
			if pred != nil {
				s.PredictedLabel = pred.Labels[i]
				s.Entropy = pred.Entropies[i]
			}
			rows = append(rows, s)
		}
	}
	add(sqlite.SetOracle, idx.Oracle)
	add(sqlite.SetPerfEst, idx.PerfEst)
	if r.cfg.ShowCandidates {
		add(sqlite.SetCandidate, idx.Candidate)
	}
	if err := c.ledger.RecordSelections(r.id, rows); err != nil {
		return nil, err
	}
	return reselected, nil
}
