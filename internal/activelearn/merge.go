package activelearn

import (
	"strings"

	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

// Manifest is the oracle's answer for a batch of pool spectra: parallel
// lists of filenames and class indexes.
type Manifest struct {
	Filenames []string `json:"filenames"`
	Labels    []int    `json:"labels"`
}

// Validate checks the manifest is aligned and every label names a class.
func (m *Manifest) Validate(classes int) error {
	if len(m.Filenames) != len(m.Labels) {
		return spectra.Validationf("label manifest has %d filenames but %d labels", len(m.Filenames), len(m.Labels))
	}
	return checkLabels("label manifest", m.Labels, classes)
}

// Duplicates returns the filenames listed more than once, in first-seen order.
func (m *Manifest) Duplicates() []string {
	count := make(map[string]int, len(m.Filenames))
	var dups []string
	for _, name := range m.Filenames {
		count[name]++
		if count[name] == 2 {
			dups = append(dups, name)
		}
	}
	return dups
}

// MergeLabeled combines the primary labeled set with the spectra the oracle
// labeled from a pool snapshot.
//
// The manifest selects snapshot spectra by filename in manifest order. The
// snapshot lookup keeps the first occurrence of each filename. The combined
// set is then deduplicated so that, for any repeated filename, the earliest
// row (primary before manifest, earlier manifest entries before later ones)
// provides both flux and label.
//
// A nil primary is treated as empty; a nil snapshot means there is nothing
// to add.
func MergeLabeled(primary, snapshot *spectra.Dataset, manifest *Manifest, classes int) (*spectra.Dataset, error) {
	if primary == nil {
		primary = spectra.Empty(true)
	}
	if !primary.Labeled() {
		return nil, spectra.Validationf("primary training data has no labels")
	}
	if err := primary.Validate(); err != nil {
		return nil, err
	}
	if err := checkLabels("training data", primary.Labels, classes); err != nil {
		return nil, err
	}
	if snapshot == nil {
		return primary.DedupByFilename(), nil
	}

	if manifest == nil {
		return nil, spectra.Validationf("additional training data requires a label manifest")
	}
	if err := manifest.Validate(classes); err != nil {
		return nil, err
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	if primary.Len() > 0 && !spectra.SameWave(primary.Wave, snapshot.Wave) {
		return nil, spectra.Validationf("training data and additional training data have different wave axes (%d vs %d points)",
			len(primary.Wave), len(snapshot.Wave))
	}

	index := spectra.FirstIndex(snapshot.Filenames)
	rows := make([]int, 0, len(manifest.Filenames))
	var missing []string
	for _, name := range manifest.Filenames {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		rows = append(rows, i)
	}
	if len(missing) > 0 {
		return nil, spectra.Validationf("%d manifest filenames are not in the pool snapshot: %s",
			len(missing), abbreviate(missing, 10))
	}
	if dups := manifest.Duplicates(); len(dups) > 0 {
		monitoring.Logf("warning: label manifest repeats %d filenames, keeping the first label of each: %s",
			len(dups), abbreviate(dups, 10))
	}

	added := snapshot.Select(rows)
	added.Labels = append([]int{}, manifest.Labels...)

	return spectra.Concat(primary, added, snapshot.Wave).DedupByFilename(), nil
}

// LoadLabeledSet reads the labeled set sources named by cfg and merges them.
func LoadLabeledSet(fsys fsutil.FileSystem, store Store, cfg config.Config) (*spectra.Dataset, error) {
	primary := spectra.Empty(true)
	if cfg.TrainingDataPath != "" {
		var err error
		if primary, err = store.ReadTraining(cfg.TrainingDataPath); err != nil {
			return nil, err
		}
	}

	var snapshot *spectra.Dataset
	var manifest *Manifest
	if cfg.TrainingDataToAddPath != "" {
		var err error
		if !fsys.Exists(cfg.OracleDataToAddPath) {
			return nil, spectra.Validationf("label manifest %s does not exist: the oracle has not labeled the previous selection yet",
				cfg.OracleDataToAddPath)
		}
		if snapshot, err = store.ReadPool(cfg.TrainingDataToAddPath); err != nil {
			return nil, err
		}
		manifest = &Manifest{}
		if err := fsutil.ReadJSON(fsys, cfg.OracleDataToAddPath, manifest); err != nil {
			return nil, err
		}
	}

	merged, err := MergeLabeled(primary, snapshot, manifest, len(cfg.Classes))
	if err != nil {
		return nil, err
	}
	monitoring.Logf("labeled set: %d spectra (%d from training data, %d from manifest)",
		merged.Len(), primary.Len(), manifestLen(manifest))
	return merged, nil
}

func checkLabels(source string, labels []int, classes int) error {
	for i, l := range labels {
		if l < 0 || l >= classes {
			return spectra.Validationf("%s label %d at position %d is outside [0, %d)", source, l, i, classes)
		}
	}
	return nil
}

func manifestLen(m *Manifest) int {
	if m == nil {
		return 0
	}
	return len(m.Filenames)
}

// abbreviate joins at most limit names, noting how many were left out.
func abbreviate(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:limit], ", ") + ", ..."
}
