// Package spectra defines the in-memory representation of spectrum datasets
// shared by the iteration controller: parallel arrays of filenames and flux
// rows over one common wavelength axis, optionally with integer labels.
//
// The filename is the sole identity of a spectrum. Every join, filter and
// deduplication in this package is keyed on it.
package spectra

import (
	"gonum.org/v1/gonum/floats"
)

// Dataset is a collection of spectra sharing one wavelength axis.
// Labels is nil for an unlabeled pool and has one entry per spectrum otherwise.
type Dataset struct {
	Filenames []string
	Wave      []float64
	Fluxes    [][]float64
	Labels    []int
}

// Empty returns a dataset with zero-length arrays. When labeled is true the
// label vector is non-nil so the result still reports Labeled.
func Empty(labeled bool) *Dataset {
	d := &Dataset{
		Filenames: []string{},
		Wave:      []float64{},
		Fluxes:    [][]float64{},
	}
	if labeled {
		d.Labels = []int{}
	}
	return d
}

// Len returns the number of spectra.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Filenames)
}

// Points returns the length of the wavelength axis.
func (d *Dataset) Points() int {
	return len(d.Wave)
}

// Labeled reports whether the dataset carries labels.
func (d *Dataset) Labeled() bool {
	return d.Labels != nil
}

// Validate checks that all per-spectrum arrays are aligned and that every
// flux row matches the wavelength axis.
func (d *Dataset) Validate() error {
	n := len(d.Filenames)
	if len(d.Fluxes) != n {
		return Validationf("dataset has %d filenames but %d flux rows", n, len(d.Fluxes))
	}
	if d.Labels != nil && len(d.Labels) != n {
		return Validationf("dataset has %d filenames but %d labels", n, len(d.Labels))
	}
	for i, row := range d.Fluxes {
		if len(row) != len(d.Wave) {
			return Validationf("flux row %d (%s) has %d points, wave has %d",
				i, d.Filenames[i], len(row), len(d.Wave))
		}
	}
	return nil
}

// Select returns a new dataset holding the spectra at idx, in idx order.
// Flux rows are shared with the receiver, not copied.
func (d *Dataset) Select(idx []int) *Dataset {
	out := &Dataset{
		Filenames: make([]string, len(idx)),
		Wave:      d.Wave,
		Fluxes:    make([][]float64, len(idx)),
	}
	if d.Labels != nil {
		out.Labels = make([]int, len(idx))
	}
	for i, j := range idx {
		out.Filenames[i] = d.Filenames[j]
		out.Fluxes[i] = d.Fluxes[j]
		if d.Labels != nil {
			out.Labels[i] = d.Labels[j]
		}
	}
	return out
}

// DedupByFilename removes repeated filenames, keeping the first occurrence
// and preserving original order. Applying it twice yields the same dataset.
func (d *Dataset) DedupByFilename() *Dataset {
	seen := make(map[string]struct{}, len(d.Filenames))
	keep := make([]int, 0, len(d.Filenames))
	for i, name := range d.Filenames {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		keep = append(keep, i)
	}
	return d.Select(keep)
}

// Without returns the spectra whose filename is not in exclude.
func (d *Dataset) Without(exclude map[string]struct{}) *Dataset {
	keep := make([]int, 0, len(d.Filenames))
	for i, name := range d.Filenames {
		if _, ok := exclude[name]; !ok {
			keep = append(keep, i)
		}
	}
	return d.Select(keep)
}

// FilenameSet returns the set of filenames in the dataset.
func (d *Dataset) FilenameSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.Filenames))
	for _, name := range d.Filenames {
		set[name] = struct{}{}
	}
	return set
}

// Concat appends b to a. The result uses wave as its axis; callers are
// responsible for checking the two axes agree. Labels are kept only when
// both inputs are labeled.
func Concat(a, b *Dataset, wave []float64) *Dataset {
	out := &Dataset{
		Filenames: make([]string, 0, a.Len()+b.Len()),
		Wave:      wave,
		Fluxes:    make([][]float64, 0, a.Len()+b.Len()),
	}
	out.Filenames = append(append(out.Filenames, a.Filenames...), b.Filenames...)
	out.Fluxes = append(append(out.Fluxes, a.Fluxes...), b.Fluxes...)
	if a.Labeled() && b.Labeled() {
		out.Labels = make([]int, 0, a.Len()+b.Len())
		out.Labels = append(append(out.Labels, a.Labels...), b.Labels...)
	}
	return out
}

// FirstIndex maps each filename to the position of its first occurrence.
// Later duplicates never overwrite an existing entry.
func FirstIndex(filenames []string) map[string]int {
	idx := make(map[string]int, len(filenames))
	for i, name := range filenames {
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return idx
}

// SameWave reports whether two wavelength axes are identical element by element.
func SameWave(a, b []float64) bool {
	return floats.Equal(a, b)
}
