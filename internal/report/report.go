// Package report writes the visualisation documents produced by an
// iteration: the selected spectra for the labelling front-end and the 2-D
// embedding of the labeled set, optionally rendered as PNG and HTML scatter
// plots.
package report

import (
	"fmt"
	"sort"

	"github.com/banshee-data/spectra.report/internal/dimreduc"
	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

// PrepSpectra is the prep_spectra.json document: the shared wave axis and
// the flux of every selected spectrum keyed by filename.
type PrepSpectra struct {
	Wave    []float64            `json:"wave"`
	Spectra map[string][]float64 `json:"spectra"`
}

// DimReduc is the dim_reduc.json document.
type DimReduc struct {
	X       []float64 `json:"x"`
	Y       []float64 `json:"y"`
	Labels  []int     `json:"labels"`
	Classes []string  `json:"classes"`
}

// NewPrepSpectra collects the spectra at idx from ds.
func NewPrepSpectra(ds *spectra.Dataset, idx []int) (PrepSpectra, error) {
	ps := PrepSpectra{Wave: ds.Wave, Spectra: make(map[string][]float64, len(idx))}
	for _, i := range idx {
		if i < 0 || i >= ds.Len() {
			return PrepSpectra{}, fmt.Errorf("spectrum index %d out of range [0, %d)", i, ds.Len())
		}
		ps.Spectra[ds.Filenames[i]] = ds.Fluxes[i]
	}
	return ps, nil
}

// NewDimReduc pairs an embedding with the labels and class names it was
// computed for.
func NewDimReduc(emb dimreduc.Embedding, labels []int, classes []string) (DimReduc, error) {
	if len(emb.X) != len(labels) || len(emb.Y) != len(labels) {
		return DimReduc{}, fmt.Errorf("embedding has %d/%d points for %d labels", len(emb.X), len(emb.Y), len(labels))
	}
	return DimReduc{X: emb.X, Y: emb.Y, Labels: labels, Classes: classes}, nil
}

// WritePrepSpectra writes ps as JSON to path.
func WritePrepSpectra(fsys fsutil.FileSystem, path string, ps PrepSpectra) error {
	return fsutil.WriteJSON(fsys, path, ps)
}

// WriteDimReduc writes d as JSON to path.
func WriteDimReduc(fsys fsutil.FileSystem, path string, d DimReduc) error {
	return fsutil.WriteJSON(fsys, path, d)
}

// className returns the display name of a label, falling back to its index.
func (d DimReduc) className(label int) string {
	if label >= 0 && label < len(d.Classes) {
		return d.Classes[label]
	}
	return fmt.Sprintf("class %d", label)
}

// byClass groups point indexes by label in ascending label order.
func (d DimReduc) byClass() ([]int, map[int][]int) {
	groups := map[int][]int{}
	var order []int
	for i, l := range d.Labels {
		if _, ok := groups[l]; !ok {
			order = append(order, l)
		}
		groups[l] = append(groups[l], i)
	}
	sort.Ints(order)
	return order, groups
}
