// Package testutil provides shared test utilities and fixtures.
//
// The spectra fixtures are deterministic: the same arguments always produce
// the same filenames and flux values, so tests can compare outputs exactly.
package testutil

import (
	"fmt"
	"math"

	"github.com/banshee-data/spectra.report/internal/spectra"
)

// Shapes of synthetic spectra. The value doubles as the class label.
const (
	ShapeOther = iota
	ShapeSinglePeak
	ShapeDoublePeak
)

// Classes names the synthetic shapes in label order.
var Classes = []string{"other", "single peak", "double peak"}

// Wave returns a linear wavelength axis starting at 3700 Å in 2 Å steps.
func Wave(points int) []float64 {
	wave := make([]float64, points)
	for i := range wave {
		wave[i] = 3700 + 2*float64(i)
	}
	return wave
}

// Flux synthesises the i-th spectrum of the given shape.
func Flux(shape, i, points int) []float64 {
	flux := make([]float64, points)
	jitter := 0.01 * float64(i%7)
	width := float64(points) / 20
	for j := range flux {
		x := float64(j)
		flux[j] = 0.05*math.Sin(x/3+float64(i)) + jitter
		switch shape {
		case ShapeSinglePeak:
			flux[j] += gauss(x, float64(points)/2, width)
		case ShapeDoublePeak:
			flux[j] += gauss(x, float64(points)/3, width) + gauss(x, 2*float64(points)/3, width)
		}
	}
	return flux
}

func gauss(x, mu, sigma float64) float64 {
	d := (x - mu) / sigma
	return math.Exp(-d * d / 2)
}

// Filename returns the fixture filename for index i under prefix.
func Filename(prefix string, i int) string {
	return fmt.Sprintf("%s-%04d.fits", prefix, i)
}

// Labeled builds a labeled dataset with perClass[c] spectra of shape c.
// Filenames are numbered consecutively under prefix.
func Labeled(prefix string, points int, perClass ...int) *spectra.Dataset {
	ds := spectra.Empty(true)
	ds.Wave = Wave(points)
	n := 0
	for class, count := range perClass {
		for k := 0; k < count; k++ {
			ds.Filenames = append(ds.Filenames, Filename(prefix, n))
			ds.Fluxes = append(ds.Fluxes, Flux(class, n, points))
			ds.Labels = append(ds.Labels, class)
			n++
		}
	}
	return ds
}

// Pool builds an unlabeled dataset of n spectra cycling through every shape.
func Pool(prefix string, n, points int) *spectra.Dataset {
	ds := spectra.Empty(false)
	ds.Wave = Wave(points)
	for i := 0; i < n; i++ {
		ds.Filenames = append(ds.Filenames, Filename(prefix, i))
		ds.Fluxes = append(ds.Fluxes, Flux(i%len(Classes), i, points))
	}
	return ds
}
