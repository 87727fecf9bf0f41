// Package dimreduc projects spectra into two dimensions for inspection of the
// labeled set.
package dimreduc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Embedding is a 2-D projection with one point per input spectrum.
type Embedding struct {
	X []float64
	Y []float64
}

// Projector reduces flux rows to two coordinates per row.
type Projector interface {
	Project(fluxes [][]float64) (Embedding, error)
}

// PCA projects onto the first two principal components of the centred data.
// Components that do not exist (fewer than two spectra or points) are zero.
type PCA struct{}

// Project implements Projector.
func (PCA) Project(fluxes [][]float64) (Embedding, error) {
	n := len(fluxes)
	emb := Embedding{X: make([]float64, n), Y: make([]float64, n)}
	if n < 2 {
		return emb, nil
	}
	points := len(fluxes[0])
	if points == 0 {
		return emb, nil
	}

	data := mat.NewDense(n, points, nil)
	for i, row := range fluxes {
		if len(row) != points {
			return Embedding{}, fmt.Errorf("pca: row %d has %d points, expected %d", i, len(row), points)
		}
		data.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return Embedding{}, fmt.Errorf("pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	for j := 0; j < points; j++ {
		col := mat.Col(nil, j, data)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			data.Set(i, j, data.At(i, j)-mean)
		}
	}

	_, k := vecs.Dims()
	k = min(k, 2)
	var proj mat.Dense
	proj.Mul(data, vecs.Slice(0, points, 0, k))
	for i := 0; i < n; i++ {
		emb.X[i] = proj.At(i, 0)
		if k > 1 {
			emb.Y[i] = proj.At(i, 1)
		}
	}
	return emb, nil
}
