// Package classifier defines the train/predict contract the iteration
// controller depends on, together with a gonum-based softmax implementation.
//
// The controller never looks inside a Model and never interprets
// Hyperparameters; both are passed through to the Classifier unchanged.
package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Hyperparameters are the training and prediction knobs carried by the
// iteration configuration.
type Hyperparameters struct {
	Monitor          string  // metric watched by early stopping; only "loss" is supported
	MinDelta         float64 // minimum improvement that resets patience
	Patience         int     // epochs without improvement before stopping
	BatchSize        int     // training mini-batch size
	Epochs           int     // upper bound on training epochs
	PredictBatchSize int     // rows per prediction chunk
}

// Model is a fitted classifier.
type Model interface {
	// Classes returns the number of output classes.
	Classes() int

	// MarshalBinary serialises the fitted parameters.
	MarshalBinary() ([]byte, error)
}

// Classifier trains models and predicts class probabilities.
type Classifier interface {
	// Train fits a model on fluxes (one row of points values per spectrum)
	// and their integer labels in [0, classes).
	Train(fluxes [][]float64, labels []int, points, classes int, hp Hyperparameters) (Model, error)

	// Predict returns a len(fluxes) x Classes() matrix whose rows sum to 1.
	// Row order matches the input order.
	Predict(model Model, fluxes [][]float64, points int, hp Hyperparameters) (*mat.Dense, error)
}

// Balancer rebalances a training set before fitting. Implementations return
// new slices and leave their inputs untouched.
type Balancer interface {
	Balance(fluxes [][]float64, labels []int) ([][]float64, []int, error)
}

// checkInputs validates the shape of a training or prediction request.
func checkInputs(fluxes [][]float64, points int) error {
	if len(fluxes) == 0 {
		return fmt.Errorf("no spectra supplied")
	}
	if points < 1 {
		return fmt.Errorf("spectra must have at least one point, got %d", points)
	}
	for i, row := range fluxes {
		if len(row) != points {
			return fmt.Errorf("spectrum %d has %d points, expected %d", i, len(row), points)
		}
	}
	return nil
}

// chunks splits [0, n) into consecutive ranges of at most size rows.
func chunks(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
