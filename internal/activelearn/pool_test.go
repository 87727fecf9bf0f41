package activelearn

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectra.report/internal/spectra"
)

func TestReconcilePool(t *testing.T) {
	pool := &spectra.Dataset{
		Filenames: []string{"p1", "a", "p2", "p1", "p3"},
		Wave:      wave3,
		Fluxes:    [][]float64{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}, {5, 0, 0}},
	}

	got, err := ReconcilePool(pool, primarySet())
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2", "p3"}, got.Filenames)
	assert.Equal(t, [][]float64{{1, 0, 0}, {3, 0, 0}, {5, 0, 0}}, got.Fluxes, "first occurrence of p1 wins")
	assert.False(t, got.Labeled())
}

// For random pools and labeled sets, the reconciled pool holds exactly the
// unique unlabeled filenames, in first-occurrence order.
func TestReconcilePool_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))

	for trial := 0; trial < 50; trial++ {
		poolSize, labeledSize := 1+rng.IntN(30), rng.IntN(15)
		pool := &spectra.Dataset{Wave: wave3}
		for i := 0; i < poolSize; i++ {
			pool.Filenames = append(pool.Filenames, fmt.Sprintf("s%d", rng.IntN(20)))
			pool.Fluxes = append(pool.Fluxes, []float64{float64(i), 0, 0})
		}
		labeled := spectra.Empty(true)
		labeled.Wave = wave3
		for i := 0; i < labeledSize; i++ {
			labeled.Filenames = append(labeled.Filenames, fmt.Sprintf("s%d", rng.IntN(20)))
			labeled.Fluxes = append(labeled.Fluxes, []float64{0, 0, 0})
			labeled.Labels = append(labeled.Labels, 0)
		}
		isLabeled := labeled.FilenameSet()

		var want []string
		seen := map[string]bool{}
		for _, name := range pool.Filenames {
			if seen[name] {
				continue
			}
			seen[name] = true
			if _, ok := isLabeled[name]; !ok {
				want = append(want, name)
			}
		}

		got, err := ReconcilePool(pool, labeled)
		if len(want) == 0 {
			assert.ErrorIs(t, err, spectra.ErrValidation, "trial %d", trial)
			continue
		}
		require.NoError(t, err, "trial %d", trial)
		assert.Equal(t, want, got.Filenames, "trial %d", trial)
	}
}

func TestReconcilePool_Errors(t *testing.T) {
	labeled := primarySet()

	_, err := ReconcilePool(&spectra.Dataset{
		Filenames: []string{"a", "b"},
		Wave:      wave3,
		Fluxes:    [][]float64{{0, 0, 0}, {0, 0, 0}},
	}, labeled)
	assert.ErrorIs(t, err, spectra.ErrValidation)
	assert.ErrorContains(t, err, "already in the training data")

	_, err = ReconcilePool(&spectra.Dataset{
		Filenames: []string{"new"},
		Wave:      []float64{1, 2},
		Fluxes:    [][]float64{{0, 0}},
	}, labeled)
	assert.ErrorIs(t, err, spectra.ErrValidation)
	assert.ErrorContains(t, err, "different wave axes")
}
