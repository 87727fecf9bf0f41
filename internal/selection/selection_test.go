package selection

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Five pool items over three classes with hand-computed entropies.
func syntheticProbs() *mat.Dense {
	return mat.NewDense(5, 3, []float64{
		1, 0, 0, // entropy 0
		0.5, 0.5, 0, // ln 2
		1.0 / 3, 1.0 / 3, 1.0 / 3, // ln 3
		0.1, 0.8, 0.1,
		0, 0.25, 0.75,
	})
}

func TestSummarize(t *testing.T) {
	pred := Summarize(syntheticProbs())

	assert.Equal(t, []int{0, 0, 0, 1, 2}, pred.Labels, "argmax keeps the first maximum")

	want := []float64{
		0,
		math.Ln2,
		math.Log(3),
		-(0.1*math.Log(0.1) + 0.8*math.Log(0.8) + 0.1*math.Log(0.1)),
		-(0.25*math.Log(0.25) + 0.75*math.Log(0.75)),
	}
	require.Len(t, pred.Entropies, len(want))
	for i := range want {
		assert.InDelta(t, want[i], pred.Entropies[i], 1e-12, "entropy[%d]", i)
	}
}

func TestSummarize_NormalisesRows(t *testing.T) {
	pred := Summarize(mat.NewDense(1, 2, []float64{2, 2}))
	assert.InDelta(t, math.Ln2, pred.Entropies[0], 1e-12)
}

func TestOracleIndexes_TopK(t *testing.T) {
	pred := Summarize(syntheticProbs())
	// Ranking ascending: 0 (0), 4 (0.56), 3 (0.64), 1 (0.69), 2 (1.10)
	assert.Equal(t, []int{3, 1, 2}, OracleIndexes(pred.Entropies, 3))
	assert.Equal(t, []int{2}, OracleIndexes(pred.Entropies, 1))
}

func TestOracleIndexes_CapsAtPoolSize(t *testing.T) {
	got := OracleIndexes([]float64{0.3, 0.1, 0.2}, 10)
	assert.Equal(t, []int{1, 2, 0}, got)
}

func TestOracleIndexes_TiesDropLowerIndexFirst(t *testing.T) {
	got := OracleIndexes([]float64{0.5, 0.5, 0.5, 0.1}, 2)
	assert.Equal(t, []int{1, 2}, got)
}

func TestCandidateClassIndexes(t *testing.T) {
	classes := []string{"other", "single peak", "double peak", "emission"}

	assert.Equal(t, []int{1, 3}, CandidateClassIndexes(classes, []string{"emission", "single peak"}))
	assert.Equal(t, []int{}, CandidateClassIndexes(classes, nil))
	assert.Equal(t, []int{2}, CandidateClassIndexes(classes, []string{"double peak", "unknown"}))
}

func TestCandidateIndexes(t *testing.T) {
	predicted := []int{0, 1, 2, 3, 1, 0, 3}
	assert.Equal(t, []int{1, 3, 4, 6}, CandidateIndexes(predicted, []int{1, 3}))
	assert.Equal(t, []int{}, CandidateIndexes(predicted, []int{}))
}

func TestPerfEstIndexes_SubsetWithoutRepeats(t *testing.T) {
	candidates := []int{2, 5, 7, 11, 13, 17}

	for seed := uint64(1); seed <= 20; seed++ {
		got := PerfEstIndexes(candidates, 4, rand.NewPCG(seed, seed))
		require.Len(t, got, 4)
		assert.Subset(t, candidates, got)

		seen := map[int]bool{}
		for _, i := range got {
			assert.False(t, seen[i], "index %d repeated", i)
			seen[i] = true
		}
	}
}

func TestPerfEstIndexes_SizeCappedByCandidates(t *testing.T) {
	got := PerfEstIndexes([]int{4, 9}, 10, rand.NewPCG(7, 7))
	assert.ElementsMatch(t, []int{4, 9}, got)

	assert.Empty(t, PerfEstIndexes(nil, 10, rand.NewPCG(7, 7)))
	assert.Empty(t, PerfEstIndexes([]int{1, 2}, 0, nil))
}

func TestPerfEstIndexes_DeterministicForSeed(t *testing.T) {
	candidates := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	a := PerfEstIndexes(candidates, 5, rand.NewPCG(42, 42))
	b := PerfEstIndexes(candidates, 5, rand.NewPCG(42, 42))
	assert.Equal(t, a, b)
}

func TestPolicySelect(t *testing.T) {
	policy := Policy{
		Classes:          []string{"other", "single peak", "double peak"},
		CandidateClasses: []string{"double peak", "single peak"},
		OracleBatchSize:  2,
		PerfEstBatchSize: 1,
	}
	pred := Summarize(syntheticProbs())

	idx := policy.Select(pred, rand.NewPCG(3, 3))

	assert.Equal(t, []int{3, 4}, idx.Candidate)
	assert.Equal(t, []int{1, 2}, idx.Oracle)
	require.Len(t, idx.PerfEst, 1)
	assert.Subset(t, idx.Candidate, idx.PerfEst)
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []int{0, 2, 3, 7}, Union([]int{7, 2}, []int{3, 2}, nil, []int{0}))
	assert.Equal(t, []int{}, Union())
}
