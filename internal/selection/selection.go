// Package selection turns classifier probabilities into the three index sets
// an iteration hands to the oracle: the most uncertain spectra for labelling,
// a random sample of predicted candidates for performance estimation, and the
// full list of predicted candidates.
//
// All index sets are offsets into the filtered pool that was predicted on.
// The sets are independent and may overlap.
package selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Predictions holds the per-spectrum scalars derived from a probability matrix.
type Predictions struct {
	Labels    []int     // argmax class index
	Entropies []float64 // Shannon entropy in nats
}

// Indexes are the selection outputs for one iteration.
type Indexes struct {
	Oracle    []int
	PerfEst   []int
	Candidate []int
}

// Policy carries the selection parameters taken from the iteration configuration.
type Policy struct {
	Classes          []string
	CandidateClasses []string
	OracleBatchSize  int
	PerfEstBatchSize int
}

// Summarize computes the predicted class and the entropy of each row of probs.
// Rows are normalised before the entropy is taken.
func Summarize(probs mat.Matrix) Predictions {
	rows, cols := probs.Dims()
	p := Predictions{
		Labels:    make([]int, rows),
		Entropies: make([]float64, rows),
	}
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, probs)
		p.Labels[i] = floats.MaxIdx(row)
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		}
		p.Entropies[i] = stat.Entropy(row)
	}
	return p
}

// CandidateClassIndexes returns the positions in classes whose name appears
// in candidates, in class-list order.
func CandidateClassIndexes(classes, candidates []string) []int {
	want := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		want[c] = struct{}{}
	}
	out := []int{}
	for i, c := range classes {
		if _, ok := want[c]; ok {
			out = append(out, i)
		}
	}
	return out
}

// CandidateIndexes returns the positions of spectra whose predicted class is
// one of classIdx, in ascending order.
func CandidateIndexes(predicted []int, classIdx []int) []int {
	want := make(map[int]struct{}, len(classIdx))
	for _, c := range classIdx {
		want[c] = struct{}{}
	}
	out := []int{}
	for i, label := range predicted {
		if _, ok := want[label]; ok {
			out = append(out, i)
		}
	}
	return out
}

// OracleIndexes returns the k spectra with the highest entropy. Entropies are
// stable-sorted ascending and the tail is taken, so among equal scores the
// lower original index is dropped first. The result is in ascending entropy
// order. k larger than the pool returns the whole pool.
func OracleIndexes(entropies []float64, k int) []int {
	order := make([]int, len(entropies))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entropies[order[a]] < entropies[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}
	if k < 0 {
		k = 0
	}
	return append([]int{}, order[len(order)-k:]...)
}

// PerfEstIndexes draws min(size, len(candidates)) distinct candidate
// positions uniformly at random. A nil src uses the global random source.
func PerfEstIndexes(candidates []int, size int, src rand.Source) []int {
	if size > len(candidates) {
		size = len(candidates)
	}
	if size <= 0 {
		return []int{}
	}
	picks := make([]int, size)
	sampleuv.WithoutReplacement(picks, len(candidates), src)
	out := make([]int, size)
	for i, p := range picks {
		out[i] = candidates[p]
	}
	return out
}

// Select derives all three index sets from a prediction summary.
func (p Policy) Select(pred Predictions, src rand.Source) Indexes {
	classIdx := CandidateClassIndexes(p.Classes, p.CandidateClasses)
	candidates := CandidateIndexes(pred.Labels, classIdx)
	return Indexes{
		Oracle:    OracleIndexes(pred.Entropies, p.OracleBatchSize),
		PerfEst:   PerfEstIndexes(candidates, p.PerfEstBatchSize, src),
		Candidate: candidates,
	}
}

// Union returns the sorted, deduplicated union of the given index sets.
func Union(sets ...[]int) []int {
	seen := make(map[int]struct{})
	out := []int{}
	for _, set := range sets {
		for _, i := range set {
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
