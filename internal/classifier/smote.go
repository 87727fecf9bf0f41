package classifier

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SMOTE oversamples every minority class up to the size of the largest class
// by interpolating between a sample and one of its K nearest same-class
// neighbours. Classes with a single sample are duplicated instead.
type SMOTE struct {
	K    int
	Seed uint64
}

// Balance implements Balancer.
func (s *SMOTE) Balance(fluxes [][]float64, labels []int) ([][]float64, []int, error) {
	if len(fluxes) != len(labels) {
		return nil, nil, fmt.Errorf("smote: %d spectra but %d labels", len(fluxes), len(labels))
	}
	k := s.K
	if k < 1 {
		k = 5
	}

	byClass := map[int][]int{}
	var classes []int
	for i, l := range labels {
		if _, ok := byClass[l]; !ok {
			classes = append(classes, l)
		}
		byClass[l] = append(byClass[l], i)
	}
	sort.Ints(classes)

	target := 0
	for _, members := range byClass {
		target = max(target, len(members))
	}

	outX := append(make([][]float64, 0, target*len(classes)), fluxes...)
	outY := append(make([]int, 0, target*len(classes)), labels...)

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed+1))
	for _, c := range classes {
		members := byClass[c]
		need := target - len(members)
		if need == 0 {
			continue
		}
		neighbours := nearestNeighbours(fluxes, members, k)
		for n := 0; n < need; n++ {
			pick := rng.IntN(len(members))
			base := fluxes[members[pick]]
			synthetic := make([]float64, len(base))
			if len(neighbours[pick]) == 0 {
				copy(synthetic, base)
			} else {
				other := fluxes[neighbours[pick][rng.IntN(len(neighbours[pick]))]]
				floats.SubTo(synthetic, other, base)
				floats.AddScaledTo(synthetic, base, rng.Float64(), synthetic)
			}
			outX = append(outX, synthetic)
			outY = append(outY, c)
		}
	}
	return outX, outY, nil
}

// nearestNeighbours returns, for each member, the indexes (into fluxes) of
// its k closest other members by Euclidean distance.
func nearestNeighbours(fluxes [][]float64, members []int, k int) [][]int {
	k = min(k, len(members)-1)
	out := make([][]int, len(members))
	type cand struct {
		idx  int
		dist float64
	}
	for i, a := range members {
		cands := make([]cand, 0, len(members)-1)
		for _, b := range members {
			if a == b {
				continue
			}
			cands = append(cands, cand{idx: b, dist: floats.Distance(fluxes[a], fluxes[b], 2)})
		}
		sort.SliceStable(cands, func(x, y int) bool { return cands[x].dist < cands[y].dist })
		for _, c := range cands[:k] {
			out[i] = append(out[i], c.idx)
		}
	}
	return out
}
