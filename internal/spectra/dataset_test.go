package spectra

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labeledFixture() *Dataset {
	return &Dataset{
		Filenames: []string{"a", "b", "a", "c", "b"},
		Wave:      []float64{4000, 4500, 5000},
		Fluxes: [][]float64{
			{0.1, 0.2, 0.3},
			{1.1, 1.2, 1.3},
			{9.1, 9.2, 9.3},
			{2.1, 2.2, 2.3},
			{8.1, 8.2, 8.3},
		},
		Labels: []int{0, 1, 1, 0, 0},
	}
}

func TestDedupByFilename_FirstOccurrenceWins(t *testing.T) {
	got := labeledFixture().DedupByFilename()

	want := &Dataset{
		Filenames: []string{"a", "b", "c"},
		Wave:      []float64{4000, 4500, 5000},
		Fluxes: [][]float64{
			{0.1, 0.2, 0.3},
			{1.1, 1.2, 1.3},
			{2.1, 2.2, 2.3},
		},
		Labels: []int{0, 1, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DedupByFilename mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupByFilename_Idempotent(t *testing.T) {
	once := labeledFixture().DedupByFilename()
	twice := once.DedupByFilename()
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second dedup changed the dataset (-once +twice):\n%s", diff)
	}

	self := Concat(once, once, once.Wave).DedupByFilename()
	if diff := cmp.Diff(once, self); diff != "" {
		t.Errorf("merging with itself changed the dataset (-want +got):\n%s", diff)
	}
}

func TestWithout(t *testing.T) {
	d := labeledFixture()
	got := d.Without(map[string]struct{}{"b": {}, "zzz": {}})

	assert.Equal(t, []string{"a", "a", "c"}, got.Filenames)
	assert.Equal(t, []int{0, 1, 0}, got.Labels)
	for _, name := range got.Filenames {
		assert.NotEqual(t, "b", name)
	}
}

func TestSelect_UnlabeledStaysUnlabeled(t *testing.T) {
	d := labeledFixture()
	d.Labels = nil

	got := d.Select([]int{3, 0})
	assert.False(t, got.Labeled())
	assert.Equal(t, []string{"c", "a"}, got.Filenames)
	assert.Equal(t, []float64{2.1, 2.2, 2.3}, got.Fluxes[0])
}

func TestConcat(t *testing.T) {
	a := Empty(true)
	b := labeledFixture()

	got := Concat(a, b, b.Wave)
	require.NoError(t, got.Validate())
	assert.Equal(t, b.Filenames, got.Filenames)
	assert.Equal(t, b.Labels, got.Labels)

	unlabeled := Empty(false)
	got = Concat(b, unlabeled, b.Wave)
	assert.False(t, got.Labeled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Dataset)
	}{
		{"short fluxes", func(d *Dataset) { d.Fluxes = d.Fluxes[:2] }},
		{"short labels", func(d *Dataset) { d.Labels = d.Labels[:1] }},
		{"ragged row", func(d *Dataset) { d.Fluxes[1] = []float64{1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := labeledFixture()
			tt.mutate(d)
			err := d.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}

	assert.NoError(t, labeledFixture().Validate())
	assert.NoError(t, Empty(false).Validate())
}

func TestFirstIndex(t *testing.T) {
	idx := FirstIndex([]string{"x", "y", "x", "z", "y"})
	assert.Equal(t, map[string]int{"x": 0, "y": 1, "z": 3}, idx)
}

func TestSameWave(t *testing.T) {
	assert.True(t, SameWave([]float64{1, 2, 3}, []float64{1, 2, 3}))
	assert.False(t, SameWave([]float64{1, 2, 3}, []float64{1, 2, 3.0000001}))
	assert.False(t, SameWave([]float64{1, 2}, []float64{1, 2, 3}))
	assert.True(t, SameWave(nil, []float64{}))
}
