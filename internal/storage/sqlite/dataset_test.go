package sqlite

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

func init() {
	monitoring.SetLogger(nil)
}

func awkwardFloats() []float64 {
	return []float64{
		0.1, -0.0, math.SmallestNonzeroFloat64, math.MaxFloat64,
		1.0 / 3.0, math.Inf(1), math.Inf(-1), 6.02214076e23,
	}
}

func labeledDataset() *spectra.Dataset {
	return &spectra.Dataset{
		Filenames: []string{"obj-0001.fits", "obj-0002.fits", "ünïcødé.fits"},
		Wave:      []float64{4000.5, 4001.25, 4002.125},
		Fluxes: [][]float64{
			{0.1, 0.2, 0.3},
			{1.0 / 3.0, -0.0, math.SmallestNonzeroFloat64},
			{math.MaxFloat64, 1e-300, 42},
		},
		Labels: []int{0, 1, 0},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	in := awkwardFloats()
	out, err := decodeFloats(encodeFloats(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, math.Float64bits(in[i]), math.Float64bits(out[i]), "value %d", i)
	}

	_, err = decodeFloats([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestTrainingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.db")
	in := labeledDataset()
	require.NoError(t, WriteTraining(path, in))

	out, err := ReadTraining(path)
	require.NoError(t, err)

	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("training round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, math.Float64bits(-0.0), math.Float64bits(out.Fluxes[1][1]), "negative zero survives")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must be renamed away")
}

func TestWriteTraining_RequiresLabels(t *testing.T) {
	ds := labeledDataset()
	ds.Labels = nil
	err := WriteTraining(filepath.Join(t.TempDir(), "t.db"), ds)
	assert.ErrorContains(t, err, "no labels")
}

func TestEmptyTrainingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, WriteTraining(path, spectra.Empty(true)))

	out, err := ReadTraining(path)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.True(t, out.Labeled())
}

func TestPoolRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	in := labeledDataset()
	in.Labels = nil
	require.NoError(t, WritePool(path, in))

	out, err := ReadPool(path)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("pool round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = ReadTraining(path)
	assert.ErrorContains(t, err, `expected "training"`)
}

func TestReadPool_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := ReadPool(path)
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "reading must not create the file")
}

func TestResultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.db")
	pool := labeledDataset()
	pool.Labels = nil
	in := &Bundle{
		Spectra:         pool,
		PredictedLabels: []int{1, 0, 1},
		Entropies:       []float64{0.5, 1.0 / 7.0, 0},
		Oracle:          []int{2, 0},
		PerfEst:         []int{},
		Candidate:       []int{0, 2},
		Model:           []byte(`{"weights":"AAAA"}`),
	}
	require.NoError(t, WriteResult(path, in))

	out, err := ReadResult(path)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("result round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResult_OptionalFieldsStayAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.db")
	pool := labeledDataset()
	pool.Labels = nil
	in := &Bundle{
		Spectra:         pool,
		PredictedLabels: []int{1, 0, 1},
		Entropies:       []float64{0.5, 0.25, 0},
		Oracle:          []int{2},
		PerfEst:         []int{0},
	}
	require.NoError(t, WriteResult(path, in))

	out, err := ReadResult(path)
	require.NoError(t, err)
	assert.Nil(t, out.Candidate)
	assert.Nil(t, out.Model)
}

func TestZeroResultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.db")
	pool := labeledDataset()
	pool.Labels = nil
	in := &Bundle{Spectra: pool, Oracle: []int{0, 1}}
	require.NoError(t, WriteResult(path, in))

	out, err := ReadResult(path)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("zero result mismatch (-want +got):\n%s", diff)
	}

	// A result bundle is the next iteration's pool.
	next, err := ReadPool(path)
	require.NoError(t, err)
	assert.Equal(t, pool.Filenames, next.Filenames)
	assert.False(t, next.Labeled())
}

func TestWriteResult_Validation(t *testing.T) {
	pool := labeledDataset()
	pool.Labels = nil
	dir := t.TempDir()

	err := WriteResult(filepath.Join(dir, "a.db"), &Bundle{Spectra: pool, Oracle: []int{3}})
	assert.ErrorContains(t, err, "out of range")

	err = WriteResult(filepath.Join(dir, "b.db"), &Bundle{Spectra: pool, Entropies: []float64{1}})
	assert.ErrorContains(t, err, "entropies")

	err = WriteResult(filepath.Join(dir, "c.db"), &Bundle{})
	assert.ErrorContains(t, err, "no spectra")
}

func TestWriteReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.db")
	first := labeledDataset()
	require.NoError(t, WriteTraining(path, first))

	second := first.Select([]int{2})
	require.NoError(t, WriteTraining(path, second))

	out, err := ReadTraining(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ünïcødé.fits"}, out.Filenames)
}
