package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

func TestNext_Zero(t *testing.T) {
	cfg := validConfig()
	cfg.Iteration = 0
	cfg.TrainingDataPath = "/data/seed.db"
	cfg.PerfEstListPath = "/stale/perf_est_list.json"
	cfg = cfg.WithResultDir("/runs/0")

	next, err := Next(cfg, nil)
	require.NoError(t, err)

	want := cfg
	want.ResultDirPath = ""
	want.Iteration = 1
	want.PoolDataPath = "/runs/0/result.db"
	want.TrainingDataToAddPath = "/runs/0/result.db"
	want.OracleDataToAddPath = "/runs/0/oracle_data.json"
	want.PerfEstListPath = ""
	if diff := cmp.Diff(want, next); diff != "" {
		t.Errorf("Next(zero) mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, cfg.Iteration, "input config is not mutated")
}

func TestNext_Regular(t *testing.T) {
	cfg := validConfig().WithResultDir("/runs/2")
	cfg.Iteration = 2

	next, err := Next(cfg, History{{4, 1}})
	require.NoError(t, err)

	assert.Equal(t, 3, next.Iteration)
	assert.Equal(t, "/runs/2/training_data.db", next.TrainingDataPath)
	assert.Equal(t, "/runs/2/result.db", next.TrainingDataToAddPath)
	assert.Equal(t, "/runs/2/result.db", next.PoolDataPath)
	assert.Equal(t, "/runs/2/oracle_data.json", next.OracleDataToAddPath)
	assert.Equal(t, "/runs/2/perf_est_list.json", next.PerfEstListPath)
	assert.Empty(t, next.ResultDirPath)
	assert.Equal(t, cfg.Classes, next.Classes)
	assert.NoError(t, next.Validate())

	next.Classes[0] = "mutated"
	assert.Equal(t, "other", cfg.Classes[0], "next config must not share slices")
}

func TestNext_HistoryLengthMismatch(t *testing.T) {
	cfg := validConfig().WithResultDir("/runs/3")
	cfg.Iteration = 3

	_, err := Next(cfg, History{{1}})
	assert.True(t, errors.Is(err, spectra.ErrValidation), "got %v", err)
}

func TestValidateHistory(t *testing.T) {
	tests := []struct {
		iteration int
		history   History
		ok        bool
	}{
		{1, History{}, true},
		{1, nil, true},
		{1, History{{0}}, false},
		{2, History{{0, 1}}, true},
		{2, History{}, false},
		{4, History{{0}, {}, {3}}, true},
		{4, History{{0}, {1}}, false},
		{0, History{}, false},
	}
	for _, tt := range tests {
		err := ValidateHistory(tt.iteration, tt.history)
		if tt.ok {
			assert.NoError(t, err, "iteration %d with %d batches", tt.iteration, len(tt.history))
		} else {
			assert.ErrorIs(t, err, spectra.ErrValidation, "iteration %d with %d batches", tt.iteration, len(tt.history))
		}
	}
}

func TestLoadHistory(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, SaveHistory(fsys, "/runs/2/perf_est_list.json", History{{3, 1}, {}}))

	cfg := validConfig()
	cfg.Iteration = 3
	cfg.PerfEstListPath = "/runs/2/perf_est_list.json"
	h, err := LoadHistory(fsys, cfg)
	require.NoError(t, err)
	assert.Equal(t, History{{3, 1}, {}}, h)

	cfg.Iteration = 4
	_, err = LoadHistory(fsys, cfg)
	assert.ErrorIs(t, err, spectra.ErrValidation)
}

func TestLoadHistory_FirstIterationSkipsFile(t *testing.T) {
	cfg := validConfig()
	cfg.Iteration = 1
	cfg.PerfEstListPath = "/does/not/exist.json"

	h, err := LoadHistory(fsutil.NewMemoryFileSystem(), cfg)
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestLoadHistory_MissingPath(t *testing.T) {
	cfg := validConfig()
	cfg.Iteration = 2
	cfg.PerfEstListPath = ""
	_, err := LoadHistory(fsutil.NewMemoryFileSystem(), cfg)
	assert.ErrorIs(t, err, spectra.ErrValidation)
}

func TestHistoryAppend(t *testing.T) {
	h := History{{1}}
	next := h.Append([]int{2, 3})
	assert.Equal(t, History{{1}, {2, 3}}, next)
	assert.Len(t, h, 1, "receiver is unchanged")
	assert.Equal(t, History{{}}, History{}.Append(nil))
}
