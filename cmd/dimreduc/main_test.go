package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/report"
	"github.com/banshee-data/spectra.report/internal/spectra"
	"github.com/banshee-data/spectra.report/internal/storage/sqlite"
	"github.com/banshee-data/spectra.report/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func writeJob(t *testing.T, dir string, job jobConfig) string {
	t.Helper()
	path := filepath.Join(dir, "dimreduc.json")
	require.NoError(t, fsutil.WriteJSON(fsutil.OSFileSystem{}, path, job))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	dataPath := filepath.Join(dir, "training_data.db")
	require.NoError(t, sqlite.WriteTraining(dataPath, testutil.Labeled("train", 16, 4, 4, 4)))

	cfgPath := writeJob(t, dir, jobConfig{DataPath: dataPath, Classes: testutil.Classes})
	require.NoError(t, run(cfgPath, out, true))

	var d report.DimReduc
	require.NoError(t, fsutil.ReadJSON(fsutil.OSFileSystem{}, filepath.Join(out, config.DimReducFile), &d))
	assert.Len(t, d.X, 12)
	assert.Len(t, d.Y, 12)
	assert.Equal(t, testutil.Classes, d.Classes)

	for _, name := range []string{config.DimReducPNGFile, config.DimReducHTML} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
}

func TestRun_SkipsHTMLByDefault(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "training_data.db")
	require.NoError(t, sqlite.WriteTraining(dataPath, testutil.Labeled("train", 16, 3, 3)))

	require.NoError(t, run(writeJob(t, dir, jobConfig{DataPath: dataPath, Classes: testutil.Classes}), dir, false))
	_, err := os.Stat(filepath.Join(dir, config.DimReducHTML))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_LabelOutsideClasses(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "training_data.db")
	require.NoError(t, sqlite.WriteTraining(dataPath, testutil.Labeled("train", 16, 2, 2, 2)))

	err := run(writeJob(t, dir, jobConfig{DataPath: dataPath, Classes: []string{"other", "single peak"}}), dir, false)
	assert.ErrorIs(t, err, spectra.ErrValidation)
}

func TestLoadJobConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		job  jobConfig
	}{
		{"missing data path", jobConfig{Classes: []string{"a"}}},
		{"missing classes", jobConfig{DataPath: "x.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadJobConfig(writeJob(t, dir, tt.job))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}

	_, err := loadJobConfig(filepath.Join(dir, "job.yaml"))
	assert.ErrorContains(t, err, ".json extension")
}
