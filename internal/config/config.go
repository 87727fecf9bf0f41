package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/spectra.report/internal/classifier"
	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/spectra"
)

// Artifact file names written into the result directory.
const (
	ResultFile      = "result.db"
	TrainingFile    = "training_data.db"
	OracleFile      = "oracle_data.json"
	PerfEstFile     = "perf_est_list.json"
	NewConfigFile   = "new_config.json"
	PrepSpectraFile = "prep_spectra.json"
	DimReducFile    = "dim_reduc.json"
	DimReducPNGFile = "dim_reduc.png"
	DimReducHTML    = "dim_reduc.html"
)

// Config is the configuration of one active-learning iteration. It is
// loaded once, never mutated during the run, and used to derive the next
// iteration's configuration.
type Config struct {
	Iteration        int      `json:"iteration"`
	Classes          []string `json:"classes"`
	CandidateClasses []string `json:"candidate_classes"`

	TrainingDataPath      string `json:"training_data_path"`
	TrainingDataToAddPath string `json:"training_data_to_add_path"`
	OracleDataToAddPath   string `json:"oracle_data_to_add_path"`
	PoolDataPath          string `json:"pool_data_path"`

	OracleBatchSize  int  `json:"oracle_batch_size"`
	PerfEstBatchSize int  `json:"perf_est_batch_size"`
	ShowCandidates   bool `json:"show_candidates"`
	SaveModel        bool `json:"save_model"`

	MinDeltaTrain    float64 `json:"min_delta_train"`
	PatienceTrain    int     `json:"patience_train"`
	BatchSizeTrain   int     `json:"batch_size_train"`
	EpochsTrain      int     `json:"epochs_train"`
	BatchSizePredict int     `json:"batch_size_predict"`

	PerfEstListPath string `json:"perf_est_list_path"`

	// LedgerPath optionally names a run ledger database shared by every
	// iteration of a chain.
	LedgerPath string `json:"ledger_path,omitempty"`

	// ResultDirPath is supplied on the command line, never by the file.
	ResultDirPath string `json:"-"`
}

// requiredFields must be present in every configuration file.
var requiredFields = []string{"iteration", "classes", "candidate_classes", "pool_data_path"}

// Defaults returns a Config with every optional field at its default value.
func Defaults() Config {
	return Config{
		OracleBatchSize:  100,
		PerfEstBatchSize: 10,
		MinDeltaTrain:    1e-3,
		PatienceTrain:    10,
		BatchSizeTrain:   64,
		EpochsTrain:      1000,
		BatchSizePredict: 1 << 14,
	}
}

// Load reads a Config from a JSON file. Fields omitted from the file keep
// their defaults; required fields must be present.
func Load(path string) (Config, error) {
	data, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// ReadFile returns the contents of a JSON configuration file.
// The file must have a .json extension and be under 1 MiB.
func ReadFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (Config, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	for _, field := range requiredFields {
		if _, ok := present[field]; !ok {
			return Config{}, spectra.Validationf("config is missing required field %q", field)
		}
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are consistent.
// All failures wrap spectra.ErrValidation.
func (c Config) Validate() error {
	if c.Iteration < 0 {
		return spectra.Validationf("iteration must be non-negative, got %d", c.Iteration)
	}
	if len(c.Classes) == 0 {
		return spectra.Validationf("classes must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Classes))
	for _, name := range c.Classes {
		if _, dup := seen[name]; dup {
			return spectra.Validationf("class %q is listed more than once", name)
		}
		seen[name] = struct{}{}
	}
	for _, name := range c.CandidateClasses {
		if _, ok := seen[name]; !ok {
			return spectra.Validationf("candidate class %q is not one of the classes", name)
		}
	}
	if c.PoolDataPath == "" {
		return spectra.Validationf("pool_data_path must be set")
	}
	if c.TrainingDataToAddPath != "" && c.OracleDataToAddPath == "" {
		return spectra.Validationf("training_data_to_add_path requires oracle_data_to_add_path")
	}
	if c.OracleBatchSize < 1 {
		return spectra.Validationf("oracle_batch_size must be positive, got %d", c.OracleBatchSize)
	}
	if c.PerfEstBatchSize < 0 {
		return spectra.Validationf("perf_est_batch_size must be non-negative, got %d", c.PerfEstBatchSize)
	}
	if c.MinDeltaTrain < 0 {
		return spectra.Validationf("min_delta_train must be non-negative, got %g", c.MinDeltaTrain)
	}
	if c.PatienceTrain < 1 {
		return spectra.Validationf("patience_train must be positive, got %d", c.PatienceTrain)
	}
	if c.BatchSizeTrain < 1 {
		return spectra.Validationf("batch_size_train must be positive, got %d", c.BatchSizeTrain)
	}
	if c.EpochsTrain < 1 {
		return spectra.Validationf("epochs_train must be positive, got %d", c.EpochsTrain)
	}
	if c.BatchSizePredict < 1 {
		return spectra.Validationf("batch_size_predict must be positive, got %d", c.BatchSizePredict)
	}
	return nil
}

// WithResultDir returns a copy of c bound to the given result directory.
func (c Config) WithResultDir(dir string) Config {
	c.ResultDirPath = dir
	return c
}

// ResultPath joins name onto the result directory.
func (c Config) ResultPath(name string) string {
	return filepath.Join(c.ResultDirPath, name)
}

// Hyperparameters returns the training knobs handed to the classifier.
func (c Config) Hyperparameters() classifier.Hyperparameters {
	return classifier.Hyperparameters{
		Monitor:          classifier.MonitorLoss,
		MinDelta:         c.MinDeltaTrain,
		Patience:         c.PatienceTrain,
		BatchSize:        c.BatchSizeTrain,
		Epochs:           c.EpochsTrain,
		PredictBatchSize: c.BatchSizePredict,
	}
}

// Save writes c as indented JSON. ResultDirPath is not written.
func (c Config) Save(fsys fsutil.FileSystem, path string) error {
	return fsutil.WriteJSON(fsys, path, c)
}
