// Command dimreduc projects a labeled training set to two dimensions and
// writes the embedding with its scatter renders.
//
//	dimreduc [flags] <config.json> <output-dir>
//
// The config names the training container and the class list:
//
//	{"data_path": "training_data.db", "classes": ["other", "single peak"]}
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/dimreduc"
	"github.com/banshee-data/spectra.report/internal/fsutil"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/report"
	"github.com/banshee-data/spectra.report/internal/security"
	"github.com/banshee-data/spectra.report/internal/spectra"
	"github.com/banshee-data/spectra.report/internal/storage/sqlite"
	"github.com/banshee-data/spectra.report/internal/version"
)

var (
	html        = flag.Bool("html", false, "also write dim_reduc.html")
	showVersion = flag.Bool("version", false, "print version and exit")
)

type jobConfig struct {
	DataPath string   `json:"data_path"`
	Classes  []string `json:"classes"`
}

func loadJobConfig(path string) (jobConfig, error) {
	data, err := config.ReadFile(path)
	if err != nil {
		return jobConfig{}, err
	}
	var cfg jobConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return jobConfig{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if cfg.DataPath == "" {
		return jobConfig{}, spectra.Validationf("data_path must be set")
	}
	if len(cfg.Classes) == 0 {
		return jobConfig{}, spectra.Validationf("classes must not be empty")
	}
	return cfg, nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <config.json> <output-dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("dimreduc", version.String())
		return
	}
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Arg(1), *html); err != nil {
		log.Fatalf("dimreduc: %v", err)
	}
}

type output struct {
	name  string
	write func(fsutil.FileSystem, string, report.DimReduc) error
}

func run(cfgPath, outDir string, withHTML bool) error {
	cfg, err := loadJobConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := security.ValidateResultDir(outDir); err != nil {
		return err
	}

	ds, err := sqlite.ReadTraining(cfg.DataPath)
	if err != nil {
		return err
	}
	for i, l := range ds.Labels {
		if l < 0 || l >= len(cfg.Classes) {
			return spectra.Validationf("label %d of %s is outside [0, %d)", l, ds.Filenames[i], len(cfg.Classes))
		}
	}

	done := monitoring.Stage("project")
	emb, err := dimreduc.PCA{}.Project(ds.Fluxes)
	done()
	if err != nil {
		return fmt.Errorf("dimensionality reduction: %w", err)
	}
	d, err := report.NewDimReduc(emb, ds.Labels, cfg.Classes)
	if err != nil {
		return err
	}

	fsys := fsutil.OSFileSystem{}
	outputs := []output{
		{config.DimReducFile, report.WriteDimReduc},
		{config.DimReducPNGFile, report.WriteScatterPNG},
	}
	if withHTML {
		outputs = append(outputs, output{config.DimReducHTML, report.WriteScatterHTML})
	}
	for _, o := range outputs {
		path, err := security.ArtifactPath(outDir, o.name)
		if err != nil {
			return err
		}
		if err := o.write(fsys, path, d); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", path)
	}
	return nil
}
