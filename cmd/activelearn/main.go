// Command activelearn runs one iteration of the active-learning loop.
//
//	activelearn [flags] <config.json> <result-dir>
//
// The result directory must already exist. On success it holds the
// iteration's outputs and new_config.json, the configuration of the next
// iteration.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"github.com/banshee-data/spectra.report/internal/activelearn"
	"github.com/banshee-data/spectra.report/internal/config"
	"github.com/banshee-data/spectra.report/internal/monitoring"
	"github.com/banshee-data/spectra.report/internal/storage/sqlite"
	"github.com/banshee-data/spectra.report/internal/version"
)

var (
	seed        = flag.Uint64("seed", 0, "random seed for training and perf-est sampling (0 = system random)")
	plots       = flag.Bool("plots", false, "render dim_reduc.png and dim_reduc.html alongside dim_reduc.json")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <config.json> <result-dir>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println("activelearn", version.String())
		return
	}
	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Arg(1), *seed, *plots); err != nil {
		log.Fatalf("activelearn: %v", err)
	}
}

// run executes the iteration configured at cfgPath into resultDir.
func run(cfgPath, resultDir string, seed uint64, plots bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg = cfg.WithResultDir(resultDir)

	opts := activelearn.Options{Plots: plots}
	if seed != 0 {
		opts.Seed = seed
		opts.Rand = rand.NewPCG(seed, seed)
	} else {
		opts.Seed = rand.Uint64()
	}

	if cfg.LedgerPath != "" {
		ledger, err := sqlite.OpenLedger(cfg.LedgerPath)
		if err != nil {
			return err
		}
		defer ledger.Close()
		opts.Ledger = ledger
	}

	monitoring.Logf("activelearn %s: iteration %d into %s", version.Version, cfg.Iteration, resultDir)
	_, err = activelearn.New(opts).Run(cfg)
	return err
}
