// Command ledger inspects and maintains the run ledger shared by a chain of
// iterations.
//
//	ledger -db ledger.db runs
//	ledger -db ledger.db selections <run-id>
//	ledger -db ledger.db migrate up|down|status
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/banshee-data/spectra.report/internal/storage/sqlite"
)

var dbPath = flag.String("db", "ledger.db", "path to the run ledger")

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: %s [-db ledger.db] <command>\n\n", os.Args[0])
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  runs                     list recorded runs, oldest first")
	fmt.Fprintln(out, "  selections <run-id>      list the spectra a run selected")
	fmt.Fprintln(out, "  migrate up|down|status   manage the ledger schema")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	if err := run(os.Stdout, *dbPath, flag.Args()); err != nil {
		log.Fatalf("ledger: %v", err)
	}
}

func run(w io.Writer, path string, args []string) error {
	switch args[0] {
	case "runs":
		return withLedger(path, func(l *sqlite.Ledger) error { return printRuns(w, l) })
	case "selections":
		if len(args) != 2 {
			return fmt.Errorf("usage: selections <run-id>")
		}
		return withLedger(path, func(l *sqlite.Ledger) error { return printSelections(w, l, args[1]) })
	case "migrate":
		if len(args) != 2 {
			return fmt.Errorf("usage: migrate up|down|status")
		}
		return migrate(w, path, args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func withLedger(path string, fn func(*sqlite.Ledger) error) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	l, err := sqlite.OpenLedger(path)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(l)
}

func printRuns(w io.Writer, l *sqlite.Ledger) error {
	runs, err := l.Runs()
	if err != nil {
		return err
	}
	for _, r := range runs {
		took := "-"
		if !r.FinishedAt.IsZero() {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s  iter=%d  %-9s  pool=%d labeled=%d  took=%s  %s\n",
			r.ID, r.Iteration, r.Status, r.PoolSize, r.LabeledSize, took, r.ResultDir)
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
	return nil
}

func printSelections(w io.Writer, l *sqlite.Ledger, runID string) error {
	sel, err := l.Selections(runID)
	if err != nil {
		return err
	}
	if len(sel) == 0 {
		return fmt.Errorf("no selections recorded for run %s", runID)
	}
	for _, s := range sel {
		if s.PredictedLabel < 0 {
			fmt.Fprintf(w, "%-9s %3d  %s\n", s.Set, s.Position, s.Filename)
			continue
		}
		fmt.Fprintf(w, "%-9s %3d  %s  predicted=%d entropy=%.4f\n", s.Set, s.Position, s.Filename, s.PredictedLabel, s.Entropy)
	}
	return nil
}

func migrate(w io.Writer, path, action string) error {
	l, err := sqlite.ConnectLedger(path)
	if err != nil {
		return err
	}
	defer l.Close()

	switch action {
	case "up":
		err = l.MigrateUp()
	case "down":
		err = l.MigrateDown()
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
	if err != nil {
		return err
	}

	version, dirty, err := l.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "version %d (dirty: %v)\n", version, dirty)
	return nil
}
