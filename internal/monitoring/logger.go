// Package monitoring holds the process-wide diagnostic logger used by the
// iteration controller and its collaborators.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// now is swapped in tests.
var now = time.Now

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Stage logs the start of a named stage and returns a function that logs its
// completion together with the elapsed time. Typical use:
//
//	defer monitoring.Stage("train")()
func Stage(name string) func() {
	start := now()
	Logf("[%s] started", name)
	return func() {
		Logf("[%s] finished in %s", name, now().Sub(start).Round(time.Millisecond))
	}
}
