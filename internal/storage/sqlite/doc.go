// Package sqlite stores spectra datasets and the iteration run ledger in
// SQLite files.
//
// A dataset container holds parallel arrays (filenames, a shared wave axis,
// flux rows and optional labels) together with the per-iteration extras of a
// result bundle. Float arrays are stored as little-endian IEEE-754 BLOBs so
// that a write followed by a read returns the same bits.
//
// The run ledger is a long-lived database, versioned with golang-migrate,
// that records every iteration run and the spectra it selected.
package sqlite
