// Package store persists datasets, runs, and run artifacts in SQLite.
//
// The store owns the run lifecycle: stage updates are checked against the
// allowed transition table before they are written, so an out-of-order
// update fails instead of corrupting a run's history. Artifacts are JSON
// documents keyed by owner id and kind, written whole so readers never see
// a partial output.
package store
