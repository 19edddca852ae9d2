// Package preflight provides readiness checks for the directories and the
// sampling engine the daemon depends on.
//
// The daemon runs RunAll at startup and surfaces the results through the
// status endpoint; the CLI status command prints them. A failed check does
// not stop the daemon, but runs launched against a failing environment will
// error quickly.
package preflight
