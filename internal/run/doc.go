// Package run defines the run lifecycle: stages, the allowed-transition table,
// status snapshots, and the run specification document.
//
// The stage machine is closed: the forward chain CREATED -> VALIDATED ->
// FEATURES_BUILT -> TRAINING -> TRAINED -> OUTPUTS_READY plus ERROR, which is
// reachable from every non-terminal stage and terminal. The store rejects any
// transition outside this table, and the pipeline runner is the only writer of
// run state.
package run
