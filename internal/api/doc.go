// Package api defines wire-format types and the service layer behind the HTTP
// API. It translates store models into transport DTOs and owns the dataset
// upload and run creation workflows, so the daemon's HTTP handlers stay thin.
//
// # Key Types
//
// DatasetSummary/DatasetDetail: transport representation of a stored panel,
// optionally with its validation summary.
//
// RunSummary/RunDetail: run lifecycle state, optionally with the immutable
// run spec.
//
// Service: CRUD over datasets and runs plus output retrieval; launches the
// pipeline runner when a run is created.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the artifact payload surface, so CLI
// and artifact consumers see one naming convention. Artifact payloads are
// passed through as json.RawMessage to avoid double-encoding. Output queries
// for runs that have not reached OUTPUTS_READY return a not-found error except
// for the status and run_spec kinds, which exist from creation.
package api
