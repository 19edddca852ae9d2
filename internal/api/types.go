package api

import (
	"encoding/json"
	"time"

	"uplift/internal/dataset"
	"uplift/internal/preflight"
	"uplift/internal/run"
	"uplift/internal/store"
)

// DatasetSummary describes a stored dataset in a transport-friendly format.
type DatasetSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// DatasetDetail couples a dataset with its persisted validation summary.
type DatasetDetail struct {
	DatasetSummary
	Validation *dataset.ValidationSummary `json:"validation,omitempty"`
}

// CreateDatasetRequest is the payload for uploading a new dataset.
type CreateDatasetRequest struct {
	Name string `json:"name"`
	CSV  string `json:"csv"`
}

// RunSummary describes a run's lifecycle state.
type RunSummary struct {
	ID        string     `json:"id"`
	DatasetID string     `json:"dataset_id"`
	Stage     string     `json:"stage"`
	Progress  int        `json:"progress"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RunDetail couples a run summary with its immutable spec.
type RunDetail struct {
	RunSummary
	Spec run.Spec `json:"spec"`
}

// CreateRunRequest is the payload for creating a new run.
type CreateRunRequest struct {
	DatasetID string   `json:"dataset_id"`
	Spec      run.Spec `json:"spec"`
}

// DatasetListResponse wraps a collection of datasets.
type DatasetListResponse struct {
	Datasets []DatasetSummary `json:"datasets"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []RunSummary `json:"runs"`
}

// OutputResponse wraps a single run artifact payload.
type OutputResponse struct {
	RunID   string          `json:"run_id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DBPath       string             `json:"db_path"`
	LockFilePath string             `json:"lock_file_path"`
	Preflight    []preflight.Result `json:"preflight"`
}

// FromDataset converts a stored dataset into its summary DTO. Row count is
// derived from the raw CSV payload (data rows, excluding the header).
func FromDataset(ds *store.Dataset) DatasetSummary {
	if ds == nil {
		return DatasetSummary{}
	}
	rows := 0
	for _, b := range ds.CSV {
		if b == '\n' {
			rows++
		}
	}
	if rows > 0 {
		rows--
	}
	return DatasetSummary{
		ID:        ds.ID,
		Name:      ds.Name,
		RowCount:  rows,
		CreatedAt: ds.CreatedAt,
	}
}

// FromDatasets converts a slice of stored datasets.
func FromDatasets(datasets []*store.Dataset) []DatasetSummary {
	if len(datasets) == 0 {
		return nil
	}
	out := make([]DatasetSummary, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, FromDataset(ds))
	}
	return out
}

// FromRun converts a stored run into its summary DTO.
func FromRun(rec *run.Run) RunSummary {
	if rec == nil {
		return RunSummary{}
	}
	return RunSummary{
		ID:        rec.ID,
		DatasetID: rec.DatasetID,
		Stage:     string(rec.Status.Stage),
		Progress:  rec.Status.Progress,
		StartedAt: rec.Status.StartedAt,
		UpdatedAt: rec.Status.UpdatedAt,
		Error:     rec.Status.Error,
		CreatedAt: rec.CreatedAt,
	}
}

// FromRuns converts a slice of stored runs.
func FromRuns(runs []*run.Run) []RunSummary {
	if len(runs) == 0 {
		return nil
	}
	out := make([]RunSummary, 0, len(runs))
	for _, rec := range runs {
		out = append(out, FromRun(rec))
	}
	return out
}
