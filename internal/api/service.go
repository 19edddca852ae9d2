package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"uplift/internal/config"
	"uplift/internal/dataset"
	"uplift/internal/logging"
	"uplift/internal/pipeline"
	"uplift/internal/run"
	"uplift/internal/services"
	"uplift/internal/store"
)

// Service owns the dataset and run workflows exposed over HTTP.
type Service struct {
	cfg    *config.Config
	store  *store.Store
	runner *pipeline.Runner
	logger *slog.Logger
}

// NewService constructs the API service around the store and pipeline runner.
func NewService(cfg *config.Config, st *store.Store, runner *pipeline.Runner, logger *slog.Logger) *Service {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &Service{
		cfg:    cfg,
		store:  st,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

// CreateDataset parses, validates, and persists an uploaded CSV panel. The
// validation summary is persisted alongside the raw data; validation errors do
// not reject the upload, they surface in the summary and fail later runs.
func (s *Service) CreateDataset(ctx context.Context, req CreateDatasetRequest) (*DatasetDetail, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "create dataset", "name is required", nil)
	}
	csv := []byte(req.CSV)
	if len(bytes.TrimSpace(csv)) == 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "create dataset", "csv payload is empty", nil)
	}

	table, err := dataset.ReadCSV(bytes.NewReader(csv))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "create dataset",
			fmt.Sprintf("parse csv: %v", err), nil)
	}

	id := store.NewDatasetID()
	ds, err := s.store.SaveDataset(ctx, id, name, csv)
	if err != nil {
		return nil, err
	}

	summary := dataset.Validate(id, table, run.DefaultTargetCol)
	if err := s.store.PutArtifact(ctx, id, store.ArtifactValidationSummary, summary); err != nil {
		return nil, err
	}
	if err := s.store.PutArtifact(ctx, id, store.ArtifactRawData, req.CSV); err != nil {
		return nil, err
	}

	s.logger.Info("dataset created",
		logging.String(logging.FieldDatasetID, id),
		logging.Int("rows", summary.RowCount),
		logging.Int("validation_errors", len(summary.Errors)))

	return &DatasetDetail{DatasetSummary: FromDataset(ds), Validation: summary}, nil
}

// Datasets lists all stored datasets.
func (s *Service) Datasets(ctx context.Context) ([]DatasetSummary, error) {
	datasets, err := s.store.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	return FromDatasets(datasets), nil
}

// DescribeDataset fetches a dataset with its validation summary.
func (s *Service) DescribeDataset(ctx context.Context, id string) (*DatasetDetail, error) {
	ds, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &DatasetDetail{DatasetSummary: FromDataset(ds)}

	var summary dataset.ValidationSummary
	if err := s.store.GetArtifact(ctx, id, store.ArtifactValidationSummary, &summary); err == nil {
		detail.Validation = &summary
	}
	return detail, nil
}

// DeleteDataset removes a dataset, its runs, and their artifacts.
func (s *Service) DeleteDataset(ctx context.Context, id string) error {
	return s.store.DeleteDataset(ctx, id)
}

// CreateRun persists a new run and launches its pipeline in the background.
func (s *Service) CreateRun(ctx context.Context, req CreateRunRequest) (*RunDetail, error) {
	datasetID := strings.TrimSpace(req.DatasetID)
	if datasetID == "" {
		datasetID = strings.TrimSpace(req.Spec.DatasetID)
	}
	if datasetID == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "create run", "dataset_id is required", nil)
	}
	if _, err := s.store.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}

	spec := req.Spec
	spec.DatasetID = datasetID
	spec.ApplyDefaults()
	s.applySamplingDefaults(&spec)
	if err := spec.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "create run", err.Error(), nil)
	}

	rec, err := s.store.CreateRun(ctx, datasetID, spec)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutArtifact(ctx, rec.ID, store.ArtifactRunSpec, spec); err != nil {
		return nil, err
	}

	s.logger.Info("run created",
		logging.String(logging.FieldRunID, rec.ID),
		logging.String(logging.FieldDatasetID, datasetID))

	if s.runner != nil {
		s.runner.Launch(rec.ID)
	}
	return &RunDetail{RunSummary: FromRun(rec), Spec: rec.Spec}, nil
}

// Runs lists runs, optionally filtered to one dataset.
func (s *Service) Runs(ctx context.Context, datasetID string) ([]RunSummary, error) {
	runs, err := s.store.ListRuns(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return FromRuns(runs), nil
}

// DescribeRun fetches a single run with its spec.
func (s *Service) DescribeRun(ctx context.Context, id string) (*RunDetail, error) {
	rec, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{RunSummary: FromRun(rec), Spec: rec.Spec}, nil
}

// RunStatus fetches the lifecycle status of a run.
func (s *Service) RunStatus(ctx context.Context, id string) (run.Status, error) {
	return s.store.GetRunStatus(ctx, id)
}

// Output returns one run artifact payload. The status and run_spec kinds are
// served from the runs table and exist from creation; every other kind is
// available only once the run reaches OUTPUTS_READY.
func (s *Service) Output(ctx context.Context, runID, kind string) (json.RawMessage, error) {
	rec, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case store.ArtifactStatus:
		return json.Marshal(rec.Status)
	case store.ArtifactRunSpec:
		return json.Marshal(rec.Spec)
	}

	if !rec.Status.IsComplete() {
		return nil, services.Wrap(services.ErrNotFound, "api", "get output",
			fmt.Sprintf("run %q outputs not ready (stage %s)", runID, rec.Status.Stage), nil)
	}
	return s.store.GetArtifactRaw(ctx, runID, kind)
}

// OutputKinds lists the artifact kinds persisted for a run.
func (s *Service) OutputKinds(ctx context.Context, runID string) ([]string, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ListArtifactKinds(ctx, runID)
}

// DeleteRun removes a run and its artifacts.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	return s.store.DeleteRun(ctx, id)
}

// applySamplingDefaults fills unset sampling knobs from the daemon config.
func (s *Service) applySamplingDefaults(spec *run.Spec) {
	model := s.cfg.Model
	if spec.Sampling.Draws == 0 {
		spec.Sampling.Draws = model.Draws
	}
	if spec.Sampling.Tune == 0 {
		spec.Sampling.Tune = model.Tune
	}
	if spec.Sampling.Chains == 0 {
		spec.Sampling.Chains = model.Chains
	}
	if spec.Sampling.TargetAccept == 0 {
		spec.Sampling.TargetAccept = model.TargetAccept
	}
	if spec.Sampling.RandomSeed == 0 {
		spec.Sampling.RandomSeed = model.RandomSeed
	}
	if spec.Sampling.MaxTreeDepth == 0 {
		spec.Sampling.MaxTreeDepth = model.MaxTreeDepth
	}
}
