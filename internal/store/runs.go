package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"uplift/internal/run"
	"uplift/internal/services"
)

const runColumns = "id, dataset_id, spec_json, stage, progress, started_at, updated_at, error_message, created_at"

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	u := uuid.New()
	return fmt.Sprintf("run_%x", u[:4])
}

// NewDatasetID returns a fresh dataset identifier.
func NewDatasetID() string {
	u := uuid.New()
	return fmt.Sprintf("ds_%x", u[:4])
}

// CreateRun inserts a new run in the CREATED stage.
func (s *Store) CreateRun(ctx context.Context, datasetID string, spec run.Spec) (*run.Run, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal run spec: %w", err)
	}

	id := NewRunID()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO runs (id, dataset_id, spec_json, stage, progress, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		datasetID,
		string(specJSON),
		run.StageCreated,
		run.ProgressCreated,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return s.GetRun(ctx, id)
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*run.Run, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get run",
			fmt.Sprintf("run %q not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs ordered newest first, optionally filtered by dataset.
func (s *Store) ListRuns(ctx context.Context, datasetID string) ([]*run.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if datasetID != "" {
		query += ` WHERE dataset_id = ?`
		args = append(args, datasetID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*run.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRunStatus returns the persisted status for a run.
func (s *Store) GetRunStatus(ctx context.Context, id string) (run.Status, error) {
	r, err := s.GetRun(ctx, id)
	if err != nil {
		return run.DefaultStatus(), err
	}
	return r.Status, nil
}

// UpdateRunStatus advances a run to the given stage, enforcing the lifecycle
// transition table. The first update stamps started_at; later updates preserve
// it. A successful update clears any recorded error.
func (s *Store) UpdateRunStatus(ctx context.Context, id string, stage run.Stage, progress int) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return s.updateStatusTx(ctx, id, stage, progress, "")
	})
}

// SetRunError transitions a run to ERROR with the given message, preserving
// the progress reached before the failure.
func (s *Store) SetRunError(ctx context.Context, id, message string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return s.updateStatusTx(ctx, id, run.StageError, -1, message)
	})
}

func (s *Store) updateStatusTx(ctx context.Context, id string, stage run.Stage, progress int, errorMessage string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		current     string
		curProgress int
	)
	err = tx.QueryRowContext(ctx, `SELECT stage, progress FROM runs WHERE id = ?`, id).Scan(&current, &curProgress)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "store", "update status",
			fmt.Sprintf("run %q not found", id), nil)
	}
	if err != nil {
		return fmt.Errorf("read current stage: %w", err)
	}

	if !run.CanTransition(run.Stage(current), stage) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, stage)
	}

	if progress < 0 {
		progress = curProgress
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE runs
         SET stage = ?, progress = ?, started_at = COALESCE(started_at, ?), updated_at = ?, error_message = ?
         WHERE id = ?`,
		stage,
		progress,
		now,
		now,
		nullableString(errorMessage),
		id,
	); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status: %w", err)
	}
	return nil
}

// DeleteRun removes a run and its artifacts.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete run",
			fmt.Sprintf("run %q not found", id), nil)
	}
	return s.deleteArtifacts(ctx, id)
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*run.Run, error) {
	var (
		id           string
		datasetID    string
		specJSON     string
		stageStr     string
		progress     int
		startedRaw   sql.NullString
		updatedRaw   sql.NullString
		errorMessage sql.NullString
		createdRaw   string
	)

	if err := scanner.Scan(
		&id,
		&datasetID,
		&specJSON,
		&stageStr,
		&progress,
		&startedRaw,
		&updatedRaw,
		&errorMessage,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	r := &run.Run{
		ID:        id,
		DatasetID: datasetID,
		Status: run.Status{
			Stage:    run.Stage(stageStr),
			Progress: progress,
			Error:    errorMessage.String,
		},
	}
	if err := json.Unmarshal([]byte(specJSON), &r.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal run spec: %w", err)
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			r.Status.StartedAt = &started
		}
	}
	if updatedRaw.Valid {
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			r.Status.UpdatedAt = &updated
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		r.CreatedAt = created
	}
	return r, nil
}
