package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"uplift/internal/services"
)

// Dataset is a stored marketing panel awaiting runs.
type Dataset struct {
	ID        string
	Name      string
	CSV       []byte
	CreatedAt time.Time
}

// SaveDataset inserts a dataset with its raw CSV payload.
func (s *Store) SaveDataset(ctx context.Context, id, name string, csv []byte) (*Dataset, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO datasets (id, name, csv, created_at) VALUES (?, ?, ?, ?)`,
		id,
		name,
		csv,
		timestamp,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, services.Wrap(services.ErrValidation, "store", "save dataset",
				fmt.Sprintf("dataset %q already exists", id), nil)
		}
		return nil, fmt.Errorf("insert dataset: %w", err)
	}

	return s.GetDataset(ctx, id)
}

// GetDataset fetches a dataset by id.
func (s *Store) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, name, csv, created_at FROM datasets WHERE id = ?`,
		id,
	)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get dataset",
			fmt.Sprintf("dataset %q not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	return ds, nil
}

// ListDatasets returns all datasets ordered by creation time.
func (s *Store) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, name, csv, created_at FROM datasets ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return datasets, nil
}

// DeleteDataset removes a dataset, its runs, and all artifacts keyed to them.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	runIDs, err := s.runIDsForDataset(ctx, id)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete dataset rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete dataset",
			fmt.Sprintf("dataset %q not found", id), nil)
	}

	owners := append([]string{id}, runIDs...)
	for _, owner := range owners {
		if err := s.deleteArtifacts(ctx, owner); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) runIDsForDataset(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("query run ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run ids: %w", err)
	}
	return ids, nil
}

func scanDataset(scanner interface{ Scan(dest ...any) error }) (*Dataset, error) {
	var (
		id         string
		name       string
		csv        []byte
		createdRaw string
	)
	if err := scanner.Scan(&id, &name, &csv, &createdRaw); err != nil {
		return nil, err
	}
	ds := &Dataset{ID: id, Name: name, CSV: csv}
	if created, err := parseTimeString(createdRaw); err == nil {
		ds.CreatedAt = created
	}
	return ds, nil
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}
