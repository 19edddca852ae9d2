package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"uplift/internal/services"
)

// Artifact kinds produced by the pipeline, keyed by run id.
const (
	ArtifactRunSpec             = "run_spec"
	ArtifactStatus              = "status"
	ArtifactCanonicalData       = "canonical_data"
	ArtifactColumnInfo          = "column_info"
	ArtifactFeatures            = "features"
	ArtifactFeatureScaler       = "feature_scaler"
	ArtifactFeatureMetadata     = "feature_metadata"
	ArtifactPosterior           = "posterior"
	ArtifactPosteriorSummary    = "posterior_summary"
	ArtifactModelMetadata       = "model_metadata"
	ArtifactContributions       = "contributions"
	ArtifactContributionSummary = "contribution_summary"
	ArtifactROIMetrics          = "roi_metrics"
	ArtifactFitted              = "fitted"
	ArtifactFitMetrics          = "fit_metrics"
	ArtifactDiagnostics         = "diagnostics"
)

// Artifact kinds keyed by dataset id.
const (
	ArtifactRawData           = "raw_data"
	ArtifactValidationSummary = "validation_summary"
)

// PutArtifact stores a JSON document for the given owner and kind, replacing
// any previous document of that kind.
func (s *Store) PutArtifact(ctx context.Context, ownerID, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal artifact %s/%s: %w", ownerID, kind, err)
	}
	return s.PutArtifactRaw(ctx, ownerID, kind, data)
}

// PutArtifactRaw stores an already encoded JSON document.
func (s *Store) PutArtifactRaw(ctx context.Context, ownerID, kind string, payload []byte) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO artifacts (owner_id, kind, payload, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(owner_id, kind) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		ownerID,
		kind,
		string(payload),
		timestamp,
	); err != nil {
		return fmt.Errorf("put artifact %s/%s: %w", ownerID, kind, err)
	}
	return nil
}

// GetArtifact decodes the stored document for the owner and kind into dest.
func (s *Store) GetArtifact(ctx context.Context, ownerID, kind string, dest any) error {
	raw, err := s.GetArtifactRaw(ctx, ownerID, kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal artifact %s/%s: %w", ownerID, kind, err)
	}
	return nil
}

// GetArtifactRaw returns the stored JSON document for the owner and kind.
func (s *Store) GetArtifactRaw(ctx context.Context, ownerID, kind string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT payload FROM artifacts WHERE owner_id = ? AND kind = ?`,
		ownerID,
		kind,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get artifact",
			fmt.Sprintf("artifact %s/%s not found", ownerID, kind), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query artifact %s/%s: %w", ownerID, kind, err)
	}
	return []byte(payload), nil
}

// ListArtifactKinds returns the artifact kinds stored for an owner, sorted.
func (s *Store) ListArtifactKinds(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT kind FROM artifacts WHERE owner_id = ? ORDER BY kind ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifact kinds: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, fmt.Errorf("scan artifact kind: %w", err)
		}
		kinds = append(kinds, kind)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact kinds: %w", err)
	}
	return kinds, nil
}

func (s *Store) deleteArtifacts(ctx context.Context, ownerID string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`DELETE FROM artifacts WHERE owner_id = ?`,
		ownerID,
	); err != nil {
		return fmt.Errorf("delete artifacts for %s: %w", ownerID, err)
	}
	return nil
}
