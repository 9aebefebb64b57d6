// ABOUTME: Pipeline database operations
// ABOUTME: Stores pipeline definitions with their stages as JSON
package db

import (
	"context"
	"fmt"

	"github.com/harperreed/leadsync/models"
)

func UpsertPipeline(ctx context.Context, q querier, p *models.Pipeline) error {
	stages := p.Stages
	if stages == nil {
		stages = []models.Stage{}
	}
	stagesJSON, err := encodeJSON(stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO pipelines (doc_key, external_id, owner_user_id, name, stages, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			name = excluded.name,
			stages = excluded.stages,
			synced_at = excluded.synced_at
	`, p.Key, p.ExternalID, p.OwnerUserID, p.Name, stagesJSON, p.SyncedAt.UTC())

	if err != nil {
		return fmt.Errorf("failed to upsert pipeline %s: %w", p.ExternalID, err)
	}
	return nil
}

func ListPipelines(ctx context.Context, q querier, owner string) ([]models.Pipeline, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT doc_key, external_id, owner_user_id, name, stages, synced_at
		FROM pipelines
		WHERE owner_user_id = ?
		ORDER BY name
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	pipelines := []models.Pipeline{}
	for rows.Next() {
		var p models.Pipeline
		var stages string
		if err := rows.Scan(&p.Key, &p.ExternalID, &p.OwnerUserID, &p.Name, &stages, &p.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		if err := decodeJSON(stages, &p.Stages); err != nil {
			return nil, fmt.Errorf("failed to decode stages: %w", err)
		}
		pipelines = append(pipelines, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}

	return pipelines, nil
}
