// ABOUTME: Opportunity database operations
// ABOUTME: Handles keyed upserts, owner-scoped queries and counts for synced deals
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harperreed/leadsync/models"
)

const opportunityColumns = `doc_key, external_id, owner_user_id, name, contact_external_id,
	pipeline_id, stage_id, status, monetary_value, assigned_to,
	external_created_at, external_updated_at, synced_at`

func UpsertOpportunity(ctx context.Context, q querier, o *models.Opportunity) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO opportunities (`+opportunityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			name = excluded.name,
			contact_external_id = excluded.contact_external_id,
			pipeline_id = excluded.pipeline_id,
			stage_id = excluded.stage_id,
			status = excluded.status,
			monetary_value = excluded.monetary_value,
			assigned_to = excluded.assigned_to,
			external_created_at = excluded.external_created_at,
			external_updated_at = excluded.external_updated_at,
			synced_at = excluded.synced_at
	`, o.Key, o.ExternalID, o.OwnerUserID, o.Name, o.ContactExternalID,
		o.PipelineID, o.StageID, o.Status, o.MonetaryValue, o.AssignedTo,
		nullTime(o.ExternalCreatedAt), nullTime(o.ExternalUpdatedAt), o.SyncedAt.UTC())

	if err != nil {
		return fmt.Errorf("failed to upsert opportunity %s: %w", o.ExternalID, err)
	}
	return nil
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	var o models.Opportunity
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&o.Key, &o.ExternalID, &o.OwnerUserID, &o.Name, &o.ContactExternalID,
		&o.PipelineID, &o.StageID, &o.Status, &o.MonetaryValue, &o.AssignedTo,
		&createdAt, &updatedAt, &o.SyncedAt,
	)
	if err != nil {
		return nil, err
	}

	o.ExternalCreatedAt = timePtr(createdAt)
	o.ExternalUpdatedAt = timePtr(updatedAt)
	return &o, nil
}

// GetOpportunity returns nil, nil when no opportunity has the key.
func GetOpportunity(ctx context.Context, q querier, key string) (*models.Opportunity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE doc_key = ?`, key)

	o, err := scanOpportunity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}
	return o, nil
}

func DeleteOpportunity(ctx context.Context, q querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM opportunities WHERE doc_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}
	return nil
}

// FindOpportunities returns an owner's opportunities, most recently synced first.
func FindOpportunities(ctx context.Context, q querier, owner string, filter models.OpportunityFilter) ([]models.Opportunity, error) {
	where := []string{"owner_user_id = ?"}
	args := []any{owner}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.PipelineID != "" {
		where = append(where, "pipeline_id = ?")
		args = append(args, filter.PipelineID)
	}
	limit, args := limitClause(filter.Limit, args)

	rows, err := q.QueryContext(ctx, `
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY synced_at DESC, external_id
		`+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	opportunities := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opportunities = append(opportunities, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating opportunities: %w", err)
	}

	return opportunities, nil
}

func CountOpportunities(ctx context.Context, q querier, owner string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities WHERE owner_user_id = ?`, owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count opportunities: %w", err)
	}
	return count, nil
}
