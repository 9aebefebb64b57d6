// ABOUTME: Database operations for sync_state and sync_runs tables
// ABOUTME: Tracks per-owner sync status and keeps a history of sync passes
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/leadsync/models"
)

// SyncState represents the sync state for an owner.
type SyncState struct {
	OwnerUserID  string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetSyncState retrieves the sync state for an owner.
func GetSyncState(ctx context.Context, q querier, owner string) (*SyncState, error) {
	var state SyncState
	var errorMessage sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT owner_user_id, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE owner_user_id = ?
	`, owner).Scan(
		&state.OwnerUserID,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// UpdateSyncStatus updates the sync status for an owner.
func UpdateSyncStatus(ctx context.Context, q querier, owner, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	now := time.Now().UTC()
	_, err := q.ExecContext(ctx, `
		INSERT INTO sync_state (owner_user_id, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_user_id) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
	`, owner, status, errorMsgVal, now, now)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// CreateSyncRun stores the outcome of one sync pass.
func CreateSyncRun(ctx context.Context, q querier, run *models.SyncRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := encodeJSON(errs)
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO sync_runs (id, owner_user_id, trigger_source, status, contacts_synced, opportunities_synced,
			pipelines_synced, errors, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.OwnerUserID, run.Trigger, run.Status, run.ContactsSynced, run.OpportunitiesSynced,
		run.PipelinesSynced, errorsJSON, run.StartedAt.UTC(), run.CompletedAt.UTC())

	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// ListSyncRuns returns an owner's runs, newest first.
func ListSyncRuns(ctx context.Context, q querier, owner string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, owner_user_id, trigger_source, status, contacts_synced, opportunities_synced,
			pipelines_synced, errors, started_at, completed_at
		FROM sync_runs
		WHERE owner_user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []models.SyncRun{}
	for rows.Next() {
		var run models.SyncRun
		var errs string
		err := rows.Scan(
			&run.ID,
			&run.OwnerUserID,
			&run.Trigger,
			&run.Status,
			&run.ContactsSynced,
			&run.OpportunitiesSynced,
			&run.PipelinesSynced,
			&errs,
			&run.StartedAt,
			&run.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		if err := decodeJSON(errs, &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode run errors: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}
