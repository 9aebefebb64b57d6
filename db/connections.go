// ABOUTME: Connection record database operations
// ABOUTME: One row per owner tracks the CRM link, its active flag and last sync time
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/leadsync/models"
)

// GetConnection returns nil, nil when the owner has never connected.
func GetConnection(ctx context.Context, q querier, owner string) (*models.Connection, error) {
	var conn models.Connection
	var lastSync sql.NullTime

	err := q.QueryRowContext(ctx, `
		SELECT owner_user_id, credential_hint, location_id, connected_at, active, last_sync_at, updated_at
		FROM connections
		WHERE owner_user_id = ?
	`, owner).Scan(
		&conn.OwnerUserID,
		&conn.CredentialHint,
		&conn.LocationID,
		&conn.ConnectedAt,
		&conn.Active,
		&lastSync,
		&conn.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	conn.LastSyncAt = timePtr(lastSync)
	return &conn, nil
}

// SaveConnection inserts or replaces the owner's connection row.
func SaveConnection(ctx context.Context, q querier, conn *models.Connection) error {
	conn.UpdatedAt = time.Now().UTC()

	_, err := q.ExecContext(ctx, `
		INSERT INTO connections (owner_user_id, credential_hint, location_id, connected_at, active, last_sync_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_user_id) DO UPDATE SET
			credential_hint = excluded.credential_hint,
			location_id = excluded.location_id,
			connected_at = excluded.connected_at,
			active = excluded.active,
			last_sync_at = excluded.last_sync_at,
			updated_at = excluded.updated_at
	`, conn.OwnerUserID, conn.CredentialHint, conn.LocationID, conn.ConnectedAt.UTC(), conn.Active, nullTime(conn.LastSyncAt), conn.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// TouchLastSync records the completion time of a sync pass.
func TouchLastSync(ctx context.Context, q querier, owner string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE connections SET last_sync_at = ?, updated_at = ? WHERE owner_user_id = ?
	`, at.UTC(), time.Now().UTC(), owner)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no connection for owner %s", owner)
	}
	return nil
}
