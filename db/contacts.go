// ABOUTME: Contact database operations
// ABOUTME: Handles keyed upserts, owner-scoped queries and counts for synced contacts
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harperreed/leadsync/models"
)

const contactColumns = `doc_key, external_id, owner_user_id, first_name, last_name, email, phone,
	address, tags, custom_fields, external_created_at, last_activity_at,
	source, status, assigned_to, lead_score, estimated_value, synced_at`

// UpsertContact writes a contact under its document key, replacing any
// previous version.
func UpsertContact(ctx context.Context, q querier, c *models.Contact) error {
	address, err := encodeJSON(c.Address)
	if err != nil {
		return fmt.Errorf("failed to encode address: %w", err)
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	custom := c.CustomFields
	if custom == nil {
		custom = map[string]any{}
	}
	customJSON, err := encodeJSON(custom)
	if err != nil {
		return fmt.Errorf("failed to encode custom fields: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			address = excluded.address,
			tags = excluded.tags,
			custom_fields = excluded.custom_fields,
			external_created_at = excluded.external_created_at,
			last_activity_at = excluded.last_activity_at,
			source = excluded.source,
			status = excluded.status,
			assigned_to = excluded.assigned_to,
			lead_score = excluded.lead_score,
			estimated_value = excluded.estimated_value,
			synced_at = excluded.synced_at
	`, c.Key, c.ExternalID, c.OwnerUserID, c.FirstName, c.LastName, c.Email, c.Phone,
		address, tagsJSON, customJSON, nullTime(c.ExternalCreatedAt), nullTime(c.LastActivityAt),
		c.Source, c.Status, c.AssignedTo, c.LeadScore, c.EstimatedValue, c.SyncedAt.UTC())

	if err != nil {
		return fmt.Errorf("failed to upsert contact %s: %w", c.ExternalID, err)
	}
	return nil
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	var address, tags, custom string
	var createdAt, activityAt sql.NullTime

	err := row.Scan(
		&c.Key, &c.ExternalID, &c.OwnerUserID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&address, &tags, &custom, &createdAt, &activityAt,
		&c.Source, &c.Status, &c.AssignedTo, &c.LeadScore, &c.EstimatedValue, &c.SyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(address, &c.Address); err != nil {
		return nil, fmt.Errorf("failed to decode address: %w", err)
	}
	if err := decodeJSON(tags, &c.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := decodeJSON(custom, &c.CustomFields); err != nil {
		return nil, fmt.Errorf("failed to decode custom fields: %w", err)
	}
	c.ExternalCreatedAt = timePtr(createdAt)
	c.LastActivityAt = timePtr(activityAt)

	return &c, nil
}

// GetContact returns nil, nil when no contact has the key.
func GetContact(ctx context.Context, q querier, key string) (*models.Contact, error) {
	row := q.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE doc_key = ?`, key)

	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

func DeleteContact(ctx context.Context, q querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM contacts WHERE doc_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}

// FindContacts returns an owner's contacts, most recently synced first.
func FindContacts(ctx context.Context, q querier, owner string, filter models.ContactFilter) ([]models.Contact, error) {
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
	limit, args := limitClause(filter.Limit, args)

	rows, err := q.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY synced_at DESC, external_id
		`+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contacts := []models.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

func CountContacts(ctx context.Context, q querier, owner string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE owner_user_id = ?`, owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}
