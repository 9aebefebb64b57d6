// ABOUTME: Database schema definitions for the local sync store
// ABOUTME: Handles SQLite table creation and initialization
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS connections (
	owner_user_id TEXT PRIMARY KEY,
	credential_hint TEXT NOT NULL DEFAULT '',
	location_id TEXT NOT NULL DEFAULT '',
	connected_at DATETIME NOT NULL,
	active INTEGER NOT NULL DEFAULT 0,
	last_sync_at DATETIME,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	doc_key TEXT PRIMARY KEY,
	external_id TEXT NOT NULL,
	owner_user_id TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '{}',
	tags TEXT NOT NULL DEFAULT '[]',
	custom_fields TEXT NOT NULL DEFAULT '{}',
	external_created_at DATETIME,
	last_activity_at DATETIME,
	source TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	assigned_to TEXT NOT NULL DEFAULT '',
	lead_score INTEGER NOT NULL DEFAULT 0,
	estimated_value TEXT NOT NULL DEFAULT '0',
	synced_at DATETIME NOT NULL,
	UNIQUE(owner_user_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_contacts_owner_synced ON contacts(owner_user_id, synced_at DESC);
CREATE INDEX IF NOT EXISTS idx_contacts_owner_status ON contacts(owner_user_id, status);
CREATE INDEX IF NOT EXISTS idx_contacts_owner_assigned ON contacts(owner_user_id, assigned_to);

CREATE TABLE IF NOT EXISTS opportunities (
	doc_key TEXT PRIMARY KEY,
	external_id TEXT NOT NULL,
	owner_user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	contact_external_id TEXT NOT NULL DEFAULT '',
	pipeline_id TEXT NOT NULL DEFAULT '',
	stage_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	monetary_value TEXT NOT NULL DEFAULT '0',
	assigned_to TEXT NOT NULL DEFAULT '',
	external_created_at DATETIME,
	external_updated_at DATETIME,
	synced_at DATETIME NOT NULL,
	UNIQUE(owner_user_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_opportunities_owner_synced ON opportunities(owner_user_id, synced_at DESC);
CREATE INDEX IF NOT EXISTS idx_opportunities_owner_pipeline ON opportunities(owner_user_id, pipeline_id);

CREATE TABLE IF NOT EXISTS pipelines (
	doc_key TEXT PRIMARY KEY,
	external_id TEXT NOT NULL,
	owner_user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	stages TEXT NOT NULL DEFAULT '[]',
	synced_at DATETIME NOT NULL,
	UNIQUE(owner_user_id, external_id)
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	trigger_source TEXT NOT NULL,
	status TEXT NOT NULL,
	contacts_synced INTEGER NOT NULL DEFAULT 0,
	opportunities_synced INTEGER NOT NULL DEFAULT 0,
	pipelines_synced INTEGER NOT NULL DEFAULT 0,
	errors TEXT NOT NULL DEFAULT '[]',
	started_at DATETIME NOT NULL,
	completed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_owner ON sync_runs(owner_user_id, id DESC);

CREATE TABLE IF NOT EXISTS sync_state (
	owner_user_id TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'idle',
	error_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
