package store

import (
	"database/sql"
	"fmt"
)

// Schema evolves through ordered, numbered steps. Each step must be
// idempotent and safe to run against a store already at a later version.
const schemaVersion = 3

// SchemaVersion returns the current schema version recorded in the store.
func (s *Store) SchemaVersion() (int, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// Table may not exist yet on a fresh database.
		return 0, nil
	}
	var v int
	fmt.Sscanf(value, "%d", &v)
	return v, nil
}

func (s *Store) setSchemaVersion(v int) error {
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", v))
	return err
}

// RunMigrations applies any pending schema upgrades in order.
func (s *Store) RunMigrations() error {
	if _, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_info: %w", err)
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []func() error{
		s.migrateV1,
		s.migrateV2,
		s.migrateV3,
	}
	for i, m := range migrations {
		v := i + 1
		if current >= v {
			continue
		}
		if err := m(); err != nil {
			return fmt.Errorf("migration v%d: %w", v, err)
		}
		if err := s.setSchemaVersion(v); err != nil {
			return fmt.Errorf("record schema version %d: %w", v, err)
		}
	}
	return nil
}

// migrateV1 creates the base tables.
func (s *Store) migrateV1() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			owner_id   TEXT NOT NULL DEFAULT '',
			version    INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL,
			deleted_at TEXT,
			payload    JSON NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_records_owner ON records(collection, owner_id);
		CREATE INDEX IF NOT EXISTS idx_records_updated ON records(collection, updated_at);

		CREATE TABLE IF NOT EXISTS sync_metadata (
			collection     TEXT NOT NULL,
			owner_id       TEXT NOT NULL,
			last_sync_at   TEXT,
			last_push_at   TEXT,
			last_pull_at   TEXT,
			sync_status    TEXT NOT NULL DEFAULT 'idle',
			conflict_count INTEGER NOT NULL DEFAULT 0,
			error_message  TEXT NOT NULL DEFAULT '',
			record_count   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (collection, owner_id)
		);
	`)
	return err
}

// migrateV2 backfills version metadata on rows written before versioning
// existed: anything without a positive version gets version 1, both in the
// indexed column and inside the JSON payload.
func (s *Store) migrateV2() error {
	if _, err := s.conn.Exec(`
		UPDATE records
		SET version = 1, payload = json_set(payload, '$.version', 1)
		WHERE version < 1
	`); err != nil {
		return err
	}
	_, err := s.conn.Exec(`
		UPDATE records
		SET updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now'),
		    payload = json_set(payload, '$.updated_at', strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		WHERE updated_at IS NULL OR updated_at = ''
	`)
	return err
}

// migrateV3 infers owners for ownerless rows. Only safe when the store has
// exactly one known owner; multi-owner stores are left untouched.
func (s *Store) migrateV3() error {
	var owners int
	err := s.conn.QueryRow(
		`SELECT COUNT(DISTINCT owner_id) FROM records WHERE owner_id != ''`,
	).Scan(&owners)
	if err != nil {
		return err
	}
	if owners != 1 {
		return nil
	}
	_, err = s.conn.Exec(`
		UPDATE records
		SET owner_id = (SELECT owner_id FROM records WHERE owner_id != '' LIMIT 1),
		    payload = json_set(payload, '$.owner_id',
		        (SELECT owner_id FROM records WHERE owner_id != '' LIMIT 1))
		WHERE owner_id = ''
	`)
	return err
}
