package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmreid/daybook/internal/models"
)

// ListOptions controls record listing. Tombstones are filtered by default;
// sync needs them, so it opts in.
type ListOptions struct {
	IncludeDeleted bool
}

// PutTx upserts a record inside a transaction. Versioning and ownership
// checks belong to the caller; this only writes the row.
func PutTx(tx *sql.Tx, rec models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", rec.Collection(), rec.RecordID(), err)
	}
	meta := rec.Meta()
	var deletedAt any
	if meta.DeletedAt != nil {
		deletedAt = formatTime(*meta.DeletedAt)
	}
	_, err = tx.Exec(`
		INSERT INTO records (collection, id, owner_id, version, updated_at, deleted_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			owner_id = excluded.owner_id,
			version = excluded.version,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			payload = excluded.payload
	`, string(rec.Collection()), rec.RecordID(), rec.Owner(),
		meta.Version, formatTime(meta.UpdatedAt), deletedAt, string(payload))
	if err != nil {
		return fmt.Errorf("put %s %s: %w", rec.Collection(), rec.RecordID(), err)
	}
	return nil
}

// GetTx reads a single record inside a transaction. Tombstoned records are
// returned too — callers that want live rows check Deleted themselves.
func GetTx(tx *sql.Tx, c models.Collection, id string) (models.Record, error) {
	var payload string
	err := tx.QueryRow(
		`SELECT payload FROM records WHERE collection = ? AND id = ?`,
		string(c), id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c, id, err)
	}
	return decodeRecord(c, []byte(payload))
}

// Get reads a single record outside any transaction.
func (s *Store) Get(c models.Collection, id string) (models.Record, error) {
	var payload string
	err := s.conn.QueryRow(
		`SELECT payload FROM records WHERE collection = ? AND id = ?`,
		string(c), id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c, id, err)
	}
	return decodeRecord(c, []byte(payload))
}

// List returns the owner's records in a collection, newest first.
func (s *Store) List(c models.Collection, ownerID string, opts ListOptions) ([]models.Record, error) {
	query := `SELECT payload FROM records WHERE collection = ? AND owner_id = ?`
	if !opts.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY updated_at DESC, id`

	rows, err := s.conn.Query(query, string(c), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c, err)
		}
		rec, err := decodeRecord(c, []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountRecords returns the number of live records an owner has in a
// collection.
func (s *Store) CountRecords(c models.Collection, ownerID string) (int, error) {
	var n int
	err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM records WHERE collection = ? AND owner_id = ? AND deleted_at IS NULL`,
		string(c), ownerID,
	).Scan(&n)
	return n, err
}

// PurgeOwnerTx hard-deletes every row belonging to an owner, tombstones and
// sync metadata included. This is the only hard-delete path; it exists for
// tenant teardown.
func PurgeOwnerTx(tx *sql.Tx, ownerID string) error {
	if _, err := tx.Exec(`DELETE FROM records WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("purge records: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sync_metadata WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("purge sync metadata: %w", err)
	}
	return nil
}

func decodeRecord(c models.Collection, payload []byte) (models.Record, error) {
	rec, ok := models.NewRecord(c)
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", c)
	}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", c, err)
	}
	return rec, nil
}
