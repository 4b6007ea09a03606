package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmreid/daybook/internal/models"
)

// GetSyncMetadata returns the sync state for a (collection, owner) pair, or
// nil if no sync has been attempted yet.
func (s *Store) GetSyncMetadata(c models.Collection, ownerID string) (*models.SyncMetadata, error) {
	var (
		md                             models.SyncMetadata
		lastSync, lastPush, lastPull   sql.NullString
		status                         string
	)
	err := s.conn.QueryRow(`
		SELECT collection, owner_id, last_sync_at, last_push_at, last_pull_at,
		       sync_status, conflict_count, error_message, record_count
		FROM sync_metadata WHERE collection = ? AND owner_id = ?
	`, string(c), ownerID).Scan(
		&md.Collection, &md.OwnerID, &lastSync, &lastPush, &lastPull,
		&status, &md.ConflictCount, &md.ErrorMessage, &md.RecordCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync metadata %s/%s: %w", c, ownerID, err)
	}
	md.Status = models.SyncStatus(status)
	if md.LastSyncAt, err = nullTime(lastSync); err != nil {
		return nil, err
	}
	if md.LastPushAt, err = nullTime(lastPush); err != nil {
		return nil, err
	}
	if md.LastPullAt, err = nullTime(lastPull); err != nil {
		return nil, err
	}
	return &md, nil
}

// UpsertSyncMetadata creates or replaces the sync state for a pair.
func (s *Store) UpsertSyncMetadata(md *models.SyncMetadata) error {
	_, err := s.conn.Exec(`
		INSERT INTO sync_metadata (collection, owner_id, last_sync_at, last_push_at,
			last_pull_at, sync_status, conflict_count, error_message, record_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, owner_id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			last_push_at = excluded.last_push_at,
			last_pull_at = excluded.last_pull_at,
			sync_status = excluded.sync_status,
			conflict_count = excluded.conflict_count,
			error_message = excluded.error_message,
			record_count = excluded.record_count
	`, string(md.Collection), md.OwnerID,
		timePtr(md.LastSyncAt), timePtr(md.LastPushAt), timePtr(md.LastPullAt),
		string(md.Status), md.ConflictCount, md.ErrorMessage, md.RecordCount)
	if err != nil {
		return fmt.Errorf("upsert sync metadata %s/%s: %w", md.Collection, md.OwnerID, err)
	}
	return nil
}

// ListSyncMetadata returns all sync states for an owner.
func (s *Store) ListSyncMetadata(ownerID string) ([]models.SyncMetadata, error) {
	rows, err := s.conn.Query(`
		SELECT collection, owner_id, last_sync_at, last_push_at, last_pull_at,
		       sync_status, conflict_count, error_message, record_count
		FROM sync_metadata WHERE owner_id = ? ORDER BY collection
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sync metadata: %w", err)
	}
	defer rows.Close()

	var out []models.SyncMetadata
	for rows.Next() {
		var (
			md                           models.SyncMetadata
			lastSync, lastPush, lastPull sql.NullString
			status                       string
		)
		if err := rows.Scan(&md.Collection, &md.OwnerID, &lastSync, &lastPush,
			&lastPull, &status, &md.ConflictCount, &md.ErrorMessage, &md.RecordCount); err != nil {
			return nil, err
		}
		md.Status = models.SyncStatus(status)
		if md.LastSyncAt, err = nullTime(lastSync); err != nil {
			return nil, err
		}
		if md.LastPushAt, err = nullTime(lastPush); err != nil {
			return nil, err
		}
		if md.LastPullAt, err = nullTime(lastPull); err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, rows.Err()
}

func nullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
