// Package models defines the persisted record types and the versioning
// metadata shared by all of them.
package models

import (
	"time"
)

// Collection identifies one logical table of user records.
type Collection string

const (
	CollectionWorkouts Collection = "workouts"
	CollectionMetrics  Collection = "metrics"
	CollectionNotes    Collection = "notes"
)

// AllCollections returns every valid collection in a stable order.
func AllCollections() []Collection {
	return []Collection{CollectionWorkouts, CollectionMetrics, CollectionNotes}
}

// IsValidCollection checks if a collection name is known.
func IsValidCollection(c Collection) bool {
	switch c {
	case CollectionWorkouts, CollectionMetrics, CollectionNotes:
		return true
	}
	return false
}

// Versioned carries the optimistic-concurrency metadata embedded in every
// persisted record. Version starts at 1 and increases on every mutation,
// including soft delete and restore. DeletedAt marks a tombstone; tombstoned
// rows are kept so sync can propagate the delete.
type Versioned struct {
	Version   int64      `json:"version" validate:"gte=0"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Init stamps initial metadata on a fresh record. Calling it on an already
// initialized record is a no-op for both fields.
func (v *Versioned) Init(now time.Time) {
	if v.Version == 0 {
		v.Version = 1
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = now
	}
}

// Bump increments the version and refreshes the timestamp. Every successful
// mutation goes through here, field-only updates included.
func (v *Versioned) Bump(now time.Time) {
	v.Version++
	v.UpdatedAt = now
}

// SoftDelete tombstones the record. Repeated calls keep the original
// DeletedAt but still bump the version, so a stale re-delete never
// un-deletes or rewinds anything.
func (v *Versioned) SoftDelete(now time.Time) {
	if v.DeletedAt == nil {
		t := now
		v.DeletedAt = &t
	}
	v.Bump(now)
}

// Restore clears the tombstone and bumps the version.
func (v *Versioned) Restore(now time.Time) {
	v.DeletedAt = nil
	v.Bump(now)
}

// Deleted reports whether the record is tombstoned.
func (v *Versioned) Deleted() bool {
	return v.DeletedAt != nil
}

// clone returns a copy with its own DeletedAt allocation.
func (v Versioned) clone() Versioned {
	c := v
	if v.DeletedAt != nil {
		t := *v.DeletedAt
		c.DeletedAt = &t
	}
	return c
}

// CanUpdate is the optimistic-lock guard: an incoming write is accepted only
// if its version is at least the stored one. Callers must check this before
// persisting and fail the mutation when it returns false.
func CanUpdate(current, incoming Versioned) bool {
	return incoming.Version >= current.Version
}

// Record is the interface every persisted entity satisfies. Implementations
// are pointer types; Meta exposes the embedded Versioned for mutation.
type Record interface {
	RecordID() string
	Collection() Collection
	Owner() string
	SetOwner(id string)
	Meta() *Versioned
	Clone() Record
}

// Workout is a single logged exercise session.
type Workout struct {
	ID          string    `json:"id" validate:"required"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Activity    string    `json:"activity" validate:"required,max=120"`
	DurationMin int       `json:"duration_minutes" validate:"gte=0,lte=1440"`
	DistanceKM  float64   `json:"distance_km,omitempty" validate:"gte=0"`
	Notes       string    `json:"notes,omitempty" validate:"max=4000"`
	PerformedAt time.Time `json:"performed_at"`
	Versioned
}

func (w *Workout) RecordID() string       { return w.ID }
func (w *Workout) Collection() Collection { return CollectionWorkouts }
func (w *Workout) Owner() string          { return w.OwnerID }
func (w *Workout) SetOwner(id string)     { w.OwnerID = id }
func (w *Workout) Meta() *Versioned       { return &w.Versioned }

func (w *Workout) Clone() Record {
	c := *w
	c.Versioned = w.Versioned.clone()
	return &c
}

// Metric is a point-in-time body or habit measurement (weight, sleep hours).
type Metric struct {
	ID         string    `json:"id" validate:"required"`
	OwnerID    string    `json:"owner_id,omitempty"`
	Name       string    `json:"name" validate:"required,max=120"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty" validate:"max=32"`
	RecordedAt time.Time `json:"recorded_at"`
	Versioned
}

func (m *Metric) RecordID() string       { return m.ID }
func (m *Metric) Collection() Collection { return CollectionMetrics }
func (m *Metric) Owner() string          { return m.OwnerID }
func (m *Metric) SetOwner(id string)     { m.OwnerID = id }
func (m *Metric) Meta() *Versioned       { return &m.Versioned }

func (m *Metric) Clone() Record {
	c := *m
	c.Versioned = m.Versioned.clone()
	return &c
}

// Note is free-form journal text.
type Note struct {
	ID      string `json:"id" validate:"required"`
	OwnerID string `json:"owner_id,omitempty"`
	Title   string `json:"title" validate:"required,max=200"`
	Body    string `json:"body,omitempty" validate:"max=65536"`
	Versioned
}

func (n *Note) RecordID() string       { return n.ID }
func (n *Note) Collection() Collection { return CollectionNotes }
func (n *Note) Owner() string          { return n.OwnerID }
func (n *Note) SetOwner(id string)     { n.OwnerID = id }
func (n *Note) Meta() *Versioned       { return &n.Versioned }

func (n *Note) Clone() Record {
	c := *n
	c.Versioned = n.Versioned.clone()
	return &c
}

// NewRecord returns an empty record of the concrete type backing the given
// collection, for decoding stored or pulled payloads.
func NewRecord(c Collection) (Record, bool) {
	switch c {
	case CollectionWorkouts:
		return &Workout{}, true
	case CollectionMetrics:
		return &Metric{}, true
	case CollectionNotes:
		return &Note{}, true
	}
	return nil, false
}

// SyncStatus is the per-collection sync state machine value.
type SyncStatus string

const (
	SyncIdle     SyncStatus = "idle"
	SyncSyncing  SyncStatus = "syncing"
	SyncSuccess  SyncStatus = "success"
	SyncError    SyncStatus = "error"
	SyncConflict SyncStatus = "conflict"
)

// SyncMetadata tracks sync progress for one (collection, owner) pair. It is
// created on the first sync attempt and only removed on tenant teardown.
type SyncMetadata struct {
	Collection    Collection `json:"collection"`
	OwnerID       string     `json:"owner_id"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastPushAt    *time.Time `json:"last_push_at,omitempty"`
	LastPullAt    *time.Time `json:"last_pull_at,omitempty"`
	Status        SyncStatus `json:"sync_status"`
	ConflictCount int        `json:"conflict_count"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	RecordCount   int        `json:"record_count,omitempty"`
}
