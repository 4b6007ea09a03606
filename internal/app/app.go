// Package app wires the persistence core together: every mutation flows
// scope check → version stamp → durable write → change notification, inside
// one coordinated transaction.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/scope"
	"github.com/jmreid/daybook/internal/store"
	"github.com/jmreid/daybook/internal/txn"
)

// App is the write and read surface consumers use. All fields are injected;
// nothing here is a package-level singleton.
type App struct {
	Store *store.Store
	Scope *scope.Scope
	Coord *txn.Coordinator
	Log   *slog.Logger

	now func() time.Time
}

// New assembles the facade. A nil logger falls back to slog.Default.
func New(st *store.Store, sc *scope.Scope, coord *txn.Coordinator, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{Store: st, Scope: sc, Coord: coord, Log: log, now: time.Now}
}

// Create validates and persists a new record: owner bound, version 1.
// An empty id gets a generated one.
func (a *App) Create(ctx context.Context, rec models.Record) error {
	if rec.RecordID() == "" {
		if err := setGeneratedID(rec); err != nil {
			return err
		}
	}
	if err := models.Validate(rec); err != nil {
		return err
	}
	col := rec.Collection()
	return a.Coord.Execute(ctx, []models.Collection{col}, func(tx *sql.Tx) error {
		if err := a.Scope.EnsureOwner(rec); err != nil {
			return err
		}
		if _, err := store.GetTx(tx, col, rec.RecordID()); err == nil {
			return fmt.Errorf("%s %s already exists", col, rec.RecordID())
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		rec.Meta().Init(a.now())
		return store.PutTx(tx, rec)
	})
}

// Update applies a caller-modified record over the stored one. The incoming
// copy must carry the version it was read at; a stale version is rejected
// with ErrStaleVersion and the stored state is left untouched. On success
// the version is bumped and the timestamp refreshed.
func (a *App) Update(ctx context.Context, rec models.Record) error {
	if err := models.Validate(rec); err != nil {
		return err
	}
	col := rec.Collection()
	return a.Coord.Execute(ctx, []models.Collection{col}, func(tx *sql.Tx) error {
		current, err := store.GetTx(tx, col, rec.RecordID())
		if err != nil {
			return err
		}
		if err := a.Scope.ValidateOwner(current.Owner()); err != nil {
			return err
		}
		if err := a.Scope.EnsureOwner(rec); err != nil {
			return err
		}
		if !models.CanUpdate(*current.Meta(), *rec.Meta()) {
			return fmt.Errorf("%w: %s %s stored v%d, incoming v%d", store.ErrStaleVersion,
				col, rec.RecordID(), current.Meta().Version, rec.Meta().Version)
		}
		rec.Meta().Bump(a.now())
		return store.PutTx(tx, rec)
	})
}

// Delete tombstones a record. The row is kept so sync can propagate the
// delete; read paths filter it out.
func (a *App) Delete(ctx context.Context, c models.Collection, id string) error {
	return a.mutateStored(ctx, c, id, func(rec models.Record) {
		rec.Meta().SoftDelete(a.now())
	})
}

// Restore clears a tombstone.
func (a *App) Restore(ctx context.Context, c models.Collection, id string) error {
	return a.mutateStored(ctx, c, id, func(rec models.Record) {
		rec.Meta().Restore(a.now())
	})
}

// mutateStored reads the current row, checks ownership, applies fn, and
// writes it back in one unit.
func (a *App) mutateStored(ctx context.Context, c models.Collection, id string, fn func(models.Record)) error {
	return a.Coord.Execute(ctx, []models.Collection{c}, func(tx *sql.Tx) error {
		rec, err := store.GetTx(tx, c, id)
		if err != nil {
			return err
		}
		if err := a.Scope.ValidateOwner(rec.Owner()); err != nil {
			return err
		}
		fn(rec)
		return store.PutTx(tx, rec)
	})
}

// Get reads one record, enforcing ownership.
func (a *App) Get(c models.Collection, id string) (models.Record, error) {
	rec, err := a.Store.Get(c, id)
	if err != nil {
		return nil, err
	}
	if err := a.Scope.ValidateOwner(rec.Owner()); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the active user's live records. With no active user it
// returns nothing.
func (a *App) List(c models.Collection, opts store.ListOptions) ([]models.Record, error) {
	ownerID := a.Scope.UserID()
	if ownerID == "" {
		return nil, nil
	}
	recs, err := a.Store.List(c, ownerID, opts)
	if err != nil {
		return nil, err
	}
	// Defense in depth on top of the owner-scoped query.
	return scope.FilterOwned(a.Scope, recs), nil
}

// Import bulk-loads records in fixed-size chunks. A failure rolls back only
// the chunk it occurred in. An item whose id already exists is subject to
// the same optimistic-lock rule as Update: a stale version fails its chunk
// rather than rewinding the stored row.
func (a *App) Import(ctx context.Context, c models.Collection, records []models.Record, batchSize int) error {
	now := a.now()
	for _, rec := range records {
		if rec.Collection() != c {
			return &models.ValidationError{
				Collection: rec.Collection(),
				RecordID:   rec.RecordID(),
				Err:        fmt.Errorf("record belongs to %s, importing into %s", rec.Collection(), c),
			}
		}
		if rec.RecordID() == "" {
			if err := setGeneratedID(rec); err != nil {
				return err
			}
		}
		if err := models.Validate(rec); err != nil {
			return err
		}
	}
	return txn.Batch(ctx, a.Coord, c, records, batchSize, func(tx *sql.Tx, rec models.Record) error {
		if err := a.Scope.EnsureOwner(rec); err != nil {
			return err
		}
		rec.Meta().Init(now)
		current, err := store.GetTx(tx, c, rec.RecordID())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if current != nil {
			if err := a.Scope.ValidateOwner(current.Owner()); err != nil {
				return err
			}
			if !models.CanUpdate(*current.Meta(), *rec.Meta()) {
				return fmt.Errorf("%w: %s %s stored v%d, incoming v%d", store.ErrStaleVersion,
					c, rec.RecordID(), current.Meta().Version, rec.Meta().Version)
			}
		}
		return store.PutTx(tx, rec)
	})
}

// PurgeUser hard-deletes everything a user owns, tombstones and sync state
// included. Tenant teardown only.
func (a *App) PurgeUser(ctx context.Context, ownerID string) error {
	if err := a.Scope.ValidateOwner(ownerID); err != nil {
		return err
	}
	return a.Coord.Execute(ctx, models.AllCollections(), func(tx *sql.Tx) error {
		return store.PurgeOwnerTx(tx, ownerID)
	})
}

func setGeneratedID(rec models.Record) error {
	switch r := rec.(type) {
	case *models.Workout:
		r.ID = uuid.NewString()
	case *models.Metric:
		r.ID = uuid.NewString()
	case *models.Note:
		r.ID = uuid.NewString()
	default:
		return fmt.Errorf("cannot generate id for %T", rec)
	}
	return nil
}
