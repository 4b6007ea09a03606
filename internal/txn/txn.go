// Package txn serializes units of work against declared sets of collections.
// A unit gets exclusive write access to the collections it names, runs inside
// one SQLite transaction so readers never observe partial writes, and emits
// exactly one change event per collection after commit.
package txn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jmreid/daybook/internal/events"
	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/store"
)

// Coordinator owns the per-collection write locks. One per process, shared
// by every writer including the sync engine.
type Coordinator struct {
	store *store.Store
	bus   *events.Bus
	log   *slog.Logger

	// One slot per collection. Channel semaphores instead of mutexes so
	// acquisition can honor context cancellation.
	locks map[models.Collection]chan struct{}
}

// New builds a coordinator over the store. The bus may be nil in tests that
// do not care about notifications.
func New(st *store.Store, bus *events.Bus, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	locks := make(map[models.Collection]chan struct{}, len(models.AllCollections()))
	for _, c := range models.AllCollections() {
		ch := make(chan struct{}, 1)
		ch <- struct{}{}
		locks[c] = ch
	}
	return &Coordinator{store: st, bus: bus, log: log, locks: locks}
}

// Execute runs fn with exclusive write access to the named collections, all
// inside one transaction. On success the unit commits and one change event
// fires per collection; on error everything rolls back and the error
// propagates untouched.
func (c *Coordinator) Execute(ctx context.Context, collections []models.Collection, fn func(tx *sql.Tx) error) error {
	return c.execute(ctx, collections, fn, true)
}

// ExecuteQuiet is Execute without the post-commit notification. The sync
// engine applies pulled records through here so remote writes do not
// re-trigger an outgoing sync of the same data.
func (c *Coordinator) ExecuteQuiet(ctx context.Context, collections []models.Collection, fn func(tx *sql.Tx) error) error {
	return c.execute(ctx, collections, fn, false)
}

func (c *Coordinator) execute(ctx context.Context, collections []models.Collection, fn func(tx *sql.Tx) error, notify bool) error {
	ordered, err := c.normalize(collections)
	if err != nil {
		return err
	}

	if err := c.runUnit(ctx, ordered, fn); err != nil {
		return err
	}

	// Notify only after the locks are released, so a listener that starts
	// its own unit on the same collections cannot deadlock.
	if notify && c.bus != nil {
		for _, col := range ordered {
			if cat, ok := events.CategoryFor(col); ok {
				c.bus.Emit(cat)
			}
		}
	}
	return nil
}

func (c *Coordinator) runUnit(ctx context.Context, ordered []models.Collection, fn func(tx *sql.Tx) error) error {
	acquired, err := c.acquire(ctx, ordered)
	if err != nil {
		return err
	}
	defer c.release(acquired)

	tx, err := c.store.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// normalize validates, dedupes, and sorts the collection set. Sorted
// acquisition order means overlapping units can never deadlock.
func (c *Coordinator) normalize(collections []models.Collection) ([]models.Collection, error) {
	if len(collections) == 0 {
		return nil, fmt.Errorf("transaction declared no collections")
	}
	seen := make(map[models.Collection]bool, len(collections))
	var ordered []models.Collection
	for _, col := range collections {
		if !models.IsValidCollection(col) {
			return nil, fmt.Errorf("unknown collection %q", col)
		}
		if !seen[col] {
			seen[col] = true
			ordered = append(ordered, col)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	return ordered, nil
}

func (c *Coordinator) acquire(ctx context.Context, ordered []models.Collection) ([]models.Collection, error) {
	var held []models.Collection
	for _, col := range ordered {
		select {
		case <-c.locks[col]:
			held = append(held, col)
		case <-ctx.Done():
			c.release(held)
			return nil, fmt.Errorf("acquire lock on %s: %w", col, ctx.Err())
		}
	}
	return held, nil
}

func (c *Coordinator) release(held []models.Collection) {
	// Reverse order of acquisition.
	for i := len(held) - 1; i >= 0; i-- {
		c.locks[held[i]] <- struct{}{}
	}
}

// Batch chunks items into fixed-size batches, each committed as its own
// transaction. A failure partway through a large import rolls back only the
// current chunk; earlier chunks stay committed. Batch-level atomicity is the
// deliberate trade-off here, not list-level.
func Batch[T any](ctx context.Context, c *Coordinator, collection models.Collection, items []T, batchSize int, perItem func(tx *sql.Tx, item T) error) error {
	if batchSize <= 0 {
		batchSize = 50
	}
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		chunk := items[start:end]
		err := c.Execute(ctx, []models.Collection{collection}, func(tx *sql.Tx) error {
			for _, item := range chunk {
				if err := perItem(tx, item); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}
