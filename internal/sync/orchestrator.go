package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmreid/daybook/internal/events"
	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/resolve"
	"github.com/jmreid/daybook/internal/scope"
	"github.com/jmreid/daybook/internal/store"
	"github.com/jmreid/daybook/internal/txn"
)

// DefaultDebounce is how long the orchestrator waits after the last local
// write before syncing. Bursts of edits collapse into one round-trip.
const DefaultDebounce = 2 * time.Second

// Options tunes an orchestrator.
type Options struct {
	Debounce time.Duration
	Policies resolve.PolicyTable
	Logger   *slog.Logger
}

// Orchestrator owns the per-(collection, owner) sync state machine:
// idle → syncing → success | error | conflict → idle. It subscribes to the
// change bus, debounces outgoing pushes, and applies the conflict resolver
// to anything a pull brings back.
type Orchestrator struct {
	store    *store.Store
	coord    *txn.Coordinator
	scope    *scope.Scope
	bus      *events.Bus
	adapter  Adapter
	policies resolve.PolicyTable
	debounce time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	pending  map[models.Collection]struct{}
	timer    *time.Timer
	disabled bool
	closed   bool
	unsubs   []func()
	inflight sync.WaitGroup
}

// New builds an orchestrator. Call Start to begin listening for changes and
// Close on shutdown.
func New(st *store.Store, coord *txn.Coordinator, sc *scope.Scope, bus *events.Bus, adapter Adapter, opts Options) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Policies == nil {
		opts.Policies = resolve.DefaultPolicies()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		store:    st,
		coord:    coord,
		scope:    sc,
		bus:      bus,
		adapter:  adapter,
		policies: opts.Policies,
		debounce: opts.Debounce,
		log:      opts.Logger,
		pending:  make(map[models.Collection]struct{}),
	}
}

// Start subscribes to the change bus and to user-context changes. Logout
// cancels any pending debounce so a just-logged-out session can never reach
// the network.
func (o *Orchestrator) Start() {
	for _, col := range models.AllCollections() {
		cat, ok := events.CategoryFor(col)
		if !ok {
			continue
		}
		col := col
		o.unsubs = append(o.unsubs, o.bus.On(cat, func() {
			o.noteChange(col)
		}))
	}
	o.unsubs = append(o.unsubs, o.scope.OnChange(func(userID string) {
		o.cancelPending()
	}))
}

// Close cancels pending work, detaches from the bus, and waits for any
// in-flight sync to finish.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	unsubs := o.unsubs
	o.unsubs = nil
	o.stopTimerLocked()
	o.pending = make(map[models.Collection]struct{})
	o.mu.Unlock()

	for _, un := range unsubs {
		un()
	}
	o.inflight.Wait()
}

// Disable stops automatic syncing and drops anything already queued.
// Manual sync still works.
func (o *Orchestrator) Disable() {
	o.mu.Lock()
	o.disabled = true
	o.stopTimerLocked()
	o.pending = make(map[models.Collection]struct{})
	o.mu.Unlock()
}

// Enable re-arms automatic syncing.
func (o *Orchestrator) Enable() {
	o.mu.Lock()
	o.disabled = false
	o.mu.Unlock()
}

// Pending returns the collections currently queued for the next debounce
// flush.
func (o *Orchestrator) Pending() []models.Collection {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Collection, 0, len(o.pending))
	for c := range o.pending {
		out = append(out, c)
	}
	return out
}

// noteChange queues a collection and (re)arms the debounce timer. Each new
// event restarts the delay so a burst of writes syncs once.
func (o *Orchestrator) noteChange(c models.Collection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disabled || o.closed {
		return
	}
	o.pending[c] = struct{}{}
	if o.timer == nil {
		o.timer = time.AfterFunc(o.debounce, o.flushDebounced)
	} else {
		o.timer.Reset(o.debounce)
	}
}

// cancelPending stops the debounce timer and clears the queue. Called on
// logout and disable.
func (o *Orchestrator) cancelPending() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTimerLocked()
	o.pending = make(map[models.Collection]struct{})
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// flushDebounced runs when the quiet period elapses: push every pending
// collection. Failures stay recorded in sync metadata and the collection
// becomes eligible again on the next local write — there is no internal
// retry loop to storm an unreachable backend.
func (o *Orchestrator) flushDebounced() {
	o.mu.Lock()
	if o.disabled || o.closed {
		o.mu.Unlock()
		return
	}
	cols := make([]models.Collection, 0, len(o.pending))
	for c := range o.pending {
		cols = append(cols, c)
	}
	o.pending = make(map[models.Collection]struct{})
	o.timer = nil
	o.inflight.Add(1)
	o.mu.Unlock()

	defer o.inflight.Done()

	ownerID, err := o.scope.RequireUserID()
	if err != nil {
		return // logged out between write and flush
	}
	for _, c := range cols {
		if err := o.syncCollection(context.Background(), ownerID, c, DirectionPush); err != nil {
			o.log.Debug("debounced sync failed", "collection", c, "err", err)
		}
	}
}

// TriggerManualSync bypasses the debounce entirely and runs a bidirectional
// sync over the requested collections (all of them when the request names
// none). It goes through the same conflict-resolution path as automatic
// sync.
func (o *Orchestrator) TriggerManualSync(ctx context.Context, req Request) error {
	ownerID, err := o.scope.RequireUserID()
	if err != nil {
		return err
	}
	cols := req.Collections
	if len(cols) == 0 {
		cols = models.AllCollections()
	}
	direction := req.Direction
	if direction == "" {
		direction = DirectionBidirectional
	}

	// Anything queued for these collections is covered by this pass.
	o.mu.Lock()
	for _, c := range cols {
		delete(o.pending, c)
	}
	if len(o.pending) == 0 {
		o.stopTimerLocked()
	}
	o.mu.Unlock()

	var errs []error
	for _, c := range cols {
		if !models.IsValidCollection(c) {
			errs = append(errs, fmt.Errorf("unknown collection %q", c))
			continue
		}
		if err := o.syncCollection(ctx, ownerID, c, direction); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

// syncCollection runs one pass of the state machine for a collection. The
// status always leaves "syncing" before this returns, whatever the outcome.
func (o *Orchestrator) syncCollection(ctx context.Context, ownerID string, c models.Collection, direction Direction) error {
	md, err := o.store.GetSyncMetadata(c, ownerID)
	if err != nil {
		return err
	}
	if md == nil {
		md = &models.SyncMetadata{Collection: c, OwnerID: ownerID, Status: models.SyncIdle}
	}
	md.Status = models.SyncSyncing
	if err := o.store.UpsertSyncMetadata(md); err != nil {
		return err
	}

	conflicts, syncErr := o.runSync(ctx, ownerID, c, direction, md)

	now := time.Now()
	md.LastSyncAt = &now
	md.ConflictCount = conflicts
	switch {
	case syncErr != nil:
		md.Status = models.SyncError
		md.ErrorMessage = syncErr.Error()
	case conflicts > 0:
		md.Status = models.SyncConflict
		md.ErrorMessage = ""
	default:
		md.Status = models.SyncSuccess
		md.ErrorMessage = ""
	}
	if n, err := o.store.CountRecords(c, ownerID); err == nil {
		md.RecordCount = n
	}
	if err := o.store.UpsertSyncMetadata(md); err != nil {
		return errors.Join(syncErr, err)
	}
	return syncErr
}

func (o *Orchestrator) runSync(ctx context.Context, ownerID string, c models.Collection, direction Direction, md *models.SyncMetadata) (int, error) {
	if direction == DirectionPush || direction == DirectionBidirectional {
		if err := o.push(ctx, ownerID, c); err != nil {
			return 0, err
		}
		now := time.Now()
		md.LastPushAt = &now
	}
	if direction == DirectionPull || direction == DirectionBidirectional {
		conflicts, err := o.pull(ctx, ownerID, c)
		if err != nil {
			return conflicts, err
		}
		now := time.Now()
		md.LastPullAt = &now
		return conflicts, nil
	}
	return 0, nil
}

// push sends the owner's full record set, tombstones included, so deletes
// propagate.
func (o *Orchestrator) push(ctx context.Context, ownerID string, c models.Collection) error {
	records, err := o.store.List(c, ownerID, store.ListOptions{IncludeDeleted: true})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	res, err := o.adapter.Push(ctx, ownerID, Batch{c: records})
	if err != nil {
		return err
	}
	for _, re := range res.Errors {
		o.log.Warn("push rejected record", "collection", re.Collection, "id", re.RecordID, "err", re.Err)
	}
	o.log.Debug("pushed", "collection", c, "records", res.RecordsSent)
	return nil
}

// pull fetches the remote copy of the collection and reconciles it against
// local state, returning how many conflicts were resolved.
func (o *Orchestrator) pull(ctx context.Context, ownerID string, c models.Collection) (int, error) {
	res, err := o.adapter.Pull(ctx, ownerID, []models.Collection{c})
	if err != nil {
		return 0, err
	}

	conflicts := 0
	for _, remote := range res.Records[c] {
		// The user may have changed while the pull was in flight. A
		// stale result must not be applied under the new context.
		if o.scope.UserID() != ownerID {
			o.log.Info("discarding pull result, user context changed", "collection", c)
			return conflicts, nil
		}
		resolved, err := o.applyRemote(ctx, ownerID, c, remote)
		if err != nil {
			o.log.Warn("apply pulled record", "collection", c, "id", remote.RecordID(), "err", err)
			continue
		}
		if resolved {
			conflicts++
		}
	}
	return conflicts, nil
}

// applyRemote reconciles one pulled record with the local copy. Returns
// whether a genuine conflict was resolved.
func (o *Orchestrator) applyRemote(ctx context.Context, ownerID string, c models.Collection, remote models.Record) (bool, error) {
	if remote.RecordID() == "" {
		return false, fmt.Errorf("pulled record has no id")
	}
	if remote.Meta().Version < 1 {
		return false, fmt.Errorf("pulled record version %d below 1", remote.Meta().Version)
	}
	if remote.Owner() != "" && remote.Owner() != ownerID {
		return false, fmt.Errorf("%w: pulled record owned by %q", scope.ErrOwnership, remote.Owner())
	}

	local, err := o.store.Get(c, remote.RecordID())
	if errors.Is(err, store.ErrNotFound) {
		incoming := remote.Clone()
		incoming.SetOwner(ownerID)
		return false, o.write(ctx, c, incoming)
	}
	if err != nil {
		return false, err
	}

	info := resolve.Detect(c, remote.RecordID(), local, remote)
	if !info.HasConflict {
		// Not a divergence; take the remote only when it is strictly ahead.
		if remote.Meta().Version > local.Meta().Version {
			incoming := remote.Clone()
			incoming.SetOwner(ownerID)
			return false, o.write(ctx, c, incoming)
		}
		return false, nil
	}

	winner, shouldPush, err := resolve.Apply(o.policies.For(c), local, remote)
	if err != nil {
		return false, err
	}
	if shouldPush {
		// Local copy stands; queue it so the next debounce tells the
		// backend to accept our version.
		o.noteChange(c)
		return true, nil
	}
	winner.SetOwner(ownerID)
	return true, o.write(ctx, c, winner)
}

// write persists a reconciled record without re-notifying the bus: applying
// a pull must not trigger another outgoing sync of the same data.
func (o *Orchestrator) write(ctx context.Context, c models.Collection, rec models.Record) error {
	return o.coord.ExecuteQuiet(ctx, []models.Collection{c}, func(tx *sql.Tx) error {
		current, err := store.GetTx(tx, c, rec.RecordID())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if current != nil && !models.CanUpdate(*current.Meta(), *rec.Meta()) {
			return fmt.Errorf("%w: have v%d, got v%d", store.ErrStaleVersion,
				current.Meta().Version, rec.Meta().Version)
		}
		return store.PutTx(tx, rec)
	})
}
