package sync_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmreid/daybook/internal/app"
	"github.com/jmreid/daybook/internal/events"
	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/scope"
	"github.com/jmreid/daybook/internal/store"
	daysync "github.com/jmreid/daybook/internal/sync"
	"github.com/jmreid/daybook/internal/sync/memadapter"
	"github.com/jmreid/daybook/internal/txn"
)

type world struct {
	store   *store.Store
	scope   *scope.Scope
	bus     *events.Bus
	coord   *txn.Coordinator
	app     *app.App
	adapter *memadapter.Adapter
	orch    *daysync.Orchestrator
}

const testDebounce = 75 * time.Millisecond

func newWorld(t *testing.T) *world {
	t.Helper()
	st, err := store.Initialize(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sc := scope.New()
	bus := events.NewBus(nil)
	coord := txn.New(st, bus, nil)
	adapter := memadapter.New()

	orch := daysync.New(st, coord, sc, bus, adapter, daysync.Options{Debounce: testDebounce})
	orch.Start()
	t.Cleanup(orch.Close)

	return &world{
		store:   st,
		scope:   sc,
		bus:     bus,
		coord:   coord,
		app:     app.New(st, sc, coord, nil),
		adapter: adapter,
		orch:    orch,
	}
}

// writeLocal persists a record with crafted version metadata, bypassing the
// app layer so tests control timestamps exactly.
func (w *world) writeLocal(t *testing.T, rec models.Record) {
	t.Helper()
	err := w.coord.ExecuteQuiet(context.Background(), []models.Collection{rec.Collection()}, func(tx *sql.Tx) error {
		return store.PutTx(tx, rec)
	})
	require.NoError(t, err)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}

func TestDebounceCoalescesBurst(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")
	ctx := context.Background()

	// A burst of writes within the quiet period syncs in one round-trip.
	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, w.app.Create(ctx, &models.Note{Title: title}))
	}

	eventually(t, func() bool { return w.adapter.PushCalls() == 1 }, "burst did not flush")

	// Give a straggler flush time to happen; it must not.
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, w.adapter.PushCalls(), "burst pushed more than once")
	assert.Empty(t, w.orch.Pending())
}

func TestLogoutCancelsPendingFlush(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")

	require.NoError(t, w.app.Create(context.Background(), &models.Note{Title: "draft"}))
	require.NotEmpty(t, w.orch.Pending())

	// Logout before the timer fires: nothing may reach the network.
	w.scope.Clear()

	time.Sleep(4 * testDebounce)
	assert.Zero(t, w.adapter.PushCalls(), "sync ran for a logged-out session")
	assert.Empty(t, w.orch.Pending())
}

func TestDisableDropsQueue(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")

	require.NoError(t, w.app.Create(context.Background(), &models.Note{Title: "x"}))
	w.orch.Disable()

	time.Sleep(4 * testDebounce)
	assert.Zero(t, w.adapter.PushCalls())
}

func TestManualSyncBidirectional(t *testing.T) {
	w := newWorld(t)
	w.orch.Disable() // exercise the manual path only
	w.scope.SetUserID("u1")
	ctx := context.Background()

	local := &models.Note{Title: "local"}
	require.NoError(t, w.app.Create(ctx, local))

	remote := &models.Workout{
		ID: "w-remote", OwnerID: "u1", Activity: "swim", DurationMin: 40,
		Versioned: models.Versioned{Version: 1, UpdatedAt: time.Now().UTC()},
	}
	w.adapter.Seed("u1", remote)

	require.NoError(t, w.orch.TriggerManualSync(ctx, daysync.Request{}))

	// Local record reached the replica.
	assert.NotNil(t, w.adapter.Get("u1", models.CollectionNotes, local.ID))

	// Remote record landed locally.
	got, err := w.store.Get(models.CollectionWorkouts, "w-remote")
	require.NoError(t, err)
	assert.Equal(t, "swim", got.(*models.Workout).Activity)
	assert.Equal(t, "u1", got.Owner())

	for _, c := range models.AllCollections() {
		md, err := w.store.GetSyncMetadata(c, "u1")
		require.NoError(t, err)
		require.NotNil(t, md, "no metadata for %s", c)
		assert.Equal(t, models.SyncSuccess, md.Status)
		assert.NotNil(t, md.LastSyncAt)
		assert.NotNil(t, md.LastPushAt)
		assert.NotNil(t, md.LastPullAt)
	}
}

func TestManualSyncRequiresUser(t *testing.T) {
	w := newWorld(t)
	err := w.orch.TriggerManualSync(context.Background(), daysync.Request{})
	assert.ErrorIs(t, err, scope.ErrUnauthenticated)
}

func TestManualSyncRejectsUnknownCollection(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")
	err := w.orch.TriggerManualSync(context.Background(), daysync.Request{
		Collections: []models.Collection{"bogus"},
	})
	assert.Error(t, err)
}

func TestPullResolvesDivergence(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")
	ctx := context.Background()

	tOld := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tNew := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Notes resolve local-first. Both sides edited since the last sync.
	local := &models.Note{
		ID: "n1", OwnerID: "u1", Title: "local edit",
		Versioned: models.Versioned{Version: 3, UpdatedAt: tNew},
	}
	w.writeLocal(t, local)
	w.adapter.Seed("u1", &models.Note{
		ID: "n1", OwnerID: "u1", Title: "remote edit",
		Versioned: models.Versioned{Version: 2, UpdatedAt: tOld},
	})

	err := w.orch.TriggerManualSync(ctx, daysync.Request{
		Collections: []models.Collection{models.CollectionNotes},
		Direction:   daysync.DirectionPull,
	})
	require.NoError(t, err)

	// Local wins and stays put.
	got, err := w.store.Get(models.CollectionNotes, "n1")
	require.NoError(t, err)
	assert.Equal(t, "local edit", got.(*models.Note).Title)
	assert.EqualValues(t, 3, got.Meta().Version)

	md, err := w.store.GetSyncMetadata(models.CollectionNotes, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncConflict, md.Status)
	assert.Equal(t, 1, md.ConflictCount)

	// The surviving local copy is queued so the backend hears about it.
	assert.Contains(t, w.orch.Pending(), models.CollectionNotes)
}

func TestPullTakesStrictlyNewerRemote(t *testing.T) {
	w := newWorld(t)
	w.orch.Disable()
	w.scope.SetUserID("u1")

	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	w.writeLocal(t, &models.Metric{
		ID: "m1", OwnerID: "u1", Name: "weight", Value: 80,
		Versioned: models.Versioned{Version: 2, UpdatedAt: at},
	})
	// Same timestamp, higher version: a fast-forward, not a conflict.
	w.adapter.Seed("u1", &models.Metric{
		ID: "m1", OwnerID: "u1", Name: "weight", Value: 79,
		Versioned: models.Versioned{Version: 5, UpdatedAt: at},
	})

	err := w.orch.TriggerManualSync(context.Background(), daysync.Request{
		Collections: []models.Collection{models.CollectionMetrics},
		Direction:   daysync.DirectionPull,
	})
	require.NoError(t, err)

	got, err := w.store.Get(models.CollectionMetrics, "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.Meta().Version)
	assert.Equal(t, 79.0, got.(*models.Metric).Value)

	md, _ := w.store.GetSyncMetadata(models.CollectionMetrics, "u1")
	assert.Equal(t, models.SyncSuccess, md.Status)
	assert.Zero(t, md.ConflictCount)
}

func TestPullIgnoresOlderRemote(t *testing.T) {
	w := newWorld(t)
	w.orch.Disable()
	w.scope.SetUserID("u1")

	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	w.writeLocal(t, &models.Metric{
		ID: "m1", OwnerID: "u1", Name: "weight", Value: 80,
		Versioned: models.Versioned{Version: 4, UpdatedAt: at},
	})
	w.adapter.Seed("u1", &models.Metric{
		ID: "m1", OwnerID: "u1", Name: "weight", Value: 99,
		Versioned: models.Versioned{Version: 2, UpdatedAt: at},
	})

	require.NoError(t, w.orch.TriggerManualSync(context.Background(), daysync.Request{
		Collections: []models.Collection{models.CollectionMetrics},
		Direction:   daysync.DirectionPull,
	}))

	got, err := w.store.Get(models.CollectionMetrics, "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.Meta().Version)
	assert.Equal(t, 80.0, got.(*models.Metric).Value)
}

func TestPullRejectsForeignOwner(t *testing.T) {
	w := newWorld(t)
	w.orch.Disable()
	w.scope.SetUserID("u1")

	// A record claiming another owner must never land in u1's store, no
	// matter what the backend returns.
	w.adapter.Seed("u1", &models.Note{
		ID: "n-foreign", OwnerID: "u2", Title: "not yours",
		Versioned: models.Versioned{Version: 1, UpdatedAt: time.Now().UTC()},
	})

	require.NoError(t, w.orch.TriggerManualSync(context.Background(), daysync.Request{
		Collections: []models.Collection{models.CollectionNotes},
		Direction:   daysync.DirectionPull,
	}))

	_, err := w.store.Get(models.CollectionNotes, "n-foreign")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPushFailureRecordedAndRetriedNextCycle(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")
	ctx := context.Background()

	w.adapter.PushErr = errors.New("backend unreachable")
	require.NoError(t, w.app.Create(ctx, &models.Note{Title: "offline edit"}))

	eventually(t, func() bool {
		md, err := w.store.GetSyncMetadata(models.CollectionNotes, "u1")
		return err == nil && md != nil && md.Status == models.SyncError
	}, "push failure not recorded")

	md, err := w.store.GetSyncMetadata(models.CollectionNotes, "u1")
	require.NoError(t, err)
	assert.Contains(t, md.ErrorMessage, "backend unreachable")

	// Backend recovers; the next local write syncs everything through.
	w.adapter.PushErr = nil
	require.NoError(t, w.app.Create(ctx, &models.Note{Title: "back online"}))

	eventually(t, func() bool {
		md, err := w.store.GetSyncMetadata(models.CollectionNotes, "u1")
		return err == nil && md != nil && md.Status == models.SyncSuccess
	}, "recovery push did not succeed")

	md, err = w.store.GetSyncMetadata(models.CollectionNotes, "u1")
	require.NoError(t, err)
	assert.Empty(t, md.ErrorMessage)
	assert.Equal(t, 2, md.RecordCount)
}

func TestDebouncedPushPropagatesTombstones(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")
	ctx := context.Background()

	n := &models.Note{Title: "short-lived"}
	require.NoError(t, w.app.Create(ctx, n))
	require.NoError(t, w.app.Delete(ctx, models.CollectionNotes, n.ID))

	eventually(t, func() bool {
		rec := w.adapter.Get("u1", models.CollectionNotes, n.ID)
		return rec != nil && rec.Meta().Deleted()
	}, "tombstone never reached the replica")
}

func TestApplyingPullDoesNotRetriggerPush(t *testing.T) {
	w := newWorld(t)
	w.scope.SetUserID("u1")

	w.adapter.Seed("u1", &models.Note{
		ID: "n1", OwnerID: "u1", Title: "remote only",
		Versioned: models.Versioned{Version: 1, UpdatedAt: time.Now().UTC()},
	})

	require.NoError(t, w.orch.TriggerManualSync(context.Background(), daysync.Request{
		Collections: []models.Collection{models.CollectionNotes},
		Direction:   daysync.DirectionPull,
	}))

	// Applying a clean pull must not queue an echo push.
	assert.Empty(t, w.orch.Pending())
	time.Sleep(3 * testDebounce)
	assert.Zero(t, w.adapter.PushCalls())
}
