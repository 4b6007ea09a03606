// Package sync drives reconciliation between the local store and remote
// backends. Local writes are coalesced by a debounce timer and pushed in
// batches; pulls route diverging records through the conflict resolver.
package sync

import (
	"context"
	"fmt"

	"github.com/jmreid/daybook/internal/models"
)

// Direction selects which half of a sync runs.
type Direction string

const (
	DirectionPush          Direction = "push"
	DirectionPull          Direction = "pull"
	DirectionBidirectional Direction = "bidirectional"
)

// Batch groups records by collection for one adapter call.
type Batch map[models.Collection][]models.Record

// RecordError ties a per-record failure to the record it concerns.
type RecordError struct {
	Collection models.Collection
	RecordID   string
	Err        error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Collection, e.RecordID, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// PushResult reports what a push attempt accomplished.
type PushResult struct {
	RecordsSent int
	Errors      []RecordError
}

// PullResult carries the records a backend returned. The core only requires
// that they satisfy the versioned-record shape; the wire format is the
// adapter's business.
type PullResult struct {
	Records Batch
	Errors  []RecordError
}

// Request describes one sync pass.
type Request struct {
	Collections []models.Collection
	Direction   Direction
}

// Adapter is the per-backend network contract. Implementations own the wire
// protocol; the orchestrator owns batching, conflict resolution, and state.
type Adapter interface {
	Push(ctx context.Context, ownerID string, batch Batch) (PushResult, error)
	Pull(ctx context.Context, ownerID string, collections []models.Collection) (PullResult, error)
}
