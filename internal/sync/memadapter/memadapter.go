// Package memadapter is a map-backed remote replica. It backs orchestrator
// tests and offline development; the same optimistic-lock rule a real
// backend enforces applies here, so stale pushes are rejected per record.
package memadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmreid/daybook/internal/models"
	daysync "github.com/jmreid/daybook/internal/sync"
)

type key struct {
	owner      string
	collection models.Collection
	id         string
}

// Adapter is an in-memory sync backend.
type Adapter struct {
	mu      sync.Mutex
	records map[key]models.Record

	// Optional fault injection for tests.
	PushErr error
	PullErr error

	pushCalls int
	pullCalls int
}

var _ daysync.Adapter = (*Adapter)(nil)

// New returns an empty replica.
func New() *Adapter {
	return &Adapter{records: make(map[key]models.Record)}
}

// Push accepts each record unless its version is behind the replica's copy.
func (a *Adapter) Push(ctx context.Context, ownerID string, batch daysync.Batch) (daysync.PushResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pushCalls++

	var result daysync.PushResult
	if a.PushErr != nil {
		return result, a.PushErr
	}

	for col, records := range batch {
		for _, rec := range records {
			k := key{owner: ownerID, collection: col, id: rec.RecordID()}
			if existing, ok := a.records[k]; ok && !models.CanUpdate(*existing.Meta(), *rec.Meta()) {
				result.Errors = append(result.Errors, daysync.RecordError{
					Collection: col,
					RecordID:   rec.RecordID(),
					Err: fmt.Errorf("stale push: have v%d, got v%d",
						existing.Meta().Version, rec.Meta().Version),
				})
				continue
			}
			a.records[k] = rec.Clone()
			result.RecordsSent++
		}
	}
	return result, nil
}

// Pull returns clones of the owner's records in the requested collections.
func (a *Adapter) Pull(ctx context.Context, ownerID string, collections []models.Collection) (daysync.PullResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pullCalls++

	result := daysync.PullResult{Records: daysync.Batch{}}
	if a.PullErr != nil {
		return result, a.PullErr
	}

	want := make(map[models.Collection]bool, len(collections))
	for _, c := range collections {
		want[c] = true
	}
	for k, rec := range a.records {
		if k.owner == ownerID && want[k.collection] {
			result.Records[k.collection] = append(result.Records[k.collection], rec.Clone())
		}
	}
	return result, nil
}

// Seed places a record on the replica directly, bypassing version checks.
func (a *Adapter) Seed(ownerID string, rec models.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[key{owner: ownerID, collection: rec.Collection(), id: rec.RecordID()}] = rec.Clone()
}

// Get returns the replica's copy of a record, or nil.
func (a *Adapter) Get(ownerID string, c models.Collection, id string) models.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.records[key{owner: ownerID, collection: c, id: id}]; ok {
		return rec.Clone()
	}
	return nil
}

// PushCalls reports how many push requests the replica has seen.
func (a *Adapter) PushCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pushCalls
}

// PullCalls reports how many pull requests the replica has seen.
func (a *Adapter) PullCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pullCalls
}
