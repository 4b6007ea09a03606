// Package events is the in-process change notification bus. Categories are a
// closed enumeration, one per record collection plus auth, so an unknown
// category is a compile error rather than a silent no-op.
package events

import (
	"log/slog"
	"sync"

	"github.com/jmreid/daybook/internal/models"
)

// Category is a change-event category.
type Category int

const (
	CategoryWorkouts Category = iota
	CategoryMetrics
	CategoryNotes
	CategoryAuth
)

// String returns the category name for logs.
func (c Category) String() string {
	switch c {
	case CategoryWorkouts:
		return "workouts"
	case CategoryMetrics:
		return "metrics"
	case CategoryNotes:
		return "notes"
	case CategoryAuth:
		return "auth"
	}
	return "unknown"
}

// CategoryFor maps a collection to its change category.
func CategoryFor(c models.Collection) (Category, bool) {
	switch c {
	case models.CollectionWorkouts:
		return CategoryWorkouts, true
	case models.CollectionMetrics:
		return CategoryMetrics, true
	case models.CollectionNotes:
		return CategoryNotes, true
	}
	return 0, false
}

// CollectionFor maps a change category back to its collection. Returns false
// for categories that are not collection-backed (auth).
func CollectionFor(c Category) (models.Collection, bool) {
	switch c {
	case CategoryWorkouts:
		return models.CollectionWorkouts, true
	case CategoryMetrics:
		return models.CollectionMetrics, true
	case CategoryNotes:
		return models.CollectionNotes, true
	}
	return "", false
}

type subscription struct {
	id int
	fn func()
}

// Bus fans out change notifications to registered listeners. Delivery is
// synchronous and in insertion order; listeners must not depend on ordering
// for correctness.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[Category][]subscription
	log     *slog.Logger
}

// NewBus returns an empty bus. A nil logger falls back to slog.Default.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: make(map[Category][]subscription), log: log}
}

// On registers a listener for a category and returns its disposer.
func (b *Bus) On(cat Category, fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[cat] = append(b.subs[cat], subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[cat]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[cat] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit synchronously invokes all current listeners for a category. A panic
// in one listener is logged and does not stop the rest.
func (b *Bus) Emit(cat Category) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs[cat]))
	copy(subs, b.subs[cat])
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(cat, sub)
	}
}

func (b *Bus) deliver(cat Category, sub subscription) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked", "category", cat.String(), "panic", r)
		}
	}()
	sub.fn()
}
