// Package scope tracks the active user for the current process and enforces
// tenant isolation. All reads and writes of user data consult it; when no
// user is set, reads fail closed and writes are rejected.
package scope

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jmreid/daybook/internal/models"
)

// ErrUnauthenticated is returned when an operation requires an active user
// and none is set. There is no guest fallback.
var ErrUnauthenticated = errors.New("no authenticated user")

// ErrOwnership is returned when a record's owner differs from the active
// user. It indicates a programming error or a cross-tenant access attempt
// and must never be masked or retried.
var ErrOwnership = errors.New("record owned by another user")

// Scope holds the active user id and notifies listeners when it changes.
// Construct one per process and pass it to the components that need it;
// there is no package-level instance.
type Scope struct {
	mu        sync.RWMutex
	userID    string
	nextSub   int
	listeners map[int]func(userID string)
}

// New returns an empty scope with no active user.
func New() *Scope {
	return &Scope{listeners: make(map[int]func(string))}
}

// SetUserID updates the active user. Listeners are notified synchronously,
// but only when the id actually changes.
func (s *Scope) SetUserID(id string) {
	s.mu.Lock()
	if s.userID == id {
		s.mu.Unlock()
		return
	}
	s.userID = id
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Outside the lock so listeners can call back into the scope.
	for _, fn := range fns {
		fn(id)
	}
}

// Clear drops the active user (logout). Equivalent to SetUserID(""), so
// listeners fire and dependent subsystems can flush.
func (s *Scope) Clear() {
	s.SetUserID("")
}

// UserID returns the active user id, or "" when none is set.
func (s *Scope) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// RequireUserID returns the active user id or ErrUnauthenticated.
func (s *Scope) RequireUserID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == "" {
		return "", ErrUnauthenticated
	}
	return s.userID, nil
}

// ValidateOwner fails if ownerID is set and differs from the active user.
func (s *Scope) ValidateOwner(ownerID string) error {
	if ownerID == "" {
		return nil
	}
	active, err := s.RequireUserID()
	if err != nil {
		return err
	}
	if ownerID != active {
		return fmt.Errorf("%w: record owner %q, active user %q", ErrOwnership, ownerID, active)
	}
	return nil
}

// EnsureOwner stamps the active user on an unowned record, or validates the
// existing owner. First write binds ownership.
func (s *Scope) EnsureOwner(rec models.Record) error {
	active, err := s.RequireUserID()
	if err != nil {
		return err
	}
	if rec.Owner() == "" {
		rec.SetOwner(active)
		return nil
	}
	return s.ValidateOwner(rec.Owner())
}

// OnChange registers a listener for user changes and returns its disposer.
func (s *Scope) OnChange(fn func(userID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// FilterOwned returns only the records owned by the active user. With no
// active user it returns nothing: absence of context must never leak other
// tenants' data.
func FilterOwned[T models.Record](s *Scope, recs []T) []T {
	active := s.UserID()
	if active == "" {
		return nil
	}
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if r.Owner() == active {
			out = append(out, r)
		}
	}
	return out
}
