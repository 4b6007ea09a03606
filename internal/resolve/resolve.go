// Package resolve compares diverging copies of a record and decides which
// wins. Every function here is pure: inputs are never mutated, winners are
// returned as copies. Callers pick a strategy per collection; conflicts are
// expected outcomes, not errors.
package resolve

import (
	"time"

	"github.com/jmreid/daybook/internal/models"
)

// ConflictInfo describes how the local and remote copies of one record
// relate. It is derived state, recomputed whenever a remote copy is
// observed, and never persisted as source of truth.
type ConflictInfo struct {
	Collection      models.Collection
	RecordID        string
	LocalVersion    int64
	RemoteVersion   int64
	LocalUpdatedAt  time.Time
	RemoteUpdatedAt time.Time
	HasConflict     bool
}

// Detect computes the conflict state for a record pair. HasConflict is true
// only when the versions differ and both sides carry a real, differing
// timestamp — i.e. both sides have independently advanced.
func Detect(c models.Collection, id string, local, remote models.Record) ConflictInfo {
	lm, rm := local.Meta(), remote.Meta()
	info := ConflictInfo{
		Collection:      c,
		RecordID:        id,
		LocalVersion:    lm.Version,
		RemoteVersion:   rm.Version,
		LocalUpdatedAt:  lm.UpdatedAt,
		RemoteUpdatedAt: rm.UpdatedAt,
	}
	info.HasConflict = lm.Version != rm.Version &&
		!lm.UpdatedAt.IsZero() && !rm.UpdatedAt.IsZero() &&
		!lm.UpdatedAt.Equal(rm.UpdatedAt)
	return info
}

// LastWriteWins returns a copy of whichever record was updated later. Ties
// favor local.
func LastWriteWins[T models.Record](local, remote T) T {
	if remote.Meta().UpdatedAt.After(local.Meta().UpdatedAt) {
		return remote.Clone().(T)
	}
	return local.Clone().(T)
}

// ByVersion returns a copy of whichever record has the higher version. Ties
// favor local.
func ByVersion[T models.Record](local, remote T) T {
	if remote.Meta().Version > local.Meta().Version {
		return remote.Clone().(T)
	}
	return local.Clone().(T)
}

// LocalFirst always keeps the local copy and asks the caller to push it.
// Used for record kinds where user-entered data must never be silently
// overwritten by a remote copy.
func LocalFirst[T models.Record](local, remote T) (T, bool) {
	return local.Clone().(T), true
}

// MergeThreeWay merges diverging copies given a common ancestor: the newer
// of local/remote wins (ties favor local), and the result's version is
// bumped past both inputs so a follow-up conflict check against either side
// comes back clean.
func MergeThreeWay[T models.Record](base, local, remote T, now time.Time) T {
	var winner T
	if remote.Meta().UpdatedAt.After(local.Meta().UpdatedAt) {
		winner = remote.Clone().(T)
	} else {
		winner = local.Clone().(T)
	}
	meta := winner.Meta()
	meta.Version = max(local.Meta().Version, remote.Meta().Version) + 1
	meta.UpdatedAt = now
	return winner
}
