package resolve

import (
	"fmt"

	"github.com/jmreid/daybook/internal/models"
)

// Policy names a conflict-resolution strategy. Which policy applies is a
// per-collection product decision carried in configuration, not a default
// baked into the resolver.
type Policy string

const (
	PolicyLastWriteWins Policy = "last-write-wins"
	PolicyByVersion     Policy = "by-version"
	PolicyLocalFirst    Policy = "local-first"
)

// IsValidPolicy checks if a policy name is known.
func IsValidPolicy(p Policy) bool {
	switch p {
	case PolicyLastWriteWins, PolicyByVersion, PolicyLocalFirst:
		return true
	}
	return false
}

// PolicyTable maps collections to their resolution policy.
type PolicyTable map[models.Collection]Policy

// DefaultPolicies: measured data (workouts, metrics) is safe to take-latest;
// notes hold free-form user prose and stay local-authoritative.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		models.CollectionWorkouts: PolicyLastWriteWins,
		models.CollectionMetrics:  PolicyLastWriteWins,
		models.CollectionNotes:    PolicyLocalFirst,
	}
}

// For returns the policy for a collection, falling back to last-write-wins.
func (t PolicyTable) For(c models.Collection) Policy {
	if p, ok := t[c]; ok && IsValidPolicy(p) {
		return p
	}
	return PolicyLastWriteWins
}

// Apply resolves a diverging pair under the given policy. shouldPush is true
// when the winning copy is the local one and the remote should be told to
// accept it.
func Apply[T models.Record](p Policy, local, remote T) (winner T, shouldPush bool, err error) {
	switch p {
	case PolicyLastWriteWins:
		w := LastWriteWins(local, remote)
		return w, w.Meta().Version == local.Meta().Version && w.Meta().UpdatedAt.Equal(local.Meta().UpdatedAt), nil
	case PolicyByVersion:
		w := ByVersion(local, remote)
		return w, w.Meta().Version == local.Meta().Version && w.Meta().UpdatedAt.Equal(local.Meta().UpdatedAt), nil
	case PolicyLocalFirst:
		w, push := LocalFirst(local, remote)
		return w, push, nil
	}
	return winner, false, fmt.Errorf("unknown conflict policy %q", p)
}
