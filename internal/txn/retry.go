package txn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/scope"
	"github.com/jmreid/daybook/internal/store"
)

const (
	retryAttempts = 3
	retryBackoff  = 25 * time.Millisecond
)

// WithRetry runs fn, retrying a handful of times with a short fixed backoff
// when the failure looks like momentary local contention (SQLite busy/locked).
// Validation, ownership, and optimistic-lock failures pass straight through:
// retrying those would mask real bugs. Layer this around Execute, never
// inside it.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(retryAttempts, retry.NewConstant(retryBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isTransient reports whether an error is momentary storage contention.
func isTransient(err error) bool {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	if errors.Is(err, scope.ErrUnauthenticated) ||
		errors.Is(err, scope.ErrOwnership) ||
		errors.Is(err, store.ErrStaleVersion) ||
		errors.Is(err, store.ErrNotFound) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
