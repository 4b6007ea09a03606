package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError reports a malformed record. It is raised before any
// storage write and is never retried.
type ValidationError struct {
	Collection Collection
	RecordID   string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record %q: %v", e.Collection, e.RecordID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks a record's shape against its struct tags and the shared
// versioning invariants.
func Validate(rec Record) error {
	if rec == nil {
		return &ValidationError{Err: fmt.Errorf("nil record")}
	}
	if !IsValidCollection(rec.Collection()) {
		return &ValidationError{
			Collection: rec.Collection(),
			RecordID:   rec.RecordID(),
			Err:        fmt.Errorf("unknown collection %q", rec.Collection()),
		}
	}
	if rec.Meta().Version < 0 {
		return &ValidationError{
			Collection: rec.Collection(),
			RecordID:   rec.RecordID(),
			Err:        fmt.Errorf("negative version %d", rec.Meta().Version),
		}
	}
	if err := validate.Struct(rec); err != nil {
		return &ValidationError{
			Collection: rec.Collection(),
			RecordID:   rec.RecordID(),
			Err:        err,
		}
	}
	return nil
}
