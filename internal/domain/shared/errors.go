package shared

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSourceKind = errors.New("invalid source kind")
	ErrEmptyBatch        = errors.New("import batch contains no records")
)

// MalformedRecordError indicates a single raw record cannot be normalized.
// It is recovered locally: the record is counted as errored and the batch
// continues.
type MalformedRecordError struct {
	Position int
	Field    string
	Reason   string
}

func (e MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at position %d: field %q: %s", e.Position, e.Field, e.Reason)
}

// Is matches any MalformedRecordError when the target carries the zero value
func (e MalformedRecordError) Is(target error) bool {
	t, ok := target.(MalformedRecordError)
	if !ok {
		return false
	}
	if t.Position == 0 && t.Field == "" && t.Reason == "" {
		return true
	}
	return e == t
}

// MasterDataResolutionError indicates a Category or Shop lookup/create failed
// for a reason other than "not found". The pipeline retries the lookup once
// before treating the record as errored.
type MasterDataResolutionError struct {
	Kind string // "category" or "shop"
	Name string
	Err  error
}

func (e MasterDataResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e MasterDataResolutionError) Unwrap() error { return e.Err }

// StorageUnavailableError indicates the persistent store cannot be reached or
// the batch-level transaction cannot commit. Fatal for the remaining batch.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e StorageUnavailableError) Unwrap() error { return e.Err }
