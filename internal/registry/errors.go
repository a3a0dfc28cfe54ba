// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a lookup of an external id or key the registry
	// does not hold.
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss is a control-flow signal, not a failure: no live search
	// record exists and the caller should fetch from upstream.
	ErrCacheMiss = errors.New("cache miss")

	// ErrMetadataIncomplete reports that a work lacks the fields needed to
	// derive a citation key or render an entry.
	ErrMetadataIncomplete = errors.New("metadata incomplete")

	// ErrConflict reports a citation key already bound to a different work.
	ErrConflict = errors.New("citation key conflict")
)

// StorageError wraps an I/O or schema failure of the underlying database.
// It is fatal to the operation and never retried inside the store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
