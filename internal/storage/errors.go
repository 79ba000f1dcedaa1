package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrHeadMismatch is returned when an append does not extend the stored chain head.
	ErrHeadMismatch = errors.New("storage: chain head mismatch")
	// ErrAlreadyVoted is returned when a voter already has a stored vote.
	ErrAlreadyVoted = errors.New("storage: voter has already voted")
)

// StorageError wraps an I/O failure from the underlying database
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
