package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyChain         = errors.New("ledger: chain is empty")
	ErrBlockNotFound      = errors.New("ledger: block not found")
	ErrInvalidBlock       = errors.New("ledger: invalid block")
	ErrIntegrityViolation = errors.New("ledger: integrity violation")
)

// IntegrityError describes the first violation found by Verify.
type IntegrityError struct {
	Violation Violation
	Total     int
}

func (e *IntegrityError) Error() string {
	v := e.Violation
	if e.Total > 1 {
		return fmt.Sprintf("block %d invalid: %s (and %d more)", v.Index, v, e.Total-1)
	}
	return fmt.Sprintf("block %d invalid: %s", v.Index, v)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrityViolation
}
