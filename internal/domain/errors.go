package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("bet not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("not a participant")
	ErrBusy              = errors.New("ledger busy")
	ErrEmptyStatement    = errors.New("statement is empty")
	ErrUnknownStatus     = errors.New("unknown status")

	ErrSelfAcceptance = fmt.Errorf("%w: cannot take your own bet", ErrInvalidTransition)
)

type StoreOp string

const (
	OpRead  StoreOp = "read"
	OpWrite StoreOp = "write"
)

// StoreError is an infrastructure failure while reading or writing the ledger.
type StoreError struct {
	Op   StoreOp
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CorruptStoreError means the persisted ledger could not be understood.
type CorruptStoreError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptStoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt store %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt store %s: %s", e.Path, e.Reason)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

func ReadError(path string, err error) error {
	return &StoreError{Op: OpRead, Path: path, Err: err}
}

func WriteError(path string, err error) error {
	return &StoreError{Op: OpWrite, Path: path, Err: err}
}

func IsStoreReadError(err error) bool  { return isStoreOp(err, OpRead) }
func IsStoreWriteError(err error) bool { return isStoreOp(err, OpWrite) }

func isStoreOp(err error, op StoreOp) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Op == op
}

func IsCorrupt(err error) bool {
	var ce *CorruptStoreError
	return errors.As(err, &ce)
}

// IsInfrastructure reports errors that belong to the operator rather than the user.
func IsInfrastructure(err error) bool {
	var se *StoreError
	return errors.As(err, &se) || IsCorrupt(err)
}
