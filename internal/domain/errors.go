package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound is returned by a content source for unknown or
	// suspended accounts. The account stays watched.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSendFailed wraps every notifier failure. The cursor is not advanced.
	ErrSendFailed = errors.New("send failed")

	ErrInvalidHandle = errors.New("invalid handle")
)

// TransientError is a per-account fetch failure (network, unexpected status,
// unparseable response). It only skips the account for the current tick.
type TransientError struct {
	Detail string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return "transient source error: " + e.Detail
	}
	return fmt.Sprintf("transient source error: %s: %v", e.Detail, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(detail string, err error) error {
	return &TransientError{Detail: detail, Err: err}
}

// StorageCorruptError means the persisted state exists but cannot be parsed.
type StorageCorruptError struct {
	Location string
	Err      error
}

func (e *StorageCorruptError) Error() string {
	return fmt.Sprintf("storage corrupt (location = %s): %v", e.Location, e.Err)
}

func (e *StorageCorruptError) Unwrap() error {
	return e.Err
}
