package account

import (
	"errors"
	"fmt"

	"github.com/badbank/badbank/internal/codec"
)

var (
	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrAccountNotFound is returned when no account has the given email.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when a withdrawal would take the
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for a zero, over-precise or oversized
	// adjustment.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("storage failure")
)

// StorageError wraps an I/O failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err for operation op.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Reason names the failure class of err, as used in results and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateEmail):
		return "DuplicateEmail"
	case errors.Is(err, ErrAccountNotFound):
		return "AccountNotFound"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrInvalidCredentials):
		return "InvalidCredentials"
	case errors.Is(err, codec.ErrIntegrity):
		return "IntegrityError"
	case errors.Is(err, codec.ErrFormat):
		return "FormatError"
	default:
		return "StorageError"
	}
}
