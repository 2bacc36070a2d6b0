// Package errors provides centralized error definitions and error handling utilities
// for tasklock. It defines the lock error taxonomy, typed errors carrying lock and
// storage context, and classification helpers.
//
// # Error Types
//
// Domain-specific errors:
//   - LockError: contention, wait timeouts and ownership mismatches, with the
//     requesting task and the current holder attached
//   - StorageError: failures reading or writing the lock record, with the backend
//     and storage location attached
//
// Semantic errors:
//   - ValidationError: invalid input or configuration
//
// # Usage
//
//	err := errors.NewLockError("release refused", errors.ErrOwnershipMismatch).
//		WithTaskID("T2").WithHolder("T1", "architect")
//
//	if errors.Is(err, errors.ErrOwnershipMismatch) { ... }
//
//	var storageErr *errors.StorageError
//	if errors.As(err, &storageErr) { ... }
//
// # Error Classification
//
// Contention, wait timeouts and storage outages are retryable; ownership mismatches
// and validation failures are not. See IsRetryable and IsUserFacing.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lock-related sentinel errors
var (
	// ErrLockContended indicates that the lock is held by another task.
	ErrLockContended = New("lock is held by another task")
	// ErrWaitTimeout indicates that the wait for the lock elapsed before it was freed.
	ErrWaitTimeout = New("timed out waiting for lock")
	// ErrOwnershipMismatch indicates a release by a task that does not hold the lock.
	ErrOwnershipMismatch = New("lock is held by a different task")
	// ErrStaleLock indicates a holder exceeded the lock TTL.
	ErrStaleLock = New("lock is stale")
)

// Storage-related sentinel errors
var (
	// ErrStorageUnavailable indicates the lock record could not be read or written.
	ErrStorageUnavailable = New("lock storage unavailable")
	// ErrRecordNotFound indicates the lock record does not exist yet.
	ErrRecordNotFound = New("lock record not found")
	// ErrRecordCorrupt indicates the lock record could not be decoded or violates its invariant.
	ErrRecordCorrupt = New("lock record corrupt")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// DomainError is the base interface for all tasklock errors.
type DomainError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// IsRetryable returns true if the condition is transient.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to show to operators.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LockError represents a refused lock operation.
//
// Example:
//
//	err := errors.NewLockError("acquire failed", errors.ErrLockContended).
//		WithTaskID("T2").WithHolder("T1", "architect")
//	fmt.Println(err) // "lock error [task=T2, holder=T1, held_by=architect]: acquire failed: lock is held by another task"
type LockError struct {
	baseError
	TaskID   string
	HolderID string
	HeldBy   string
}

// NewLockError creates a new LockError. Contention and wait timeouts are retryable.
func NewLockError(message string, cause error) *LockError {
	retryable := errors.Is(cause, ErrLockContended) || errors.Is(cause, ErrWaitTimeout)
	return &LockError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			retryable:  retryable,
			userFacing: true,
		},
	}
}

// WithTaskID adds the requesting task ID to the error context.
func (e *LockError) WithTaskID(id string) *LockError {
	e.TaskID = id
	return e
}

// WithHolder adds the current holder to the error context.
func (e *LockError) WithHolder(taskID, lockedBy string) *LockError {
	e.HolderID = taskID
	e.HeldBy = lockedBy
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.HolderID != "" {
		parts = append(parts, fmt.Sprintf("holder=%s", e.HolderID))
	}
	if e.HeldBy != "" {
		parts = append(parts, fmt.Sprintf("held_by=%s", e.HeldBy))
	}
	return e.format("lock error", parts)
}

// Is reports whether target is a *LockError.
func (e *LockError) Is(target error) bool {
	_, ok := target.(*LockError)
	return ok
}

// StorageError represents a failure of the lock record's backing store.
//
// Example:
//
//	err := errors.NewStorageError("write record", ioErr).
//		WithBackend("file").WithLocation(".github/.task-lock.json")
type StorageError struct {
	baseError
	Backend  string
	Location string
}

// NewStorageError creates a new StorageError wrapping cause. The result always
// matches ErrStorageUnavailable in addition to cause.
func NewStorageError(message string, cause error) *StorageError {
	return &StorageError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithBackend adds the backend name to the error context.
func (e *StorageError) WithBackend(backend string) *StorageError {
	e.Backend = backend
	return e
}

// WithLocation adds the storage location to the error context.
func (e *StorageError) WithLocation(location string) *StorageError {
	e.Location = location
	return e
}

// Error returns the formatted error message.
func (e *StorageError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Location != "" {
		parts = append(parts, fmt.Sprintf("location=%s", e.Location))
	}
	return e.format("storage error", parts)
}

// Is reports whether target is a *StorageError or ErrStorageUnavailable.
func (e *StorageError) Is(target error) bool {
	if _, ok := target.(*StorageError); ok {
		return true
	}
	return target == ErrStorageUnavailable
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("task ID must not be empty").WithField("taskID")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      ErrInvalidInput,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	return sb.String()
}

// Is reports whether target is a *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition:
// a DomainError reporting itself retryable, or an error wrapping ErrLockContended,
// ErrWaitTimeout or ErrStorageUnavailable.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    // schedule the job again later
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var domainErr DomainError
	if As(err, &domainErr) {
		return domainErr.IsRetryable()
	}

	return Is(err, ErrLockContended) || Is(err, ErrWaitTimeout) || Is(err, ErrStorageUnavailable)
}

// IsUserFacing returns true if the error message is safe to display to operators.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var domainErr DomainError
	if As(err, &domainErr) {
		return domainErr.IsUserFacing()
	}
	return false
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
