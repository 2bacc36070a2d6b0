package errors

import (
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// LockError Tests
// -----------------------------------------------------------------------------

func TestNewLockError(t *testing.T) {
	tests := []struct {
		name          string
		cause         error
		wantRetryable bool
	}{
		{"contended", ErrLockContended, true},
		{"wait timeout", ErrWaitTimeout, true},
		{"ownership mismatch", ErrOwnershipMismatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLockError("lock refused", tt.cause)
			if err.IsRetryable() != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", err.IsRetryable(), tt.wantRetryable)
			}
			if !err.IsUserFacing() {
				t.Error("IsUserFacing() = false, want true")
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("errors.Is(err, %v) = false, want true", tt.cause)
			}
		})
	}
}

func TestLockError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *LockError
		want string
	}{
		{
			name: "no context",
			err:  NewLockError("acquire failed", nil),
			want: "lock error: acquire failed",
		},
		{
			name: "task and holder",
			err:  NewLockError("acquire failed", ErrLockContended).WithTaskID("T2").WithHolder("T1", "architect"),
			want: "lock error [task=T2, holder=T1, held_by=architect]: acquire failed: lock is held by another task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLockError_As(t *testing.T) {
	wrapped := fmt.Errorf("run task: %w", NewLockError("release refused", ErrOwnershipMismatch).WithTaskID("T2"))

	var lockErr *LockError
	if !errors.As(wrapped, &lockErr) {
		t.Fatal("errors.As should find *LockError")
	}
	if lockErr.TaskID != "T2" {
		t.Errorf("TaskID = %q, want %q", lockErr.TaskID, "T2")
	}
	if !errors.Is(wrapped, ErrOwnershipMismatch) {
		t.Error("wrapped error should match ErrOwnershipMismatch")
	}
}

// -----------------------------------------------------------------------------
// StorageError Tests
// -----------------------------------------------------------------------------

func TestStorageError(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewStorageError("write record", cause).WithBackend("file").WithLocation("/tmp/lock.json")

	want := "storage error [backend=file, location=/tmp/lock.json]: write record: permission denied"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Error("StorageError should match ErrStorageUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("StorageError should match its cause")
	}
	if !err.IsRetryable() {
		t.Error("StorageError should be retryable")
	}
	if err.IsUserFacing() {
		t.Error("StorageError should not be user facing")
	}
}

func TestStorageError_WrapsCorruption(t *testing.T) {
	err := NewStorageError("decode record", ErrRecordCorrupt)
	if !errors.Is(err, ErrRecordCorrupt) {
		t.Error("should match ErrRecordCorrupt through Unwrap")
	}
	if errors.Is(err, ErrRecordNotFound) {
		t.Error("should not match ErrRecordNotFound")
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("must not be empty").WithField("taskID").WithValue("")

	want := "validation error [field=taskID]: must not be empty (got: )"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if err.IsRetryable() {
		t.Error("ValidationError should not be retryable")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"contended sentinel", fmt.Errorf("x: %w", ErrLockContended), true},
		{"timeout sentinel", ErrWaitTimeout, true},
		{"storage sentinel", ErrStorageUnavailable, true},
		{"storage error", NewStorageError("read", nil), true},
		{"ownership", NewLockError("refused", ErrOwnershipMismatch), false},
		{"validation", NewValidationError("bad"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) should be false")
	}
	if IsUserFacing(errors.New("x")) {
		t.Error("plain errors are not user facing")
	}
	if !IsUserFacing(NewValidationError("x")) {
		t.Error("validation errors are user facing")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	err := Wrapf(ErrLockContended, "acquire %s", "T1")
	if err.Error() != "acquire T1: lock is held by another task" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !errors.Is(err, ErrLockContended) {
		t.Error("Wrapf should preserve the chain")
	}
}
