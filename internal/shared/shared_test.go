package shared

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"testing"
	"time"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY: database busy"), true},
		{fmt.Errorf("exec: %w", errors.New("database is locked")), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := IsSQLiteConflictError(tt.err); got != tt.want {
			t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryOnConflict(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := RetryOnConflict(context.Background(), "save", policy, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got err=%v calls=%d", err, calls)
	}

	calls = 0
	plain := errors.New("constraint failed")
	err = RetryOnConflict(context.Background(), "save", policy, func() error {
		calls++
		return plain
	})
	if !errors.Is(err, plain) || calls != 1 {
		t.Fatalf("non-conflict errors must not be retried, got err=%v calls=%d", err, calls)
	}

	calls = 0
	err = RetryOnConflict(context.Background(), "save", policy, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if !IsSQLiteConflictError(err) || calls != 3 {
		t.Fatalf("expected exhausted retries, got err=%v calls=%d", err, calls)
	}
}

func TestClassification(t *testing.T) {
	if !IsPermissionError(fmt.Errorf("save: %w", fs.ErrPermission)) {
		t.Error("fs.ErrPermission should classify as permission")
	}
	if !IsPermissionError(errors.New("attempt to write a readonly database")) {
		t.Error("readonly database should classify as permission")
	}
	if !IsNetworkError(&net.OpError{Op: "dial", Err: errors.New("refused")}) {
		t.Error("net.OpError should classify as network")
	}
	if !IsNetworkError(context.DeadlineExceeded) {
		t.Error("deadline should classify as network")
	}
	if IsNetworkError(errors.New("boom")) || IsPermissionError(errors.New("boom")) {
		t.Error("plain errors are generic")
	}
}
