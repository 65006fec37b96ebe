package mailstatus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunSyncSuccess(t *testing.T) {
	res, err := RunSync(context.Background(), "true", 5*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit = %d, want 0", res.ExitCode)
	}
	if res.Command != "true" {
		t.Fatalf("command = %q", res.Command)
	}
	if res.Duration < 0 {
		t.Fatalf("negative duration %v", res.Duration)
	}
	if res.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp should be UTC, got %v", res.Timestamp.Location())
	}
}

func TestRunSyncNonZeroExitIsNotAnError(t *testing.T) {
	res, err := RunSync(context.Background(), "echo '  boom  ' >&2; exit 3", 5*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit = %d, want 3", res.ExitCode)
	}
	if res.Stderr != "boom" {
		t.Fatalf("stderr = %q, want trimmed boom", res.Stderr)
	}
}

func TestRunSyncTimeout(t *testing.T) {
	start := time.Now()
	_, err := RunSync(context.Background(), "sleep 5", 100*time.Millisecond)
	if !errors.Is(err, ErrSyncTimeout) {
		t.Fatalf("expected ErrSyncTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
}
