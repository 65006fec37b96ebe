package mailstatus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

var ErrSyncTimeout = errors.New("sync command timed out")

// syncWaitDelay bounds how long Wait lingers on output pipes after the sync
// process has been killed; mbsync can leave children holding them open.
const syncWaitDelay = 2 * time.Second

// SyncResult summarises one run of the external sync command.
type SyncResult struct {
	Timestamp time.Time
	Command   string
	Duration  float64
	ExitCode  int
	Stderr    string
}

// SyncFunc runs command bounded by timeout.
type SyncFunc func(ctx context.Context, command string, timeout time.Duration) (SyncResult, error)

// RunSync executes command through the shell. A non-zero exit is reported in
// the result, not as an error; only a timeout or a failure to start the
// process returns an error.
func RunSync(ctx context.Context, command string, timeout time.Duration) (SyncResult, error) {
	start := time.Now().UTC()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	cmd.WaitDelay = syncWaitDelay

	err := cmd.Run()
	duration := time.Since(start).Seconds()

	exitCode := 0
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return SyncResult{}, fmt.Errorf("%w: %q after %s", ErrSyncTimeout, command, timeout)
			}
			return SyncResult{}, fmt.Errorf("run sync command %q: %w", command, ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return SyncResult{}, fmt.Errorf("run sync command %q: %w", command, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return SyncResult{
		Timestamp: start,
		Command:   command,
		Duration:  duration,
		ExitCode:  exitCode,
		Stderr:    strings.TrimSpace(stderr.String()),
	}, nil
}
