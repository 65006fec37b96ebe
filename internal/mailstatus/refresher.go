package mailstatus

import (
	"context"
	"log/slog"
	"time"

	"dashstat/internal/mailbox"
)

const defaultInterval = 2 * time.Minute

// Source produces a fresh unread count for every mailbox.
type Source interface {
	Mailboxes(ctx context.Context) ([]mailbox.Status, error)
}

// Refresher rebuilds the payload from the sync command and mailbox source.
type Refresher struct {
	Source      Source
	SyncCommand string // empty disables syncing
	SyncTimeout time.Duration
	Interval    time.Duration
	Logger      *slog.Logger

	// Sync and Now are replaceable in tests.
	Sync SyncFunc
	Now  func() time.Time
}

func (r *Refresher) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Refresher) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// RefreshOnce runs one sync-and-scan cycle and returns the payload to
// publish. Failures become a single-entry error payload.
//
// The sync command and the scan are detached from ctx cancellation: a
// shutdown lets them run to completion or to the sync timeout.
func (r *Refresher) RefreshOnce(ctx context.Context) []Entry {
	work := context.WithoutCancel(ctx)

	var lastSync *SyncResult
	if r.SyncCommand != "" {
		syncFn := r.Sync
		if syncFn == nil {
			syncFn = RunSync
		}
		res, err := syncFn(work, r.SyncCommand, r.SyncTimeout)
		if err != nil {
			r.logger().Warn("sync failed", "command", r.SyncCommand, "error", err)
			return ErrorPayload(r.now(), err)
		}
		if res.ExitCode != 0 {
			r.logger().Warn("sync exited non-zero", "command", r.SyncCommand, "exit", res.ExitCode, "stderr", res.Stderr)
		}
		lastSync = &res
	}

	statuses, err := r.Source.Mailboxes(work)
	if err != nil {
		r.logger().Warn("mailbox scan failed", "error", err)
		return ErrorPayload(r.now(), err)
	}

	return BuildPayload(r.now(), statuses, lastSync)
}

// Run refreshes and publishes until ctx is cancelled. It publishes before the
// first wait, so the store's readiness gate opens after one cycle. An
// in-flight cycle always finishes before Run returns.
func (r *Refresher) Run(ctx context.Context, store *Store) {
	interval := r.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	for ctx.Err() == nil {
		start := time.Now()
		entries := r.RefreshOnce(ctx)
		if err := store.Publish(entries); err != nil {
			r.logger().Error("publish failed", "error", err)
			_ = store.Publish(ErrorPayload(r.now(), err))
		}
		r.logger().Debug("refresh complete", "entries", len(entries), "took", time.Since(start))

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
