package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memovault/internal/config"
)

// maxPollDelay caps the backoff between materialization checks.
const maxPollDelay = 5 * time.Second

// Cloud is the adapter surface the materializer needs.
type Cloud interface {
	Check(ctx context.Context, path string) (Status, error)
	Download(ctx context.Context, path string) error
}

// Materializer guarantees a file is locally present or fails fast on
// conflict. It never moves, renames, or deletes the file.
type Materializer struct {
	cloud       Cloud
	waitTimeout time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewMaterializer creates a materializer with the configured per-file wait
// budget.
func NewMaterializer(cloud Cloud) *Materializer {
	return &Materializer{
		cloud:       cloud,
		waitTimeout: config.DownloadWaitTimeout,
		sleep:       sleepContext,
	}
}

// EnsureMaterialized triggers a download for dataless files and waits until
// the bytes are local, then re-checks for unresolved conflicts. Between
// checks it backs off 1s, 2s, 4s, then 5s per interval, bounded by the
// per-file wait timeout. The timeout is distinct from the per-call retry
// budget inside the adapter.
func (m *Materializer) EnsureMaterialized(ctx context.Context, path string) error {
	status, err := m.cloud.Check(ctx, path)
	if err != nil {
		return err
	}

	if status.Dataless {
		slog.Info("File is dataless, requesting download", "path", path)
		if err := m.cloud.Download(ctx, path); err != nil {
			return err
		}
		if err := m.awaitDownload(ctx, path); err != nil {
			return err
		}
	}

	status, err = m.cloud.Check(ctx, path)
	if err != nil {
		return err
	}
	if status.HasConflicts {
		return fmt.Errorf("%w: %s", ErrConflict, path)
	}

	return nil
}

// awaitDownload polls until the file stops being dataless or the wait budget
// runs out.
func (m *Materializer) awaitDownload(ctx context.Context, path string) error {
	deadline := time.Now().Add(m.waitTimeout)
	delay := 1 * time.Second

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrDownloadTimeout, path, m.waitTimeout)
		}

		if err := m.sleep(ctx, delay); err != nil {
			return err
		}
		if delay *= 2; delay > maxPollDelay {
			delay = maxPollDelay
		}

		status, err := m.cloud.Check(ctx, path)
		if err != nil {
			return err
		}
		if !status.Dataless {
			slog.Debug("File materialized", "path", path)
			return nil
		}
	}
}
