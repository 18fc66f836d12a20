package icloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"memovault/internal/config"
)

// retryBudget bounds the total wall clock spent on one logical cloud call,
// including backoff sleeps between attempts.
const retryBudget = 60 * time.Second

// Status is the observed sync state of one file at a point in time.
type Status struct {
	// Dataless is true when the local inode is a placeholder whose bytes
	// still live in the cloud.
	Dataless bool
	// HasConflicts is true when the cloud reports an unresolved conflict.
	HasConflicts bool
}

// Adapter translates icloudctl invocations into structured statuses and
// download requests. Both operations retry transient failures with a fixed
// 1s/2s/4s ladder.
type Adapter struct {
	binary  string
	retries int
	runner  Runner

	// sleep is replaceable in tests so retry schedules can be observed
	// without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAdapter creates an adapter using the configured CLI binary and retry
// count.
func NewAdapter() *Adapter {
	return NewAdapterWithRunner(ExecRunner{})
}

// NewAdapterWithRunner creates an adapter with an injected process runner.
func NewAdapterWithRunner(runner Runner) *Adapter {
	return &Adapter{
		binary:  config.CloudBinary,
		retries: config.CloudRetryCount,
		runner:  runner,
		sleep:   sleepContext,
	}
}

// Check queries the sync state of path in a single round-trip. The CLI's
// stdout is matched case-sensitively for the "dataless" and
// "hasUnresolvedConflicts: true" tokens; everything else is ignored.
func (a *Adapter) Check(ctx context.Context, path string) (Status, error) {
	stdout, err := a.invoke(ctx, "check", path)
	if err != nil {
		if errors.Is(err, ErrCloudUnavailable) || ctx.Err() != nil {
			return Status{}, err
		}
		return Status{}, fmt.Errorf("%w: %s: %v", ErrCloudCheckFailed, path, err)
	}

	return Status{
		Dataless:     strings.Contains(stdout, "dataless"),
		HasConflicts: strings.Contains(stdout, "hasUnresolvedConflicts: true"),
	}, nil
}

// Download requests materialization of path. It does not wait for the bytes
// to arrive; callers poll Check for completion.
func (a *Adapter) Download(ctx context.Context, path string) error {
	if _, err := a.invoke(ctx, "download", path); err != nil {
		if errors.Is(err, ErrCloudUnavailable) || ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrCloudDownloadFailed, path, err)
	}
	return nil
}

// invoke runs one CLI subcommand with the retry ladder. The path is always a
// separate argv element so shell metacharacters in filenames are inert.
func (a *Adapter) invoke(ctx context.Context, subcommand, path string) (string, error) {
	deadline := time.Now().Add(retryBudget)

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			if time.Now().Add(delay).After(deadline) {
				break
			}
			slog.Debug("Retrying cloud call", "subcommand", subcommand, "path", path, "attempt", attempt, "delay", delay)
			if err := a.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		stdout, stderr, err := a.runner.Run(ctx, a.binary, subcommand, path)
		if err == nil {
			return stdout, nil
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Could not even spawn the process; the ladder still applies
			// because launchd restarts and PATH races are transient too.
			lastErr = fmt.Errorf("%w: %v", ErrCloudUnavailable, err)
		} else {
			lastErr = fmt.Errorf("%s exited %d: %s", subcommand, exitErr.ExitCode(), strings.TrimSpace(stderr))
		}
		slog.Warn("Cloud call failed", "subcommand", subcommand, "path", path, "attempt", attempt, "error", lastErr)
	}

	return "", lastErr
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
