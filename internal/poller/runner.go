package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"memovault/internal/config"
)

// CycleRunner is one poll pass.
type CycleRunner interface {
	Run(ctx context.Context) (Result, error)
}

// Runner drives cycles on a fixed interval. The first cycle runs
// immediately on Start; cycles never overlap, and a tick that fires while a
// cycle is still in flight is dropped so the next cycle waits for the
// following tick.
type Runner struct {
	cycle    CycleRunner
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	lastResult *Result
	lastErr    error
}

// NewRunner creates a runner at the configured poll interval.
func NewRunner(cycle CycleRunner) *Runner {
	return NewRunnerWithInterval(cycle, config.PollInterval)
}

// NewRunnerWithInterval creates a runner with an explicit interval.
func NewRunnerWithInterval(cycle CycleRunner, interval time.Duration) *Runner {
	return &Runner{cycle: cycle, interval: interval}
}

// Start begins continuous polling. Calling Start on a running runner has no
// effect.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	slog.Info("Starting continuous voice polling", "interval", r.interval)
	go r.loop(ctx, r.done)
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.runCycle(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runCycle(ctx)
			// Drop any tick that fired while the cycle ran; the next cycle
			// starts on the following tick.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// runCycle executes one cycle and swallows its error so a failed pass never
// kills the interval loop.
func (r *Runner) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := r.cycle.Run(ctx)
	if err != nil {
		slog.Error("Poll cycle failed", "error", err)
	}

	r.mu.Lock()
	r.lastResult = &result
	r.lastErr = err
	r.mu.Unlock()
}

// Stop cancels the periodic schedule. It is idempotent and never panics; a
// cycle already in flight runs to completion, but no new cycle starts after
// Stop returns.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.cancel()
	r.running = false
	slog.Info("Stopped continuous voice polling")
}

// Shutdown is Stop under the name resource-lifecycle callers expect.
func (r *Runner) Shutdown() {
	r.Stop()
}

// Running reports whether the periodic schedule is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastResult returns the most recent cycle summary and its error, or nil if
// no cycle has finished yet.
func (r *Runner) LastResult() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastResult, r.lastErr
}
