// Package poller drives the voice capture pipeline: scan the synced folder,
// filter by the persisted watermark, and stage each new file through the
// dedup, materialization, and fingerprint gates.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"memovault/internal/capture"
	"memovault/internal/config"
	"memovault/internal/ledger"
	"memovault/internal/queue"

	"github.com/google/uuid"
)

// FileError records one file's failure inside an otherwise-successful cycle.
type FileError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result summarizes one poll cycle. It is not persisted.
type Result struct {
	FilesFound        int         `json:"files_found"`
	FilesProcessed    int         `json:"files_processed"`
	DuplicatesSkipped int         `json:"duplicates_skipped"`
	Errors            []FileError `json:"errors"`
	DurationMS        int64       `json:"duration_ms"`
}

// Scanner produces the candidate paths for a cycle.
type Scanner interface {
	Scan() ([]string, error)
}

// Materializer guarantees a path is locally present or fails.
type Materializer interface {
	EnsureMaterialized(ctx context.Context, path string) error
}

// Deduper is the fingerprint-set side of the duplicate gate.
type Deduper interface {
	IsDuplicate(ctx context.Context, audioFP string) (bool, error)
	AddFingerprint(ctx context.Context, audioFP string) error
}

// Stager inserts one capture row per accepted file.
type Stager interface {
	Stage(ctx context.Context, path, audioFP string) (id string, created bool, err error)
}

// Ledger is the slice of the staging store the cycle needs: the watermark
// cursor and the L1 path-dedup probe.
type Ledger interface {
	GetSyncState(ctx context.Context, key string) (string, bool, error)
	TouchSyncState(ctx context.Context, key string) error
	FindCaptureByNativeID(ctx context.Context, channel, nativeID string) (*ledger.Capture, error)
}

// Enqueuer hands staged captures to the downstream exporter.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// Fingerprinter computes a deterministic content fingerprint for a file.
type Fingerprinter func(path string) (string, error)

// Cycle orchestrates one sequential pass over the voice folder. Files are
// processed strictly one at a time, in scan order.
type Cycle struct {
	scanner     Scanner
	ledger      Ledger
	materialize Materializer
	fingerprint Fingerprinter
	dedup       Deduper
	stager      Stager
	exports     Enqueuer // may be nil when no exporter is wired

	watermarkKey string
}

// NewCycle wires a poll cycle over concrete collaborators.
func NewCycle(scanner Scanner, led Ledger, mat Materializer, fp Fingerprinter, dedup Deduper, stager Stager, exports Enqueuer) *Cycle {
	return &Cycle{
		scanner:      scanner,
		ledger:       led,
		materialize:  mat,
		fingerprint:  fp,
		dedup:        dedup,
		stager:       stager,
		exports:      exports,
		watermarkKey: config.WatermarkKey,
	}
}

// Run executes one pass. Per-file failures are collected into the result;
// only folder enumeration and watermark-read failures abort the cycle.
func (c *Cycle) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result
	defer func() { res.DurationMS = time.Since(start).Milliseconds() }()

	files, err := c.scanner.Scan()
	if err != nil {
		return res, fmt.Errorf("voice folder unavailable: %w", err)
	}
	res.FilesFound = len(files)

	cursor, haveCursor := c.loadCursor(ctx)

	for _, path := range files {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		if haveCursor {
			info, err := os.Stat(path)
			if err != nil {
				res.record(path, err)
				continue
			}
			// Strict inequality: a file whose mtime equals the cursor was
			// covered by the cycle that wrote the cursor.
			if !info.ModTime().After(cursor) {
				continue
			}
		}

		c.processFile(ctx, path, &res)
	}

	// The watermark is advanced last, from the store's own clock, even when
	// some files failed: L1 keeps a re-examined file idempotent, so the
	// cursor is purely a scan optimization.
	if err := c.ledger.TouchSyncState(ctx, c.watermarkKey); err != nil {
		slog.Error("Failed to advance watermark", "key", c.watermarkKey, "error", err)
	}

	slog.Info("Poll cycle complete",
		"files_found", res.FilesFound,
		"files_processed", res.FilesProcessed,
		"duplicates_skipped", res.DuplicatesSkipped,
		"errors", len(res.Errors))
	return res, nil
}

// loadCursor reads the watermark; any unreadable or unparseable cursor is
// treated as a first run.
func (c *Cycle) loadCursor(ctx context.Context) (time.Time, bool) {
	value, ok, err := c.ledger.GetSyncState(ctx, c.watermarkKey)
	if err != nil {
		slog.Warn("Failed to read watermark, treating all files as new", "error", err)
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	cursor, ok := ledger.ParseCursor(value)
	if !ok {
		slog.Warn("Unparseable watermark, treating all files as new", "value", value)
		return time.Time{}, false
	}
	return cursor, true
}

// processFile runs the per-file gate sequence: L1 path dedup, materialize,
// fingerprint, L2 content dedup, stage. Heavy work never happens before L1.
func (c *Cycle) processFile(ctx context.Context, path string, res *Result) {
	existing, err := c.ledger.FindCaptureByNativeID(ctx, capture.ChannelVoice, path)
	if err != nil {
		res.record(path, err)
		return
	}
	if existing != nil {
		res.DuplicatesSkipped++
		return
	}

	if err := c.materialize.EnsureMaterialized(ctx, path); err != nil {
		res.record(path, err)
		return
	}

	audioFP, err := c.fingerprint(path)
	if err != nil {
		res.record(path, err)
		return
	}

	dup, err := c.dedup.IsDuplicate(ctx, audioFP)
	if err != nil {
		res.record(path, err)
		return
	}
	if dup {
		res.DuplicatesSkipped++
		return
	}

	id, created, err := c.stager.Stage(ctx, path, audioFP)
	if err != nil {
		res.record(path, err)
		return
	}
	if !created {
		res.DuplicatesSkipped++
		return
	}
	res.FilesProcessed++
	slog.Info("Staged voice capture", "capture_id", id, "path", path)

	// The fingerprint becomes known only once the row is durable.
	if err := c.dedup.AddFingerprint(ctx, audioFP); err != nil {
		slog.Warn("Failed to record fingerprint", "capture_id", id, "error", err)
	}

	if c.exports != nil {
		jobID, err := uuid.NewV7()
		if err == nil {
			err = c.exports.Enqueue(ctx, &queue.Job{
				ID:        jobID.String(),
				CaptureID: id,
				Path:      path,
				CreatedAt: time.Now().UTC(),
			})
		}
		if err != nil {
			slog.Warn("Failed to enqueue export job", "capture_id", id, "error", err)
		}
	}
}

func (r *Result) record(path string, err error) {
	slog.Error("File failed during poll cycle", "path", path, "error", err)
	r.Errors = append(r.Errors, FileError{Path: path, Message: err.Error()})
}
