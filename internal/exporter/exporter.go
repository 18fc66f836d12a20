// Package exporter turns staged captures into Markdown notes in the vault.
// It consumes export jobs the poller enqueues after each successful stage.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"memovault/internal/capture"
	"memovault/internal/ledger"
	"memovault/internal/queue"
	"memovault/internal/vault"
)

// Exporter drains the export queue into the vault.
type Exporter struct {
	ledger *ledger.Ledger
	queue  *queue.Queue
	vault  vault.Storage
}

// New creates an exporter over the shared ledger, queue, and vault backend.
func New(l *ledger.Ledger, q *queue.Queue, v vault.Storage) *Exporter {
	return &Exporter{ledger: l, queue: q, vault: v}
}

// Run processes jobs until ctx is cancelled.
func (e *Exporter) Run(ctx context.Context) error {
	slog.Info("Exporter started, waiting for jobs...")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := e.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to process export job", "error", err)
		}
	}
}

// ProcessOne dequeues and handles a single job. The bool is false when the
// blocking dequeue timed out with nothing to do. Jobs that cannot be
// exported land on the failed queue with a reason.
func (e *Exporter) ProcessOne(ctx context.Context) (bool, error) {
	job, err := e.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err := e.Export(ctx, job.CaptureID); err != nil {
		if failErr := e.queue.FailJob(ctx, job, err.Error()); failErr != nil {
			slog.Error("Failed to record failed job", "job_id", job.ID, "error", failErr)
		}
		return true, err
	}
	return true, nil
}

// Export writes the vault note for one capture and marks it exported. A
// capture that is already exported is left untouched, so replayed jobs are
// harmless.
func (e *Exporter) Export(ctx context.Context, captureID string) error {
	row, err := e.ledger.GetCapture(ctx, captureID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("capture %s not found", captureID)
	}
	if row.Status == capture.StatusExported {
		slog.Debug("Capture already exported", "capture_id", captureID)
		return nil
	}

	meta, err := capture.ParseMeta(row.MetaJSON)
	if err != nil {
		return err
	}

	location, err := e.vault.WriteNote(ctx, row.ID+".md", RenderNote(row, meta))
	if err != nil {
		return err
	}

	if err := e.ledger.UpdateCaptureStatus(ctx, row.ID, capture.StatusExported); err != nil {
		return err
	}

	slog.Info("Capture exported", "capture_id", row.ID, "location", location)
	return nil
}

// RenderNote builds the Markdown note for a capture: YAML front matter with
// the capture identity, then a body referencing the audio file by path.
func RenderNote(row *ledger.Capture, meta capture.Meta) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", row.ID)
	fmt.Fprintf(&b, "channel: %s\n", meta.Channel)
	fmt.Fprintf(&b, "channel_native_id: %s\n", meta.ChannelNativeID)
	fmt.Fprintf(&b, "audio_fp: %s\n", meta.AudioFP)
	fmt.Fprintf(&b, "captured_at: %s\n", row.CreatedAt)
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# Voice memo %s\n\n", filepath.Base(meta.ChannelNativeID))
	fmt.Fprintf(&b, "Audio: [%s](%s)\n", filepath.Base(meta.ChannelNativeID), meta.ChannelNativeID)
	if row.RawContent != "" {
		b.WriteString("\n")
		b.WriteString(row.RawContent)
		b.WriteString("\n")
	}
	return b.String()
}
