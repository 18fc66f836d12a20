// Package capture stages accepted voice files as ledger rows.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"memovault/internal/ledger"

	"github.com/google/uuid"
)

const (
	// ChannelVoice identifies the voice memo capture channel.
	ChannelVoice = "voice"
	// StatusStaged is the initial status of every capture; later transitions
	// belong to the exporter and transcription collaborators.
	StatusStaged = "staged"
	// StatusExported marks captures whose vault note has been written.
	StatusExported = "exported"
)

// Meta is the structured metadata stored in each capture's meta_json.
type Meta struct {
	Channel         string `json:"channel"`
	ChannelNativeID string `json:"channel_native_id"`
	AudioFP         string `json:"audio_fp"`
}

// ParseMeta decodes a capture's meta_json column.
func ParseMeta(metaJSON string) (Meta, error) {
	var m Meta
	if err := json.Unmarshal([]byte(metaJSON), &m); err != nil {
		return Meta{}, fmt.Errorf("decoding capture meta: %w", err)
	}
	return m, nil
}

// Stager inserts one ledger row per accepted file, idempotently keyed on
// (channel, channel_native_id).
type Stager struct {
	ledger *ledger.Ledger
}

// NewStager creates a stager over the shared ledger.
func NewStager(l *ledger.Ledger) *Stager {
	return &Stager{ledger: l}
}

// Stage inserts a row for path with the given audio fingerprint and returns
// the new capture id. The second return is false when the path was already
// staged; the sequential cycle makes that rare, but the pre-check plus the
// unique index keep the row count at one even under a retried cycle.
func (s *Stager) Stage(ctx context.Context, path, audioFP string) (string, bool, error) {
	existing, err := s.ledger.FindCaptureByNativeID(ctx, ChannelVoice, path)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", false, fmt.Errorf("generating capture id: %w", err)
	}

	metaJSON, err := json.Marshal(Meta{
		Channel:         ChannelVoice,
		ChannelNativeID: path,
		AudioFP:         audioFP,
	})
	if err != nil {
		return "", false, fmt.Errorf("encoding capture meta: %w", err)
	}

	// Voice content stays referenced by path; raw_content is empty by
	// contract.
	err = s.ledger.InsertCapture(ctx, id.String(), ChannelVoice, StatusStaged, "", string(metaJSON))
	if errors.Is(err, ledger.ErrDuplicateCapture) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id.String(), true, nil
}
