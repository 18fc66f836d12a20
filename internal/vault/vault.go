// Package vault writes exported Markdown notes to the target vault. The
// default backend is a local directory; a Google Drive backend exists for
// vaults synced through Drive.
package vault

import (
	"context"
	"fmt"

	"memovault/internal/config"
)

// Storage is the note-writing surface the exporter depends on.
type Storage interface {
	// WriteNote stores content under name, replacing any previous note with
	// the same name, and returns the note's location.
	WriteNote(ctx context.Context, name, content string) (string, error)
}

// BackendType selects a vault storage backend.
type BackendType string

const (
	BackendLocal       BackendType = "local"
	BackendGoogleDrive BackendType = "gdrive"
)

// NewStorage creates the backend selected by VAULT_BACKEND.
func NewStorage(ctx context.Context) (Storage, error) {
	switch BackendType(config.VaultBackend) {
	case BackendLocal:
		return NewLocal(config.VaultDir), nil
	case BackendGoogleDrive:
		return NewGDrive(ctx)
	default:
		return nil, fmt.Errorf("unsupported vault backend: %s", config.VaultBackend)
	}
}
