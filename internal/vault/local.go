package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local writes notes into a directory on the local filesystem.
type Local struct {
	dir string
}

// NewLocal creates a local-directory backend rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// WriteNote writes the note to <dir>/<name>, creating the vault directory on
// first use.
func (l *Local) WriteNote(_ context.Context, name, content string) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating vault dir %s: %w", l.dir, err)
	}

	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing note %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
