// Package fingerprint derives content-addressed identifiers for audio files.
// The fingerprint depends only on the file bytes, never on path, mtime, or
// other filesystem metadata, so the same recording synced to two paths
// produces the same value.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// File computes the SHA-256 fingerprint of the file at path and returns it
// as a lowercase hex string.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
