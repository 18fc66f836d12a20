package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"memovault/internal/config"
)

// Scanner enumerates audio candidates in the voice memo folder. It does not
// recurse and does not follow directory symlinks.
type Scanner struct {
	folder    string
	extension string
}

// NewScanner creates a scanner for the configured voice folder.
func NewScanner() *Scanner {
	return &Scanner{folder: config.VoiceFolder, extension: config.AudioExtension}
}

// NewScannerForFolder creates a scanner over an explicit folder and extension.
func NewScannerForFolder(folder, extension string) *Scanner {
	return &Scanner{folder: folder, extension: extension}
}

// Scan returns the absolute paths of all entries whose name ends with the
// configured extension (case-sensitive), sorted lexicographically by
// basename so cycles see a deterministic order.
func (s *Scanner) Scan() ([]string, error) {
	entries, err := os.ReadDir(s.folder)
	if err != nil {
		return nil, fmt.Errorf("reading voice folder %s: %w", s.folder, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), s.extension) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(s.folder, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", entry.Name(), err)
		}
		paths = append(paths, abs)
	}

	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
	return paths, nil
}
