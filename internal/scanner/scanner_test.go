package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644))
}

func TestScanFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "C.m4a")
	writeFile(t, dir, "A.m4a")
	writeFile(t, dir, "B.m4a")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, "upper.M4A") // extension match is case-sensitive
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.m4a"), 0o755))

	s := NewScannerForFolder(dir, ".m4a")
	paths, err := s.Scan()
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		assert.True(t, filepath.IsAbs(p))
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"A.m4a", "B.m4a", "C.m4a"}, names)
}

func TestScanDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "B.m4a")
	writeFile(t, dir, "A.m4a")

	s := NewScannerForFolder(dir, ".m4a")
	first, err := s.Scan()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := s.Scan()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScanEmptyFolder(t *testing.T) {
	s := NewScannerForFolder(t.TempDir(), ".m4a")
	paths, err := s.Scan()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestScanMissingFolder(t *testing.T) {
	s := NewScannerForFolder(filepath.Join(t.TempDir(), "gone"), ".m4a")
	_, err := s.Scan()
	assert.Error(t, err)
}
