package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalWriteNote(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault") // not created yet
	l := NewLocal(dir)

	loc, err := l.WriteNote(context.Background(), "cap-1.md", "# memo\n")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(loc))

	content, err := os.ReadFile(filepath.Join(dir, "cap-1.md"))
	require.NoError(t, err)
	assert.Equal(t, "# memo\n", string(content))
}

func TestLocalWriteNoteOverwrites(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)
	ctx := context.Background()

	_, err := l.WriteNote(ctx, "cap-1.md", "first")
	require.NoError(t, err)
	_, err = l.WriteNote(ctx, "cap-1.md", "second")
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "cap-1.md"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
