package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearFolderRemovesContents(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("video"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.ts"), []byte("segment"), 0o644))

	require.NoError(t, ClearFolder(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "folder should be empty but still exist")
}

func TestClearFolderMissingFolder(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	assert.NoError(t, ClearFolder(missing))
}
