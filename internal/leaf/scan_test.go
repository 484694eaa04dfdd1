package leaf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDirectoryListsRegularFilesOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	files, err := ScanDirectory(dir)
	require.NoError(t, err)
	require.Contains(t, files, "a.txt")
	assert.NotContains(t, files, "subdir")
	assert.Equal(t, "a.txt", files["a.txt"].Filename)
}

func TestScanDirectoryMissingDirIsError(t *testing.T) {
	_, err := ScanDirectory(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
