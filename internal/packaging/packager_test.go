package packaging

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageSingleRunDirectoryPrefixesBasename(t *testing.T) {
	dir := t.TempDir()
	runDir := filepath.Join(dir, "RUN4")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "out.csv"), []byte("a,b\n"), 0o644))

	packaged, err := PackageDirectory(runDir)
	require.NoError(t, err)
	assert.Equal(t, 1, packaged.FileCount)

	names := zipEntryNames(t, packaged.Bytes)
	assert.Equal(t, []string{"RUN4/out.csv"}, names)
}

func TestPackageParentWithMultipleRunDirsPreservesPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"RUN1", "RUN2"} {
		runDir := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(runDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(runDir, "out.csv"), []byte("x"), 0o644))
	}

	packaged, err := PackageDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, packaged.FileCount)

	names := zipEntryNames(t, packaged.Bytes)
	assert.ElementsMatch(t, []string{"RUN1/out.csv", "RUN2/out.csv"}, names)
}

func TestPackageRejectsNonRunDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	_, err := PackageDirectory(dir)
	require.Error(t, err)
	assert.True(t, AsInvalidDirectory(err))
}

func zipEntryNames(t *testing.T, data []byte) []string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}
