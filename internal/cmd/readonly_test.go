package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRm_ReadOnly_Blocked(t *testing.T) {
	dir := fileBucket(t, "bkt", map[string]string{"x.txt": "x"})

	_, err := execute(t, "", "--readonly", "rm", "file://bkt/x.txt", "--yes")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "readonly")
	assert.FileExists(t, filepath.Join(dir, "x.txt"))
}

func TestRm_ReadOnlyEnv_Blocked(t *testing.T) {
	dir := fileBucket(t, "bkt", map[string]string{"x.txt": "x"})
	t.Setenv("BUCKETNAV_READONLY", "true")

	_, err := execute(t, "", "rm", "file://bkt/x.txt", "--yes")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "readonly")
	assert.FileExists(t, filepath.Join(dir, "x.txt"))
}

func TestRm_ReadOnly_DryRunAllowed(t *testing.T) {
	dir := fileBucket(t, "bkt", map[string]string{"x.txt": "x"})

	out, err := execute(t, "", "--readonly", "rm", "file://bkt/x.txt", "--dry-run")

	require.NoError(t, err)
	assert.Contains(t, out, "x.txt")
	assert.FileExists(t, filepath.Join(dir, "x.txt"))
}

func TestPut_ReadOnly_Blocked(t *testing.T) {
	dir := fileBucket(t, "bkt", nil)
	local := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(local, []byte("f"), 0o644))

	_, err := execute(t, "", "--readonly", "put", "file://bkt/", local)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "readonly")
	assert.NoFileExists(t, filepath.Join(dir, "f.txt"))
}
