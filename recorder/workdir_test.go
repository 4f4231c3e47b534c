package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectNameFindsEnclosingGoMod(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/sample\n\ngo 1.24\n"), 0o644))

	sub := filepath.Join(dir, "scripts")
	require.NoError(t, os.Mkdir(sub, 0o755))
	script := filepath.Join(sub, "run.flow")
	require.NoError(t, os.WriteFile(script, []byte("x = 1;"), 0o644))

	assert.Equal(t, "example.com/sample", ProjectName(script))
}

func TestProjectNameFallsBackToAbsoluteDirWithoutGoMod(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.flow")
	require.NoError(t, os.WriteFile(script, []byte("x = 1;"), 0o644))

	got := ProjectName(script)
	want, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
