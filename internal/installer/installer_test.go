package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/regpath"
	"github.com/openpackage/opkg/internal/resolver"
)

type fakeReader struct {
	files map[string][]RegistryFile
}

func (r fakeReader) ReadVersionFiles(name, version string) ([]RegistryFile, error) {
	return r.files[name+"@"+version], nil
}

func TestInstall_MaterializesAcrossDetectedPlatforms(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".claude"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".cursor"), 0o755))

	reader := fakeReader{files: map[string][]RegistryFile{
		"pkg@1.0.0": {
			{RelPath: "rules/style.md", Content: []byte("Be concise.\n")},
			{RelPath: "ai/notes.md", Content: []byte("scratch\n")},
		},
	}}

	resolved := []resolver.ResolvedPackage{{Name: "pkg", Version: "1.0.0"}}
	writes, err := Install(Options{WorkspaceRoot: ws, Reader: reader, Conflict: Overwrite}, resolved)
	require.NoError(t, err)
	require.NotEmpty(t, writes)

	cursorRule := filepath.Join(ws, ".cursor", "rules", "style.mdc")
	data, err := os.ReadFile(cursorRule)
	require.NoError(t, err)
	assert.Equal(t, "Be concise.\n", string(data))

	aiNote := filepath.Join(ws, ".openpackage", "packages", "pkg", "ai", "notes.md")
	data, err = os.ReadFile(aiNote)
	require.NoError(t, err)
	assert.Equal(t, "scratch\n", string(data))

	indexData, err := os.ReadFile(regpath.WorkspacePackageIndex(ws, "pkg"))
	require.NoError(t, err)
	idx, err := manifest.UnmarshalIndex(indexData)
	require.NoError(t, err)
	assert.NotEmpty(t, idx.Files)
}

func TestInstall_IdempotentSecondRun(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".claude"), 0o755))

	reader := fakeReader{files: map[string][]RegistryFile{
		"pkg@1.0.0": {{RelPath: "ai/a.md", Content: []byte("hello")}},
	}}
	resolved := []resolver.ResolvedPackage{{Name: "pkg", Version: "1.0.0"}}

	_, err := Install(Options{WorkspaceRoot: ws, Reader: reader, Conflict: Overwrite}, resolved)
	require.NoError(t, err)

	writes, err := Install(Options{WorkspaceRoot: ws, Reader: reader, Conflict: Overwrite}, resolved)
	require.NoError(t, err)
	for _, w := range writes {
		assert.False(t, w.Changed, "reinstall with no drift should be a byte-level no-op: %s", w.Path)
	}
}

func TestInstall_ConflictKeepSkipsOverwrite(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".claude"), 0o755))

	reader := fakeReader{files: map[string][]RegistryFile{
		"pkg@1.0.0": {{RelPath: "ai/a.md", Content: []byte("new content")}},
	}}
	target := filepath.Join(ws, ".openpackage", "packages", "pkg", "ai", "a.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("existing drifted content"), 0o644))

	resolved := []resolver.ResolvedPackage{{Name: "pkg", Version: "1.0.0"}}
	_, err := Install(Options{WorkspaceRoot: ws, Reader: reader, Conflict: Keep}, resolved)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "existing drifted content", string(data))
}
