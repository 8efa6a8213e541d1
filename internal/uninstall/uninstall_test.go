package uninstall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/regpath"
)

func writeManifest(t *testing.T, workspaceRoot, name string, p *manifest.PackageYml) {
	t.Helper()
	dir := regpath.WorkspacePackageDir(workspaceRoot, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := manifest.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(regpath.WorkspacePackageManifest(workspaceRoot, name), data, 0o644))
}

func writeIndex(t *testing.T, workspaceRoot, name string, files map[string][]string) {
	t.Helper()
	rec := &manifest.PackageIndexRecord{Files: files}
	data, err := manifest.MarshalIndex(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(regpath.WorkspacePackageIndex(workspaceRoot, name), data, 0o644))
}

func TestUninstall_RemovesInstalledFilesAndRootEntry(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeManifest(t, ws, "pkg-a", &manifest.PackageYml{Name: "pkg-a", Version: "1.0.0"})

	installedFile := filepath.Join(ws, ".cursor", "rules", "style.mdc")
	require.NoError(t, os.MkdirAll(filepath.Dir(installedFile), 0o755))
	require.NoError(t, os.WriteFile(installedFile, []byte("be concise"), 0o644))
	writeIndex(t, ws, "pkg-a", map[string][]string{"rules/style.md": {installedFile}})

	require.NoError(t, os.WriteFile(regpath.WorkspaceRootManifest(ws), []byte("name: root\nversion: 0.0.0\npackages:\n  - name: pkg-a\n    version: ^1.0.0\n"), 0o644))

	res, err := Uninstall(Options{WorkspaceRoot: ws, Name: "pkg-a"})
	require.NoError(t, err)
	assert.Contains(t, res.Removed, "pkg-a")

	_, statErr := os.Stat(installedFile)
	assert.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(regpath.WorkspacePackageDir(ws, "pkg-a"))
	assert.True(t, os.IsNotExist(statErr))

	data, err := os.ReadFile(regpath.WorkspaceRootManifest(ws))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "pkg-a")
}

func TestUninstall_CascadeRemovesDanglingDependency(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeManifest(t, ws, "top", &manifest.PackageYml{
		Name:     "top",
		Version:  "1.0.0",
		Packages: []manifest.Dependency{{Name: "leaf", Version: "^1.0.0"}},
	})
	writeManifest(t, ws, "leaf", &manifest.PackageYml{Name: "leaf", Version: "1.0.0"})

	res, err := Uninstall(Options{WorkspaceRoot: ws, Name: "top", Cascade: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"top", "leaf"}, res.Removed)

	_, err = os.Stat(regpath.WorkspacePackageDir(ws, "leaf"))
	assert.True(t, os.IsNotExist(err))
}

func TestUninstall_CascadeKeepsProtectedDependency(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeManifest(t, ws, "top", &manifest.PackageYml{
		Name:     "top",
		Version:  "1.0.0",
		Packages: []manifest.Dependency{{Name: "shared", Version: "^1.0.0"}},
	})
	writeManifest(t, ws, "shared", &manifest.PackageYml{Name: "shared", Version: "1.0.0"})
	require.NoError(t, os.WriteFile(regpath.WorkspaceRootManifest(ws), []byte(
		"name: root\nversion: 0.0.0\npackages:\n  - name: top\n    version: ^1.0.0\n  - name: shared\n    version: ^1.0.0\n"), 0o644))

	res, err := Uninstall(Options{WorkspaceRoot: ws, Name: "top", Cascade: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"top"}, res.Removed)

	_, err = os.Stat(regpath.WorkspacePackageDir(ws, "shared"))
	assert.NoError(t, err)
}

func TestUninstall_DryRunDoesNotTouchDisk(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	writeManifest(t, ws, "pkg-a", &manifest.PackageYml{Name: "pkg-a", Version: "1.0.0"})
	installedFile := filepath.Join(ws, ".cursor", "rules", "style.mdc")
	require.NoError(t, os.MkdirAll(filepath.Dir(installedFile), 0o755))
	require.NoError(t, os.WriteFile(installedFile, []byte("be concise"), 0o644))
	writeIndex(t, ws, "pkg-a", map[string][]string{"rules/style.md": {installedFile}})

	res, err := Uninstall(Options{WorkspaceRoot: ws, Name: "pkg-a", DryRun: true})
	require.NoError(t, err)
	assert.Contains(t, res.RemovedPaths, installedFile)

	_, err = os.Stat(installedFile)
	assert.NoError(t, err, "dry run must not remove the file")
	_, err = os.Stat(regpath.WorkspacePackageDir(ws, "pkg-a"))
	assert.NoError(t, err, "dry run must not remove the package directory")
}
