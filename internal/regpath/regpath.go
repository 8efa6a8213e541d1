// Package regpath resolves on-disk paths for the per-user registry,
// per-package versions, and the workspace .openpackage/ tree (spec §4 C3,
// §6 "Filesystem layout"). It has no behavior beyond path arithmetic and a
// directory-existence predicate, kept as a leaf package the way the
// teacher's own path-only helpers (cmd/launcher/paths.go) are leaves.
package regpath

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeRegistryDir returns "$HOME/.openpackage".
func HomeRegistryDir(homeDir string) string {
	return filepath.Join(homeDir, ".openpackage")
}

// packageDirParts splits a (possibly scoped) package name into the nested
// directory components the registry stores it under: "@scope/name"
// becomes ["@scope", "name"]; "name" stays ["name"].
func packageDirParts(name string) []string {
	if strings.HasPrefix(name, "@") {
		parts := strings.SplitN(name, "/", 2)
		if len(parts) == 2 {
			return parts
		}
	}
	return []string{name}
}

// PackageVersionsDir returns "$HOME/.openpackage/registry/packages/<name>/".
func PackageVersionsDir(homeDir, name string) string {
	parts := append([]string{HomeRegistryDir(homeDir), "registry", "packages"}, packageDirParts(name)...)
	return filepath.Join(parts...)
}

// PackageVersionDir returns the directory for one specific version of name.
func PackageVersionDir(homeDir, name, version string) string {
	return filepath.Join(PackageVersionsDir(homeDir, name), version)
}

// WorkspaceOpenpackageDir returns "<workspace>/.openpackage".
func WorkspaceOpenpackageDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".openpackage")
}

// WorkspaceRootManifest returns "<workspace>/.openpackage/package.yml".
func WorkspaceRootManifest(workspaceRoot string) string {
	return filepath.Join(WorkspaceOpenpackageDir(workspaceRoot), "package.yml")
}

// WorkspacePackageDir returns "<workspace>/.openpackage/packages/<name>/".
func WorkspacePackageDir(workspaceRoot, name string) string {
	return filepath.Join(WorkspaceOpenpackageDir(workspaceRoot), "packages", name)
}

// WorkspacePackageManifest returns the per-package package.yml inside the
// workspace's installed copy.
func WorkspacePackageManifest(workspaceRoot, name string) string {
	return filepath.Join(WorkspacePackageDir(workspaceRoot, name), "package.yml")
}

// WorkspacePackageIndex returns the per-package package.index.yml.
func WorkspacePackageIndex(workspaceRoot, name string) string {
	return filepath.Join(WorkspacePackageDir(workspaceRoot, name), "package.index.yml")
}

// LockFile returns "<workspace>/.openpackage/.lock" (SPEC_FULL §5(c)).
func LockFile(workspaceRoot string) string {
	return filepath.Join(WorkspaceOpenpackageDir(workspaceRoot), ".lock")
}

// Exists is the directory/file existence predicate threaded through
// pathmap.DetectedPlatforms and similar pure-function callers, kept as a
// tiny indirection so tests can fake a workspace without touching disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListVersions returns the version directory names present for name in the
// registry, unsorted.
func ListVersions(homeDir, name string) ([]string, error) {
	dir := PackageVersionsDir(homeDir, name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
