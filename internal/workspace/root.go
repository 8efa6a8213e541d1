package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pkgversion"
	"github.com/openpackage/opkg/internal/regpath"
)

// EnsureTree makes sure "<workspaceRoot>/.openpackage/" exists.
func EnsureTree(workspaceRoot string) error {
	if err := os.MkdirAll(regpath.WorkspaceOpenpackageDir(workspaceRoot), 0o755); err != nil {
		return opkgerr.Wrap(err, opkgerr.Filesystem, "create .openpackage directory")
	}
	return nil
}

// LoadRootManifest reads "<workspaceRoot>/.openpackage/package.yml", or
// returns (nil, false, nil) if it does not exist yet.
func LoadRootManifest(workspaceRoot string) (*manifest.PackageYml, bool, error) {
	path := regpath.WorkspaceRootManifest(workspaceRoot)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opkgerr.Wrap(err, opkgerr.Filesystem, "read root package.yml")
	}
	p, err := manifest.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// SaveRootManifest writes the workspace-root package.yml.
func SaveRootManifest(workspaceRoot string, p *manifest.PackageYml) error {
	if err := EnsureTree(workspaceRoot); err != nil {
		return err
	}
	data, err := manifest.Marshal(p)
	if err != nil {
		return err
	}
	path := regpath.WorkspaceRootManifest(workspaceRoot)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return opkgerr.Wrap(err, opkgerr.Filesystem, "write root package.yml")
	}
	return nil
}

// LoadPackageManifest reads a package's own manifest from its installed
// workspace location, or returns (nil, false, nil) if absent.
func LoadPackageManifest(workspaceRoot, name string) (*manifest.PackageYml, bool, error) {
	path := regpath.WorkspacePackageManifest(workspaceRoot, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opkgerr.Wrap(err, opkgerr.Filesystem, "read package manifest")
	}
	p, err := manifest.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// SavePackageManifest writes a package's own manifest to its workspace
// install location.
func SavePackageManifest(workspaceRoot, name string, p *manifest.PackageYml) error {
	dir := regpath.WorkspacePackageDir(workspaceRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return opkgerr.Wrap(err, opkgerr.Filesystem, "create package directory")
	}
	data, err := manifest.Marshal(p)
	if err != nil {
		return err
	}
	path := regpath.WorkspacePackageManifest(workspaceRoot, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return opkgerr.Wrap(err, opkgerr.Filesystem, "write package manifest")
	}
	return nil
}

// ListInstalledPackageNames returns every package name with an installed
// manifest under "<workspaceRoot>/.openpackage/packages/", used by Uninstall
// to build the cross-package dependency tree (spec §4.10 step 3).
func ListInstalledPackageNames(workspaceRoot string) ([]string, error) {
	packagesDir := filepath.Join(regpath.WorkspaceOpenpackageDir(workspaceRoot), "packages")
	entries, err := os.ReadDir(packagesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, opkgerr.Wrap(err, opkgerr.Filesystem, "list installed packages")
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "@") {
			scoped, err := os.ReadDir(filepath.Join(packagesDir, e.Name()))
			if err != nil {
				return nil, opkgerr.Wrap(err, opkgerr.Filesystem, "list scoped packages")
			}
			for _, s := range scoped {
				scopedName := e.Name() + "/" + s.Name()
				if _, err := os.Stat(regpath.WorkspacePackageManifest(workspaceRoot, scopedName)); s.IsDir() && err == nil {
					names = append(names, scopedName)
				}
			}
			continue
		}
		if _, err := os.Stat(regpath.WorkspacePackageManifest(workspaceRoot, e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// IsRootPackage reports whether name matches the workspace root package.yml
// name (a "root-package save", spec §4.4 step 2).
func IsRootPackage(workspaceRoot, name string) (bool, error) {
	root, ok, err := LoadRootManifest(workspaceRoot)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return NamesEqual(root.Name, name), nil
}

// IsPackageTransitivelyCovered reports whether some ancestor top-level
// dependency of the workspace root already depends (directly or
// transitively, within locally available manifests) on name, per spec §4.4
// step 11.
func IsPackageTransitivelyCovered(workspaceRoot, name string) (bool, error) {
	root, ok, err := LoadRootManifest(workspaceRoot)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	visited := map[string]bool{}
	var walk func(depName string) (bool, error)
	walk = func(depName string) (bool, error) {
		if visited[depName] {
			return false, nil
		}
		visited[depName] = true

		p, ok, err := LoadPackageManifest(workspaceRoot, depName)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		for _, dep := range p.Packages {
			if NamesEqual(dep.Name, name) {
				return true, nil
			}
			covered, err := walk(dep.Name)
			if err != nil {
				return false, err
			}
			if covered {
				return true, nil
			}
		}
		return false, nil
	}

	for _, dep := range root.Packages {
		if NamesEqual(dep.Name, name) {
			// name is itself a direct top-level dep, not "covered by
			// another" dep -- not transitively covered.
			continue
		}
		covered, err := walk(dep.Name)
		if err != nil {
			return false, err
		}
		if covered {
			return true, nil
		}
	}
	return false, nil
}

// AddPackageToYml upserts name@version into the root package.yml's
// packages (or dev-packages when isDev), using a caret range off the
// version's base (spec §4.4 step 11).
func AddPackageToYml(workspaceRoot, name, version string, isDev bool) error {
	root, ok, err := LoadRootManifest(workspaceRoot)
	if err != nil {
		return err
	}
	if !ok {
		root = &manifest.PackageYml{Name: filepath.Base(workspaceRoot), Version: pkgversion.DefaultVersion}
	}

	base, err := pkgversion.ExtractBaseVersion(version)
	if err != nil {
		return err
	}
	rangeStr := pkgversion.CaretRange(base)

	root.UpsertDependency(name, rangeStr)
	if isDev {
		root.MoveToDev(name)
	}

	return SaveRootManifest(workspaceRoot, root)
}

// RemovePackageFromYml removes name from the root package.yml entirely
// (spec §4.10 step 2).
func RemovePackageFromYml(workspaceRoot, name string) error {
	root, ok, err := LoadRootManifest(workspaceRoot)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	root.RemoveDependency(name)
	return SaveRootManifest(workspaceRoot, root)
}

// Rename moves a workspace's installed package directory from oldName to
// newName and rewrites the inner package.yml's name field (spec §4.11).
func Rename(workspaceRoot, oldName, newName string) error {
	oldDir := regpath.WorkspacePackageDir(workspaceRoot, oldName)
	newDir := regpath.WorkspacePackageDir(workspaceRoot, newName)

	if _, err := os.Stat(oldDir); err == nil {
		if err := os.MkdirAll(filepath.Dir(newDir), 0o755); err != nil {
			return opkgerr.Wrap(err, opkgerr.Filesystem, "prepare rename target")
		}
		if err := os.Rename(oldDir, newDir); err != nil {
			return opkgerr.Wrap(err, opkgerr.Filesystem, "rename package directory")
		}
	}

	p, ok, err := LoadPackageManifest(workspaceRoot, newName)
	if err != nil {
		return errors.Wrap(err, "load renamed manifest")
	}
	if ok {
		p.Name = newName
		if err := SavePackageManifest(workspaceRoot, newName, p); err != nil {
			return err
		}
	}
	return nil
}
