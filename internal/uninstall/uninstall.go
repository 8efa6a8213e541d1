// Package uninstall implements the Uninstaller / dangling-dependency GC
// (spec §4.10 C12): remove a package's installed files and root-file
// section, drop it from the root package.yml, then optionally cascade
// through any dependency left with no remaining external dependent.
package uninstall

import (
	"os"
	"sort"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/regpath"
	"github.com/openpackage/opkg/internal/sync"
	"github.com/openpackage/opkg/internal/workspace"
)

// Options configures one Uninstall call.
type Options struct {
	WorkspaceRoot string
	Name          string

	// Cascade removes any dependency left dangling by this removal (no
	// external dependent, not listed in the root package.yml) as well,
	// spec §4.10 step 3's "optionally cascade-remove danglings".
	Cascade bool

	// DryRun computes what would be removed without touching disk.
	DryRun bool
}

// Result reports what Uninstall did (or, under DryRun, would do).
type Result struct {
	// Removed is every package name removed, in removal order: Name
	// first, then any cascaded danglings.
	Removed []string

	// RemovedPaths is every workspace file/directory path removed across
	// all of Removed.
	RemovedPaths []string
}

// Uninstall removes opts.Name (and, if opts.Cascade, any package left
// dangling by that removal) from the workspace.
func Uninstall(opts Options) (*Result, error) {
	lock, err := workspace.AcquireLock(opts.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	name, err := workspace.ValidateName(opts.Name)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if err := removeOne(opts.WorkspaceRoot, name, opts.DryRun, res); err != nil {
		return nil, err
	}

	if opts.Cascade {
		for {
			dangling, err := findDangling(opts.WorkspaceRoot, res.Removed)
			if err != nil {
				return nil, err
			}
			if len(dangling) == 0 {
				break
			}
			for _, d := range dangling {
				if err := removeOne(opts.WorkspaceRoot, d, opts.DryRun, res); err != nil {
					return nil, err
				}
			}
		}
	}

	return res, nil
}

// removeOne performs spec §4.10 steps 1-2 for a single package name,
// recording every removed path on res.
func removeOne(workspaceRoot, name string, dryRun bool, res *Result) error {
	idx, ok, err := loadIndex(workspaceRoot, name)
	if err != nil {
		return err
	}
	if ok {
		paths := flattenIndexPaths(idx)
		for _, p := range paths {
			if dryRun {
				res.RemovedPaths = append(res.RemovedPaths, p)
				continue
			}
			if err := os.RemoveAll(p); err != nil && !os.IsNotExist(err) {
				return opkgerr.Wrap(err, opkgerr.Filesystem, "remove "+p)
			}
			res.RemovedPaths = append(res.RemovedPaths, p)
		}
	}

	if !dryRun {
		if err := sync.RemoveRootSection(workspaceRoot, name); err != nil {
			return err
		}
	}

	pkgDir := regpath.WorkspacePackageDir(workspaceRoot, name)
	if !dryRun {
		if err := os.RemoveAll(pkgDir); err != nil && !os.IsNotExist(err) {
			return opkgerr.Wrap(err, opkgerr.Filesystem, "remove "+pkgDir)
		}
		if err := workspace.RemovePackageFromYml(workspaceRoot, name); err != nil {
			return err
		}
	}
	res.RemovedPaths = append(res.RemovedPaths, pkgDir)
	res.Removed = append(res.Removed, name)
	return nil
}

// flattenIndexPaths returns every installed path listed in idx, with
// directory keys ("dir/" -> ["abs/dir/"]) and file keys treated
// identically: os.RemoveAll is recursive for a directory and a no-op
// extension of os.Remove for a file.
func flattenIndexPaths(idx *manifest.PackageIndexRecord) []string {
	var out []string
	seen := map[string]bool{}
	for _, key := range idx.SortedKeys() {
		for _, p := range idx.Files[key] {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func loadIndex(workspaceRoot, name string) (*manifest.PackageIndexRecord, bool, error) {
	path := regpath.WorkspacePackageIndex(workspaceRoot, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, opkgerr.Wrap(err, opkgerr.Filesystem, "read package.index.yml")
	}
	rec, err := manifest.UnmarshalIndex(data)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// findDangling builds the dependency tree across every remaining installed
// package.yml and returns the names with no external dependent left and
// which are not protected by the root package.yml (spec §4.10 step 3).
// removedSoFar is excluded from consideration (already gone) but still
// counts as "inside the subtree being removed" for dependent computation.
func findDangling(workspaceRoot string, removedSoFar []string) ([]string, error) {
	removed := map[string]bool{}
	for _, n := range removedSoFar {
		removed[n] = true
	}

	installed, err := workspace.ListInstalledPackageNames(workspaceRoot)
	if err != nil {
		return nil, err
	}

	protected := map[string]bool{}
	root, ok, err := workspace.LoadRootManifest(workspaceRoot)
	if err != nil {
		return nil, err
	}
	if ok {
		for _, d := range root.Packages {
			protected[workspace.NormalizeName(d.Name)] = true
		}
		for _, d := range root.DevPackages {
			protected[workspace.NormalizeName(d.Name)] = true
		}
	}

	// dependents[x] = set of installed packages (not yet removed) that
	// directly depend on x.
	dependents := map[string]map[string]bool{}
	for _, n := range installed {
		if removed[n] {
			continue
		}
		p, ok, err := workspace.LoadPackageManifest(workspaceRoot, n)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, dep := range append(append([]manifest.Dependency{}, p.Packages...), p.DevPackages...) {
			depName := workspace.NormalizeName(dep.Name)
			if dependents[depName] == nil {
				dependents[depName] = map[string]bool{}
			}
			dependents[depName][n] = true
		}
	}

	var dangling []string
	for _, n := range installed {
		if removed[n] {
			continue
		}
		if protected[workspace.NormalizeName(n)] {
			continue
		}
		if len(dependents[workspace.NormalizeName(n)]) > 0 {
			continue
		}
		dangling = append(dangling, n)
	}
	sort.Strings(dangling)
	return dangling, nil
}
