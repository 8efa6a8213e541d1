// Package pkgindex implements the Package Index (spec §4.9 C9):
// package.index.yml construction in exact-path mode (Save) and
// directory-collapsing mode (Install), with stale-key pruning and
// parent-wins directory-key deduplication.
package pkgindex

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/openpackage/opkg/internal/manifest"
)

// ExactPathMode builds a package.index.yml mapping every registry-side
// file path to the installed absolute paths it materializes to, pruned so
// a platform-specific key does not repeat a path already covered by its
// universal sibling's per-platform targets (spec §4.9 "Exact-path mode").
//
// registryFiles is the set of registry-relative paths written for this
// version. installedPaths maps a registry-relative path to every absolute
// workspace path it was materialized to.
func ExactPathMode(workspaceHash, version string, installedPaths map[string][]string) *manifest.PackageIndexRecord {
	rec := &manifest.PackageIndexRecord{
		Workspace: manifest.WorkspaceRef{Hash: workspaceHash, Version: version},
		Files:     map[string][]string{},
	}

	// Build the prune set: for every universal key "foo.md", collect every
	// platform-suffixed sibling "foo.<platform>.md" sharing its directory.
	universalOf := map[string]string{} // platform-specific key -> universal key
	for key := range installedPaths {
		u := universalKeyFor(key, installedPaths)
		if u != "" {
			universalOf[key] = u
		}
	}

	for key, paths := range installedPaths {
		pruned := make([]string, 0, len(paths))
		if u, isPlatformSpecific := universalOf[key]; isPlatformSpecific {
			universalPaths := pathSet(installedPaths[u])
			for _, p := range paths {
				if !universalPaths[p] {
					pruned = append(pruned, p)
				}
			}
		} else {
			pruned = paths
		}
		if len(pruned) > 0 {
			rec.Files[key] = pruned
		}
	}

	rec.Normalize()
	return rec
}

func pathSet(paths []string) map[string]bool {
	m := make(map[string]bool, len(paths))
	for _, p := range paths {
		m[p] = true
	}
	return m
}

// universalKeyFor returns the universal sibling key for a platform-
// specific-looking key (e.g. "commands/pkg/foo.claude.md" ->
// "commands/pkg/foo.md"), if that universal key is also present in
// installedPaths; otherwise "".
func universalKeyFor(key string, installedPaths map[string][]string) string {
	dir, file := filepath.Split(key)
	ext := filepath.Ext(file)
	withoutExt := strings.TrimSuffix(file, ext)
	lastDot := strings.LastIndex(withoutExt, ".")
	if lastDot < 0 {
		return ""
	}
	candidate := filepath.ToSlash(filepath.Join(dir, withoutExt[:lastDot]+ext))
	if _, ok := installedPaths[candidate]; ok && candidate != key {
		return candidate
	}
	return ""
}

// DirectoryCollapsingMode takes a prior record plus the file-level mapping
// just installed and collapses groups of file-keys sharing a directory
// parent into a single "dir/" -> ["installed-dir/"] entry, per spec §4.9
// "Directory-collapsing mode". Nested child dir keys under an already
// present parent are removed. Merging is additive for surviving keys.
func DirectoryCollapsingMode(prior *manifest.PackageIndexRecord, workspaceHash, version string, fileLevel map[string][]string, installedRoot string) *manifest.PackageIndexRecord {
	rec := &manifest.PackageIndexRecord{
		Workspace: manifest.WorkspaceRef{Hash: workspaceHash, Version: version},
		Files:     map[string][]string{},
	}

	if prior != nil {
		for k, v := range prior.Files {
			// A prior key is stale, and dropped, unless a current file key
			// equals it or (for a "dir/" key) lies under it.
			live := false
			for cur := range fileLevel {
				if cur == k || (strings.HasSuffix(k, "/") && strings.HasPrefix(cur, k)) {
					live = true
					break
				}
			}
			if live {
				rec.Files[k] = append([]string{}, v...)
			}
		}
	}
	for k, v := range fileLevel {
		rec.Files[k] = v
	}

	collapseDirectories(rec, installedRoot)
	pruneStaleDirKeys(rec)
	rec.Normalize()
	return rec
}

// collapseDirectories groups file keys by directory parent and replaces
// every file key below the top level with a single "dir/" key pointing at
// the installed directory paths; top-level file keys are left as they are.
func collapseDirectories(rec *manifest.PackageIndexRecord, installedRoot string) {
	byDir := map[string][]string{} // registry dir -> file keys in it
	for k := range rec.Files {
		if strings.HasSuffix(k, "/") {
			continue
		}
		dir := pathDir(k)
		byDir[dir] = append(byDir[dir], k)
	}

	for dir, keys := range byDir {
		if dir == "." || dir == "" {
			continue
		}
		dirKey := dir + "/"
		var dirPaths []string
		for _, k := range keys {
			for _, installed := range rec.Files[k] {
				installedDir := pathDir(filepath.ToSlash(installed)) + "/"
				if !contains(dirPaths, installedDir) {
					dirPaths = append(dirPaths, installedDir)
				}
			}
			delete(rec.Files, k)
		}
		if existing, ok := rec.Files[dirKey]; ok {
			for _, p := range existing {
				if !contains(dirPaths, p) {
					dirPaths = append(dirPaths, p)
				}
			}
		}
		rec.Files[dirKey] = dirPaths
	}

	removeNestedChildDirs(rec)
}

// removeNestedChildDirs enforces the invariant that no directory key is a
// strict prefix of another directory key in the same record (parent wins).
func removeNestedChildDirs(rec *manifest.PackageIndexRecord) {
	var dirKeys []string
	for k := range rec.Files {
		if strings.HasSuffix(k, "/") {
			dirKeys = append(dirKeys, k)
		}
	}
	sort.Strings(dirKeys)

	for _, parent := range dirKeys {
		if _, ok := rec.Files[parent]; !ok {
			continue
		}
		for _, child := range dirKeys {
			if child == parent {
				continue
			}
			if _, ok := rec.Files[child]; !ok {
				continue
			}
			if strings.HasPrefix(child, parent) {
				delete(rec.Files, child)
			}
		}
	}
}

// pruneStaleDirKeys drops any key whose path list is empty. Prior keys with
// no current file at or under them are already left out by
// DirectoryCollapsingMode before collapsing.
func pruneStaleDirKeys(rec *manifest.PackageIndexRecord) {
	for k, v := range rec.Files {
		if len(v) == 0 {
			delete(rec.Files, k)
		}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func pathDir(p string) string {
	d := filepath.ToSlash(filepath.Dir(p))
	if d == "." {
		return ""
	}
	return d
}
