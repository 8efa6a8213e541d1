// Package pathmap implements the Platform Mapper (spec §4.1 C2): the
// bijection between the universal (subdir, relPath) layout and each
// platform's native root/subdir/extension triple.
package pathmap

import (
	"path/filepath"
	"strings"

	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/platform"
)

// Target is one platform-specific materialization of a universal file.
type Target struct {
	Platform platform.ID
	AbsDir   string
	AbsFile  string
}

// ToPlatform translates (platform, subdir, relPath) into an absolute
// (dir, file) pair inside the given workspace root. relPath uses
// forward-slash universal separators (the extension is always
// platform.CanonicalExt when this is called from the registry side).
func ToPlatform(workspaceRoot string, def platform.Definition, subdir platform.UniversalSubdir, relPath string) (absDir, absFile string, err error) {
	subdirDef, ok := def.Subdirs[subdir]
	if !ok {
		return "", "", opkgerr.New(opkgerr.Validation, "unsupported-subdir: "+string(def.ID)+"/"+string(subdir))
	}

	rel := filepath.FromSlash(relPath)
	ext := filepath.Ext(rel)
	base := strings.TrimSuffix(rel, ext) + subdirDef.WriteExt

	absDir = filepath.Join(workspaceRoot, def.RootDir, subdirDef.Path, filepath.Dir(rel))
	absDir = filepath.Clean(absDir)
	absFile = filepath.Join(workspaceRoot, def.RootDir, subdirDef.Path, base)
	return absDir, absFile, nil
}

// Hit is a successful reverse-mapping result.
type Hit struct {
	Platform platform.ID
	Subdir   platform.UniversalSubdir
	RelPath  string // forward-slash, extension canonicalized to .md
}

// FromPlatform translates an absolute platform-native path back to its
// universal (platform, subdir, relPath). It returns (nil, nil) if absPath
// does not lie inside exactly one recognized (rootDir, subdir.path) pair.
func FromPlatform(workspaceRoot, absPath string) (*Hit, error) {
	absPath = filepath.Clean(absPath)
	var hit *Hit

	for _, def := range platform.All() {
		rootAbs := filepath.Join(workspaceRoot, def.RootDir)
		rel, err := filepath.Rel(rootAbs, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}

		for subdir, subdirDef := range def.Subdirs {
			subdirAbs := filepath.Join(rootAbs, subdirDef.Path)
			relInSubdir, err := filepath.Rel(subdirAbs, absPath)
			if err != nil || strings.HasPrefix(relInSubdir, "..") {
				continue
			}
			ext := filepath.Ext(relInSubdir)
			if !hasExt(subdirDef.ReadExts, ext) {
				continue
			}
			canonical := strings.TrimSuffix(relInSubdir, ext) + platform.CanonicalExt
			if hit != nil {
				// Ambiguous: matched more than one (rootDir, subdir) pair.
				return nil, nil
			}
			hit = &Hit{Platform: def.ID, Subdir: subdir, RelPath: filepath.ToSlash(canonical)}
		}
	}

	return hit, nil
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// DetectedPlatform reports whether def is "detected" in workspaceRoot: its
// rootDir exists, or its unique (non-AGENTS.md) root file exists at the
// workspace root.
func DetectedPlatform(exists func(string) bool, workspaceRoot string, def platform.Definition) bool {
	if exists(filepath.Join(workspaceRoot, def.RootDir)) {
		return true
	}
	if def.RootFile != "" && def.RootFile != "AGENTS.md" && exists(filepath.Join(workspaceRoot, def.RootFile)) {
		return true
	}
	return false
}

// DetectedPlatforms returns every platform.Definition detected in
// workspaceRoot, in the stable order platform.All() provides.
func DetectedPlatforms(exists func(string) bool, workspaceRoot string) []platform.Definition {
	var out []platform.Definition
	for _, def := range platform.All() {
		if DetectedPlatform(exists, workspaceRoot, def) {
			out = append(out, def)
		}
	}
	return out
}

// ResolveInstallTargets returns one Target per platform detected in
// workspaceRoot that supports subdir, per spec §4.1.
func ResolveInstallTargets(exists func(string) bool, workspaceRoot string, subdir platform.UniversalSubdir, relPath string) ([]Target, error) {
	var targets []Target
	for _, def := range DetectedPlatforms(exists, workspaceRoot) {
		if _, ok := def.Subdirs[subdir]; !ok {
			continue
		}
		absDir, absFile, err := ToPlatform(workspaceRoot, def, subdir, relPath)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{Platform: def.ID, AbsDir: absDir, AbsFile: absFile})
	}
	return targets, nil
}

// RootFileTarget returns the absolute path of def's native root file at the
// workspace root, or "" if def has none.
func RootFileTarget(workspaceRoot string, def platform.Definition) string {
	if def.RootFile == "" {
		return ""
	}
	return filepath.Join(workspaceRoot, def.RootFile)
}
