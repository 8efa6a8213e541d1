package save

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/openpackage/opkg/internal/arbitration"
	"github.com/openpackage/opkg/internal/discovery"
	"github.com/openpackage/opkg/internal/markers"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pathmap"
	"github.com/openpackage/opkg/internal/pkgversion"
	"github.com/openpackage/opkg/internal/platform"
	"github.com/openpackage/opkg/internal/regpath"
)

// arbitrateAndMaterialize implements spec §4.4 steps 6-7: partition the
// discovered files, run arbitration where it applies, apply the platform-
// YAML front-matter split where it applies, and return the deduplicated
// set of registry-bound files plus the canonical root-section body (if
// any) for name.
func arbitrateAndMaterialize(opts Options, name, targetVersion string, files []discovery.File) ([]FileWrite, string, error) {
	var rootFiles, arbFiles, passFiles []discovery.File
	for _, f := range files {
		switch {
		case f.IsRootFile:
			rootFiles = append(rootFiles, f)
		case f.SourceDir == "ai" || f.ForcePlatformSpecific:
			arbFiles = append(arbFiles, f)
		default:
			passFiles = append(passFiles, f)
		}
	}

	rootSection, err := extractRootSection(opts.WorkspaceRoot, rootFiles, name)
	if err != nil {
		return nil, "", err
	}

	isStable := !pkgversion.IsLocalVersion(targetVersion)

	type ordered struct {
		path string
		data []byte
	}
	var out []ordered
	seen := map[string]int{} // path -> index into out, for dedup

	put := func(path string, data []byte) {
		if strings.HasSuffix(path, ".yml") {
			if idx, ok := seen[path]; ok {
				out[idx].data = data
				return
			}
			seen[path] = len(out)
			out = append(out, ordered{path: path, data: data})
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = len(out)
		out = append(out, ordered{path: path, data: data})
	}

	for registryPath, group := range discovery.GroupByRegistryPath(arbFiles) {
		res, err := arbitration.Resolve(registryPath, group, isStable, opts.Chooser)
		if err != nil {
			return nil, "", err
		}
		for _, outcome := range res.Outcomes {
			if outcome.RegistryPath == "" {
				// Interactive-elect "synced" outcome: overwrite the
				// workspace's own copy with the elected universal bytes.
				elected := findElected(res.Outcomes)
				if elected == nil {
					continue
				}
				data, err := os.ReadFile(elected.File.FullPath)
				if err != nil {
					return nil, "", opkgerr.Wrap(err, opkgerr.Filesystem, "read elected universal file")
				}
				if err := os.WriteFile(outcome.File.FullPath, data, 0o644); err != nil {
					return nil, "", opkgerr.Wrap(err, opkgerr.Filesystem, "sync unmarked file to elected universal")
				}
				continue
			}
			data, err := os.ReadFile(outcome.File.FullPath)
			if err != nil {
				return nil, "", opkgerr.Wrap(err, opkgerr.Filesystem, "read "+outcome.File.FullPath)
			}
			put(outcome.RegistryPath, data)
		}
	}

	for _, f := range passFiles {
		data, err := os.ReadFile(f.FullPath)
		if err != nil {
			return nil, "", opkgerr.Wrap(err, opkgerr.Filesystem, "read "+f.FullPath)
		}
		universal, overrides, ok, err := splitFrontMatter(string(data))
		if err != nil {
			return nil, "", err
		}
		if !ok {
			put(f.RegistryPath, data)
			continue
		}
		put(f.RegistryPath, []byte(universal))
		for platformID, override := range overrides {
			overrideData, err := marshalOverride(override)
			if err != nil {
				return nil, "", err
			}
			put(overridePath(f.RegistryPath, platformID), overrideData)
		}
	}

	writes := make([]FileWrite, 0, len(out))
	for _, o := range out {
		writes = append(writes, FileWrite{RelPath: o.path, Content: o.data})
	}
	return writes, rootSection, nil
}

func findElected(outcomes []arbitration.Outcome) *arbitration.Outcome {
	for i := range outcomes {
		if outcomes[i].IsUniversal {
			return &outcomes[i]
		}
	}
	return nil
}

// extractRootSection finds name's section among the discovered root
// files, rewriting the source workspace file in place when a fresh id had
// to be injected (spec §4.5), and returns the canonical section body. The
// first root file (in discovery order) carrying a marker for name wins;
// the others are reconciled by the subsequent Sync pass.
func extractRootSection(workspaceRoot string, rootFiles []discovery.File, name string) (string, error) {
	for _, f := range rootFiles {
		data, err := os.ReadFile(f.FullPath)
		if err != nil {
			return "", opkgerr.Wrap(err, opkgerr.Filesystem, "read "+f.FullPath)
		}
		res, err := markers.EnsureMarkerIdAndExtract(string(data), name)
		if err != nil {
			return "", err
		}
		if res == nil {
			continue
		}
		if res.Changed {
			if err := os.WriteFile(f.FullPath, []byte(res.UpdatedContent), 0o644); err != nil {
				return "", opkgerr.Wrap(err, opkgerr.Filesystem, "rewrite "+f.FullPath)
			}
		}
		return res.SectionBody, nil
	}
	return "", nil
}

// installedTargetsFor computes every absolute workspace path a registry
// file would materialize to under currently detected platforms (spec §4.9
// "exact-path mode").
func installedTargetsFor(workspaceRoot, name, registryRelPath string) ([]string, error) {
	if registryRelPath == discovery.RootGroupName {
		return rootFileTargets(workspaceRoot)
	}
	if strings.HasPrefix(registryRelPath, "ai/") {
		return []string{filepath.Join(regpath.WorkspacePackageDir(workspaceRoot, name), filepath.FromSlash(registryRelPath))}, nil
	}

	subdirName, rel, platformID, isOverride := parseRegistryPath(registryRelPath)
	if isOverride {
		// Override files are consumed during install-time YAML merge into
		// their platform's universal target; they have no standalone
		// installed path of their own.
		return nil, nil
	}

	subdir := platform.UniversalSubdir(subdirName)

	if platformID != "" {
		def, ok := platform.Get(platform.ID(platformID))
		if !ok {
			return nil, nil
		}
		if !pathmap.DetectedPlatform(regpath.Exists, workspaceRoot, def) {
			return nil, nil
		}
		_, absFile, err := pathmap.ToPlatform(workspaceRoot, def, subdir, rel)
		if err != nil {
			return nil, nil
		}
		return []string{absFile}, nil
	}

	targets, err := pathmap.ResolveInstallTargets(regpath.Exists, workspaceRoot, subdir, rel)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.AbsFile)
	}
	return out, nil
}

// parseRegistryPath splits a registry-relative path into its universal
// subdir, the relPath beneath it, and (if the filename carries a
// platform-specific or override suffix) the platform id and whether it is
// a ".yml" override rather than a ".md" platform-specific sibling.
func parseRegistryPath(registryRelPath string) (subdir, rel, platformID string, isOverride bool) {
	slash := strings.Index(registryRelPath, "/")
	if slash < 0 {
		return "", registryRelPath, "", false
	}
	subdir = registryRelPath[:slash]
	rest := registryRelPath[slash+1:]

	ext := filepath.Ext(rest)
	withoutExt := strings.TrimSuffix(rest, ext)
	lastDot := strings.LastIndex(withoutExt, ".")
	if lastDot < 0 {
		return subdir, rest, "", false
	}
	candidate := withoutExt[lastDot+1:]
	if _, ok := platform.Get(platform.ID(candidate)); !ok {
		return subdir, rest, "", false
	}
	rel = withoutExt[:lastDot] + ".md"
	return subdir, rel, candidate, ext == ".yml"
}

// rootFileTargets returns the distinct native root-file absolute paths
// across every detected platform.
func rootFileTargets(workspaceRoot string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, def := range pathmap.DetectedPlatforms(regpath.Exists, workspaceRoot) {
		if def.RootFile == "" || seen[def.RootFile] {
			continue
		}
		seen[def.RootFile] = true
		out = append(out, filepath.Join(workspaceRoot, def.RootFile))
	}
	return out, nil
}
