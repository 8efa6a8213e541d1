// Package installer implements the Installer (spec §4.8 C11): it
// materializes every resolver.ResolvedPackage into the workspace's
// canonical locations across all detected platforms, applying a
// workspace-conflict policy and refreshing package.index.yml in
// directory-collapsing mode.
package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/markers"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pathmap"
	"github.com/openpackage/opkg/internal/pkgindex"
	"github.com/openpackage/opkg/internal/pkgversion"
	"github.com/openpackage/opkg/internal/platform"
	"github.com/openpackage/opkg/internal/prompt"
	"github.com/openpackage/opkg/internal/regpath"
	"github.com/openpackage/opkg/internal/resolver"
	"github.com/openpackage/opkg/internal/workspace"
)

// ConflictStrategy is the workspace-conflict policy applied when the
// target absolute path already carries different bytes (spec §4.8 step 2).
type ConflictStrategy string

const (
	Overwrite ConflictStrategy = "overwrite"
	Keep      ConflictStrategy = "keep"
	Ask       ConflictStrategy = "ask"
)

// RegistryReader is the narrow interface the installer uses to pull a
// resolved package's files out of the registry.
type RegistryReader interface {
	ReadVersionFiles(name, version string) ([]RegistryFile, error)
}

// RegistryFile is one file stored under a registry package version.
type RegistryFile struct {
	RelPath string
	Content []byte
}

// Options configures one Install call.
type Options struct {
	WorkspaceRoot string
	Reader        RegistryReader
	Conflict      ConflictStrategy
	Prompter      prompt.Prompter
	DryRun        bool
}

// PlannedWrite is one (path, would-change) pair the installer computed,
// surfaced for --dry-run reporting.
type PlannedWrite struct {
	Path    string
	Changed bool
	Skipped bool
}

// Install materializes every resolved package in resolved (in resolver
// output order) into the workspace, returning the planned/applied writes.
func Install(opts Options, resolved []resolver.ResolvedPackage) ([]PlannedWrite, error) {
	lock, err := workspace.AcquireLock(opts.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	var all []PlannedWrite
	for _, rp := range resolved {
		writes, err := installOne(opts, rp)
		if err != nil {
			return nil, err
		}
		all = append(all, writes...)
	}
	return all, nil
}

func installOne(opts Options, rp resolver.ResolvedPackage) ([]PlannedWrite, error) {
	files, err := opts.Reader.ReadVersionFiles(rp.Name, rp.Version)
	if err != nil {
		return nil, err
	}

	fileLevel := map[string][]string{}
	var writes []PlannedWrite

	// Overrides are collected in a pass separate from materialization so
	// an override's lexical position relative to its base file (e.g.
	// "style.claude.yml" sorting before "style.md", but "style.qwen.yml"
	// sorting after it) never determines whether it gets applied.
	overrides := map[string]map[string]map[string]interface{}{} // universal registryPath -> platformID -> override
	for _, f := range files {
		if !isOverrideFile(f.RelPath) {
			continue
		}
		universalKey, platformID, doc, err := parseOverrideFile(f)
		if err != nil {
			return nil, err
		}
		if overrides[universalKey] == nil {
			overrides[universalKey] = map[string]map[string]interface{}{}
		}
		overrides[universalKey][platformID] = doc
	}

	for _, f := range files {
		if f.RelPath == "package.yml" || isOverrideFile(f.RelPath) {
			continue
		}
		switch {
		case strings.HasPrefix(f.RelPath, "ai/"):
			targetWrites, targets, err := installAIFile(opts, rp.Name, f)
			if err != nil {
				return nil, err
			}
			writes = append(writes, targetWrites...)
			fileLevel[f.RelPath] = targets

		case f.RelPath == "AGENTS.md":
			targetWrites, targets, err := installRootSection(opts, rp.Name, string(f.Content))
			if err != nil {
				return nil, err
			}
			writes = append(writes, targetWrites...)
			if len(targets) > 0 {
				fileLevel[f.RelPath] = targets
			}

		default:
			targetWrites, targets, err := installSubdirFile(opts, f, overrides)
			if err != nil {
				return nil, err
			}
			writes = append(writes, targetWrites...)
			if len(targets) > 0 {
				fileLevel[f.RelPath] = targets
			}
		}
	}

	if !opts.DryRun {
		prior, err := loadPriorIndex(opts.WorkspaceRoot, rp.Name)
		if err != nil {
			return nil, err
		}
		wsHash := pkgversion.WorkspaceHash(opts.WorkspaceRoot)
		rec := pkgindex.DirectoryCollapsingMode(prior, wsHash, rp.Version, fileLevel, opts.WorkspaceRoot)
		if err := writeIndex(opts.WorkspaceRoot, rp.Name, rec); err != nil {
			return nil, err
		}
	}

	return writes, nil
}

func installAIFile(opts Options, name string, f RegistryFile) ([]PlannedWrite, []string, error) {
	target := filepath.Join(regpath.WorkspacePackageDir(opts.WorkspaceRoot, name), filepath.FromSlash(f.RelPath))
	w, err := writeWithPolicy(opts, target, f.Content)
	if err != nil {
		return nil, nil, err
	}
	return []PlannedWrite{w}, []string{target}, nil
}

func installRootSection(opts Options, name, body string) ([]PlannedWrite, []string, error) {
	var writes []PlannedWrite
	var targets []string
	seen := map[string]bool{}

	for _, def := range pathmap.DetectedPlatforms(regpath.Exists, opts.WorkspaceRoot) {
		if def.RootFile == "" || seen[def.RootFile] {
			continue
		}
		seen[def.RootFile] = true

		path := filepath.Join(opts.WorkspaceRoot, def.RootFile)
		existing, err := readOrEmpty(path)
		if err != nil {
			return nil, nil, err
		}
		updated := markers.UpsertSection(existing, name, body)
		if updated == existing {
			writes = append(writes, PlannedWrite{Path: path, Changed: false})
			targets = append(targets, path)
			continue
		}
		if opts.DryRun {
			writes = append(writes, PlannedWrite{Path: path, Changed: true})
			targets = append(targets, path)
			continue
		}
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			return nil, nil, opkgerr.Wrap(err, opkgerr.Filesystem, "write root file "+def.RootFile)
		}
		writes = append(writes, PlannedWrite{Path: path, Changed: true})
		targets = append(targets, path)
	}
	return writes, targets, nil
}

func installSubdirFile(opts Options, f RegistryFile, overrides map[string]map[string]map[string]interface{}) ([]PlannedWrite, []string, error) {
	slash := strings.Index(f.RelPath, "/")
	if slash < 0 {
		return nil, nil, nil
	}
	subdir := platform.UniversalSubdir(f.RelPath[:slash])
	rel := f.RelPath[slash+1:]

	targetsList, err := pathmap.ResolveInstallTargets(regpath.Exists, opts.WorkspaceRoot, subdir, rel)
	if err != nil {
		return nil, nil, err
	}

	var writes []PlannedWrite
	var targets []string
	for _, tgt := range targetsList {
		content := f.Content
		if byPlatform, ok := overrides[f.RelPath]; ok {
			if override, ok := byPlatform[string(tgt.Platform)]; ok {
				content = applyOverride(content, override)
			}
		}
		if !opts.DryRun {
			if err := os.MkdirAll(tgt.AbsDir, 0o755); err != nil {
				return nil, nil, opkgerr.Wrap(err, opkgerr.Filesystem, "create "+tgt.AbsDir)
			}
		}
		w, err := writeWithPolicy(opts, tgt.AbsFile, content)
		if err != nil {
			return nil, nil, err
		}
		writes = append(writes, w)
		targets = append(targets, tgt.AbsFile)
	}
	return writes, targets, nil
}

// applyOverride is a minimal textual merge: for now, platform overrides
// only ever carry front-matter metadata that does not alter the body text
// materialized to disk (the canonical on-disk representation has no
// per-platform body variance defined by spec §4.4 step 7), so the body is
// passed through unchanged. The override document is retained for callers
// that need it (e.g. a future YAML-emitting platform writer).
func applyOverride(content []byte, _ map[string]interface{}) []byte {
	return content
}

func writeWithPolicy(opts Options, target string, content []byte) (PlannedWrite, error) {
	existing, err := os.ReadFile(target)
	if err == nil && string(existing) == string(content) {
		return PlannedWrite{Path: target, Changed: false}, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return PlannedWrite{}, opkgerr.Wrap(err, opkgerr.Filesystem, "read "+target)
	}

	exists := err == nil
	if exists {
		switch opts.Conflict {
		case Keep:
			return PlannedWrite{Path: target, Changed: false, Skipped: true}, nil
		case Ask:
			if opts.Prompter != nil {
				choice, err := opts.Prompter.Choose(context.Background(), "Workspace file differs from the resolved package: "+target, []string{"keep", "overwrite"})
				if err != nil {
					return PlannedWrite{}, err
				}
				if choice == "keep" {
					return PlannedWrite{Path: target, Changed: false, Skipped: true}, nil
				}
			}
		}
	}

	if opts.DryRun {
		return PlannedWrite{Path: target, Changed: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return PlannedWrite{}, opkgerr.Wrap(err, opkgerr.Filesystem, "create "+filepath.Dir(target))
	}
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return PlannedWrite{}, opkgerr.Wrap(err, opkgerr.Filesystem, "write "+target)
	}
	return PlannedWrite{Path: target, Changed: true}, nil
}

func isOverrideFile(relPath string) bool {
	if !strings.HasSuffix(relPath, ".yml") {
		return false
	}
	withoutExt := strings.TrimSuffix(relPath, ".yml")
	lastDot := strings.LastIndex(withoutExt, ".")
	if lastDot < 0 {
		return false
	}
	_, ok := platform.Get(platform.ID(withoutExt[lastDot+1:]))
	return ok
}

func parseOverrideFile(f RegistryFile) (universalKey, platformID string, doc map[string]interface{}, err error) {
	withoutExt := strings.TrimSuffix(f.RelPath, ".yml")
	lastDot := strings.LastIndex(withoutExt, ".")
	platformID = withoutExt[lastDot+1:]
	universalKey = withoutExt[:lastDot] + ".md"

	doc = map[string]interface{}{}
	if err := unmarshalYAML(f.Content, &doc); err != nil {
		return "", "", nil, err
	}
	return universalKey, platformID, doc, nil
}

func readOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", opkgerr.Wrap(err, opkgerr.Filesystem, "read "+path)
	}
	return string(data), nil
}

func loadPriorIndex(workspaceRoot, name string) (*manifest.PackageIndexRecord, error) {
	path := regpath.WorkspacePackageIndex(workspaceRoot, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, opkgerr.Wrap(err, opkgerr.Filesystem, "read package.index.yml")
	}
	return manifest.UnmarshalIndex(data)
}

func writeIndex(workspaceRoot, name string, rec *manifest.PackageIndexRecord) error {
	data, err := manifest.MarshalIndex(rec)
	if err != nil {
		return err
	}
	path := regpath.WorkspacePackageIndex(workspaceRoot, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return opkgerr.Wrap(err, opkgerr.Filesystem, "create package directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return opkgerr.Wrap(err, opkgerr.Filesystem, "write package.index.yml")
	}
	return nil
}
