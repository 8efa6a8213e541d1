// Package save implements the Save Pipeline (spec §4.4 C8): the 12-step
// algorithm that snapshots a workspace-local package version into the
// per-user registry and links it into the current workspace. It composes
// discovery, arbitration, the marker engine, the sync engine, the package
// index, and the workspace/version/manifest leaf packages.
package save

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/openpackage/opkg/internal/arbitration"
	"github.com/openpackage/opkg/internal/discovery"
	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/markers"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pkgindex"
	"github.com/openpackage/opkg/internal/pkgversion"
	"github.com/openpackage/opkg/internal/regpath"
	"github.com/openpackage/opkg/internal/sync"
	"github.com/openpackage/opkg/internal/workspace"
)

// Options is the input to Run, mirroring spec §4.4 "Inputs".
type Options struct {
	WorkspaceRoot string
	HomeDir       string
	SourceDir     string // directory override; defaults to WorkspaceRoot

	Name     string
	Explicit string // explicit target version, if any
	Stable   bool   // literal "stable" positional (spec §6 CLI surface)
	Bump     pkgversion.BumpKind
	HasBump  bool
	Force    bool

	Rename string // "newName" or "newName@version"

	Include    []string
	IncludeDev []string

	SkipProjectLink bool

	Chooser arbitration.Chooser
	Logger  *slog.Logger
}

// Result is Run's output.
type Result struct {
	Name        string
	Version     string
	RegistryDir string
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Run executes the Save Pipeline for one package.
func Run(opts Options) (*Result, error) {
	if opts.SourceDir == "" {
		opts.SourceDir = opts.WorkspaceRoot
	}

	lock, err := workspace.AcquireLock(opts.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// Step 1: pre-save includes.
	for _, inc := range opts.Include {
		if _, err := runInclude(opts, inc, false); err != nil {
			return nil, err
		}
	}
	for _, inc := range opts.IncludeDev {
		if _, err := runInclude(opts, inc, true); err != nil {
			return nil, err
		}
	}

	// Step 2: name resolution and root check.
	name, err := workspace.ValidateName(opts.Name)
	if err != nil {
		return nil, err
	}

	if opts.Rename != "" {
		name, err = applyRename(opts, name)
		if err != nil {
			return nil, err
		}
	}

	isRoot, err := workspace.IsRootPackage(opts.WorkspaceRoot, name)
	if err != nil {
		return nil, err
	}

	opts.logger().Info("save: resolved package name", "name", name, "is_root", isRoot)

	// Step 3: manifest bootstrap.
	if err := workspace.EnsureTree(opts.WorkspaceRoot); err != nil {
		return nil, err
	}

	var pkg *manifest.PackageYml
	var hasCurrent bool
	if isRoot {
		pkg, hasCurrent, err = workspace.LoadRootManifest(opts.WorkspaceRoot)
	} else {
		pkg, hasCurrent, err = workspace.LoadPackageManifest(opts.WorkspaceRoot, name)
	}
	if err != nil {
		return nil, err
	}
	if !hasCurrent {
		pkg = &manifest.PackageYml{Name: name, Version: pkgversion.DefaultVersion}
	}

	wsHash := pkgversion.WorkspaceHash(opts.WorkspaceRoot)
	counter, err := nextWIPCounter(opts.HomeDir, name, wsHash)
	if err != nil {
		return nil, err
	}

	versionType := ""
	if opts.Stable {
		versionType = "stable"
	}
	sel := pkgversion.SelectionInput{
		Explicit:      opts.Explicit,
		VersionType:   versionType,
		Bump:          opts.Bump,
		HasBump:       opts.HasBump,
		Current:       pkg.Version,
		HasCurrent:    hasCurrent && pkg.Version != "",
		WorkspaceHash: wsHash,
		Counter:       counter,
	}
	targetVersion, err := pkgversion.SelectTargetVersion(sel)
	if err != nil {
		return nil, err
	}

	versionDir := regpath.PackageVersionDir(opts.HomeDir, name, targetVersion)
	if regpath.Exists(versionDir) && !opts.Force && !pkgversion.IsLocalVersion(targetVersion) {
		return nil, opkgerr.New(opkgerr.VersionExists, "version already exists: "+name+"@"+targetVersion)
	}

	pkg.Name = name
	pkg.Version = targetVersion

	// Step 4: dependency injection.
	for _, inc := range opts.Include {
		if err := injectDependency(opts, pkg, inc, false); err != nil {
			return nil, err
		}
	}
	for _, inc := range opts.IncludeDev {
		if err := injectDependency(opts, pkg, inc, true); err != nil {
			return nil, err
		}
	}

	// Step 5: discovery.
	files, err := discovery.DiscoverAll(opts.SourceDir, opts.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	// Step 6 + 7: partition, arbitrate, materialize.
	registryFiles, rootSection, err := arbitrateAndMaterialize(opts, name, targetVersion, files)
	if err != nil {
		return nil, err
	}

	manifestBytes, err := manifest.Marshal(pkg)
	if err != nil {
		return nil, err
	}
	registryFiles = append(registryFiles, FileWrite{RelPath: "package.yml", Content: manifestBytes})

	// Step 8: registry write.
	if err := WriteVersionAtomically(opts.HomeDir, name, targetVersion, registryFiles); err != nil {
		return nil, err
	}

	// Step 9: root marker sync.
	if rootSection != "" {
		if _, err := sync.SyncRootSection(opts.WorkspaceRoot, name, rootSection); err != nil {
			return nil, err
		}
	}

	// Step 10: index update, exact-path mode.
	if err := writeExactPathIndex(opts.WorkspaceRoot, name, wsHash, targetVersion, registryFiles); err != nil {
		return nil, err
	}
	if !isRoot {
		if err := workspace.SavePackageManifest(opts.WorkspaceRoot, name, pkg); err != nil {
			return nil, err
		}
	} else {
		if err := workspace.SaveRootManifest(opts.WorkspaceRoot, pkg); err != nil {
			return nil, err
		}
	}

	// Step 11: workspace linking.
	if !opts.SkipProjectLink && !isRoot {
		covered, err := workspace.IsPackageTransitivelyCovered(opts.WorkspaceRoot, name)
		if err != nil {
			return nil, err
		}
		if !covered {
			if err := workspace.AddPackageToYml(opts.WorkspaceRoot, name, targetVersion, false); err != nil {
				return nil, err
			}
		}
	}

	// Step 12: WIP cleanup.
	if err := pruneWIPVersions(opts.HomeDir, name, wsHash, targetVersion); err != nil {
		return nil, err
	}

	return &Result{Name: name, Version: targetVersion, RegistryDir: versionDir}, nil
}

func runInclude(opts Options, inc string, isDev bool) (*Result, error) {
	sub := Options{
		WorkspaceRoot:   opts.WorkspaceRoot,
		HomeDir:         opts.HomeDir,
		SourceDir:       includeSourceDir(opts.WorkspaceRoot, inc),
		Name:            inc,
		Stable:          opts.Stable,
		Chooser:         opts.Chooser,
		SkipProjectLink: true,
		Logger:          opts.Logger,
	}
	return Run(sub)
}

func includeSourceDir(workspaceRoot, name string) string {
	candidate := filepath.Join(workspaceRoot, name)
	if regpath.Exists(candidate) {
		return candidate
	}
	return workspaceRoot
}

func injectDependency(opts Options, pkg *manifest.PackageYml, inc string, isDev bool) error {
	version, ok, err := installedOrLatestVersion(opts, inc)
	if err != nil {
		return err
	}
	if !ok {
		return opkgerr.New(opkgerr.PackageNotFound, "include dependency not found locally: "+inc)
	}
	base, err := pkgversion.ExtractBaseVersion(version)
	if err != nil {
		return err
	}
	pkg.UpsertDependency(inc, pkgversion.CaretRange(base))
	if isDev {
		pkg.MoveToDev(inc)
	}
	return nil
}

func installedOrLatestVersion(opts Options, name string) (string, bool, error) {
	if installed, ok, err := workspace.LoadPackageManifest(opts.WorkspaceRoot, name); err != nil {
		return "", false, err
	} else if ok {
		return installed.Version, true, nil
	}

	versions, err := regpath.ListVersions(opts.HomeDir, name)
	if err != nil {
		return "", false, err
	}
	var stable []string
	for _, v := range versions {
		if !pkgversion.IsLocalVersion(v) {
			stable = append(stable, v)
		}
	}
	sorted := pkgversion.SortDescending(stable)
	if len(sorted) == 0 {
		return "", false, nil
	}
	return sorted[0], true, nil
}

// applyRename implements spec §4.11: validate the new name, move the
// workspace's installed copy, delete this workspace's registry WIP
// versions of the old name, and continue the save under the new name.
func applyRename(opts Options, oldName string) (string, error) {
	raw := opts.Rename
	newName := raw
	if at := strings.LastIndex(raw, "@"); at > 0 {
		newName = raw[:at]
	}
	newName, err := workspace.ValidateName(newName)
	if err != nil {
		return "", err
	}

	if err := workspace.Rename(opts.WorkspaceRoot, oldName, newName); err != nil {
		return "", err
	}

	wsHash := pkgversion.WorkspaceHash(opts.WorkspaceRoot)
	versions, err := regpath.ListVersions(opts.HomeDir, oldName)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if hash, ok := pkgversion.LocalVersionWorkspaceHash(v); ok && hash == wsHash {
			if err := DeleteVersion(opts.HomeDir, oldName, v); err != nil {
				return "", err
			}
		}
	}

	return newName, nil
}

// nextWIPCounter finds the highest WIP counter already used by this
// workspace hash for name and returns one past it.
func nextWIPCounter(homeDir, name, wsHash string) (int, error) {
	versions, err := regpath.ListVersions(homeDir, name)
	if err != nil {
		return 0, err
	}
	max := -1
	for _, v := range versions {
		hash, ok := pkgversion.LocalVersionWorkspaceHash(v)
		if !ok || hash != wsHash {
			continue
		}
		sv, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		pre := sv.Prerelease()
		dot := strings.LastIndex(pre, ".")
		if dot < 0 {
			continue
		}
		n, err := strconv.ParseInt(pre[dot+1:], 36, 64)
		if err != nil {
			continue
		}
		if int(n) > max {
			max = int(n)
		}
	}
	return max + 1, nil
}

// pruneWIPVersions deletes every WIP registry version of name tagged with
// wsHash other than keepVersion (spec §4.4 step 12).
func pruneWIPVersions(homeDir, name, wsHash, keepVersion string) error {
	versions, err := regpath.ListVersions(homeDir, name)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v == keepVersion {
			continue
		}
		if hash, ok := pkgversion.LocalVersionWorkspaceHash(v); ok && hash == wsHash {
			if err := DeleteVersion(homeDir, name, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeExactPathIndex builds and writes package.index.yml in exact-path
// mode (spec §4.9, §4.4 step 10).
func writeExactPathIndex(workspaceRoot, name, wsHash, version string, files []FileWrite) error {
	installed := map[string][]string{}
	for _, f := range files {
		if f.RelPath == "package.yml" {
			continue
		}
		targets, err := installedTargetsFor(workspaceRoot, name, f.RelPath)
		if err != nil {
			return err
		}
		if len(targets) > 0 {
			installed[f.RelPath] = targets
		}
	}

	rec := pkgindex.ExactPathMode(wsHash, version, installed)
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
