// Package resolver implements the Dependency Resolver (spec §4.7 C10): a
// recursive constraint-intersecting resolution with cycle detection and
// conflict arbitration, grounded in shape on the pack's dependency-solver
// examples (other_examples/golang-dep gps solve test, other_examples/
// santosr2-uptool engine types, other_examples/bennypowers-mappa local
// resolution).
package resolver

import (
	"fmt"
	"strings"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pkgversion"
)

// Mode is the resolution mode (spec §4.7).
type Mode string

const (
	LocalOnly     Mode = "local-only"
	RemotePrimary Mode = "remote-primary"
	Default       Mode = "default"
)

// ConflictResolution is the outcome recorded on a ResolvedPackage when it
// is reached more than once during resolution.
type ConflictResolution string

const (
	Kept        ConflictResolution = "kept"
	Overwritten ConflictResolution = "overwritten"
	Skipped     ConflictResolution = "skipped"
)

// ResolvedPackage is one node of the resolver's output (spec §3.1).
type ResolvedPackage struct {
	Name               string
	Version            string
	IsRoot             bool
	RequiredRange      string
	ConflictResolution ConflictResolution
	Manifest           *manifest.PackageYml
}

// Loader is the narrow interface the resolver uses to read package
// metadata; implementations back it with the registry and/or workspace
// filesystem (kept separate so the resolver has zero direct I/O, matching
// the teacher's habit of injecting file-system access as an interface at
// package boundaries).
type Loader interface {
	// AvailableVersions returns every version known locally for name.
	AvailableVersions(name string) ([]string, error)
	// Load returns the manifest for name@version.
	Load(name, version string) (*manifest.PackageYml, error)
	// InstalledVersion returns the version of name already recorded as
	// installed in the current workspace (from package.yml or
	// package.index.yml), or ("", false) if not installed.
	InstalledVersion(name string) (string, bool, error)
}

// Overwriter decides, for an already-resolved name at version v' that a new
// candidate current > v' would overwrite, whether to proceed. The
// interactive implementation prompts; the non-interactive one defaults to
// yes (spec §4.7 step 8 "forced-default-yes in non-interactive mode").
type Overwriter interface {
	ConfirmOverwrite(name, existing, candidate string) (bool, error)
}

// AlwaysOverwrite is the non-interactive default.
type AlwaysOverwrite struct{}

func (AlwaysOverwrite) ConfirmOverwrite(string, string, string) (bool, error) { return true, nil }

// Result is the resolver's full output (spec §4.7 "Output").
type Result struct {
	Resolved []ResolvedPackage // linearized, no duplicate names
	Missing  []string          // names not found locally; no remote pull is attempted in any mode
}

type state struct {
	loader     Loader
	overwriter Overwriter
	mode       Mode

	rootOverrides map[string]string // name -> explicit range from root package.yml

	visitedStack []string
	visitedSet   map[string]bool

	resolved         map[string]*ResolvedPackage
	order            []string
	requiredVersions map[string][]string
	missing          map[string]bool
}

// Resolve resolves rootName starting from rootExplicit (a version or range,
// "" if none), given globalConstraints (name -> ranges) and rootOverrides
// (the root package.yml's own declared ranges, which win outright per step
// 2). The node for rootName is recorded with IsRoot set.
func Resolve(loader Loader, overwriter Overwriter, mode Mode, rootName, rootExplicit string, rootOverrides map[string]string, globalConstraints map[string][]string, devDeps []manifest.Dependency) (*Result, error) {
	if overwriter == nil {
		overwriter = AlwaysOverwrite{}
	}
	st := &state{
		loader:           loader,
		overwriter:       overwriter,
		mode:             mode,
		rootOverrides:    rootOverrides,
		visitedSet:       map[string]bool{},
		resolved:         map[string]*ResolvedPackage{},
		requiredVersions: map[string][]string{},
		missing:          map[string]bool{},
	}
	if globalConstraints == nil {
		globalConstraints = map[string][]string{}
	}

	if err := st.resolveNode(rootName, rootExplicit, true, globalConstraints); err != nil {
		return nil, err
	}

	// Root-only dev-packages (spec §3.1: "No transitive dev-packages").
	for _, dep := range devDeps {
		if err := st.resolveNode(dep.Name, dep.Version, false, globalConstraints); err != nil {
			return nil, err
		}
	}

	out := &Result{}
	for _, name := range st.order {
		out.Resolved = append(out.Resolved, *st.resolved[name])
	}
	for name := range st.missing {
		out.Missing = append(out.Missing, name)
	}
	return out, nil
}

func (st *state) resolveNode(name, parentRange string, isRoot bool, globalConstraints map[string][]string) error {
	for _, v := range st.visitedStack {
		if v == name {
			cycle := append(append([]string{}, st.visitedStack...), name)
			return opkgerr.New(opkgerr.CircularDependency, "circular dependency: "+strings.Join(cycle, " -> ")).WithCycle(cycle)
		}
	}

	st.visitedStack = append(st.visitedStack, name)
	defer func() { st.visitedStack = st.visitedStack[:len(st.visitedStack)-1] }()

	ranges := st.gatherRanges(name, parentRange, globalConstraints)

	// Record this path's contribution so a later visit to name -- from a
	// different parent, possibly already resolved -- intersects against
	// every range required of it so far, not just its own (spec §4.7 step 2).
	if parentRange != "" {
		st.requiredVersions[name] = dedupStrings(append(st.requiredVersions[name], parentRange))
	}

	resolvedVersion, err := st.pickVersion(name, ranges)
	if err != nil {
		return err
	}
	if resolvedVersion == "" {
		st.missing[name] = true
		return nil
	}

	if existing, ok := st.resolved[name]; ok {
		cmp, err := pkgversion.Compare(resolvedVersion, existing.Version)
		if err != nil {
			return err
		}
		if cmp > 0 {
			proceed, err := st.overwriter.ConfirmOverwrite(name, existing.Version, resolvedVersion)
			if err != nil {
				return err
			}
			if !proceed {
				existing.ConflictResolution = Kept
				return nil
			}
			existing.Version = resolvedVersion
			existing.ConflictResolution = Overwritten
			return st.loadAndRecurse(name, resolvedVersion, isRoot, globalConstraints, existing)
		}
		existing.ConflictResolution = Kept
		return nil
	}

	installedVersion, installed, err := st.loader.InstalledVersion(name)
	if err != nil {
		return err
	}
	if installed {
		ok, err := pkgversion.SatisfiesAll(installedVersion, ranges)
		if err != nil {
			return err
		}
		if ok {
			rp := &ResolvedPackage{Name: name, Version: installedVersion, IsRoot: isRoot, RequiredRange: parentRange, ConflictResolution: Kept}
			st.resolved[name] = rp
			st.order = append(st.order, name)
			return nil
		}
	}

	rp := &ResolvedPackage{Name: name, Version: resolvedVersion, IsRoot: isRoot, RequiredRange: parentRange}
	st.resolved[name] = rp
	st.order = append(st.order, name)
	return st.loadAndRecurse(name, resolvedVersion, isRoot, globalConstraints, rp)
}

func (st *state) loadAndRecurse(name, version string, isRoot bool, globalConstraints map[string][]string, rp *ResolvedPackage) error {
	pkg, err := st.loader.Load(name, version)
	if err != nil {
		if opkgerr.Is(err, opkgerr.PackageNotFound) || opkgerr.Is(err, opkgerr.VersionNotFound) {
			st.missing[name] = true
			return nil
		}
		return opkgerr.Wrap(err, opkgerr.PackageNotFound, fmt.Sprintf("load %s@%s (chain: %s)", name, version, strings.Join(st.visitedStack, " -> ")))
	}
	rp.Manifest = pkg

	for _, dep := range pkg.Packages {
		if err := st.resolveNode(dep.Name, dep.Version, false, globalConstraints); err != nil {
			return err
		}
	}
	return nil
}

func (st *state) gatherRanges(name, parentRange string, globalConstraints map[string][]string) []string {
	if override, ok := st.rootOverrides[name]; ok {
		return []string{override}
	}

	var ranges []string
	if parentRange != "" {
		ranges = append(ranges, parentRange)
	}
	ranges = append(ranges, globalConstraints[name]...)
	ranges = append(ranges, st.requiredVersions[name]...)
	return dedupStrings(ranges)
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// pickVersion implements spec §4.7 steps 3-6.
func (st *state) pickVersion(name string, ranges []string) (string, error) {
	if len(ranges) == 0 {
		versions, err := st.loader.AvailableVersions(name)
		if err != nil {
			return "", err
		}
		stable := filterStable(versions, pkgversion.HasPrereleaseIntent(ranges))
		sorted := pkgversion.SortDescending(stable)
		if len(sorted) == 0 {
			return "", nil
		}
		return sorted[0], nil
	}

	if len(ranges) == 1 && pkgversion.IsExactVersion(ranges[0]) {
		return ranges[0], nil
	}

	versions, err := st.loader.AvailableVersions(name)
	if err != nil {
		return "", err
	}

	prereleaseOK := pkgversion.HasPrereleaseIntent(ranges)
	candidates := filterStable(versions, prereleaseOK)

	var satisfying []string
	for _, v := range candidates {
		ok, err := pkgversion.SatisfiesAll(v, ranges)
		if err != nil {
			return "", err
		}
		if ok {
			satisfying = append(satisfying, v)
		}
	}

	if len(satisfying) == 0 {
		return "", opkgerr.New(opkgerr.VersionConflict, "no version of "+name+" satisfies all ranges").WithConflict(ranges, versions)
	}

	sorted := pkgversion.SortDescending(satisfying)
	return sorted[0], nil
}

// filterStable keeps all versions when prereleaseOK, otherwise drops WIP
// (prerelease) versions entirely -- SPEC_FULL.md §5(a)'s resolution of Open
// Question (a): a WIP is excluded from the candidate set, not merely
// ranked lower, unless prerelease intent is explicit.
func filterStable(versions []string, prereleaseOK bool) []string {
	if prereleaseOK {
		return versions
	}
	var out []string
	for _, v := range versions {
		if !pkgversion.IsLocalVersion(v) {
			out = append(out, v)
		}
	}
	return out
}
