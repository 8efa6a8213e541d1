// Package pkgversion implements the Version Model (spec §4.2 C4): semver
// parsing/compare, WIP-version synthesis tagged with a workspace hash, and
// the version-selection table (spec Table 1). Grounded on
// github.com/Masterminds/semver/v3, the same family the teacher imports
// (github.com/Masterminds/semver) and that SeleniaProject-Orizon pulls
// directly as v3.
package pkgversion

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/openpackage/opkg/internal/opkgerr"
)

// wipPrereleaseRE matches the "<ws-hash>.<counter36>" WIP prerelease shape:
// a 6-8 char lowercase alphanumeric hash, a dot, then a base-36 counter.
var wipPrereleaseRE = regexp.MustCompile(`^[a-z0-9]{6,8}\.[a-z0-9]+$`)

// threePartVersionRE matches exactly "MAJOR.MINOR.PATCH", optionally
// followed by a prerelease/build suffix -- anything with fewer or more
// dot-separated numeric core components ("1.2", "1.2.3.4") fails it.
var threePartVersionRE = regexp.MustCompile(`^\d+\.\d+\.\d+([-+].*)?$`)

func isThreePartVersion(v string) bool {
	return threePartVersionRE.MatchString(v)
}

// DefaultVersion is the version a brand-new package starts at (spec §4.2).
const DefaultVersion = "0.1.0"

// BumpKind is one of the three semver bump kinds.
type BumpKind string

const (
	Patch BumpKind = "patch"
	Minor BumpKind = "minor"
	Major BumpKind = "major"
)

// wsHashLen is the length, in characters, of a synthesized workspace-hash
// token: spec §3.1 calls for "a deterministic 6-8 char lowercase token".
const wsHashLen = 8

// WorkspaceHash derives the deterministic workspace-hash token from an
// absolute workspace path.
func WorkspaceHash(absWorkspacePath string) string {
	sum := sha256.Sum256([]byte(absWorkspacePath))
	enc := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:]))
	// base32 alphabet is already [a-z2-7]; trim to the configured length.
	if len(enc) > wsHashLen {
		enc = enc[:wsHashLen]
	}
	return enc
}

// IsLocalVersion reports whether v carries a workspace-hash-style
// prerelease, i.e. it is a WIP version.
func IsLocalVersion(v string) bool {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return wipPrereleaseRE.MatchString(sv.Prerelease())
}

// LocalVersionWorkspaceHash returns the workspace-hash token embedded in a
// WIP version's prerelease, and whether v is in fact a WIP version.
func LocalVersionWorkspaceHash(v string) (string, bool) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return "", false
	}
	pre := sv.Prerelease()
	if !wipPrereleaseRE.MatchString(pre) {
		return "", false
	}
	dot := strings.Index(pre, ".")
	if dot < 0 {
		return "", false
	}
	return pre[:dot], true
}

// ExtractBaseVersion strips prerelease and build metadata, returning
// "MAJOR.MINOR.PATCH".
func ExtractBaseVersion(v string) (string, error) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return "", opkgerr.Wrap(err, opkgerr.Validation, "invalid version: "+v)
	}
	return fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch()), nil
}

// CalculateBumpedVersion applies a standard semver bump to base, zeroing
// lower components on non-patch bumps. base that isn't exactly
// "MAJOR.MINOR.PATCH" (too few numeric components, e.g. "1.2", or too many,
// e.g. "1.2.3.4") is returned unchanged -- spec §8's documented boundary
// case, rather than letting semver.NewVersion silently coerce it first.
func CalculateBumpedVersion(base string, kind BumpKind) (string, error) {
	if !isThreePartVersion(base) {
		return base, nil
	}

	sv, err := semver.NewVersion(base)
	if err != nil {
		return "", opkgerr.Wrap(err, opkgerr.Validation, "invalid version: "+base)
	}

	switch kind {
	case Patch:
		return fmt.Sprintf("%d.%d.%d", sv.Major(), sv.Minor(), sv.Patch()+1), nil
	case Minor:
		return fmt.Sprintf("%d.%d.0", sv.Major(), sv.Minor()+1), nil
	case Major:
		return fmt.Sprintf("%d.0.0", sv.Major()+1), nil
	default:
		return "", opkgerr.New(opkgerr.Validation, "invalid bump kind: "+string(kind))
	}
}

// counterToBase36 renders counter as a lowercase base-36 string.
func counterToBase36(counter int) string {
	return strings.ToLower(strconv.FormatInt(int64(counter), 36))
}

// GenerateLocalVersion appends "-<ws-hash>.<counter36>" to base, forming a
// WIP version.
func GenerateLocalVersion(base, workspaceHash string, counter int) string {
	return fmt.Sprintf("%s-%s.%s", base, workspaceHash, counterToBase36(counter))
}

// IsExactVersion reports whether v is an exact, fully-specified version
// literal (no range operators).
func IsExactVersion(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if strings.ContainsAny(v, "^~<>=*xX ") {
		return false
	}
	_, err := semver.NewVersion(v)
	return err == nil
}

// SelectionInput is the input to the version-selection table (spec Table
// 1).
type SelectionInput struct {
	Explicit      string // explicit version, if any
	VersionType   string // "stable" or ""
	Bump          BumpKind
	HasBump       bool
	Current       string // current version, "" if absent
	HasCurrent    bool
	WorkspaceHash string
	Counter       int
}

// SelectTargetVersion implements spec Table 1, first match wins.
func SelectTargetVersion(in SelectionInput) (string, error) {
	if in.Explicit != "" {
		return in.Explicit, nil
	}

	if !in.HasCurrent {
		return GenerateLocalVersion(DefaultVersion, in.WorkspaceHash, in.Counter), nil
	}

	if in.HasBump {
		base, err := ExtractBaseVersion(in.Current)
		if err != nil {
			return "", err
		}
		bumped, err := CalculateBumpedVersion(base, in.Bump)
		if err != nil {
			return "", err
		}
		if in.VersionType == "stable" {
			return bumped, nil
		}
		return GenerateLocalVersion(bumped, in.WorkspaceHash, in.Counter), nil
	}

	if in.VersionType == "stable" {
		if IsLocalVersion(in.Current) {
			return ExtractBaseVersion(in.Current)
		}
		return CalculateBumpedVersion(in.Current, Patch)
	}

	if IsLocalVersion(in.Current) {
		base, err := ExtractBaseVersion(in.Current)
		if err != nil {
			return "", err
		}
		return GenerateLocalVersion(base, in.WorkspaceHash, in.Counter), nil
	}

	bumped, err := CalculateBumpedVersion(in.Current, Patch)
	if err != nil {
		return "", err
	}
	return GenerateLocalVersion(bumped, in.WorkspaceHash, in.Counter), nil
}

// Compare returns -1, 0, 1 comparing two version strings, consistent with
// semver precedence rules.
func Compare(a, b string) (int, error) {
	sa, err := semver.NewVersion(a)
	if err != nil {
		return 0, opkgerr.Wrap(err, opkgerr.Validation, "invalid version: "+a)
	}
	sb, err := semver.NewVersion(b)
	if err != nil {
		return 0, opkgerr.Wrap(err, opkgerr.Validation, "invalid version: "+b)
	}
	return sa.Compare(sb), nil
}

// SatisfiesAll reports whether v satisfies every range in ranges.
func SatisfiesAll(v string, ranges []string) (bool, error) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return false, opkgerr.Wrap(err, opkgerr.Validation, "invalid version: "+v)
	}
	for _, r := range ranges {
		c, err := semver.NewConstraint(r)
		if err != nil {
			return false, opkgerr.Wrap(err, opkgerr.Validation, "invalid range: "+r)
		}
		if !c.Check(sv) {
			return false, nil
		}
	}
	return true, nil
}

// HasPrereleaseIntent reports whether any range literal explicitly names a
// prerelease (contains "-"), i.e. explicit prerelease intent per spec §4.7
// step 5 and the Open Question (a) resolution in SPEC_FULL.md §5.
func HasPrereleaseIntent(ranges []string) bool {
	for _, r := range ranges {
		if strings.Contains(r, "-") {
			return true
		}
	}
	return false
}

// CaretRange returns the "^<base>" range for base, e.g. for dependency
// injection in Save step 4.
func CaretRange(base string) string {
	return "^" + base
}

// SortDescending sorts versions (semver strings) in descending precedence
// order, returning a new slice. Invalid versions sort last.
func SortDescending(versions []string) []string {
	out := append([]string{}, versions...)
	// simple insertion sort: these lists are small (per-package version
	// counts), and it keeps the comparison/error handling explicit.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			less, ok := lessDescending(out[j-1], out[j])
			if ok && !less {
				out[j-1], out[j] = out[j], out[j-1]
				continue
			}
			break
		}
	}
	return out
}

func lessDescending(a, b string) (bool, bool) {
	sa, errA := semver.NewVersion(a)
	sb, errB := semver.NewVersion(b)
	switch {
	case errB != nil:
		return true, true // an invalid b already sits after a
	case errA != nil:
		return false, true // an invalid a moves after a valid b
	}
	return sa.Compare(sb) >= 0, true
}
