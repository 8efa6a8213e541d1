// Package workspace implements the Workspace Roots component (spec §4.11
// C14): package-name normalization/validation, the workspace-root
// package.yml lifecycle, and the advisory lock resolving Open Question (c)
// from SPEC_FULL.md §5.
package workspace

import (
	"regexp"
	"strings"

	"github.com/openpackage/opkg/internal/opkgerr"
)

var unscopedNameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
var scopedNameRE = regexp.MustCompile(`^@[a-z0-9][a-z0-9-]*/[a-z0-9][a-z0-9-]*$`)

// NormalizeName lowercases and trims name, per spec §3.1 PackageName
// normalization.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName normalizes and validates name against the unscoped or
// scoped package-name grammar.
func ValidateName(name string) (string, error) {
	n := NormalizeName(name)
	if n == "" {
		return "", opkgerr.New(opkgerr.Validation, "package name must not be empty")
	}
	if unscopedNameRE.MatchString(n) || scopedNameRE.MatchString(n) {
		return n, nil
	}
	return "", opkgerr.New(opkgerr.Validation, "invalid package name: "+name)
}

// NamesEqual reports whether two package names are equivalent under
// normalization.
func NamesEqual(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
