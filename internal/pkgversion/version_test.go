package pkgversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBaseVersion_RoundTripsGenerateLocalVersion(t *testing.T) {
	t.Parallel()

	local := GenerateLocalVersion("1.2.3", "abcd1234", 37)
	assert.Equal(t, "1.2.3-abcd1234.11", local) // 37 base36 == "11"

	base, err := ExtractBaseVersion(local)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", base)
}

func TestIsLocalVersion(t *testing.T) {
	t.Parallel()

	assert.True(t, IsLocalVersion("0.1.0-abcd1234.1"))
	assert.False(t, IsLocalVersion("0.1.0"))
	assert.False(t, IsLocalVersion("0.1.0-beta.1")) // not WIP-shaped: "beta" is shorter than the 6-8 char workspace hash
}

func TestCalculateBumpedVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		base string
		kind BumpKind
		want string
	}{
		{"1.2.3", Patch, "1.2.4"},
		{"1.2.3", Minor, "1.3.0"},
		{"1.2.3", Major, "2.0.0"},
	}
	for _, c := range cases {
		got, err := CalculateBumpedVersion(c.base, c.kind)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

// TestCalculateBumpedVersion_UnderOrOverSpecifiedIsNoOp pins spec §8's
// boundary case literally: a base with fewer or more than three
// dot-separated numeric components never gets bumped, whatever the kind.
func TestCalculateBumpedVersion_UnderOrOverSpecifiedIsNoOp(t *testing.T) {
	t.Parallel()

	got, err := CalculateBumpedVersion("1.2", Patch)
	require.NoError(t, err)
	assert.Equal(t, "1.2", got)

	got, err = CalculateBumpedVersion("1.2.3.4", Patch)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", got)
}

func TestIsExactVersion(t *testing.T) {
	t.Parallel()

	assert.True(t, IsExactVersion("1.2.3"))
	assert.False(t, IsExactVersion("^1.2.3"))
	assert.False(t, IsExactVersion("1.2.x"))
	assert.False(t, IsExactVersion(">=1.2"))
}

func TestSelectTargetVersion_Table(t *testing.T) {
	t.Parallel()

	// explicit wins regardless of everything else.
	v, err := SelectTargetVersion(SelectionInput{Explicit: "9.9.9", HasCurrent: true, Current: "1.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", v)

	// current absent -> WIP DefaultVersion.
	v, err = SelectTargetVersion(SelectionInput{WorkspaceHash: "hash1234", Counter: 0})
	require.NoError(t, err)
	assert.Equal(t, "0.1.0-hash1234.0", v)

	// bump + stable.
	v, err = SelectTargetVersion(SelectionInput{HasCurrent: true, Current: "1.2.3", HasBump: true, Bump: Minor, VersionType: "stable"})
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", v)

	// bump, not stable -> WIP of bumped.
	v, err = SelectTargetVersion(SelectionInput{HasCurrent: true, Current: "1.2.3", HasBump: true, Bump: Patch, WorkspaceHash: "hash1234", Counter: 2})
	require.NoError(t, err)
	assert.Equal(t, "1.2.4-hash1234.2", v)

	// stable requested, current is WIP -> extract base.
	v, err = SelectTargetVersion(SelectionInput{HasCurrent: true, Current: "1.2.3-hash1234.5", VersionType: "stable"})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)

	// stable requested, current stable -> patch bump.
	v, err = SelectTargetVersion(SelectionInput{HasCurrent: true, Current: "1.2.3", VersionType: "stable"})
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", v)

	// current is WIP, no bump/stable -> regenerate WIP off same base.
	v, err = SelectTargetVersion(SelectionInput{HasCurrent: true, Current: "1.2.3-hash1234.5", WorkspaceHash: "newhash1", Counter: 6})
	require.NoError(t, err)
	assert.Equal(t, "1.2.3-newhash1.6", v)

	// else: stable without type -> patch-bump then WIP.
	v, err = SelectTargetVersion(SelectionInput{HasCurrent: true, Current: "1.2.3", WorkspaceHash: "hash1234", Counter: 0})
	require.NoError(t, err)
	assert.Equal(t, "1.2.4-hash1234.0", v)
}

func TestHasPrereleaseIntent(t *testing.T) {
	t.Parallel()

	assert.True(t, HasPrereleaseIntent([]string{"^1.0.0", "1.2.3-beta.1"}))
	assert.False(t, HasPrereleaseIntent([]string{"^1.0.0", "~1.2.0"}))
}

func TestSortDescending(t *testing.T) {
	t.Parallel()

	got := SortDescending([]string{"1.0.0", "2.0.0", "1.5.0"})
	assert.Equal(t, []string{"2.0.0", "1.5.0", "1.0.0"}, got)
}
