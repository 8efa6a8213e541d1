package arbitration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpackage/opkg/internal/discovery"
)

func TestResolve_SingleFile(t *testing.T) {
	t.Parallel()

	files := []discovery.File{{SourceDir: "ai", RegistryPath: "commands/setup.md", ContentHash: "h1"}}
	res, err := Resolve("commands/setup.md", files, true, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].IsUniversal)
}

func TestResolve_AllIdenticalHashes_PicksLatestMtimeAsUniversal(t *testing.T) {
	t.Parallel()

	now := time.Now()
	files := []discovery.File{
		{SourceDir: "claude", ContentHash: "h1", Mtime: now.Add(-time.Hour)},
		{SourceDir: "cursor", ContentHash: "h1", Mtime: now},
	}
	res, err := Resolve("commands/setup.md", files, true, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].IsUniversal)
	assert.Equal(t, "cursor", res.Outcomes[0].File.SourceDir)
}

func TestResolve_SameMtimeUniqueHashes_AllPlatformSpecific(t *testing.T) {
	t.Parallel()

	now := time.Now()
	files := []discovery.File{
		{SourceDir: "claude", ContentHash: "h1", Mtime: now},
		{SourceDir: "cursor", ContentHash: "h2", Mtime: now},
		{SourceDir: "codex", ContentHash: "h3", Mtime: now},
	}
	res, err := Resolve("commands/setup.md", files, false /* not stable: no escalation */, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	for _, o := range res.Outcomes {
		assert.False(t, o.IsUniversal)
	}
	assert.False(t, res.Escalated)
}

func TestResolve_SameMtimeMajorityBucket(t *testing.T) {
	t.Parallel()

	now := time.Now()
	files := []discovery.File{
		{SourceDir: "claude", ContentHash: "shared", Mtime: now},
		{SourceDir: "cursor", ContentHash: "shared", Mtime: now},
		{SourceDir: "codex", ContentHash: "unique", Mtime: now},
	}
	res, err := Resolve("commands/setup.md", files, true, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	var universalCount int
	for _, o := range res.Outcomes {
		if o.IsUniversal {
			universalCount++
		} else {
			assert.Equal(t, platformSpecificPath("commands/setup.md", o.TargetPlatform), o.RegistryPath)
		}
	}
	assert.Equal(t, 1, universalCount)
}

func TestResolve_DifferentMtimes_LatestUniqueWins(t *testing.T) {
	t.Parallel()

	now := time.Now()
	files := []discovery.File{
		{SourceDir: "claude", ContentHash: "h1", Mtime: now.Add(-time.Hour)},
		{SourceDir: "cursor", ContentHash: "h2", Mtime: now},
	}
	res, err := Resolve("commands/setup.md", files, true, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].IsUniversal)
	assert.Equal(t, "cursor", res.Outcomes[0].File.SourceDir)
}

func TestResolve_ForcePlatformSpecificBypassesArbitration(t *testing.T) {
	t.Parallel()

	files := []discovery.File{
		{SourceDir: "claude", ContentHash: "h1", ForcePlatformSpecific: true},
	}
	res, err := Resolve("commands/setup.md", files, true, nil)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.False(t, res.Outcomes[0].IsUniversal)
}

func TestPlatformSpecificPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "commands/pkg/foo.claude.md", platformSpecificPath("commands/pkg/foo.md", "claude"))
}
