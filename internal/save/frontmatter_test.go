package save

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrontMatter_ExtractsPlatformOverrides(t *testing.T) {
	t.Parallel()

	content := "---\n" +
		"platforms:\n" +
		"  claude:\n" +
		"    priority: high\n" +
		"---\n" +
		"Always respond tersely.\n"

	universal, overrides, ok, err := splitFrontMatter(content)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Always respond tersely.\n", universal)
	require.Contains(t, overrides, "claude")
	assert.Equal(t, "high", overrides["claude"]["priority"])
}

func TestSplitFrontMatter_NoFrontMatterPassesThrough(t *testing.T) {
	t.Parallel()

	content := "Just a plain rule body.\n"
	universal, overrides, ok, err := splitFrontMatter(content)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, overrides)
	assert.Equal(t, content, universal)
}

func TestOverridePath_InsertsPlatformBeforeExt(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "rules/pkg/foo.claude.yml", overridePath("rules/pkg/foo.md", "claude"))
}
