package pkgindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactPathMode_PrunesPlatformSpecificDuplicatePaths(t *testing.T) {
	t.Parallel()

	installed := map[string][]string{
		"commands/setup.md": {
			"/ws/.cursor/commands/setup.md",
			"/ws/.claude/commands/setup.claude.md",
		},
		"commands/setup.claude.md": {
			"/ws/.claude/commands/setup.claude.md",
		},
	}

	rec := ExactPathMode("hash1234", "0.1.0", installed)

	// The universal key keeps both installed paths.
	assert.ElementsMatch(t, []string{"/ws/.claude/commands/setup.claude.md", "/ws/.cursor/commands/setup.md"}, rec.Files["commands/setup.md"])
	// The platform-specific key is fully covered by the universal's
	// listing, so it is pruned away entirely.
	_, stillPresent := rec.Files["commands/setup.claude.md"]
	assert.False(t, stillPresent)
}

func TestExactPathMode_NoSiblingKeepsAllPaths(t *testing.T) {
	t.Parallel()

	installed := map[string][]string{
		"ai/helpers/tone.md": {"/ws/.openpackage/packages/p/ai/helpers/tone.md"},
	}
	rec := ExactPathMode("hash1234", "0.1.0", installed)
	assert.Equal(t, []string{"/ws/.openpackage/packages/p/ai/helpers/tone.md"}, rec.Files["ai/helpers/tone.md"])
}

func TestDirectoryCollapsingMode_CollapsesSiblingFiles(t *testing.T) {
	t.Parallel()

	fileLevel := map[string][]string{
		"rules/a.md": {"/ws/.cursor/rules/a.mdc"},
		"rules/b.md": {"/ws/.cursor/rules/b.mdc"},
	}
	rec := DirectoryCollapsingMode(nil, "hash1234", "0.1.0", fileLevel, "/ws")

	_, hasFileKey := rec.Files["rules/a.md"]
	assert.False(t, hasFileKey)
	require.Contains(t, rec.Files, "rules/")
	assert.Equal(t, []string{"/ws/.cursor/rules/"}, rec.Files["rules/"])
}

func TestDirectoryCollapsingMode_NoNestedDirKeys(t *testing.T) {
	t.Parallel()

	fileLevel := map[string][]string{
		"agents/a.md":         {"/ws/.claude/agents/a.md"},
		"agents/sub/b.md":     {"/ws/.claude/agents/sub/b.md"},
	}
	rec := DirectoryCollapsingMode(nil, "hash1234", "0.1.0", fileLevel, "/ws")

	var dirKeys []string
	for k := range rec.Files {
		if len(k) > 0 && k[len(k)-1] == '/' {
			dirKeys = append(dirKeys, k)
		}
	}
	for _, parent := range dirKeys {
		for _, child := range dirKeys {
			if parent == child {
				continue
			}
			assert.False(t, len(child) > len(parent) && child[:len(parent)] == parent, "child %q should not nest under parent %q", child, parent)
		}
	}
}
