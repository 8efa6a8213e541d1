package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncRootSection_CreatesAndPreservesID(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".cursor"), 0o755))

	writes, err := SyncRootSection(ws, "pkg-a", "Hello from pkg-a.\n")
	require.NoError(t, err)
	require.Len(t, writes, 0) // cursor has no distinct native root file

	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".claude"), 0o755))
	writes, err = SyncRootSection(ws, "pkg-a", "Hello from pkg-a.\n")
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].Content, "Hello from pkg-a.")
	assert.Contains(t, writes[0].Content, "<!-- package: pkg-a id:")

	firstContent := writes[0].Content
	writes, err = SyncRootSection(ws, "pkg-a", "Updated body.\n")
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0].Content, "Updated body.")

	idStart := indexOfID(firstContent)
	newIDStart := indexOfID(writes[0].Content)
	require.NotEqual(t, -1, idStart)
	require.NotEqual(t, -1, newIDStart)
	assert.Equal(t, firstContent[idStart:idStart+36], writes[0].Content[newIDStart:newIDStart+36])
}

func indexOfID(content string) int {
	marker := "id:"
	i := indexOf(content, marker)
	if i < 0 {
		return -1
	}
	return i + len(marker)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
