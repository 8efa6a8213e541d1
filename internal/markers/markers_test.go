package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPackageSection(t *testing.T) {
	t.Parallel()

	content := "intro\n<!-- package: pkg-a -->\nbody-a\n<!-- -->\n<!-- package: pkg-b id:abc123 -->\nbody-b\n<!-- -->\n"

	body, ok := ExtractPackageSection(content, "pkg-a")
	require.True(t, ok)
	assert.Equal(t, "body-a\n", body)

	body, ok = ExtractPackageSection(content, "pkg-b")
	require.True(t, ok)
	assert.Equal(t, "body-b\n", body)

	_, ok = ExtractPackageSection(content, "pkg-missing")
	assert.False(t, ok)
}

func TestExtractAllPackageSections(t *testing.T) {
	t.Parallel()

	content := "<!-- package: pkg-a -->\nA\n<!-- -->\n<!-- package: pkg-b -->\nB\n<!-- -->\n"
	order, sections := ExtractAllPackageSections(content)
	require.Equal(t, []string{"pkg-a", "pkg-b"}, order)
	assert.Equal(t, "A\n", sections["pkg-a"])
	assert.Equal(t, "B\n", sections["pkg-b"])
}

func TestEnsureMarkerIdAndExtract_InjectsID(t *testing.T) {
	t.Parallel()

	content := "<!-- package: pkg-a -->\nbody\n<!-- -->\n"
	res, err := EnsureMarkerIdAndExtract(content, "pkg-a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Changed)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "body\n", res.SectionBody)
	assert.Contains(t, res.UpdatedContent, "id:"+res.ID)

	// Second pass against the updated content is a no-op.
	res2, err := EnsureMarkerIdAndExtract(res.UpdatedContent, "pkg-a")
	require.NoError(t, err)
	require.NotNil(t, res2)
	assert.False(t, res2.Changed)
	assert.Equal(t, res.ID, res2.ID)
}

func TestEnsureMarkerIdAndExtract_NoMarker(t *testing.T) {
	t.Parallel()

	res, err := EnsureMarkerIdAndExtract("nothing here", "pkg-a")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestUpsertSection_AppendsWhenAbsent(t *testing.T) {
	t.Parallel()

	out := UpsertSection("# Title\n", "pkg-a", "hello\n")
	assert.Contains(t, out, "<!-- package: pkg-a -->\nhello\n<!-- -->\n")
}

func TestUpsertSection_ReplacesExistingPreservingID(t *testing.T) {
	t.Parallel()

	content := "<!-- package: pkg-a id:0a1b2c -->\nold\n<!-- -->\n"
	out := UpsertSection(content, "pkg-a", "new\n")
	assert.Contains(t, out, "id:0a1b2c")
	assert.Contains(t, out, "new\n")
	assert.NotContains(t, out, "old")
}

func TestRemoveSection_KeepsOtherPackages(t *testing.T) {
	t.Parallel()

	content := "<!-- package: pkg-a -->\nA\n<!-- -->\n<!-- package: pkg-b id:beef-cafe -->\nB\n<!-- -->\n"
	out, removed := RemoveSection(content, "pkg-b")
	require.True(t, removed)
	assert.NotContains(t, out, "pkg-b")
	assert.Contains(t, out, "pkg-a") // pkg-a's section is unaffected by removing pkg-b

	out2, removed2 := RemoveSection(content, "pkg-a")
	require.True(t, removed2)
	assert.NotContains(t, out2, "pkg-a")
	assert.Contains(t, out2, "pkg-b id:beef-cafe")
}
