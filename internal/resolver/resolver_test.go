package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/opkgerr"
)

type fakeLoader struct {
	versions map[string][]string
	manifests map[string]*manifest.PackageYml
	installed map[string]string
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		versions:  map[string][]string{},
		manifests: map[string]*manifest.PackageYml{},
		installed: map[string]string{},
	}
}

func (f *fakeLoader) add(name, version string, deps ...manifest.Dependency) {
	f.versions[name] = append(f.versions[name], version)
	f.manifests[name+"@"+version] = &manifest.PackageYml{Name: name, Version: version, Packages: deps}
}

func (f *fakeLoader) AvailableVersions(name string) ([]string, error) {
	return f.versions[name], nil
}

func (f *fakeLoader) Load(name, version string) (*manifest.PackageYml, error) {
	m, ok := f.manifests[name+"@"+version]
	if !ok {
		return nil, opkgerr.New(opkgerr.PackageNotFound, "not found: "+name+"@"+version)
	}
	return m, nil
}

func (f *fakeLoader) InstalledVersion(name string) (string, bool, error) {
	v, ok := f.installed[name]
	return v, ok, nil
}

func TestResolve_SimpleChain(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("root", "1.0.0", manifest.Dependency{Name: "pkg-a", Version: "^1.0.0"})
	loader.add("pkg-a", "1.2.0")

	res, err := Resolve(loader, nil, Default, "root", "1.0.0", nil, nil, nil)
	require.NoError(t, err)

	names := map[string]string{}
	for _, r := range res.Resolved {
		names[r.Name] = r.Version
	}
	assert.Equal(t, "1.0.0", names["root"])
	assert.Equal(t, "1.2.0", names["pkg-a"])
}

func TestResolve_RangeIntersection(t *testing.T) {
	t.Parallel()

	// S3: root depends on pkg-a@^1.0.0 and pkg-b@^1.0.0; pkg-a@1.2.0
	// depends on pkg-b@~1.1.0. Highest pkg-b satisfying both should win.
	loader := newFakeLoader()
	loader.add("root", "1.0.0",
		manifest.Dependency{Name: "pkg-a", Version: "^1.0.0"},
		manifest.Dependency{Name: "pkg-b", Version: "^1.0.0"},
	)
	loader.add("pkg-a", "1.2.0", manifest.Dependency{Name: "pkg-b", Version: "~1.1.0"})
	loader.add("pkg-b", "1.0.0")
	loader.add("pkg-b", "1.1.0")
	loader.add("pkg-b", "1.1.5")
	loader.add("pkg-b", "1.2.0")

	res, err := Resolve(loader, nil, Default, "root", "1.0.0", nil, nil, nil)
	require.NoError(t, err)

	var pkgBVersion string
	for _, r := range res.Resolved {
		if r.Name == "pkg-b" {
			pkgBVersion = r.Version
		}
	}
	assert.Equal(t, "1.1.5", pkgBVersion)
}

func TestResolve_VersionConflict(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("root", "1.0.0",
		manifest.Dependency{Name: "pkg-a", Version: "^2.0.0"},
		manifest.Dependency{Name: "pkg-b", Version: "^1.0.0"},
	)
	loader.add("pkg-a", "2.0.0", manifest.Dependency{Name: "pkg-b", Version: "~3.0.0"})
	loader.add("pkg-b", "1.0.0")

	_, err := Resolve(loader, nil, Default, "root", "1.0.0", nil, nil, nil)
	require.Error(t, err)
	kind, ok := opkgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, opkgerr.VersionConflict, kind)
}

func TestResolve_CircularDependency(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("pkg-a", "1.0.0", manifest.Dependency{Name: "pkg-b", Version: "^1.0.0"})
	loader.add("pkg-b", "1.0.0", manifest.Dependency{Name: "pkg-a", Version: "^1.0.0"})

	_, err := Resolve(loader, nil, Default, "pkg-a", "1.0.0", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, opkgerr.Is(err, opkgerr.CircularDependency))
}

func TestResolve_NoDuplicateNamesAndRangesSatisfied(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("root", "1.0.0",
		manifest.Dependency{Name: "pkg-a", Version: "^1.0.0"},
		manifest.Dependency{Name: "pkg-c", Version: "^1.0.0"},
	)
	loader.add("pkg-a", "1.0.0", manifest.Dependency{Name: "pkg-c", Version: "^1.0.0"})
	loader.add("pkg-c", "1.3.0")

	res, err := Resolve(loader, nil, Default, "root", "1.0.0", nil, nil, nil)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range res.Resolved {
		assert.False(t, seen[r.Name], "duplicate resolved name: %s", r.Name)
		seen[r.Name] = true
	}
}

func TestResolve_WIPExcludedWithoutPrereleaseIntent(t *testing.T) {
	t.Parallel()

	loader := newFakeLoader()
	loader.add("root", "1.0.0", manifest.Dependency{Name: "pkg-a", Version: "^1.0.0"})
	loader.add("pkg-a", "1.0.0-wshash12.3")
	loader.add("pkg-a", "0.9.0")

	_, err := Resolve(loader, nil, Default, "root", "1.0.0", nil, nil, nil)
	// No range names a prerelease, so the WIP build is dropped from the
	// candidate set; the only stable candidate, 0.9.0, does not satisfy
	// ^1.0.0, so resolution fails with a version conflict instead of
	// falling back to the WIP.
	require.Error(t, err)
	kind, ok := opkgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, opkgerr.VersionConflict, kind)
}
