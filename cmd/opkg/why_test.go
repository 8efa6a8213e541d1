package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openpackage/opkg/internal/manifest"
)

func TestAllDeps_CombinesPackagesAndDevPackages(t *testing.T) {
	t.Parallel()

	p := &manifest.PackageYml{
		Name:        "root",
		Version:     "0.1.0",
		Packages:    []manifest.Dependency{{Name: "runtime-dep", Version: "^1.0.0"}},
		DevPackages: []manifest.Dependency{{Name: "dev-dep", Version: "^2.0.0"}},
	}

	deps := allDeps(p)
	assert.Len(t, deps, 2)
	assert.Contains(t, deps, manifest.Dependency{Name: "runtime-dep", Version: "^1.0.0"})
	assert.Contains(t, deps, manifest.Dependency{Name: "dev-dep", Version: "^2.0.0"})
}
