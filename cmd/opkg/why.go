package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/workspace"
)

// runWhy implements "opkg why <name>" (SPEC_FULL.md §6): prints every
// dependency chain from the workspace root package.yml down to name,
// walking the installed package.yml manifests already materialized under
// .openpackage/packages/.
func runWhy(args []string) error {
	flagset := flag.NewFlagSet("opkg why", flag.ExitOnError)
	common := bindCommonFlags(flagset)
	if err := parseWithPrecedence(flagset, args); err != nil {
		return err
	}

	positional := flagset.Args()
	if len(positional) == 0 {
		return usageError("why requires a package name")
	}
	target := workspace.NormalizeName(positional[0])

	workspaceRoot, err := common.workspaceRoot()
	if err != nil {
		return err
	}

	root, ok, err := workspace.LoadRootManifest(workspaceRoot)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no .openpackage/package.yml in this workspace")
		return nil
	}

	var chains [][]string
	var walk func(name string, path []string) error
	walk = func(name string, path []string) error {
		// Only names already on this chain are skipped (cycle guard), so a
		// package reached through several parents yields one chain each.
		for _, seen := range path {
			if workspace.NamesEqual(seen, name) {
				return nil
			}
		}
		path = append(path, name)

		if workspace.NamesEqual(name, target) {
			chains = append(chains, append([]string{}, path...))
			return nil
		}

		p, ok, err := workspace.LoadPackageManifest(workspaceRoot, name)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		for _, dep := range allDeps(p) {
			if err := walk(dep.Name, path); err != nil {
				return err
			}
		}
		return nil
	}

	for _, dep := range allDeps(root) {
		if err := walk(dep.Name, []string{root.Name}); err != nil {
			return err
		}
	}

	if len(chains) == 0 {
		fmt.Printf("%s is not installed in this workspace\n", target)
		return nil
	}
	for _, chain := range chains {
		fmt.Println(strings.Join(chain, " -> "))
	}
	return nil
}

func allDeps(p *manifest.PackageYml) []manifest.Dependency {
	return append(append([]manifest.Dependency{}, p.Packages...), p.DevPackages...)
}
