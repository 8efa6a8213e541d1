package main

import (
	"flag"
	"fmt"

	"github.com/openpackage/opkg/internal/resolver"
	"github.com/openpackage/opkg/internal/workspace"
)

// runList implements the read-only "opkg list" command (SPEC_FULL.md §6):
// walk the resolver over the current root package.yml without installing,
// printing the resolved graph. It exercises the Dependency Resolver
// without touching the Installer or Package Index.
func runList(args []string) error {
	flagset := flag.NewFlagSet("opkg list", flag.ExitOnError)
	common := bindCommonFlags(flagset)
	if err := parseWithPrecedence(flagset, args); err != nil {
		return err
	}

	workspaceRoot, err := common.workspaceRoot()
	if err != nil {
		return err
	}
	home, err := homeDir()
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

	loader := &registryLoader{homeDir: home, workspaceRoot: workspaceRoot, rootName: root.Name, rootManifest: root}
	result, err := resolver.Resolve(loader, resolver.AlwaysOverwrite{}, resolver.LocalOnly, root.Name, root.Version, nil, nil, root.DevPackages)
	if err != nil {
		return err
	}

	for _, rp := range result.Resolved {
		if rp.Name == root.Name {
			continue
		}
		fmt.Printf("%-40s %s\n", rp.Name, rp.Version)
	}
	for _, m := range result.Missing {
		fmt.Printf("%-40s (not found locally)\n", m)
	}
	return nil
}
