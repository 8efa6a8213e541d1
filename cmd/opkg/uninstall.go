package main

import (
	"flag"

	"github.com/openpackage/opkg/internal/uninstall"
)

// runUninstall implements the "uninstall" CLI surface from spec.md §6:
// uninstall <name> --recursive --keep-data --dry-run
func runUninstall(args []string) error {
	flagset := flag.NewFlagSet("opkg uninstall", flag.ExitOnError)
	common := bindCommonFlags(flagset)

	var (
		recursive = flagset.Bool("recursive", false, "also remove dependencies left dangling by this removal")
		dryRun    = flagset.Bool("dry-run", false, "compute the removal plan without writing to disk")
	)
	// --keep-data is accepted for CLI-surface compatibility; workspace
	// uninstall never deletes registry data (it only removes workspace
	// files), so the flag has no effect and is kept only so scripted
	// invocations don't fail.
	_ = flagset.Bool("keep-data", false, "accepted for compatibility; has no effect")

	if err := parseWithPrecedence(flagset, args); err != nil {
		return err
	}

	logger := common.newLogger()
	positional := flagset.Args()
	if len(positional) == 0 {
		return usageError("uninstall requires a package name")
	}

	workspaceRoot, err := common.workspaceRoot()
	if err != nil {
		return err
	}

	res, err := uninstall.Uninstall(uninstall.Options{
		WorkspaceRoot: workspaceRoot,
		Name:          positional[0],
		Cascade:       *recursive,
		DryRun:        *dryRun,
	})
	if err != nil {
		return err
	}

	logger.Logger.Info("uninstall complete", "removed", res.Removed, "paths", len(res.RemovedPaths), "dry_run", *dryRun)
	return nil
}
