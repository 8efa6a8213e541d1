package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/openpackage/opkg/internal/arbitration"
	"github.com/openpackage/opkg/internal/pkgversion"
	"github.com/openpackage/opkg/internal/prompt"
	"github.com/openpackage/opkg/internal/save"
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// runSave implements the "save" CLI surface from spec.md §6:
// save <package-name> [dir] [stable] -f/--force -b/--bump --include --include-dev --rename
func runSave(args []string) error {
	flagset := flag.NewFlagSet("opkg save", flag.ExitOnError)
	common := bindCommonFlags(flagset)

	var (
		force      = flagset.Bool("force", false, "overwrite an existing stable version")
		bump       = flagset.String("bump", "", "version bump kind: patch, minor, or major")
		rename     = flagset.String("rename", "", "rename the package to newName[@version] during this save")
		include    stringList
		includeDev stringList
	)
	flagset.BoolVar(force, "f", false, "shorthand for --force")
	flagset.StringVar(bump, "b", "", "shorthand for --bump")
	flagset.Var(&include, "include", "package name to include before saving (repeatable)")
	flagset.Var(&includeDev, "include-dev", "package name to include as a dev dependency before saving (repeatable)")

	if err := parseWithPrecedence(flagset, args); err != nil {
		return err
	}

	logger := common.newLogger()
	positional := flagset.Args()
	if len(positional) == 0 {
		return usageError("save requires a package name")
	}

	name := positional[0]
	sourceDir := ""
	stable := false
	for _, p := range positional[1:] {
		if p == "stable" {
			stable = true
			continue
		}
		sourceDir = p
	}

	workspaceRoot, err := common.workspaceRoot()
	if err != nil {
		return err
	}
	home, err := homeDir()
	if err != nil {
		return err
	}

	opts := save.Options{
		WorkspaceRoot: workspaceRoot,
		HomeDir:       home,
		SourceDir:     sourceDir,
		Name:          name,
		Stable:        stable,
		Force:         *force,
		Rename:        *rename,
		Include:       include,
		IncludeDev:    includeDev,
		Chooser:       arbitration.PromptChooser{Prompter: prompt.CLI{In: os.Stdin, Out: os.Stderr}, Ctx: context.Background()},
		Logger:        logger.Logger,
	}
	if *bump != "" {
		opts.Bump = pkgversion.BumpKind(*bump)
		opts.HasBump = true
	}

	result, err := save.Run(opts)
	if err != nil {
		return err
	}

	logger.Logger.Info("saved package", "name", result.Name, "version", result.Version, "registry", result.RegistryDir)
	return nil
}
