// Command opkg is the workspace-level package manager CLI for AI coding
// assistant configuration files. It is a thin dispatcher over the core
// packages: it parses flags/env, resolves a fully-populated Options struct
// per subcommand, and never touches the filesystem except through those
// core packages.
package main

import (
	"fmt"
	"os"

	"github.com/openpackage/opkg/internal/opkgerr"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	var err error
	switch subcommand {
	case "save":
		err = runSave(args)
	case "install":
		err = runInstall(args)
	case "uninstall":
		err = runUninstall(args)
	case "list":
		err = runList(args)
	case "why":
		err = runWhy(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "opkg: unknown command %q\n", subcommand)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "opkg: "+err.Error())
		os.Exit(opkgerr.ExitCode(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: opkg <command> [arguments]

commands:
  save <package-name> [dir] [stable]   snapshot a workspace package into the registry
  install [pkg@range]...               resolve and materialize packages into the workspace
  uninstall <name>                     remove an installed package
  list                                  list the resolved dependencies of package.yml
  why <name>                           explain why a package is installed`)
}
