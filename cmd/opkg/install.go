package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openpackage/opkg/internal/installer"
	"github.com/openpackage/opkg/internal/manifest"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pkgversion"
	"github.com/openpackage/opkg/internal/prompt"
	"github.com/openpackage/opkg/internal/regpath"
	"github.com/openpackage/opkg/internal/resolver"
	"github.com/openpackage/opkg/internal/workspace"
)

// registryLoader backs resolver.Loader with the per-user registry and the
// current workspace, special-casing rootName (the synthetic node the
// resolver recurses from) so it resolves to the in-memory root manifest
// instead of a registry lookup.
type registryLoader struct {
	homeDir       string
	workspaceRoot string
	rootName      string
	rootManifest  *manifest.PackageYml
}

func (l *registryLoader) AvailableVersions(name string) ([]string, error) {
	if name == l.rootName {
		return []string{l.rootManifest.Version}, nil
	}
	return regpath.ListVersions(l.homeDir, name)
}

func (l *registryLoader) Load(name, version string) (*manifest.PackageYml, error) {
	if name == l.rootName {
		return l.rootManifest, nil
	}
	path := filepath.Join(regpath.PackageVersionDir(l.homeDir, name, version), "package.yml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, opkgerr.New(opkgerr.VersionNotFound, name+"@"+version)
	}
	if err != nil {
		return nil, opkgerr.Wrap(err, opkgerr.RegistryIO, "read registry manifest for "+name+"@"+version)
	}
	return manifest.Unmarshal(data)
}

func (l *registryLoader) InstalledVersion(name string) (string, bool, error) {
	// The synthetic root node is never treated as "already installed": it
	// must always recurse into its own Packages, or nothing would ever
	// resolve (the installed-version shortcut below never loads a
	// manifest's dependency list).
	if name == l.rootName {
		return "", false, nil
	}
	p, ok, err := workspace.LoadPackageManifest(l.workspaceRoot, name)
	if err != nil || !ok {
		return "", ok, err
	}
	return p.Version, true, nil
}

// promptOverwriter adapts a prompt.Prompter into a resolver.Overwriter,
// used when a candidate version is reached a second time at a higher
// version than already resolved (spec §4.7 step 8).
type promptOverwriter struct {
	prompter prompt.Prompter
}

func (o promptOverwriter) ConfirmOverwrite(name, existing, candidate string) (bool, error) {
	return o.prompter.Confirm(context.Background(), fmt.Sprintf("%s: replace resolved version %s with higher version %s?", name, existing, candidate))
}

// runInstall implements the "install" CLI surface from spec.md §6:
// install [pkg@range]* --remote --local --dev --force --dry-run
func runInstall(args []string) error {
	flagset := flag.NewFlagSet("opkg install", flag.ExitOnError)
	common := bindCommonFlags(flagset)

	var (
		remote = flagset.Bool("remote", false, "prefer the remote registry when resolving")
		local  = flagset.Bool("local", false, "resolve using only the local registry")
		dev    = flagset.Bool("dev", false, "add the named packages as dev-packages")
		force  = flagset.Bool("force", false, "skip interactive overwrite confirmation")
		dryRun = flagset.Bool("dry-run", false, "compute the install plan without writing to disk")
	)

	if err := parseWithPrecedence(flagset, args); err != nil {
		return err
	}

	logger := common.newLogger()
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
		root = &manifest.PackageYml{Name: filepath.Base(workspaceRoot), Version: pkgversion.DefaultVersion}
	}
	rootName := root.Name

	rootOverrides := map[string]string{}
	for _, arg := range flagset.Args() {
		name, rng := splitPkgRange(arg)
		if rng != "" {
			rootOverrides[name] = rng
			root.UpsertDependency(name, rng)
		} else {
			root.UpsertDependency(name, "")
		}
		if *dev {
			root.MoveToDev(name)
		}
	}

	loader := &registryLoader{homeDir: home, workspaceRoot: workspaceRoot, rootName: rootName, rootManifest: root}

	var overwriter resolver.Overwriter
	if *force {
		overwriter = resolver.AlwaysOverwrite{}
	} else {
		overwriter = promptOverwriter{prompter: prompt.CLI{In: os.Stdin, Out: os.Stderr}}
	}

	mode := resolver.Default
	if *remote {
		mode = resolver.RemotePrimary
	}
	if *local {
		mode = resolver.LocalOnly
	}

	result, err := resolver.Resolve(loader, overwriter, mode, rootName, root.Version, rootOverrides, nil, root.DevPackages)
	if err != nil {
		return err
	}
	if len(result.Missing) > 0 {
		return opkgerr.New(opkgerr.PackageNotFound, "not found locally: "+strings.Join(result.Missing, ", "))
	}

	var resolved []resolver.ResolvedPackage
	for _, rp := range result.Resolved {
		if rp.Name == rootName {
			continue
		}
		resolved = append(resolved, rp)
	}

	conflict := installer.Ask
	if *force {
		conflict = installer.Overwrite
	}

	writes, err := installer.Install(installer.Options{
		WorkspaceRoot: workspaceRoot,
		Reader:        installer.HomeRegistryReader{HomeDir: home},
		Conflict:      conflict,
		Prompter:      prompt.CLI{In: os.Stdin, Out: os.Stderr},
		DryRun:        *dryRun,
	}, resolved)
	if err != nil {
		return err
	}

	if !*dryRun {
		if err := workspace.SaveRootManifest(workspaceRoot, root); err != nil {
			return err
		}
	}

	changed := 0
	for _, w := range writes {
		if w.Changed {
			changed++
		}
	}
	logger.Logger.Info("install complete", "packages", len(resolved), "files_changed", changed, "dry_run", *dryRun)
	return nil
}

// splitPkgRange splits a "pkg@range" positional argument on its last "@",
// the same convention save.applyRename uses for scoped names like
// "@scope/name@^1.0.0".
func splitPkgRange(arg string) (name, rng string) {
	at := strings.LastIndex(arg, "@")
	if at <= 0 {
		return arg, ""
	}
	return arg[:at], arg[at+1:]
}
