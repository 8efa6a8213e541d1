package save

import (
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/regpath"
)

// FileWrite is one file queued for the registry (spec §4.4 step 8).
type FileWrite struct {
	RelPath string // forward-slash, relative to the version directory root
	Content []byte
}

// WriteVersionAtomically replaces "<home>/.openpackage/registry/packages/
// <name>/<version>/" wholesale with files, per spec §4.4 step 8: "If the
// version directory exists, it is removed wholesale and rewritten (atomic
// replace)". Directory groups are written in parallel, one goroutine per
// target directory writing its files in sequence (errgroup, matching the teacher's own
// golang.org/x/sync/errgroup dependency), but the caller only sees the
// write as complete once every group has finished -- no partial registry
// state is ever exposed on success or failure.
func WriteVersionAtomically(homeDir, name, version string, files []FileWrite) error {
	versionDir := regpath.PackageVersionDir(homeDir, name, version)
	stagingDir := versionDir + ".staging"

	if err := os.RemoveAll(stagingDir); err != nil {
		return opkgerr.Wrap(err, opkgerr.RegistryIO, "clear staging directory")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return opkgerr.Wrap(err, opkgerr.RegistryIO, "create staging directory")
	}
	defer os.RemoveAll(stagingDir)

	groups := map[string][]FileWrite{}
	for _, f := range files {
		dir := filepath.Dir(filepath.Join(stagingDir, filepath.FromSlash(f.RelPath)))
		groups[dir] = append(groups[dir], f)
	}

	var eg errgroup.Group
	for dir, group := range groups {
		dir, group := dir, group
		eg.Go(func() error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(err, "mkdir "+dir)
			}
			for _, f := range group {
				path := filepath.Join(stagingDir, filepath.FromSlash(f.RelPath))
				if err := renameio.WriteFile(path, f.Content, 0o644); err != nil {
					return errors.Wrap(err, "write "+path)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return opkgerr.Wrap(err, opkgerr.RegistryIO, "stage registry version files")
	}

	if err := os.RemoveAll(versionDir); err != nil {
		return opkgerr.Wrap(err, opkgerr.RegistryIO, "remove prior version directory")
	}
	if err := os.MkdirAll(filepath.Dir(versionDir), 0o755); err != nil {
		return opkgerr.Wrap(err, opkgerr.RegistryIO, "create package directory")
	}
	if err := os.Rename(stagingDir, versionDir); err != nil {
		return opkgerr.Wrap(err, opkgerr.RegistryIO, "replace version directory")
	}
	return nil
}

// ReadVersionFiles reads every file under a registry version directory,
// returning paths relative to the version root (forward-slash).
func ReadVersionFiles(homeDir, name, version string) ([]FileWrite, error) {
	versionDir := regpath.PackageVersionDir(homeDir, name, version)
	var out []FileWrite
	err := filepath.Walk(versionDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(versionDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out = append(out, FileWrite{RelPath: filepath.ToSlash(rel), Content: data})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, opkgerr.New(opkgerr.VersionNotFound, versionDir)
	}
	if err != nil {
		return nil, opkgerr.Wrap(err, opkgerr.RegistryIO, "read registry version")
	}
	return out, nil
}

// DeleteVersion removes a registry version directory.
func DeleteVersion(homeDir, name, version string) error {
	dir := regpath.PackageVersionDir(homeDir, name, version)
	if err := os.RemoveAll(dir); err != nil {
		return opkgerr.Wrap(err, opkgerr.RegistryIO, "delete registry version "+version)
	}
	return nil
}
