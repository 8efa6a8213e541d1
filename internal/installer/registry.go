package installer

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/regpath"
)

func unmarshalYAML(data []byte, out interface{}) error {
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "parse platform override")
	}
	return nil
}

// HomeRegistryReader is the on-disk RegistryReader implementation,
// reading directly from "$HOME/.openpackage/registry/packages/…".
type HomeRegistryReader struct {
	HomeDir string
}

func (r HomeRegistryReader) ReadVersionFiles(name, version string) ([]RegistryFile, error) {
	versionDir := regpath.PackageVersionDir(r.HomeDir, name, version)
	var out []RegistryFile
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
		out = append(out, RegistryFile{RelPath: filepath.ToSlash(rel), Content: data})
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
