// Package discovery implements Discovery (spec §4.3 C5): walking the
// workspace and registry to emit DiscoveredFile records with mtime and
// content hash, without ever mutating source files.
package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pathmap"
)

// File is a pre-arbitration discovered file record (spec §3.1
// DiscoveredFile).
type File struct {
	FullPath             string
	RelativePath         string
	SourceDir            string // "ai" or a platform.ID string
	RegistryPath         string
	Mtime                time.Time
	ContentHash          string
	IsRootFile           bool
	ForcePlatformSpecific bool
}

// hashFile computes the SHA-256 content hash of path.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", opkgerr.Wrap(err, opkgerr.Filesystem, "read "+path)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// DiscoverAI walks "<sourceDir>/ai/" and returns one File per file found,
// kept as-is with registryPath = "ai/<rel>".
func DiscoverAI(sourceDir string) ([]File, error) {
	aiDir := filepath.Join(sourceDir, "ai")
	var out []File

	err := walkIfExists(aiDir, func(path string, info fs.FileInfo) error {
		rel, err := filepath.Rel(aiDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		out = append(out, File{
			FullPath:     path,
			RelativePath: rel,
			SourceDir:    "ai",
			RegistryPath: "ai/" + rel,
			Mtime:        info.ModTime(),
			ContentHash:  hash,
		})
		return nil
	})
	return out, err
}

// DiscoverPlatformFiles walks every detected platform's subdir trees under
// workspaceRoot and returns one File per matching file, with registryPath
// computed via the inverse Platform Mapper.
func DiscoverPlatformFiles(workspaceRoot string) ([]File, error) {
	var out []File

	for _, def := range pathmap.DetectedPlatforms(exists, workspaceRoot) {
		for subdir, subdirDef := range def.Subdirs {
			subdirAbs := filepath.Join(workspaceRoot, def.RootDir, subdirDef.Path)
			err := walkIfExists(subdirAbs, func(path string, info fs.FileInfo) error {
				ext := filepath.Ext(path)
				if !hasExt(subdirDef.ReadExts, ext) {
					return nil
				}
				hit, err := pathmap.FromPlatform(workspaceRoot, path)
				if err != nil {
					return err
				}
				if hit == nil {
					return nil
				}
				hash, err := hashFile(path)
				if err != nil {
					return err
				}
				rel, err := filepath.Rel(subdirAbs, path)
				if err != nil {
					return err
				}
				_ = subdir
				out = append(out, File{
					FullPath:     path,
					RelativePath: filepath.ToSlash(rel),
					SourceDir:    string(def.ID),
					RegistryPath: string(hit.Subdir) + "/" + hit.RelPath,
					Mtime:        info.ModTime(),
					ContentHash:  hash,
				})
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// DiscoverRootFiles returns one File per detected platform's native root
// file present at the workspace root, flagged IsRootFile.
func DiscoverRootFiles(workspaceRoot string) ([]File, error) {
	var out []File
	seen := map[string]bool{}

	for _, def := range pathmap.DetectedPlatforms(exists, workspaceRoot) {
		if def.RootFile == "" || seen[def.RootFile] {
			continue
		}
		path := filepath.Join(workspaceRoot, def.RootFile)
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, opkgerr.Wrap(err, opkgerr.Filesystem, "stat "+path)
		}
		seen[def.RootFile] = true

		hash, err := hashFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, File{
			FullPath:     path,
			RelativePath: def.RootFile,
			SourceDir:    string(def.ID),
			RegistryPath: "AGENTS.md",
			Mtime:        info.ModTime(),
			ContentHash:  hash,
			IsRootFile:   true,
		})
	}

	return out, nil
}

// DiscoverAll runs the full Discovery pass for a Save (spec §4.4 step 5):
// ai/ files, platform-subdir files, and root files.
func DiscoverAll(sourceDir, workspaceRoot string) ([]File, error) {
	var out []File

	aiFiles, err := DiscoverAI(sourceDir)
	if err != nil {
		return nil, err
	}
	out = append(out, aiFiles...)

	platformFiles, err := DiscoverPlatformFiles(workspaceRoot)
	if err != nil {
		return nil, err
	}
	out = append(out, platformFiles...)

	rootFiles, err := DiscoverRootFiles(workspaceRoot)
	if err != nil {
		return nil, err
	}
	out = append(out, rootFiles...)

	return out, nil
}

func walkIfExists(root string, fn func(path string, info fs.FileInfo) error) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return fn(path, info)
	})
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GroupByRegistryPath partitions files by RegistryPath, preserving input
// order within each group (needed for deterministic arbitration tie
// breaking by "source-dir ordering").
func GroupByRegistryPath(files []File) map[string][]File {
	groups := map[string][]File{}
	for _, f := range files {
		groups[f.RegistryPath] = append(groups[f.RegistryPath], f)
	}
	return groups
}

// RootGroupName is the canonical registry-path key root files are grouped
// under, regardless of which platform's native filename they came from.
const RootGroupName = "AGENTS.md"

// IsRootLike reports whether registryPath is the root-file group key.
func IsRootLike(registryPath string) bool {
	return registryPath == RootGroupName
}
