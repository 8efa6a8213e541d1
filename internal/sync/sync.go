// Package sync implements the Sync Engine (spec §4.4 step 9, C13): it
// propagates a package's root-file section body back into every detected
// platform's native root file, reusing markers.UpsertSection so an
// existing section's id is preserved and only the body is refreshed.
package sync

import (
	"os"
	"path/filepath"

	"github.com/openpackage/opkg/internal/markers"
	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/pathmap"
	"github.com/openpackage/opkg/internal/platform"
	"github.com/openpackage/opkg/internal/regpath"
)

// RootFileWrite records one root file whose content changed during a sync
// pass. SyncRootSection has already written Content to Path by the time
// it returns the record.
type RootFileWrite struct {
	Path    string
	Content string
}

// SyncRootSection upserts name's section (sectionBody) into every detected
// platform's native root file at workspaceRoot, deduplicating platforms
// that share one root filename (e.g. Codex and OpenCode both own
// AGENTS.md). It returns the set of files it changed.
func SyncRootSection(workspaceRoot, name, sectionBody string) ([]RootFileWrite, error) {
	seen := map[string]bool{}
	var writes []RootFileWrite

	for _, def := range pathmap.DetectedPlatforms(regpath.Exists, workspaceRoot) {
		if def.RootFile == "" || seen[def.RootFile] {
			continue
		}
		seen[def.RootFile] = true

		path := filepath.Join(workspaceRoot, def.RootFile)
		content, err := readOrEmpty(path)
		if err != nil {
			return nil, err
		}

		updated := markers.UpsertSection(content, name, sectionBody)
		if updated == content {
			continue
		}
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			return nil, opkgerr.Wrap(err, opkgerr.Filesystem, "write root file "+def.RootFile)
		}
		writes = append(writes, RootFileWrite{Path: path, Content: updated})
	}

	return writes, nil
}

// RemoveRootSection removes name's section from every detected platform's
// native root file, deleting the file outright if the result is
// whitespace-only (spec §4.10 step 1).
func RemoveRootSection(workspaceRoot, name string) error {
	seen := map[string]bool{}

	for _, def := range pathmap.DetectedPlatforms(regpath.Exists, workspaceRoot) {
		if def.RootFile == "" || seen[def.RootFile] {
			continue
		}
		seen[def.RootFile] = true

		path := filepath.Join(workspaceRoot, def.RootFile)
		content, err := readOrEmpty(path)
		if err != nil {
			return err
		}
		if content == "" {
			continue
		}

		updated, removed := markers.RemoveSection(content, name)
		if !removed {
			continue
		}

		if markers.IsWhitespaceOnly(updated) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return opkgerr.Wrap(err, opkgerr.Filesystem, "delete emptied root file "+def.RootFile)
			}
			continue
		}
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			return opkgerr.Wrap(err, opkgerr.Filesystem, "write root file "+def.RootFile)
		}
	}

	return nil
}

func readOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", opkgerr.Wrap(err, opkgerr.Filesystem, "read "+path)
	}
	return string(data), nil
}

// DistinctRootFileCount reports how many distinct native root filenames
// are owned across all registered platforms (root files can be co-owned by
// several platforms, spec §3.1).
func DistinctRootFileCount() int {
	seen := map[string]bool{}
	for _, def := range platform.All() {
		if def.RootFile != "" {
			seen[def.RootFile] = true
		}
	}
	return len(seen)
}
