package workspace

import (
	"os"
	"time"

	"github.com/openpackage/opkg/internal/opkgerr"
	"github.com/openpackage/opkg/internal/regpath"
)

// staleLockAge is how old a .lock file must be before a new invocation is
// willing to steal it -- guards against a crashed process wedging the
// workspace forever, per SPEC_FULL.md §5(c).
const staleLockAge = 10 * time.Minute

// Lock is a held advisory lock on a workspace. Release must be called
// exactly once.
type Lock struct {
	path string
}

// AcquireLock takes the workspace-scoped advisory lock described in spec
// §5 "No lockfile is specified; implementers may add advisory file locks".
// It surfaces contention as a Filesystem error rather than blocking.
func AcquireLock(workspaceRoot string) (*Lock, error) {
	if err := EnsureTree(workspaceRoot); err != nil {
		return nil, err
	}
	path := regpath.LockFile(workspaceRoot)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		f.Close()
		return &Lock{path: path}, nil
	}
	if !os.IsExist(err) {
		return nil, opkgerr.Wrap(err, opkgerr.Filesystem, "create workspace lock")
	}

	info, statErr := os.Stat(path)
	if statErr == nil && time.Since(info.ModTime()) > staleLockAge {
		if rmErr := os.Remove(path); rmErr == nil {
			return AcquireLock(workspaceRoot)
		}
	}

	return nil, opkgerr.New(opkgerr.Filesystem, "another opkg invocation is in progress in this workspace (.openpackage/.lock)")
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return opkgerr.Wrap(err, opkgerr.Filesystem, "release workspace lock")
	}
	return nil
}
