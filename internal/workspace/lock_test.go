package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpackage/opkg/internal/regpath"
)

func TestAcquireLock_SucceedsOnFreshWorkspace(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	lock, err := AcquireLock(ws)
	require.NoError(t, err)
	require.NotNil(t, lock)

	_, err = os.Stat(regpath.LockFile(ws))
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	_, err = os.Stat(regpath.LockFile(ws))
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireLock_FailsWhileAlreadyHeld(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	lock, err := AcquireLock(ws)
	require.NoError(t, err)
	defer lock.Release()

	_, err = AcquireLock(ws)
	require.Error(t, err)
}

func TestAcquireLock_StealsStaleLock(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	require.NoError(t, EnsureTree(ws))

	lockPath := regpath.LockFile(ws)
	require.NoError(t, os.WriteFile(lockPath, nil, 0o644))
	stale := time.Now().Add(-staleLockAge - time.Minute)
	require.NoError(t, os.Chtimes(lockPath, stale, stale))

	lock, err := AcquireLock(ws)
	require.NoError(t, err)
	require.NotNil(t, lock)
	require.NoError(t, lock.Release())
}

func TestAcquireLock_ReleaseIsIdempotentOnNilLock(t *testing.T) {
	t.Parallel()

	var lock *Lock
	assert.NoError(t, lock.Release())
}

func TestAcquireLock_CreatesOpenpackageDirIfMissing(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	lock, err := AcquireLock(ws)
	require.NoError(t, err)
	defer lock.Release()

	info, err := os.Stat(filepath.Join(ws, ".openpackage"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
