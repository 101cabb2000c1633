package usecase_test

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ohcore/fbekeyd/internal/fbe/domain"
	"github.com/ohcore/fbekeyd/internal/fbe/usecase"
)

// fakeDirOps is an in-memory DirOps so directory-vector walks can be
// exercised without root or a real /data tree.
type fakeDirOps struct {
	mu      sync.Mutex
	created map[string]bool
}

func newFakeDirOps() *fakeDirOps { return &fakeDirOps{created: make(map[string]bool)} }

func (f *fakeDirOps) Create(path string, mode os.FileMode, uid, gid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created[path] = true
	return nil
}

func (f *fakeDirOps) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.created, path)
	return nil
}

func (f *fakeDirOps) Exists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[path]
}

// fakeMounter records bind mounts and fails Unmount with EBUSY a fixed
// number of times before succeeding, driving StopUser's retry loop.
type fakeMounter struct {
	mu          sync.Mutex
	mounted     map[string]string
	busyUntil   int
	unmountCall int
}

func (f *fakeMounter) BindMount(source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mounted == nil {
		f.mounted = make(map[string]string)
	}
	f.mounted[target] = source
	return nil
}

func (f *fakeMounter) Unmount(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmountCall++
	if f.unmountCall <= f.busyUntil {
		return unix.EBUSY
	}
	delete(f.mounted, target)
	return nil
}

func TestUserManager_FullLifecycle(t *testing.T) {
	dirOps := newFakeDirOps()
	mounter := &fakeMounter{}
	um := usecase.NewUserManager(t.TempDir(), dirOps, mounter)

	const userID = 100
	require.NoError(t, um.AddUser(userID))
	require.NoError(t, um.PrepareUserDirs(userID, domain.FlagEL1|domain.FlagEL2))
	require.NoError(t, um.StartUser(userID))
	require.NoError(t, um.StopUser(userID))
	require.NoError(t, um.DestroyUserDirs(userID, domain.FlagEL1|domain.FlagEL2))
	require.NoError(t, um.RemoveUser(userID))
}

func TestUserManager_StopUser_RetriesOnEBUSY(t *testing.T) {
	dirOps := newFakeDirOps()
	mounter := &fakeMounter{busyUntil: 2}
	um := usecase.NewUserManager(t.TempDir(), dirOps, mounter)

	const userID = 101
	require.NoError(t, um.AddUser(userID))
	require.NoError(t, um.PrepareUserDirs(userID, domain.FlagEL2))
	require.NoError(t, um.StartUser(userID))
	require.NoError(t, um.StopUser(userID))
}

func TestUserManager_StopUser_ExhaustsRetriesOnPersistentEBUSY(t *testing.T) {
	dirOps := newFakeDirOps()
	mounter := &fakeMounter{busyUntil: domain.UMountRetryTimes}
	um := usecase.NewUserManager(t.TempDir(), dirOps, mounter)

	const userID = 102
	require.NoError(t, um.AddUser(userID))
	require.NoError(t, um.PrepareUserDirs(userID, domain.FlagEL2))
	require.NoError(t, um.StartUser(userID))

	err := um.StopUser(userID)
	assert.Error(t, err)
}

func TestUserManager_WrongState_LeavesStateUnchanged(t *testing.T) {
	dirOps := newFakeDirOps()
	mounter := &fakeMounter{}
	um := usecase.NewUserManager(t.TempDir(), dirOps, mounter)

	const userID = 103
	require.NoError(t, um.AddUser(userID))

	err := um.StartUser(userID)
	assert.ErrorIs(t, err, domain.ErrWrongUserState)

	// still CREATED: PrepareUserDirs (the CREATED -> PREPARED transition)
	// must still succeed, proving the rejected StartUser never mutated
	// the user's recorded state.
	require.NoError(t, um.PrepareUserDirs(userID, domain.FlagEL1))
}

func TestUserManager_UnknownUser_ReturnsNotFound(t *testing.T) {
	dirOps := newFakeDirOps()
	mounter := &fakeMounter{}
	um := usecase.NewUserManager(t.TempDir(), dirOps, mounter)

	err := um.PrepareUserDirs(999, domain.FlagEL1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserManager_AddUser_Duplicate(t *testing.T) {
	dirOps := newFakeDirOps()
	mounter := &fakeMounter{}
	um := usecase.NewUserManager(t.TempDir(), dirOps, mounter)

	require.NoError(t, um.AddUser(200))
	err := um.AddUser(200)
	assert.ErrorIs(t, err, domain.ErrUserExists)
}
