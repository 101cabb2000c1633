package usecase

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	domainerrors "github.com/ohcore/fbekeyd/internal/errors"
	"github.com/ohcore/fbekeyd/internal/fbe/domain"
)

// UserManager is the per-user directory lifecycle state machine: it walks
// the fixed directory vectors to prepare/destroy a user's encrypted
// storage tree and issues the bind mount joining the encrypted backing
// directory to its user-visible mount point. A plain value constructed
// once in the application's DI container and passed by pointer — never a
// package-level singleton.
type UserManager struct {
	root    string
	dirOps  DirOps
	mounter Mounter

	mu    sync.Mutex
	users map[uint32]domain.UserInfo
}

// NewUserManager constructs an empty UserManager. root, when non-empty,
// prefixes every directory vector path — production leaves it empty so
// paths are the real absolute /data/... tree; tests set it to a temp
// directory so the same code walks a throwaway tree.
func NewUserManager(root string, dirOps DirOps, mounter Mounter) *UserManager {
	return &UserManager{
		root:    root,
		dirOps:  dirOps,
		mounter: mounter,
		users:   make(map[uint32]domain.UserInfo),
	}
}

func (m *UserManager) resolve(path string) string {
	if m.root == "" {
		return path
	}
	return filepath.Join(m.root, path)
}

// AddUser records userId as known, in state CREATED.
func (m *UserManager) AddUser(userID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; ok {
		return domain.ErrUserExists
	}
	m.users[userID] = domain.UserInfo{UserID: userID, State: domain.UserStateCreated}
	return nil
}

// RemoveUser erases userId's record. Requires state CREATED.
func (m *UserManager) RemoveUser(userID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkStateLocked(userID, domain.UserStateCreated); err != nil {
		return err
	}
	delete(m.users, userID)
	return nil
}

// checkStateLocked returns ErrUserNotFound if userId has no record, or
// ErrWrongUserState if its state does not match want — the two calls a
// caller can distinguish, per the state machine's absent-vs-wrong-state
// contract.
func (m *UserManager) checkStateLocked(userID uint32, want domain.UserState) error {
	info, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if info.State != want {
		return domain.ErrWrongUserState
	}
	return nil
}

// PrepareUserDirs creates userId's EL1/EL2/hmdfs directory tree per flags
// and transitions CREATED -> PREPARED. The first failing directory step
// ends the operation with its error and the user's state is left
// unchanged; directories created by earlier steps are not removed.
func (m *UserManager) PrepareUserDirs(userID uint32, flags domain.DirFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkStateLocked(userID, domain.UserStateCreated); err != nil {
		return err
	}

	if flags&domain.FlagEL1 != 0 {
		if err := m.prepareVec(userID, el1RootDirVec); err != nil {
			return err
		}
		if err := m.prepareVec(userID, el1SubDirVec); err != nil {
			return err
		}
	}

	if flags&domain.FlagEL2 != 0 {
		if err := m.prepareVec(userID, el2RootDirVec); err != nil {
			return err
		}
		if err := m.prepareVec(userID, hmdfsDirVec); err != nil {
			return err
		}
		if err := m.prepareVec(userID, el2SubDirVec); err != nil {
			return err
		}
	}

	info := m.users[userID]
	info.State = domain.UserStatePrepared
	m.users[userID] = info
	return nil
}

func (m *UserManager) prepareVec(userID uint32, vec []dirSpec) error {
	for _, d := range vec {
		path := m.resolve(d.path(userID))
		if err := m.dirOps.Create(path, os.FileMode(d.mode), int(d.uid), int(d.gid)); err != nil {
			return domainerrors.Wrapf(domainerrors.ErrPrepareDirFailed, "create %s: %v", path, err)
		}
	}
	return nil
}

// DestroyUserDirs removes userId's EL1/EL2/hmdfs directory tree per flags
// and transitions PREPARED -> CREATED. Every removal in every selected
// vector is attempted regardless of earlier failures; the first error
// seen is what's returned, to maximize cleanup on partial failure.
func (m *UserManager) DestroyUserDirs(userID uint32, flags domain.DirFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkStateLocked(userID, domain.UserStatePrepared); err != nil {
		return err
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if flags&domain.FlagEL1 != 0 {
		record(m.destroyVec(userID, el1RootDirVec))
	}
	if flags&domain.FlagEL2 != 0 {
		record(m.destroyVec(userID, hmdfsDirVec))
		record(m.destroyVec(userID, el2RootDirVec))
	}

	info := m.users[userID]
	info.State = domain.UserStateCreated
	m.users[userID] = info
	return firstErr
}

func (m *UserManager) destroyVec(userID uint32, vec []dirSpec) error {
	return destroyVecConcurrent(userID, vec, m.resolve, m.dirOps)
}

// StartUser bind-mounts the user's hmdfs files directory onto its public
// storage mount point and transitions PREPARED -> STARTED.
func (m *UserManager) StartUser(userID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkStateLocked(userID, domain.UserStatePrepared); err != nil {
		return err
	}

	source := m.resolve(fmt.Sprintf(hmdfsSourceTemplate, userID))
	target := m.resolve(fmt.Sprintf(hmdfsTargetTemplate, userID))
	if err := m.mounter.BindMount(source, target); err != nil {
		return domainerrors.Wrap(domainerrors.ErrMountFailed, err.Error())
	}

	info := m.users[userID]
	info.State = domain.UserStateStarted
	m.users[userID] = info
	return nil
}

// StopUser unmounts userId's bind mount, retrying up to UMountRetryTimes
// on EBUSY, and transitions STARTED -> PREPARED.
func (m *UserManager) StopUser(userID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkStateLocked(userID, domain.UserStateStarted); err != nil {
		return err
	}

	target := m.resolve(fmt.Sprintf(hmdfsTargetTemplate, userID))

	var err error
	for attempt := 0; attempt < domain.UMountRetryTimes; attempt++ {
		err = m.mounter.Unmount(target)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EBUSY) {
			return domainerrors.Wrap(domainerrors.ErrUmountFailed, err.Error())
		}
	}
	if err != nil {
		return domainerrors.Wrap(domainerrors.ErrUmountFailed, err.Error())
	}

	info := m.users[userID]
	info.State = domain.UserStatePrepared
	m.users[userID] = info
	return nil
}
