package usecase

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	domainerrors "github.com/ohcore/fbekeyd/internal/errors"
)

// dirSpec is one templated directory PrepareUserDirs/DestroyUserDirs walks:
// a path template taking a userId, its mode, and its owning uid/gid.
type dirSpec struct {
	pathTemplate string
	mode         uint32
	uid, gid     uint32
}

func (d dirSpec) path(userID uint32) string {
	return fmt.Sprintf(d.pathTemplate, userID)
}

const (
	oidRoot   = 0
	oidSystem = 1000
)

// Directory vectors, grounded verbatim on the source's el1RootDirVec_/
// el1SubDirVec_/el2RootDirVec_/el2SubDirVec_/hmdfsDirVec_ member
// initializers: same paths, same modes, same owners.
var (
	el1RootDirVec = []dirSpec{
		{"/data/app/el1/%d", 0711, oidRoot, oidRoot},
		{"/data/service/el1/%d", 0711, oidRoot, oidRoot},
		{"/data/chipset/el1/%d", 0711, oidRoot, oidRoot},
	}
	el1SubDirVec = []dirSpec{
		{"/data/app/el1/%d/base", 0711, oidRoot, oidRoot},
		{"/data/app/el1/%d/database", 0711, oidRoot, oidRoot},
	}
	el2RootDirVec = []dirSpec{
		{"/data/app/el2/%d", 0711, oidRoot, oidRoot},
		{"/data/service/el2/%d", 0711, oidRoot, oidRoot},
		{"/data/chipset/el2/%d", 0711, oidRoot, oidRoot},
	}
	el2SubDirVec = []dirSpec{
		{"/data/service/el2/%d/hmdfs", 0711, oidSystem, oidSystem},
		{"/data/service/el2/%d/hmdfs/files", 0711, oidSystem, oidSystem},
		{"/data/service/el2/%d/hmdfs/data", 0711, oidSystem, oidSystem},
	}
	hmdfsDirVec = []dirSpec{
		{"/storage/media/%d", 0711, oidRoot, oidRoot},
		{"/storage/media/%d/local", 0711, oidRoot, oidRoot},
	}

	hmdfsSourceTemplate = "/data/service/el2/%d/hmdfs/files"
	hmdfsTargetTemplate = "/storage/media/%d/local"
)

// destroyVecConcurrent removes every path in vec concurrently, one
// goroutine per entry. It never asks errgroup to cancel the group on the
// first error — every goroutine always returns nil to the group so the
// rest keep running — and instead records the first error it observes
// itself, under mu. This gives "every removal is attempted" without
// errgroup's default cancel-on-first-error semantics.
func destroyVecConcurrent(userID uint32, vec []dirSpec, resolve func(string) string, dirOps DirOps) error {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		firstErr error
	)
	for _, d := range vec {
		d := d
		g.Go(func() error {
			path := resolve(d.path(userID))
			if err := dirOps.RemoveAll(path); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = domainerrors.Wrapf(domainerrors.ErrDestroyDirFailed, "remove %s: %v", path, err)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return firstErr
}
