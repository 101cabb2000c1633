package usecase

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mounter is the contract over the bind-mount StartUser/StopUser drive.
// Grounded on golang.org/x/sys/unix.Mount/Unmount, the same package the
// rest of this module's example pack reaches for to issue raw mount(2)/
// umount(2) syscalls.
type Mounter interface {
	// BindMount bind-mounts source onto target.
	BindMount(source, target string) error

	// Unmount detaches target. Implementations return an error satisfying
	// errors.Is(err, unix.EBUSY) when the mount point is still in use, so
	// StopUser's retry loop can distinguish it from a hard failure.
	Unmount(target string) error
}

// unixMounter is the real Mounter, backing production use.
type unixMounter struct{}

// NewUnixMounter returns the Mounter implementation that issues real
// mount(2)/umount(2) syscalls.
func NewUnixMounter() Mounter { return unixMounter{} }

func (unixMounter) BindMount(source, target string) error {
	if err := unix.Mount(source, target, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind mount %s onto %s: %w", source, target, err)
	}
	return nil
}

func (unixMounter) Unmount(target string) error {
	if err := unix.Unmount(target, 0); err != nil {
		return fmt.Errorf("unmount %s: %w", target, err)
	}
	return nil
}
