package usecase

import "os"

// DirOps is the contract over directory creation/teardown PrepareUserDirs/
// DestroyUserDirs drive, standing in for the source's PrepareDir/
// RmDirRecurse helpers. It is its own interface (rather than calling
// os.MkdirAll directly) so tests can run the full directory-vector walk
// without chown privileges or a real /data tree.
type DirOps interface {
	// Create makes path (and any missing parents) with mode, then chowns
	// it to uid:gid.
	Create(path string, mode os.FileMode, uid, gid int) error

	// RemoveAll tears path down recursively. Removing an absent path is
	// not an error.
	RemoveAll(path string) error

	// Exists reports whether path is present on disk.
	Exists(path string) bool
}

// osDirOps is the real DirOps, backing production use.
type osDirOps struct{}

// NewOSDirOps returns the DirOps implementation that operates on the real
// filesystem.
func NewOSDirOps() DirOps { return osDirOps{} }

func (osDirOps) Create(path string, mode os.FileMode, uid, gid int) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return err
	}
	if err := os.Chmod(path, mode); err != nil {
		return err
	}
	return os.Chown(path, uid, gid)
}

func (osDirOps) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (osDirOps) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
