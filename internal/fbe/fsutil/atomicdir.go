// Package fsutil holds the directory-level filesystem primitives BaseKey
// and UserManager build on: atomic directory replacement and numeric
// sub-directory scanning. It has no dependency on the fbe domain types so
// both the domain and usecase layers can import it without a cycle.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ohcore/fbekeyd/internal/errors"
)

// StoreAtomic runs write against a fresh "<dir>.tmp" directory and, only if
// write succeeds, removes the previous dir and renames the tmp directory
// into place. On any failure the tmp directory is removed. A failure up to
// and including the removal of the previous dir leaves dir untouched, so a
// crash mid-write never leaves a partially-written dir; if the rename fails
// after the previous dir was removed, dir no longer exists and the rename
// error is returned.
//
// The parent directory is fsync'd after the rename, closing the window the
// source implementation leaves open: on a crash-consistent filesystem the
// rename is not guaranteed durable until the directory entry itself is
// flushed.
func StoreAtomic(dir string, write func(tmpDir string) error) error {
	tmpDir := dir + ".tmp"

	if err := os.RemoveAll(tmpDir); err != nil {
		return errors.Wrapf(errors.ErrPrepareDirFailed, "remove stale tmp dir %s", tmpDir)
	}
	if err := os.MkdirAll(tmpDir, 0700); err != nil {
		return errors.Wrapf(errors.ErrPrepareDirFailed, "create tmp dir %s: %v", tmpDir, err)
	}

	if err := write(tmpDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return errors.Wrapf(errors.ErrPrepareDirFailed, "remove previous dir %s: %v", dir, err)
	}

	if err := os.Rename(tmpDir, dir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return errors.Wrapf(errors.ErrPrepareDirFailed, "rename %s to %s: %v", tmpDir, dir, err)
	}

	if parent, err := os.Open(filepath.Dir(dir)); err == nil {
		_ = parent.Sync()
		_ = parent.Close()
	}

	return nil
}

// DigitEntry is one numeric sub-directory found by ReadDigitDir.
type DigitEntry struct {
	UserID uint32
	Path   string
}

// ReadDigitDir lists every immediate sub-directory of root whose name
// parses as a uint32, pairing it with its userId. Entries that fail to
// parse are skipped rather than treated as an error, matching the boot
// loop's tolerance of stray non-numeric directories.
func ReadDigitDir(root string) ([]DigitEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", root, err)
	}

	var out []DigitEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		out = append(out, DigitEntry{UserID: uint32(id), Path: filepath.Join(root, e.Name())})
	}
	return out, nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
