package usecase

import (
	"os"
	"strconv"
)

// itoa is the decimal directory-name form of a userId, matching the
// source's StringFormat("%d", userId) convention for per-user subdirs.
func itoa(userID uint32) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// ensureDir creates dir (and any missing parents) if it does not already
// exist.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}

// removeAll tears down dir recursively. Removing an absent dir is not an
// error — DeleteUserKeys/DestroyUserDirs are safe to call when the tree
// was never created.
func removeAll(dir string) error {
	return os.RemoveAll(dir)
}
