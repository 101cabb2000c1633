// Package fscrypt wraps the kernel's file-based-encryption control surface:
// the v2 fscrypt ioctls (FS_IOC_ADD_ENCRYPTION_KEY and friends) and the
// legacy v1 path that installs keys into the kernel keyring instead. Struct
// layouts and ioctl numbers are grounded on golang.org/x/sys/unix, the same
// package google/fscrypt's keyring helper (vendored into ceph-csi) builds
// on for the identical kernel ABI.
package fscrypt

import "github.com/ohcore/fbekeyd/internal/errors"

// Mode constants for FS_IOC_SET_ENCRYPTION_POLICY, matching the kernel's
// fscrypt_policy_v2 mode byte values.
const (
	ModeAES256XTS byte = 1
	ModeAES256CTS byte = 4
)

// PolicyFlagPad32 requests 32-byte padding for encrypted filenames.
const PolicyFlagPad32 byte = 0x3

// RemovalStatus decodes FS_IOC_REMOVE_ENCRYPTION_KEY's status flags.
type RemovalStatus struct {
	// FilesBusy indicates some files protected by the key are still open.
	FilesBusy bool
	// OtherUsers indicates another user's files are still protected by
	// the key (relevant when the key was added for all users).
	OtherUsers bool
}

// Policy describes the encryption policy applied to a directory.
type Policy struct {
	Identifier    [16]byte
	ContentsMode  byte
	FilenamesMode byte
	Flags         byte
}

// Control is the contract over the kernel's file-encryption key management
// surface, implemented twice: once against the real kernel (Linux) and
// once in memory for tests (Fake).
type Control interface {
	// ProbeV2Support reports whether mountPoint's filesystem accepts the
	// v2 fscrypt ioctls, so callers can select the legacy keyring path
	// on older kernels without failing outright.
	ProbeV2Support(mountPoint string) bool

	// InstallKey adds raw as an fscrypt v2 key on mountPoint's
	// filesystem and returns the kernel-assigned key identifier.
	InstallKey(mountPoint string, raw []byte) (identifier [16]byte, err error)

	// RemoveKey removes the v2 key identified by identifier from
	// mountPoint's filesystem.
	RemoveKey(mountPoint string, identifier [16]byte) (RemovalStatus, error)

	// SetPolicy applies an encryption policy to the (empty) directory at
	// path, binding it to the key identified by identifier.
	SetPolicy(path string, identifier [16]byte, contentsMode, filenamesMode, flags byte) error

	// GetPolicy returns the encryption policy currently applied to path.
	GetPolicy(path string) (Policy, error)

	// KeyringAdd installs payload as a kernel keyring key of the given
	// type under description, in keyring, for the legacy v1 path.
	KeyringAdd(keyType, description string, payload []byte, keyring int) (int32, error)

	// KeyringSearch looks up a key by type and description in keyring.
	KeyringSearch(keyring int, keyType, description string) (int32, error)

	// KeyringUnlink removes the key identified by serial from keyring.
	KeyringUnlink(serial, keyring int32) error
}

// ErrNotSupported indicates the kernel/filesystem does not support the v2
// fscrypt ioctls; callers should fall back to the legacy keyring path.
var ErrNotSupported = errors.Wrap(errors.ErrCryptoFailed, "fscrypt v2 ioctls not supported")
