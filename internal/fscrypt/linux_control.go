package fscrypt

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ohcore/fbekeyd/internal/errors"
)

// LinuxControl implements Control against the real kernel fscrypt ioctls
// and keyring syscalls via golang.org/x/sys/unix.
type LinuxControl struct{}

// NewLinuxControl returns a Control backed by the running kernel.
func NewLinuxControl() *LinuxControl {
	return &LinuxControl{}
}

// ProbeV2Support issues FS_IOC_ADD_ENCRYPTION_KEY with a NULL argument:
// ENOTTY means the ioctl isn't implemented at all, anything else (normally
// EFAULT) means the kernel understood the request.
func (c *LinuxControl) ProbeV2Support(mountPoint string) bool {
	dir, err := os.Open(mountPoint)
	if err != nil {
		return false
	}
	defer dir.Close()

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dir.Fd(), unix.FS_IOC_ADD_ENCRYPTION_KEY, 0)
	return errno != unix.ENOTTY
}

func (c *LinuxControl) InstallKey(mountPoint string, raw []byte) (identifier [16]byte, err error) {
	dir, err := os.Open(mountPoint)
	if err != nil {
		return identifier, errors.Wrapf(errors.ErrCryptoFailed, "open %s: %v", mountPoint, err)
	}
	defer dir.Close()

	argSize := int(unsafe.Sizeof(unix.FscryptAddKeyArg{})) + len(raw)
	buf := make([]byte, argSize)
	arg := (*unix.FscryptAddKeyArg)(unsafe.Pointer(&buf[0]))
	arg.Key_spec.Type = unix.FSCRYPT_KEY_SPEC_TYPE_IDENTIFIER
	arg.Raw_size = uint32(len(raw))
	copy(buf[unsafe.Sizeof(*arg):], raw)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dir.Fd(), unix.FS_IOC_ADD_ENCRYPTION_KEY, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return identifier, errors.Wrapf(errors.ErrCryptoFailed, "FS_IOC_ADD_ENCRYPTION_KEY: %v", errno)
	}

	copy(identifier[:], arg.Key_spec.U[:16])
	return identifier, nil
}

func (c *LinuxControl) RemoveKey(mountPoint string, identifier [16]byte) (RemovalStatus, error) {
	dir, err := os.Open(mountPoint)
	if err != nil {
		return RemovalStatus{}, errors.Wrapf(errors.ErrCryptoFailed, "open %s: %v", mountPoint, err)
	}
	defer dir.Close()

	var arg unix.FscryptRemoveKeyArg
	arg.Key_spec.Type = unix.FSCRYPT_KEY_SPEC_TYPE_IDENTIFIER
	copy(arg.Key_spec.U[:], identifier[:])

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dir.Fd(), unix.FS_IOC_REMOVE_ENCRYPTION_KEY, uintptr(unsafe.Pointer(&arg)))
	if errno != 0 {
		return RemovalStatus{}, errors.Wrapf(errors.ErrCryptoFailed, "FS_IOC_REMOVE_ENCRYPTION_KEY: %v", errno)
	}

	return RemovalStatus{
		OtherUsers: arg.Removal_status_flags&unix.FSCRYPT_KEY_REMOVAL_STATUS_FLAG_OTHER_USERS != 0,
		FilesBusy:  arg.Removal_status_flags&unix.FSCRYPT_KEY_REMOVAL_STATUS_FLAG_FILES_BUSY != 0,
	}, nil
}

func (c *LinuxControl) SetPolicy(path string, identifier [16]byte, contentsMode, filenamesMode, flags byte) error {
	dir, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCryptoFailed, "open %s: %v", path, err)
	}
	defer dir.Close()

	var arg unix.FscryptPolicyV2
	arg.Version = unix.FSCRYPT_POLICY_V2
	arg.Contents_encryption_mode = contentsMode
	arg.Filenames_encryption_mode = filenamesMode
	arg.Flags = flags
	copy(arg.Master_key_identifier[:], identifier[:])

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dir.Fd(), unix.FS_IOC_SET_ENCRYPTION_POLICY, uintptr(unsafe.Pointer(&arg)))
	if errno != 0 {
		return errors.Wrapf(errors.ErrCryptoFailed, "FS_IOC_SET_ENCRYPTION_POLICY: %v", errno)
	}
	return nil
}

// fscryptPolicyExBufSize is large enough to hold the v2 policy struct
// (the largest of the union's members) behind FS_IOC_GET_ENCRYPTION_POLICY_EX.
const fscryptPolicyExBufSize = 8 + int(unsafe.Sizeof(unix.FscryptPolicyV2{}))

// GetPolicy reads back the v2 encryption policy applied to path. Only v2
// policies are supported; a v1 policy (indicated by a version byte of 0)
// is reported as an error since this daemon only ever installs v2 policies.
func (c *LinuxControl) GetPolicy(path string) (Policy, error) {
	dir, err := os.Open(path)
	if err != nil {
		return Policy{}, errors.Wrapf(errors.ErrCryptoFailed, "open %s: %v", path, err)
	}
	defer dir.Close()

	buf := make([]byte, fscryptPolicyExBufSize)
	*(*uint64)(unsafe.Pointer(&buf[0])) = uint64(len(buf) - 8)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, dir.Fd(), unix.FS_IOC_GET_ENCRYPTION_POLICY_EX, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return Policy{}, errors.Wrapf(errors.ErrCryptoFailed, "FS_IOC_GET_ENCRYPTION_POLICY_EX: %v", errno)
	}

	v2 := (*unix.FscryptPolicyV2)(unsafe.Pointer(&buf[8]))
	if v2.Version != unix.FSCRYPT_POLICY_V2 {
		return Policy{}, errors.Wrap(errors.ErrCryptoFailed, "only v2 encryption policies are supported")
	}

	var p Policy
	copy(p.Identifier[:], v2.Master_key_identifier[:])
	p.ContentsMode = v2.Contents_encryption_mode
	p.FilenamesMode = v2.Filenames_encryption_mode
	p.Flags = v2.Flags
	return p, nil
}

func (c *LinuxControl) KeyringAdd(keyType, description string, payload []byte, keyring int) (int32, error) {
	id, err := unix.AddKey(keyType, description, payload, keyring)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCryptoFailed, "add_key(%s, %s): %v", keyType, description, err)
	}
	return int32(id), nil
}

func (c *LinuxControl) KeyringSearch(keyring int, keyType, description string) (int32, error) {
	id, err := unix.KeyctlSearch(keyring, keyType, description, 0)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrNotFound, "keyctl_search(%s, %s): %v", keyType, description, err)
	}
	return int32(id), nil
}

func (c *LinuxControl) KeyringUnlink(serial, keyring int32) error {
	if err := unix.KeyctlUnlink(int(keyring), int(serial)); err != nil {
		return errors.Wrapf(errors.ErrCryptoFailed, "keyctl_unlink(%d, %d): %v", serial, keyring, err)
	}
	return nil
}

var _ Control = (*LinuxControl)(nil)
