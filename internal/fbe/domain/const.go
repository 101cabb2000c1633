// Package domain holds the BaseKey lifecycle, user state records, and the
// fixed constants of the file-based-encryption key hierarchy: the on-disk
// layout under a storage root, the EL0/EL1/EL2 tiers, and the size of every
// fixed-shape blob persisted to it.
package domain

import keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"

// Fixed blob sizes, carried from the keystore domain package so callers of
// this package never need to import both for a single size constant.
const (
	AliasSize         = keystoreDomain.AliasSize
	SecDiscardSize    = keystoreDomain.SecDiscardSize
	KeyIdentifierSize = keystoreDomain.KeyIdentifierSize
	RawKeySize        = keystoreDomain.RawKeySize
)

// ELevel identifies an encryption-level tier. It is an integer rather than
// a closed two-value enum so EL3/EL4 can be added later without changing
// every signature that carries one; only EL0-EL2 are wired up today.
type ELevel int

const (
	EL0 ELevel = iota // device-bound, always available
	EL1               // per-user, available once the user exists
	EL2               // per-user, available only once authenticated
)

func (e ELevel) String() string {
	switch e {
	case EL0:
		return "el0"
	case EL1:
		return "el1"
	case EL2:
		return "el2"
	default:
		return "el?"
	}
}

// DirFlag is the bitset callers pass to PrepareUserDirs/DestroyUserDirs/
// GenerateUserKeys to select which encryption levels an operation touches.
type DirFlag uint32

const (
	FlagEL1 DirFlag = 0x02
	FlagEL2 DirFlag = 0x04
)

// NamePrefixes are the filesystem types the legacy v1 keyring path adds a
// key description under, so both can resolve a key by description.
var NamePrefixes = []string{"ext4", "f2fs"}

// GlobalUserID is the reserved logical user id for the device owner; its
// EL1/EL2 keys are created during InitGlobalUserKeys rather than on demand.
const GlobalUserID uint32 = 0

// UMountRetryTimes bounds StopUser's retry loop on EBUSY.
const UMountRetryTimes = 3
