// Package usecase holds the process-wide coordinators built on top of
// BaseKey: KeyManager (the key catalog) and UserManager (the per-user
// directory state machine), plus the metrics decorator wrapping both.
package usecase

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ohcore/fbekeyd/internal/errors"
	"github.com/ohcore/fbekeyd/internal/fbe/domain"
	"github.com/ohcore/fbekeyd/internal/fbe/fsutil"
	"github.com/ohcore/fbekeyd/internal/fscrypt"
	keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"
	keystoreService "github.com/ohcore/fbekeyd/internal/keystore/service"
)

// Layout is the fixed set of on-disk roots KeyManager operates under,
// mirroring the source's DATA_EL0_DIR/STORAGE_DAEMON_DIR/DEVICE_EL1_DIR/
// FSCRYPT_USER_EL1_PUBLIC/USER_EL1_DIR/USER_EL2_DIR constants.
type Layout struct {
	// DeviceEL1Dir holds the EL0-tier device key, e.g.
	// /data/service/el0/storage_daemon/sd.
	DeviceEL1Dir string

	// EL1Dir and EL2Dir hold per-user key directories under the
	// el1-public mount point, e.g.
	// /data/service/el1/public/storage_daemon/sd/el1 and .../el2.
	EL1Dir string
	EL2Dir string

	// MountPoint is the filesystem mount point FsCryptControl installs
	// keys against, e.g. /data/service/el1/public.
	MountPoint string
}

func (l Layout) el1UserDir(userID uint32) string {
	return filepath.Join(l.EL1Dir, itoa(userID))
}

func (l Layout) el2UserDir(userID uint32) string {
	return filepath.Join(l.EL2Dir, itoa(userID))
}

// KeyManager is the process-wide catalog of live keys: one device key and,
// per user, at most one EL1 and one EL2 key. A single keyMutex serializes
// every catalog mutation and the seal/unseal calls that drive it — the
// source takes the same coarse lock rather than one per key, and finer
// locking here would only recreate the races it avoids.
type KeyManager struct {
	layout  Layout
	gateway keystoreService.KeystoreGateway
	control fscrypt.Control
	logger  *slog.Logger

	keyMutex sync.Mutex

	globalEl1Key *domain.BaseKey
	userEl1Keys  map[uint32]*domain.BaseKey
	userEl2Keys  map[uint32]*domain.BaseKey

	initGroup singleflight.Group
}

// NewKeyManager constructs an empty catalog over layout.
func NewKeyManager(layout Layout, gateway keystoreService.KeystoreGateway, control fscrypt.Control, logger *slog.Logger) *KeyManager {
	return &KeyManager{
		layout:      layout,
		gateway:     gateway,
		control:     control,
		logger:      logger,
		userEl1Keys: make(map[uint32]*domain.BaseKey),
		userEl2Keys: make(map[uint32]*domain.BaseKey),
	}
}

// InitGlobalDeviceKey ensures the EL0 device key exists: restores it from
// DeviceEL1Dir if present, otherwise generates, stores, and activates a
// fresh one. Idempotent — concurrent callers collapse onto one
// generate-or-restore via singleflight, so a racing pair of callers never
// provisions the keystore twice.
func (m *KeyManager) InitGlobalDeviceKey(ctx context.Context) error {
	logger := LoggerWithOpID(ctx, m.logger)
	_, err, _ := m.initGroup.Do("device-key", func() (any, error) {
		m.keyMutex.Lock()
		defer m.keyMutex.Unlock()

		if m.globalEl1Key != nil {
			return nil, nil
		}

		bk := domain.NewBaseKey(m.layout.DeviceEL1Dir, domain.RawKeySize, m.gateway, m.control, logger)
		if fsutil.IsDir(m.layout.DeviceEL1Dir) {
			if err := bk.RestoreKey(domain.NullUserAuth); err != nil {
				return nil, err
			}
		} else {
			if err := bk.InitKey(); err != nil {
				return nil, err
			}
			if err := bk.StoreKey(domain.NullUserAuth); err != nil {
				return nil, err
			}
		}
		if err := bk.ActiveKey(m.layout.MountPoint); err != nil {
			return nil, err
		}
		m.globalEl1Key = bk
		return nil, nil
	})
	return err
}

// InitGlobalUserKeys creates the storage-daemon directory tree, ensures
// EL1 and EL2 keys for the reserved device-owner user exist, then restores
// every other user's EL1 key found under EL1Dir into the catalog. EL2 keys
// of normal users are never auto-restored here — ActiveUserKey(auth) is
// required to bring one back after boot.
func (m *KeyManager) InitGlobalUserKeys(ctx context.Context) error {
	logger := LoggerWithOpID(ctx, m.logger)
	_, err, _ := m.initGroup.Do("user-keys", func() (any, error) {
		m.keyMutex.Lock()
		defer m.keyMutex.Unlock()

		for _, dir := range []string{m.layout.EL1Dir, m.layout.EL2Dir} {
			if err := ensureDir(dir); err != nil {
				return nil, err
			}
		}

		if err := m.bootstrapGlobalUserKeysLocked(domain.EL1, m.layout.el1UserDir(domain.GlobalUserID), m.userEl1Keys); err != nil {
			return nil, err
		}
		if err := m.bootstrapGlobalUserKeysLocked(domain.EL2, m.layout.el2UserDir(domain.GlobalUserID), m.userEl2Keys); err != nil {
			return nil, err
		}

		entries, err := fsutil.ReadDigitDir(m.layout.EL1Dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCryptoFailed, "scan el1 directory: "+err.Error())
		}
		for _, e := range entries {
			if e.UserID == domain.GlobalUserID {
				continue
			}
			if _, already := m.userEl1Keys[e.UserID]; already {
				continue
			}
			bk := domain.NewBaseKey(e.Path, domain.RawKeySize, m.gateway, m.control, logger)
			if err := bk.RestoreKey(domain.NullUserAuth); err != nil {
				if logger != nil {
					logger.Error("restore user el1 key failed", slog.Uint64("user_id", uint64(e.UserID)), slog.Any("error", err))
				}
				continue
			}
			if err := bk.ActiveKey(m.layout.MountPoint); err != nil {
				if logger != nil {
					logger.Error("activate user el1 key failed", slog.Uint64("user_id", uint64(e.UserID)), slog.Any("error", err))
				}
				continue
			}
			m.userEl1Keys[e.UserID] = bk
		}
		return nil, nil
	})
	return err
}

func (m *KeyManager) bootstrapGlobalUserKeysLocked(level domain.ELevel, dir string, catalog map[uint32]*domain.BaseKey) error {
	if _, already := catalog[domain.GlobalUserID]; already {
		return nil
	}

	bk := domain.NewBaseKey(dir, domain.RawKeySize, m.gateway, m.control, m.logger)
	if fsutil.IsDir(dir) {
		if err := bk.RestoreKey(domain.NullUserAuth); err != nil {
			return err
		}
	} else {
		if err := bk.InitKey(); err != nil {
			return err
		}
		if err := bk.StoreKey(domain.NullUserAuth); err != nil {
			return err
		}
	}
	if err := bk.ActiveKey(m.layout.MountPoint); err != nil {
		return err
	}
	catalog[domain.GlobalUserID] = bk
	return nil
}

// GenerateUserKeys creates and activates EL1 and/or EL2 keys for userId per
// flags. It refuses if the corresponding directory already exists on disk.
// A failure generating EL2 rolls EL1 back via doDeleteUserKeys so the call
// is all-or-nothing.
func (m *KeyManager) GenerateUserKeys(userID uint32, flags domain.DirFlag) error {
	m.keyMutex.Lock()
	defer m.keyMutex.Unlock()

	if flags&domain.FlagEL1 == 0 && flags&domain.FlagEL2 == 0 {
		return nil
	}

	el1Dir := m.layout.el1UserDir(userID)
	el2Dir := m.layout.el2UserDir(userID)

	if flags&domain.FlagEL1 != 0 && fsutil.IsDir(el1Dir) {
		return domain.ErrUserKeyExists
	}
	if flags&domain.FlagEL2 != 0 && fsutil.IsDir(el2Dir) {
		return domain.ErrUserKeyExists
	}

	if flags&domain.FlagEL1 != 0 {
		bk := domain.NewBaseKey(el1Dir, domain.RawKeySize, m.gateway, m.control, m.logger)
		if err := m.generateAndActivateLocked(bk); err != nil {
			return err
		}
		m.userEl1Keys[userID] = bk
	}

	if flags&domain.FlagEL2 != 0 {
		bk := domain.NewBaseKey(el2Dir, domain.RawKeySize, m.gateway, m.control, m.logger)
		if err := m.generateAndActivateLocked(bk); err != nil {
			m.doDeleteUserKeysLocked(userID)
			return err
		}
		m.userEl2Keys[userID] = bk
	}

	return nil
}

func (m *KeyManager) generateAndActivateLocked(bk *domain.BaseKey) error {
	if err := bk.InitKey(); err != nil {
		return err
	}
	if err := bk.StoreKey(domain.NullUserAuth); err != nil {
		return err
	}
	return bk.ActiveKey(m.layout.MountPoint)
}

// DeleteUserKeys removes both EL1 and EL2 key material for userId: if the
// catalog holds the key it is cleared from the kernel first, then its
// directory is removed and the catalog entry erased. Safe to call when
// neither level is present.
func (m *KeyManager) DeleteUserKeys(userID uint32) error {
	m.keyMutex.Lock()
	defer m.keyMutex.Unlock()
	return m.doDeleteUserKeysLocked(userID)
}

func (m *KeyManager) doDeleteUserKeysLocked(userID uint32) error {
	var first error
	if err := m.clearAndRemoveLocked(m.userEl1Keys, userID, m.layout.el1UserDir(userID)); err != nil && first == nil {
		first = err
	}
	if err := m.clearAndRemoveLocked(m.userEl2Keys, userID, m.layout.el2UserDir(userID)); err != nil && first == nil {
		first = err
	}
	return first
}

func (m *KeyManager) clearAndRemoveLocked(catalog map[uint32]*domain.BaseKey, userID uint32, dir string) error {
	if bk, ok := catalog[userID]; ok {
		if err := bk.ClearKey(m.layout.MountPoint); err != nil {
			if m.logger != nil {
				m.logger.Error("clear key failed", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
			}
		}
		delete(catalog, userID)
	}
	if err := removeAll(dir); err != nil {
		return errors.Wrap(errors.ErrDestroyDirFailed, err.Error())
	}
	return nil
}

// UpdateUserAuth rotates the auth a user's EL2 key is sealed under. It
// requires an EL2 entry already in the catalog, restores it with newAuth,
// then stores it again with newAuth — it never unseals with the old auth,
// matching the source's RestoreKey(newAuth)/StoreKey(newAuth) sequence
// exactly. Whether this can actually rotate the sealing auth, or only
// works because the keystore treats auth.token as advisory, is a question
// for the keystore contract, not this coordinator; it is reproduced
// verbatim rather than silently fixed.
func (m *KeyManager) UpdateUserAuth(userID uint32, newAuth domain.UserAuth) error {
	if err := domain.ValidateUserAuth(newAuth); err != nil {
		return err
	}

	m.keyMutex.Lock()
	defer m.keyMutex.Unlock()

	bk, ok := m.userEl2Keys[userID]
	if !ok {
		return domain.ErrUserKeyNotFound
	}
	if err := bk.RestoreKey(newAuth); err != nil {
		return err
	}
	return bk.StoreKey(newAuth)
}

// ActiveUserKey brings userId's EL2 key back into the kernel after a
// restart: the directory must exist on disk and must not already be
// cataloged, a fresh BaseKey is restored with auth and installed.
func (m *KeyManager) ActiveUserKey(userID uint32, auth domain.UserAuth) error {
	if err := domain.ValidateUserAuth(auth); err != nil {
		return err
	}

	m.keyMutex.Lock()
	defer m.keyMutex.Unlock()

	if _, ok := m.userEl2Keys[userID]; ok {
		return domain.ErrUserKeyActive
	}
	el2Dir := m.layout.el2UserDir(userID)
	if !fsutil.IsDir(el2Dir) {
		return domain.ErrElDirMissing
	}

	bk := domain.NewBaseKey(el2Dir, domain.RawKeySize, m.gateway, m.control, m.logger)
	if err := bk.RestoreKey(auth); err != nil {
		return err
	}
	if err := bk.ActiveKey(m.layout.MountPoint); err != nil {
		return err
	}
	m.userEl2Keys[userID] = bk
	return nil
}

// InactiveUserKey removes userId's EL2 key from the kernel and the
// catalog. The sealed material on disk is left in place so the user can
// be re-activated with ActiveUserKey.
func (m *KeyManager) InactiveUserKey(userID uint32) error {
	m.keyMutex.Lock()
	defer m.keyMutex.Unlock()

	bk, ok := m.userEl2Keys[userID]
	if !ok {
		return domain.ErrUserKeyNotFound
	}
	if err := bk.ClearKey(m.layout.MountPoint); err != nil {
		return err
	}
	delete(m.userEl2Keys, userID)
	return nil
}

// SetDirectoryElPolicy applies the catalog key at level as the filesystem
// encryption policy for every path in paths, failing fast on the first
// path that cannot be tagged.
func (m *KeyManager) SetDirectoryElPolicy(userID uint32, level domain.ELevel, paths []string) error {
	if err := domain.ValidatePaths(paths); err != nil {
		return err
	}

	m.keyMutex.Lock()
	defer m.keyMutex.Unlock()

	var bk *domain.BaseKey
	switch level {
	case domain.EL1:
		bk = m.userEl1Keys[userID]
	case domain.EL2:
		bk = m.userEl2Keys[userID]
	default:
		return domain.ErrUnknownLevel
	}
	if bk == nil {
		return domain.ErrUserKeyNotFound
	}

	var identifier [keystoreDomain.KeyIdentifierSize]byte
	copy(identifier[:], bk.KeyID().Bytes())

	for _, path := range paths {
		if err := m.control.SetPolicy(path, identifier, fscrypt.ModeAES256XTS, fscrypt.ModeAES256CTS, fscrypt.PolicyFlagPad32); err != nil {
			return errors.Wrap(errors.ErrCryptoFailed, "set policy on "+path+": "+err.Error())
		}
	}
	return nil
}
