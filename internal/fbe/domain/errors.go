package domain

import "github.com/ohcore/fbekeyd/internal/errors"

// BaseKey, KeyManager, and UserManager errors.
var (
	// ErrKeyNotEmpty indicates InitKey was called on a BaseKey that already
	// holds raw key material.
	ErrKeyNotEmpty = errors.Wrap(errors.ErrBadState, "key is not empty")

	// ErrKeyEmpty indicates an operation requiring raw key material
	// (ActiveKey, ActiveKeyLegacy) was called before Init/Restore.
	ErrKeyEmpty = errors.Wrap(errors.ErrBadState, "key is empty")

	// ErrKeyDescEmpty indicates ActiveKeyLegacy/ClearKeyLegacy was called
	// without a key descriptor present.
	ErrKeyDescEmpty = errors.Wrap(errors.ErrBadState, "key descriptor is empty")

	// ErrKeyIDInvalid indicates ClearKey was called without a valid v2 key
	// identifier on the BaseKey.
	ErrKeyIDInvalid = errors.Wrap(errors.ErrBadState, "key identifier is invalid")

	// ErrUserKeyExists indicates GenerateUserKeys was called for a user
	// that already has an el1 or el2 directory on disk.
	ErrUserKeyExists = errors.Wrap(errors.ErrConflict, "user key already exists")

	// ErrUserKeyNotFound indicates an operation referenced a user key that
	// is not present in the KeyManager catalog.
	ErrUserKeyNotFound = errors.Wrap(errors.ErrNotFound, "user key not found")

	// ErrUserKeyActive indicates ActiveUserKey was called for a user whose
	// el2 key is already active in the catalog.
	ErrUserKeyActive = errors.Wrap(errors.ErrConflict, "user key already active")

	// ErrElDirMissing indicates an encryption-level directory tree required
	// by an operation does not exist on disk.
	ErrElDirMissing = errors.Wrap(errors.ErrNotFound, "encryption level directory missing")

	// ErrElDisabled indicates the el1/el2 storage roots have not been
	// created (InitGlobalUserKeys was never called), so GenerateUserKeys
	// is a no-op rather than a failure.
	ErrElDisabled = errors.Wrap(errors.ErrBadState, "fbe storage directories not initialized")

	// ErrUnknownLevel indicates an operation was asked to act on an
	// ELevel it does not know how to route (only EL1/EL2 are wired up).
	ErrUnknownLevel = errors.Wrap(errors.ErrInvalidInput, "unsupported encryption level")

	// ErrUserNotFound indicates a UserManager operation referenced a
	// userId with no UserInfo record.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserExists indicates AddUser was called for a userId already
	// tracked by UserManager.
	ErrUserExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrWrongUserState indicates a UserManager operation's precondition
	// state did not match the user's current state.
	ErrWrongUserState = errors.Wrap(errors.ErrBadState, "user in wrong state for operation")
)
