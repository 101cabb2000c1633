package usecase

import (
	"context"

	"github.com/ohcore/fbekeyd/internal/fbe/domain"
)

// KeyManagerAPI is the set of operations *KeyManager exposes to callers —
// the seam the metrics decorator wraps and a DI container hands out, so
// both can depend on an interface instead of the concrete catalog type.
type KeyManagerAPI interface {
	InitGlobalDeviceKey(ctx context.Context) error
	InitGlobalUserKeys(ctx context.Context) error
	GenerateUserKeys(userID uint32, flags domain.DirFlag) error
	DeleteUserKeys(userID uint32) error
	UpdateUserAuth(userID uint32, newAuth domain.UserAuth) error
	ActiveUserKey(userID uint32, auth domain.UserAuth) error
	InactiveUserKey(userID uint32) error
	SetDirectoryElPolicy(userID uint32, level domain.ELevel, paths []string) error
}

// UserManagerAPI is the set of operations *UserManager exposes to callers.
type UserManagerAPI interface {
	AddUser(userID uint32) error
	RemoveUser(userID uint32) error
	PrepareUserDirs(userID uint32, flags domain.DirFlag) error
	DestroyUserDirs(userID uint32, flags domain.DirFlag) error
	StartUser(userID uint32) error
	StopUser(userID uint32) error
}

var (
	_ KeyManagerAPI  = (*KeyManager)(nil)
	_ UserManagerAPI = (*UserManager)(nil)
)
