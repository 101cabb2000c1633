package usecase

import (
	"context"
	"time"

	"github.com/ohcore/fbekeyd/internal/fbe/domain"
	"github.com/ohcore/fbekeyd/internal/metrics"
)

const metricsDomain = "fbe_key"

// keyManagerWithMetrics decorates a KeyManagerAPI with metrics
// instrumentation, following the teacher's decorator-over-interface
// pattern verbatim: one struct, one RecordOperation/RecordDuration pair
// per wrapped call.
type keyManagerWithMetrics struct {
	next    KeyManagerAPI
	metrics metrics.BusinessMetrics
}

// NewKeyManagerWithMetrics wraps next with metrics recording.
func NewKeyManagerWithMetrics(next KeyManagerAPI, m metrics.BusinessMetrics) KeyManagerAPI {
	return &keyManagerWithMetrics{next: next, metrics: m}
}

func (k *keyManagerWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	k.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	k.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (k *keyManagerWithMetrics) InitGlobalDeviceKey(ctx context.Context) error {
	start := time.Now()
	err := k.next.InitGlobalDeviceKey(ctx)
	k.record(ctx, "init_global_device_key", start, err)
	return err
}

func (k *keyManagerWithMetrics) InitGlobalUserKeys(ctx context.Context) error {
	start := time.Now()
	err := k.next.InitGlobalUserKeys(ctx)
	k.record(ctx, "init_global_user_keys", start, err)
	return err
}

func (k *keyManagerWithMetrics) GenerateUserKeys(userID uint32, flags domain.DirFlag) error {
	start := time.Now()
	err := k.next.GenerateUserKeys(userID, flags)
	k.record(context.Background(), "generate_user_keys", start, err)
	return err
}

func (k *keyManagerWithMetrics) DeleteUserKeys(userID uint32) error {
	start := time.Now()
	err := k.next.DeleteUserKeys(userID)
	k.record(context.Background(), "delete_user_keys", start, err)
	return err
}

func (k *keyManagerWithMetrics) UpdateUserAuth(userID uint32, newAuth domain.UserAuth) error {
	start := time.Now()
	err := k.next.UpdateUserAuth(userID, newAuth)
	k.record(context.Background(), "update_user_auth", start, err)
	return err
}

func (k *keyManagerWithMetrics) ActiveUserKey(userID uint32, auth domain.UserAuth) error {
	start := time.Now()
	err := k.next.ActiveUserKey(userID, auth)
	k.record(context.Background(), "active_user_key", start, err)
	return err
}

func (k *keyManagerWithMetrics) InactiveUserKey(userID uint32) error {
	start := time.Now()
	err := k.next.InactiveUserKey(userID)
	k.record(context.Background(), "inactive_user_key", start, err)
	return err
}

func (k *keyManagerWithMetrics) SetDirectoryElPolicy(userID uint32, level domain.ELevel, paths []string) error {
	start := time.Now()
	err := k.next.SetDirectoryElPolicy(userID, level, paths)
	k.record(context.Background(), "set_directory_el_policy", start, err)
	return err
}

// userManagerWithMetrics decorates a UserManagerAPI with the same pattern.
type userManagerWithMetrics struct {
	next    UserManagerAPI
	metrics metrics.BusinessMetrics
}

// NewUserManagerWithMetrics wraps next with metrics recording.
func NewUserManagerWithMetrics(next UserManagerAPI, m metrics.BusinessMetrics) UserManagerAPI {
	return &userManagerWithMetrics{next: next, metrics: m}
}

func (u *userManagerWithMetrics) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ctx := context.Background()
	u.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	u.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (u *userManagerWithMetrics) AddUser(userID uint32) error {
	start := time.Now()
	err := u.next.AddUser(userID)
	u.record("add_user", start, err)
	return err
}

func (u *userManagerWithMetrics) RemoveUser(userID uint32) error {
	start := time.Now()
	err := u.next.RemoveUser(userID)
	u.record("remove_user", start, err)
	return err
}

func (u *userManagerWithMetrics) PrepareUserDirs(userID uint32, flags domain.DirFlag) error {
	start := time.Now()
	err := u.next.PrepareUserDirs(userID, flags)
	u.record("prepare_user_dirs", start, err)
	return err
}

func (u *userManagerWithMetrics) DestroyUserDirs(userID uint32, flags domain.DirFlag) error {
	start := time.Now()
	err := u.next.DestroyUserDirs(userID, flags)
	u.record("destroy_user_dirs", start, err)
	return err
}

func (u *userManagerWithMetrics) StartUser(userID uint32) error {
	start := time.Now()
	err := u.next.StartUser(userID)
	u.record("start_user", start, err)
	return err
}

func (u *userManagerWithMetrics) StopUser(userID uint32) error {
	start := time.Now()
	err := u.next.StopUser(userID)
	u.record("stop_user", start, err)
	return err
}
