package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohcore/fbekeyd/internal/fbe/domain"
	"github.com/ohcore/fbekeyd/internal/fbe/usecase"
)

// recordedCall is one RecordOperation/RecordDuration pair observed by
// fakeBusinessMetrics.
type recordedCall struct {
	domain    string
	operation string
	status    string
}

type fakeBusinessMetrics struct {
	operations []recordedCall
	durations  []recordedCall
}

func (f *fakeBusinessMetrics) RecordOperation(_ context.Context, d, op, status string) {
	f.operations = append(f.operations, recordedCall{domain: d, operation: op, status: status})
}

func (f *fakeBusinessMetrics) RecordDuration(_ context.Context, d, op string, _ time.Duration, status string) {
	f.durations = append(f.durations, recordedCall{domain: d, operation: op, status: status})
}

// fakeKeyManager lets each test control which call returns an error.
type fakeKeyManager struct {
	usecase.KeyManagerAPI
	err error
}

func (f *fakeKeyManager) GenerateUserKeys(userID uint32, flags domain.DirFlag) error { return f.err }
func (f *fakeKeyManager) DeleteUserKeys(userID uint32) error                        { return f.err }

type fakeUserManager struct {
	usecase.UserManagerAPI
	err error
}

func (f *fakeUserManager) AddUser(userID uint32) error    { return f.err }
func (f *fakeUserManager) RemoveUser(userID uint32) error { return f.err }

func TestKeyManagerWithMetrics_RecordsSuccess(t *testing.T) {
	fm := &fakeBusinessMetrics{}
	km := usecase.NewKeyManagerWithMetrics(&fakeKeyManager{}, fm)

	require.NoError(t, km.GenerateUserKeys(1, domain.FlagEL1))

	require.Len(t, fm.operations, 1)
	assert.Equal(t, "generate_user_keys", fm.operations[0].operation)
	assert.Equal(t, "success", fm.operations[0].status)
	require.Len(t, fm.durations, 1)
	assert.Equal(t, "success", fm.durations[0].status)
}

func TestKeyManagerWithMetrics_RecordsError(t *testing.T) {
	fm := &fakeBusinessMetrics{}
	boom := errors.New("boom")
	km := usecase.NewKeyManagerWithMetrics(&fakeKeyManager{err: boom}, fm)

	err := km.DeleteUserKeys(1)

	assert.ErrorIs(t, err, boom)
	require.Len(t, fm.operations, 1)
	assert.Equal(t, "delete_user_keys", fm.operations[0].operation)
	assert.Equal(t, "error", fm.operations[0].status)
}

func TestUserManagerWithMetrics_RecordsSuccess(t *testing.T) {
	fm := &fakeBusinessMetrics{}
	um := usecase.NewUserManagerWithMetrics(&fakeUserManager{}, fm)

	require.NoError(t, um.AddUser(1))

	require.Len(t, fm.operations, 1)
	assert.Equal(t, "add_user", fm.operations[0].operation)
	assert.Equal(t, "success", fm.operations[0].status)
}

func TestUserManagerWithMetrics_RecordsError(t *testing.T) {
	fm := &fakeBusinessMetrics{}
	boom := errors.New("boom")
	um := usecase.NewUserManagerWithMetrics(&fakeUserManager{err: boom}, fm)

	err := um.RemoveUser(1)

	assert.ErrorIs(t, err, boom)
	require.Len(t, fm.operations, 1)
	assert.Equal(t, "remove_user", fm.operations[0].operation)
	assert.Equal(t, "error", fm.operations[0].status)
}
