package domain_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohcore/fbekeyd/internal/errors"
	"github.com/ohcore/fbekeyd/internal/fbe/domain"
	"github.com/ohcore/fbekeyd/internal/fscrypt"
	keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"
	keystoreService "github.com/ohcore/fbekeyd/internal/keystore/service"
)

func newTestGateway(t *testing.T) keystoreService.KeystoreGateway {
	t.Helper()
	root := make([]byte, keystoreDomain.RawKeySize)
	for i := range root {
		root[i] = byte(i)
	}
	gw, err := keystoreService.NewSoftwareGateway(keystoreService.NewAEADManager(), keystoreDomain.AESGCM, root)
	require.NoError(t, err)
	return gw
}

func newTestBaseKey(t *testing.T) (*domain.BaseKey, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "key")
	bk := domain.NewBaseKey(dir, domain.RawKeySize, newTestGateway(t), fscrypt.NewFake(), nil)
	return bk, dir
}

func TestBaseKey_InitKey(t *testing.T) {
	bk, _ := newTestBaseKey(t)

	require.NoError(t, bk.InitKey())

	err := bk.InitKey()
	assert.ErrorIs(t, err, domain.ErrKeyNotEmpty)
}

func TestBaseKey_StoreThenRestore_RoundTrips(t *testing.T) {
	auth := domain.UserAuth{Token: "token-a"}
	bk, dir := newTestBaseKey(t)

	require.NoError(t, bk.InitKey())
	require.NoError(t, bk.StoreKey(auth))

	for _, name := range []string{"alias", "sec_discard", "encrypted"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s to exist", name)
	}
	_, err := os.Stat(dir + ".tmp")
	assert.True(t, os.IsNotExist(err), "tmp dir must not survive a successful store")

	restored := domain.NewBaseKey(dir, domain.RawKeySize, newTestGateway(t), fscrypt.NewFake(), nil)
	require.NoError(t, restored.RestoreKey(auth))
}

func TestBaseKey_RestoreWithWrongAuth_Fails(t *testing.T) {
	bk, dir := newTestBaseKey(t)
	require.NoError(t, bk.InitKey())
	require.NoError(t, bk.StoreKey(domain.UserAuth{Token: "correct"}))

	restored := domain.NewBaseKey(dir, domain.RawKeySize, newTestGateway(t), fscrypt.NewFake(), nil)
	err := restored.RestoreKey(domain.UserAuth{Token: "wrong"})
	assert.Error(t, err)
}

func TestBaseKey_ActiveKey_ClearsRawKeyFromMemory(t *testing.T) {
	bk, _ := newTestBaseKey(t)
	require.NoError(t, bk.InitKey())
	require.NoError(t, bk.StoreKey(domain.UserAuth{}))

	require.NoError(t, bk.ActiveKey("/data/service/el1/public"))
	assert.Equal(t, domain.KeyIdentifierSize, bk.KeyID().Len())
	// InitKey refuses a BaseKey that still holds raw key material, so its
	// success proves ActiveKey cleared it.
	assert.NoError(t, bk.InitKey())
}

func TestBaseKey_ClearKey_RequiresInstalledIdentifier(t *testing.T) {
	bk, _ := newTestBaseKey(t)
	require.NoError(t, bk.InitKey())
	require.NoError(t, bk.StoreKey(domain.UserAuth{}))

	err := bk.ClearKey("/data/service/el1/public")
	assert.ErrorIs(t, err, domain.ErrKeyIDInvalid)

	require.NoError(t, bk.ActiveKey("/data/service/el1/public"))
	assert.NoError(t, bk.ClearKey("/data/service/el1/public"))
}

func TestBaseKey_StoreKey_FailureLeavesDirUntouched(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "key")
	bk := domain.NewBaseKey(dir, domain.RawKeySize, &failingGateway{}, fscrypt.NewFake(), nil)

	require.NoError(t, bk.InitKey())
	err := bk.StoreKey(domain.UserAuth{})
	assert.Error(t, err)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dir + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

// failingGateway always fails GenerateKey, simulating a keystore rejecting
// a fresh alias (the EL2 seal step KeyManager's rollback scenario drives).
type failingGateway struct{}

func (f *failingGateway) Init(_ context.Context) error { return nil }

func (f *failingGateway) GenerateRandom(buf []byte) error {
	for i := range buf {
		buf[i] = byte(i)
	}
	return nil
}
func (f *failingGateway) GenerateKey(_ []byte) error { return errors.ErrCryptoFailed }
func (f *failingGateway) Encrypt(_ keystoreDomain.KeyContext, _, _, _ []byte) ([]byte, []byte, error) {
	return nil, nil, errors.ErrCryptoFailed
}
func (f *failingGateway) Decrypt(_ keystoreDomain.KeyContext, _, _, _, _ []byte) ([]byte, error) {
	return nil, errors.ErrCryptoFailed
}
func (f *failingGateway) DeleteKey(_ []byte) error { return nil }
func (f *failingGateway) Close() error             { return nil }
