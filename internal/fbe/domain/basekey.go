package domain

import (
	"crypto/sha512"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ohcore/fbekeyd/internal/errors"
	"github.com/ohcore/fbekeyd/internal/fbe/fsutil"
	"github.com/ohcore/fbekeyd/internal/fscrypt"
	keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"
	keystoreService "github.com/ohcore/fbekeyd/internal/keystore/service"
)

const (
	fileAlias      = "alias"
	fileSecDiscard = "sec_discard"
	fileEncrypted  = "encrypted"
	fileKeyID      = "kid"
)

// BaseKey is the lifecycle of one key: the on-disk directory holding its
// sealed material, its in-memory plaintext projection once restored, and
// its install state in the kernel. It is grounded directly on
// BaseKey::InitKey/StoreKey/RestoreKey/ActiveKey/ClearKey from the source
// this spec distills, translated from raw-pointer C++ to owned Go values.
//
// A BaseKey is exclusively owned by whoever holds it — KeyManager never
// shares one across catalog entries.
type BaseKey struct {
	dir    string
	keyLen int

	keyInfo    keystoreDomain.KeyInfo
	keyContext keystoreDomain.KeyContext

	gateway keystoreService.KeystoreGateway
	control fscrypt.Control

	logger *slog.Logger
}

// NewBaseKey constructs a BaseKey rooted at dir, sealing/unsealing through
// gateway and installing into the kernel through control.
func NewBaseKey(dir string, keyLen int, gateway keystoreService.KeystoreGateway, control fscrypt.Control, logger *slog.Logger) *BaseKey {
	return &BaseKey{
		dir:     dir,
		keyLen:  keyLen,
		gateway: gateway,
		control: control,
		logger:  logger,
	}
}

// Dir returns the key's storage directory.
func (k *BaseKey) Dir() string {
	return k.dir
}

// KeyID exposes the v2 key identifier once ActiveKey has installed it, for
// callers that need to pass it to SetDirectoryElPolicy.
func (k *BaseKey) KeyID() keystoreDomain.KeyBlob {
	return k.keyInfo.KeyID
}

// InitKey fills keyInfo.Key with keyLen random bytes and derives keyDesc.
// Pre: keyInfo.Key is empty. On any failure key and keyDesc are cleared.
func (k *BaseKey) InitKey() error {
	if !k.keyInfo.Key.IsEmpty() {
		return ErrKeyNotEmpty
	}

	raw := make([]byte, k.keyLen)
	if err := k.gateway.GenerateRandom(raw); err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, "generate raw key")
	}
	k.keyInfo.Key.Set(raw)
	keystoreDomain.Zero(raw)

	if err := k.generateKeyDesc(); err != nil {
		k.keyInfo.Key.Clear()
		return err
	}
	return nil
}

// generateKeyDesc computes keyDesc as the first AliasSize bytes of
// SHA-512(SHA-512(key)), the legacy v1 keyring descriptor.
func (k *BaseKey) generateKeyDesc() error {
	if k.keyInfo.Key.IsEmpty() {
		return ErrKeyEmpty
	}
	first := sha512.Sum512(k.keyInfo.Key.Bytes())
	second := sha512.Sum512(first[:])
	k.keyInfo.KeyDesc.Set(second[:AliasSize])
	return nil
}

// StoreKey transactionally persists the current keyInfo against auth:
// writes alias, sec_discard, and encrypted into dir+".tmp", then swaps it
// in for dir. On any failure before the swap, dir is left untouched.
func (k *BaseKey) StoreKey(auth UserAuth) error {
	err := fsutil.StoreAtomic(k.dir, func(tmpDir string) error {
		return k.doStoreKey(tmpDir, auth)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, err.Error())
	}
	return nil
}

func (k *BaseKey) doStoreKey(tmpDir string, auth UserAuth) error {
	alias := make([]byte, AliasSize)
	if err := k.gateway.GenerateRandom(alias); err != nil {
		return fmt.Errorf("generate alias: %w", err)
	}
	k.keyContext.Alias.Set(alias)
	keystoreDomain.Zero(alias)

	if err := k.gateway.GenerateKey(k.keyContext.Alias.Bytes()); err != nil {
		return fmt.Errorf("generate keystore key: %w", err)
	}
	if err := writeBlob(tmpDir, fileAlias, k.keyContext.Alias); err != nil {
		return err
	}

	secDiscard := make([]byte, SecDiscardSize)
	if err := k.gateway.GenerateRandom(secDiscard); err != nil {
		return fmt.Errorf("generate sec_discard: %w", err)
	}
	k.keyContext.SecDiscard.Set(secDiscard)
	keystoreDomain.Zero(secDiscard)
	if err := writeBlob(tmpDir, fileSecDiscard, k.keyContext.SecDiscard); err != nil {
		return err
	}

	sealed, nonce, err := k.gateway.Encrypt(
		k.keyContext,
		k.keyContext.SecDiscard.Bytes(),
		[]byte(auth.Token),
		k.keyInfo.Key.Bytes(),
	)
	k.keyContext.Nonce.Clear()
	k.keyContext.AAD.Clear()
	if err != nil {
		return fmt.Errorf("seal key: %w", err)
	}
	k.keyContext.Encrypted.Set(append(append([]byte{}, sealed...), nonce...))
	if err := writeBlob(tmpDir, fileEncrypted, k.keyContext.Encrypted); err != nil {
		return err
	}

	return nil
}

// RestoreKey loads the sealed key material from dir and unseals it against
// auth, recomputing keyDesc. On any failure keyInfo.Key is cleared.
func (k *BaseKey) RestoreKey(auth UserAuth) error {
	encrypted, err := readBlob(k.dir, fileEncrypted, 0)
	if err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, "load encrypted: "+err.Error())
	}
	k.keyContext.Encrypted.Set(encrypted)

	alias, err := readBlob(k.dir, fileAlias, AliasSize)
	if err != nil {
		k.keyContext.Encrypted.Clear()
		return errors.Wrap(errors.ErrCryptoFailed, "load alias: "+err.Error())
	}
	k.keyContext.Alias.Set(alias)

	secDiscard, err := readBlob(k.dir, fileSecDiscard, SecDiscardSize)
	if err != nil {
		k.keyContext.Encrypted.Clear()
		k.keyContext.Alias.Clear()
		return errors.Wrap(errors.ErrCryptoFailed, "load sec_discard: "+err.Error())
	}
	k.keyContext.SecDiscard.Set(secDiscard)

	return k.decryptKey(auth)
}

func (k *BaseKey) decryptKey(auth UserAuth) error {
	ciphertext, nonce := splitSealed(k.keyContext.Encrypted.Bytes())
	plain, err := k.gateway.Decrypt(
		k.keyContext,
		k.keyContext.SecDiscard.Bytes(),
		[]byte(auth.Token),
		ciphertext,
		nonce,
	)
	k.keyContext.Nonce.Clear()
	k.keyContext.AAD.Clear()
	if err != nil {
		k.keyInfo.Key.Clear()
		return errors.Wrap(errors.ErrCryptoFailed, "unseal key: "+err.Error())
	}

	k.keyInfo.Key.Set(plain)
	keystoreDomain.Zero(plain)

	if err := k.generateKeyDesc(); err != nil {
		k.keyInfo.Key.Clear()
		return err
	}
	return nil
}

// nonceSize is fixed for every AEAD algorithm this repository wires in
// (AES-256-GCM and ChaCha20-Poly1305 both use 12-byte nonces).
const nonceSize = 12

func splitSealed(sealed []byte) (ciphertext, nonce []byte) {
	if len(sealed) < nonceSize {
		return sealed, nil
	}
	split := len(sealed) - nonceSize
	return sealed[:split], sealed[split:]
}

// ActiveKey installs keyInfo.Key into the kernel via the v2 fscrypt
// control surface, persists the resulting identifier, and clears the raw
// key from memory — no raw key may persist in user-space after install.
func (k *BaseKey) ActiveKey(mountPoint string) error {
	if k.keyInfo.Key.IsEmpty() {
		return ErrKeyEmpty
	}

	identifier, err := k.control.InstallKey(mountPoint, k.keyInfo.Key.Bytes())
	if err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, "install key: "+err.Error())
	}
	k.keyInfo.KeyID.Set(identifier[:])

	if err := writeBlob(k.dir, fileKeyID, k.keyInfo.KeyID); err != nil {
		return err
	}

	k.keyInfo.Key.Clear()
	return nil
}

// ActiveKeyLegacy installs keyInfo.Key into the session keyring under the
// "fscrypt" sub-keyring, once per filesystem prefix, for kernels without
// v2 ioctl support.
func (k *BaseKey) ActiveKeyLegacy() error {
	if k.keyInfo.KeyDesc.IsEmpty() {
		return ErrKeyDescEmpty
	}
	if k.keyInfo.Key.IsEmpty() {
		return ErrKeyEmpty
	}

	const sessionKeyring = -3 // KEY_SPEC_SESSION_KEYRING

	krid, err := k.control.KeyringSearch(sessionKeyring, "keyring", "fscrypt")
	if err != nil {
		krid, err = k.control.KeyringAdd("keyring", "fscrypt", nil, sessionKeyring)
		if err != nil {
			return errors.Wrap(errors.ErrCryptoFailed, "add fscrypt session keyring: "+err.Error())
		}
	}

	payload := fscryptKeyPayload(k.keyInfo.Key.Bytes())
	for _, prefix := range NamePrefixes {
		ref := prefix + ":" + k.keyInfo.KeyDesc.ToHexString()
		if _, err := k.control.KeyringAdd("logon", ref, payload, int(krid)); err != nil {
			if k.logger != nil {
				k.logger.Error("add legacy key failed", slog.String("ref", ref), slog.Any("error", err))
			}
		}
	}

	k.keyInfo.Key.Clear()
	return nil
}

// fscryptKeyPayload builds the logon-key payload the kernel expects,
// matching the legacy struct fscrypt_key { u32 mode; u8 raw[64]; u32 size }.
func fscryptKeyPayload(raw []byte) []byte {
	const fsMaxKeySize = 64
	payload := make([]byte, 4+fsMaxKeySize+4)
	payload[0] = fscrypt.ModeAES256XTS
	copy(payload[4:4+fsMaxKeySize], raw)
	sizeOff := 4 + fsMaxKeySize
	payload[sizeOff] = byte(len(raw))
	payload[sizeOff+1] = byte(len(raw) >> 8)
	return payload
}

// ClearKey removes the installed v2 key from the kernel and clears
// keyDesc/keyId. Non-fatal removal flags (OtherUsers, FilesBusy) are
// logged, not returned as errors. The caller removes the on-disk dir.
func (k *BaseKey) ClearKey(mountPoint string) error {
	if k.keyInfo.KeyID.Len() != KeyIdentifierSize {
		return ErrKeyIDInvalid
	}

	var identifier [KeyIdentifierSize]byte
	copy(identifier[:], k.keyInfo.KeyID.Bytes())

	status, err := k.control.RemoveKey(mountPoint, identifier)
	if err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, "remove key: "+err.Error())
	}
	if k.logger != nil {
		if status.OtherUsers {
			k.logger.Warn("other users still have this key", slog.String("dir", k.dir))
		}
		if status.FilesBusy {
			k.logger.Warn("files using this key are still in use", slog.String("dir", k.dir))
		}
	}

	k.keyInfo.KeyDesc.Clear()
	k.keyInfo.KeyID.Clear()
	return nil
}

// ClearKeyLegacy revokes the keystore alias and unlinks the per-prefix
// logon keys from the session keyring. Individual unlink failures are
// tolerated (logged, not returned).
func (k *BaseKey) ClearKeyLegacy() error {
	if k.keyInfo.KeyDesc.IsEmpty() {
		return ErrKeyDescEmpty
	}
	if k.keyContext.Alias.IsEmpty() {
		return errors.Wrap(errors.ErrBadState, "alias is empty")
	}

	if err := k.gateway.DeleteKey(k.keyContext.Alias.Bytes()); err != nil && k.logger != nil {
		k.logger.Error("delete keystore key failed", slog.Any("error", err))
	}

	const sessionKeyring = -3
	krid, err := k.control.KeyringSearch(sessionKeyring, "keyring", "fscrypt")
	if err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, "search fscrypt session keyring: "+err.Error())
	}

	for _, prefix := range NamePrefixes {
		ref := prefix + ":" + k.keyInfo.KeyDesc.ToHexString()
		serial, err := k.control.KeyringSearch(int(krid), "logon", ref)
		if err != nil {
			continue
		}
		if err := k.control.KeyringUnlink(serial, krid); err != nil && k.logger != nil {
			k.logger.Error("unlink legacy key failed", slog.String("ref", ref), slog.Any("error", err))
		}
	}

	k.keyInfo.Key.Clear()
	k.keyInfo.KeyDesc.Clear()
	return nil
}

func writeBlob(dir, name string, blob keystoreDomain.KeyBlob) error {
	if blob.IsEmpty() {
		return errors.Wrap(errors.ErrCryptoFailed, "refusing to persist empty "+name)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, blob.Bytes(), 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readBlob(dir, name string, expectedSize int) ([]byte, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if expectedSize != 0 && len(data) != expectedSize {
		return nil, fmt.Errorf("%s: expected %d bytes, got %d", path, expectedSize, len(data))
	}
	return data, nil
}
