// Package domain defines the key material and cryptographic primitives shared
// by the fscrypt key-management core: owned secret buffers, AEAD algorithm
// selection, and the device trust root used to seal every EL1/EL2 user key.
package domain

import (
	"github.com/ohcore/fbekeyd/internal/errors"
)

// Cryptographic operation errors.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid (must be 32 bytes).
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates decryption failed due to wrong key or corrupted data.
	ErrDecryptionFailed = errors.Wrap(errors.ErrCryptoFailed, "decryption failed")

	// ErrTrustRootNotSet indicates the TRUST_ROOT_KEYS environment variable is not configured.
	ErrTrustRootNotSet = errors.Wrap(errors.ErrInvalidInput, "TRUST_ROOT_KEYS not set")

	// ErrActiveTrustRootIDNotSet indicates the ACTIVE_TRUST_ROOT_ID environment variable is not configured.
	ErrActiveTrustRootIDNotSet = errors.Wrap(errors.ErrInvalidInput, "ACTIVE_TRUST_ROOT_ID not set")

	// ErrInvalidTrustRootFormat indicates the TRUST_ROOT_KEYS format is invalid.
	ErrInvalidTrustRootFormat = errors.Wrap(errors.ErrInvalidInput, "invalid TRUST_ROOT_KEYS format")

	// ErrInvalidTrustRootBase64 indicates a trust root key is not valid base64.
	ErrInvalidTrustRootBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid trust root key base64")

	// ErrActiveTrustRootNotFound indicates the active trust root ID was not found in the chain.
	ErrActiveTrustRootNotFound = errors.Wrap(errors.ErrInvalidInput, "active trust root not found")

	// ErrTrustRootNotFound indicates a trust root key with the specified ID was not found.
	ErrTrustRootNotFound = errors.Wrap(errors.ErrNotFound, "trust root key not found")

	// ErrAliasAlreadyProvisioned indicates GenerateKey was called twice for the same alias.
	ErrAliasAlreadyProvisioned = errors.Wrap(errors.ErrConflict, "alias already provisioned")

	// ErrKMSProviderNotSet indicates the KMS_PROVIDER environment variable is not configured (required).
	ErrKMSProviderNotSet = errors.Wrap(
		errors.ErrInvalidInput,
		"KMS_PROVIDER is required but not configured (use 'localsecrets' for local development)",
	)

	// ErrKMSKeyURINotSet indicates the KMS_KEY_URI environment variable is not configured (required).
	ErrKMSKeyURINotSet = errors.Wrap(
		errors.ErrInvalidInput,
		"KMS_KEY_URI is required but not configured",
	)

	// ErrKMSDecryptionFailed indicates KMS decryption of the trust root failed.
	ErrKMSDecryptionFailed = errors.Wrap(errors.ErrCryptoFailed, "KMS decryption failed")

	// ErrKMSOpenKeeperFailed indicates opening KMS keeper failed.
	ErrKMSOpenKeeperFailed = errors.Wrap(errors.ErrCryptoFailed, "failed to open KMS keeper")
)
