// Package service provides the cryptographic service layer backing the
// keystore: AEAD cipher implementations and the KeystoreGateway that seals
// and unseals device/user key material.
//
// # Services Overview
//
// AEADManagerService: Factory for creating AEAD cipher instances.
// Supports AES-256-GCM and ChaCha20-Poly1305 algorithms.
//
// SoftwareGateway / KMSGateway: Implementations of KeystoreGateway, the
// contract a hardware-backed keystore would expose (generate_random,
// generate_key, seal, unseal, delete_key) over a per-alias key derived
// from the device trust root.
//
// AESGCMCipher: Implements AEAD using AES-256-GCM with hardware acceleration support.
//
// ChaCha20Poly1305Cipher: Implements AEAD using ChaCha20-Poly1305 for platforms
// without AES hardware acceleration.
//
// # Thread Safety
//
// All service implementations are thread-safe; the cipher and manager types
// are stateless, and SoftwareGateway guards its set of provisioned aliases
// with a mutex. Multiple goroutines can safely use the same service instances
// for concurrent operations.
//
// # Algorithm Selection
//
//   - Use AESGCM on servers and modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on mobile devices, embedded systems, or platforms without AES-NI
//   - Both provide equivalent 256-bit security when properly implemented
package service

import (
	"context"

	keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
//
// AEAD encryption provides both confidentiality and authenticity guarantees,
// protecting against unauthorized access and tampering. Implementations ensure
// that any modification to the ciphertext or AAD will be detected during decryption.
//
// Security requirements:
//   - Nonces must be unique for each encryption with the same key
//   - Keys should be at least 256 bits for strong security
//   - The same AAD used during encryption must be provided during decryption
//
// Implementations: AESGCMCipher, ChaCha20Poly1305Cipher
type AEAD interface {
	// Encrypt encrypts plaintext with optional additional authenticated data (AAD).
	//
	// A unique nonce is automatically generated for each encryption operation.
	// The nonce must be stored alongside the ciphertext for later decryption.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	//
	// This method verifies the authentication tag before returning plaintext,
	// ensuring the ciphertext hasn't been tampered with.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
//
// The manager supports two algorithms:
//   - AESGCM: AES-256-GCM (best on hardware with AES-NI acceleration)
//   - ChaCha20: ChaCha20-Poly1305 (best on mobile/embedded systems)
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	//
	// The key must be exactly 32 bytes (256 bits) for both supported algorithms.
	// Returns ErrInvalidKeySize if key is not 32 bytes, ErrUnsupportedAlgorithm
	// if the algorithm is not supported.
	CreateCipher(key []byte, alg keystoreDomain.Algorithm) (AEAD, error)
}

// KeystoreGateway is the contract over a hardware-backed (or software)
// keystore used to generate random material and to seal/unseal device and
// user key contexts. A real deployment backs this with a TEE/HSM; this
// repository ships a SoftwareGateway derived from the device trust root,
// and a KMSGateway that additionally unwraps that trust root from an
// external KMS at boot.
type KeystoreGateway interface {
	// Init prepares the gateway (e.g. opening a KMS keeper) before first use.
	Init(ctx context.Context) error

	// GenerateRandom fills buf with cryptographically secure random bytes.
	GenerateRandom(buf []byte) error

	// GenerateKey provisions a keystore-backed key under alias. Calling it
	// twice for the same alias returns ErrAliasAlreadyProvisioned.
	GenerateKey(alias []byte) error

	// Encrypt seals plain under the key provisioned for ctx.Alias, binding
	// secDiscard and auth as associated data so a sealed blob cannot be
	// unsealed under a different discard value or authentication token.
	Encrypt(ctx keystoreDomain.KeyContext, secDiscard, authToken, plain []byte) (sealed, nonce []byte, err error)

	// Decrypt reverses Encrypt. Returns ErrDecryptionFailed if the
	// authentication tag does not verify.
	Decrypt(ctx keystoreDomain.KeyContext, secDiscard, authToken, sealed, nonce []byte) ([]byte, error)

	// DeleteKey revokes the keystore-backed key for alias. Implementations
	// that have nothing external to revoke treat this as a best-effort no-op.
	DeleteKey(alias []byte) error

	// Close releases resources (such as a KMS keeper) held by the gateway.
	// Derived per-alias keys are not cached, so there are none to release.
	Close() error
}
