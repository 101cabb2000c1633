package service

import (
	"context"
	"crypto/rand"
	"sync"

	keystoreDomain "github.com/ohcore/fbekeyd/internal/keystore/domain"
)

// SoftwareGateway is the default, dependency-free KeystoreGateway
// implementation. It derives a unique per-alias AEAD key from the device
// trust root via HKDF and seals key contexts with that derived key,
// emulating the generate_key/encrypt/decrypt/delete_key contract a real
// hardware-backed keystore would expose.
type SoftwareGateway struct {
	aeadManager AEADManager
	alg         keystoreDomain.Algorithm
	trustRoot   []byte

	mu      sync.Mutex
	aliases map[string]struct{}
}

// NewSoftwareGateway constructs a SoftwareGateway sealing under trustRoot
// with the given AEAD algorithm. trustRoot must be exactly 32 bytes; the
// gateway keeps its own copy and the caller remains responsible for
// clearing the original.
func NewSoftwareGateway(aeadManager AEADManager, alg keystoreDomain.Algorithm, trustRoot []byte) (*SoftwareGateway, error) {
	if len(trustRoot) != keystoreDomain.RawKeySize {
		return nil, keystoreDomain.ErrInvalidKeySize
	}
	root := make([]byte, len(trustRoot))
	copy(root, trustRoot)
	return &SoftwareGateway{
		aeadManager: aeadManager,
		alg:         alg,
		trustRoot:   root,
		aliases:     make(map[string]struct{}),
	}, nil
}

// Init is a no-op for the software gateway; there is no external session
// to establish.
func (g *SoftwareGateway) Init(ctx context.Context) error {
	return nil
}

// GenerateRandom fills buf with cryptographically secure random bytes.
func (g *SoftwareGateway) GenerateRandom(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}

// GenerateKey records that alias has been provisioned. The "key" itself is
// the HKDF derivation, computed lazily on each Encrypt/Decrypt call, so
// GenerateKey's only job is to reject double-provisioning.
func (g *SoftwareGateway) GenerateKey(alias []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := string(alias)
	if _, exists := g.aliases[key]; exists {
		return keystoreDomain.ErrAliasAlreadyProvisioned
	}
	g.aliases[key] = struct{}{}
	return nil
}

// Encrypt seals plain under the key derived for ctx.Alias, with AAD built
// from secDiscard and authToken so sealed material cannot be unsealed
// under a different discard value or authentication token.
func (g *SoftwareGateway) Encrypt(
	ctx keystoreDomain.KeyContext,
	secDiscard, authToken, plain []byte,
) (sealed, nonce []byte, err error) {
	derived, err := deriveAliasKey(g.trustRoot, ctx.Alias.Bytes())
	if err != nil {
		return nil, nil, err
	}
	defer keystoreDomain.Zero(derived)

	cipher, err := g.aeadManager.CreateCipher(derived, g.alg)
	if err != nil {
		return nil, nil, err
	}

	aad := buildAAD(secDiscard, authToken)
	return cipher.Encrypt(plain, aad)
}

// Decrypt reverses Encrypt.
func (g *SoftwareGateway) Decrypt(
	ctx keystoreDomain.KeyContext,
	secDiscard, authToken, sealed, nonce []byte,
) ([]byte, error) {
	derived, err := deriveAliasKey(g.trustRoot, ctx.Alias.Bytes())
	if err != nil {
		return nil, err
	}
	defer keystoreDomain.Zero(derived)

	cipher, err := g.aeadManager.CreateCipher(derived, g.alg)
	if err != nil {
		return nil, err
	}

	aad := buildAAD(secDiscard, authToken)
	plain, err := cipher.Decrypt(sealed, nonce, aad)
	if err != nil {
		return nil, keystoreDomain.ErrDecryptionFailed
	}
	return plain, nil
}

// DeleteKey has nothing external to revoke for a software-derived key; it
// only forgets the alias so a future GenerateKey for it succeeds again.
func (g *SoftwareGateway) DeleteKey(alias []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.aliases, string(alias))
	return nil
}

// Close zeros the cached trust root.
func (g *SoftwareGateway) Close() error {
	keystoreDomain.Zero(g.trustRoot)
	return nil
}

func buildAAD(secDiscard, authToken []byte) []byte {
	aad := make([]byte, 0, len(secDiscard)+len(authToken))
	aad = append(aad, secDiscard...)
	aad = append(aad, authToken...)
	return aad
}
