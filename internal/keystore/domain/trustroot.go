package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ohcore/fbekeyd/internal/config"
)

// TrustRoot is the EL0 device key: a 32-byte secret that seals every EL1 and
// EL2 user key's KeyContext. It is the single root of trust for the whole
// key hierarchy and is never written to disk in plaintext.
type TrustRoot struct {
	ID  string
	Key []byte
}

// TrustRootChain manages a collection of trust root keys with one marked
// active, so that a trust root can be rotated without invalidating material
// sealed under the previous one.
type TrustRootChain struct {
	activeID string
	keys     sync.Map
}

// ActiveTrustRootID returns the ID of the currently active trust root.
func (t *TrustRootChain) ActiveTrustRootID() string {
	return t.activeID
}

// Get retrieves a trust root from the chain by its ID.
func (t *TrustRootChain) Get(id string) (*TrustRoot, bool) {
	if root, ok := t.keys.Load(id); ok {
		return root.(*TrustRoot), ok
	}
	return nil, false
}

// Close zeros all trust root keys from memory and resets the chain.
func (t *TrustRootChain) Close() {
	t.keys.Range(func(_, value any) bool {
		if root, ok := value.(*TrustRoot); ok {
			Zero(root.Key)
		}
		return true
	})
	t.activeID = ""
	t.keys.Clear()
}

// LoadTrustRootChainFromEnv loads trust root keys from the TRUST_ROOT_KEYS
// and ACTIVE_TRUST_ROOT_ID environment variables. Keys must be in format
// "id:base64key" (comma-separated) and exactly 32 bytes once decoded.
func LoadTrustRootChainFromEnv() (*TrustRootChain, error) {
	raw := os.Getenv("TRUST_ROOT_KEYS")
	if raw == "" {
		return nil, ErrTrustRootNotSet
	}

	active := os.Getenv("ACTIVE_TRUST_ROOT_ID")
	if active == "" {
		return nil, ErrActiveTrustRootIDNotSet
	}

	trc := &TrustRootChain{activeID: active}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			trc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidTrustRootFormat, part)
		}
		id := p[0]
		key, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			trc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidTrustRootBase64, id, err)
		}
		if len(key) != RawKeySize {
			Zero(key)
			trc.Close()
			return nil, fmt.Errorf(
				"%w: trust root %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				id,
				RawKeySize,
				len(key),
			)
		}
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		trc.keys.Store(id, &TrustRoot{ID: id, Key: keyCopy})
		Zero(key)
	}

	if _, ok := trc.Get(active); !ok {
		trc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_TRUST_ROOT_ID=%s", ErrActiveTrustRootNotFound, active)
	}

	return trc, nil
}

// KMSService defines the interface for KMS operations required by
// LoadTrustRootChain. Implemented by keystore/service.KMSService.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}

// KMSKeeper defines the interface for KMS decrypt operations.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// maskKeyURI masks sensitive components of a KMS key URI for secure logging.
func maskKeyURI(uri string) string {
	if uri == "" {
		return ""
	}

	parts := strings.SplitN(uri, "://", 2)
	if len(parts) != 2 {
		return "***"
	}

	scheme := parts[0]
	remainder := parts[1]

	if scheme == "base64key" {
		return scheme + "://***"
	}

	switch scheme {
	case "gcpkms":
		pathParts := strings.Split(remainder, "/")
		for i := range pathParts {
			if i%2 == 1 {
				pathParts[i] = "***"
			}
		}
		return scheme + "://" + strings.Join(pathParts, "/")
	case "awskms":
		queryParts := strings.SplitN(remainder, "?", 2)
		masked := scheme + "://***"
		if len(queryParts) == 2 {
			masked += "?" + queryParts[1]
		}
		return masked
	case "azurekeyvault", "hashivault":
		return scheme + "://***"
	default:
		return scheme + "://***"
	}
}

// loadTrustRootChainFromKMS loads and decrypts trust root keys from
// TRUST_ROOT_KEYS using KMS. TRUST_ROOT_KEYS holds KMS-encrypted keys in
// format "id:base64ciphertext".
func loadTrustRootChainFromKMS(
	ctx context.Context,
	cfg *config.Config,
	kmsService KMSService,
	logger *slog.Logger,
) (*TrustRootChain, error) {
	raw := os.Getenv("TRUST_ROOT_KEYS")
	if raw == "" {
		return nil, ErrTrustRootNotSet
	}

	active := os.Getenv("ACTIVE_TRUST_ROOT_ID")
	if active == "" {
		return nil, ErrActiveTrustRootIDNotSet
	}

	maskedURI := maskKeyURI(cfg.KMSKeyURI)
	logger.Info("opening KMS keeper",
		slog.String("kms_provider", cfg.KMSProvider),
		slog.String("kms_key_uri", maskedURI),
	)

	keeper, err := kmsService.OpenKeeper(ctx, cfg.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKMSOpenKeeperFailed, err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	trc := &TrustRootChain{activeID: active}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			trc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidTrustRootFormat, part)
		}
		id := p[0]

		ciphertext, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			trc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidTrustRootBase64, id, err)
		}

		logger.Info("decrypting trust root with KMS",
			slog.String("trust_root_id", id),
			slog.String("kms_provider", cfg.KMSProvider),
		)

		key, err := keeper.Decrypt(ctx, ciphertext)
		Zero(ciphertext)
		if err != nil {
			trc.Close()
			return nil, fmt.Errorf("%w for trust root %s: %v", ErrKMSDecryptionFailed, id, err)
		}

		if len(key) != RawKeySize {
			Zero(key)
			trc.Close()
			return nil, fmt.Errorf(
				"%w: trust root %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				id,
				RawKeySize,
				len(key),
			)
		}

		trc.keys.Store(id, &TrustRoot{ID: id, Key: key})
	}

	if _, ok := trc.Get(active); !ok {
		trc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_TRUST_ROOT_ID=%s", ErrActiveTrustRootNotFound, active)
	}

	logger.Info("trust root chain loaded from KMS", slog.String("active_trust_root_id", active))

	return trc, nil
}

// LoadTrustRootChain loads the device trust root from environment
// variables, auto-detecting KMS-wrapped vs legacy plaintext mode. If
// KMS_PROVIDER is set, keys are decrypted via KMS; otherwise plaintext
// base64-encoded keys are read directly.
func LoadTrustRootChain(
	ctx context.Context,
	cfg *config.Config,
	kmsService KMSService,
	logger *slog.Logger,
) (*TrustRootChain, error) {
	if cfg.KMSProvider != "" && cfg.KMSKeyURI == "" {
		return nil, ErrKMSKeyURINotSet
	}
	if cfg.KMSKeyURI != "" && cfg.KMSProvider == "" {
		return nil, ErrKMSProviderNotSet
	}

	if cfg.KMSProvider != "" {
		logger.Info("loading trust root chain in KMS mode", slog.String("kms_provider", cfg.KMSProvider))
		return loadTrustRootChainFromKMS(ctx, cfg, kmsService, logger)
	}

	logger.Info("loading trust root chain in legacy mode (plaintext)")
	return LoadTrustRootChainFromEnv()
}
