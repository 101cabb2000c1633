package service

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

// deriveAliasKey derives a unique 32-byte key for alias from the device
// trust root via HKDF-SHA512, so that no two aliases ever share the same
// sealing key even though they all trace back to one root secret.
func deriveAliasKey(trustRoot, alias []byte) ([]byte, error) {
	reader := hkdf.New(sha512.New, trustRoot, nil, alias)
	derived := make([]byte, 32)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, err
	}
	return derived, nil
}
