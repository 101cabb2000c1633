package fscrypt

import (
	"crypto/sha256"
	"sync"

	"github.com/ohcore/fbekeyd/internal/errors"
)

// Fake is an in-memory Control used by BaseKey/KeyManager/UserManager unit
// tests so they exercise the v2 install/remove/policy contract without a
// real fscrypt-capable filesystem or root privileges.
type Fake struct {
	mu   sync.Mutex
	keys map[[16]byte][]byte

	keyrings map[int]map[string]int32 // keyring -> "type:description" -> serial
	byserial map[int32][]byte
	nextID   int32

	V2Supported bool
}

// NewFake returns a Fake with v2 support enabled by default.
func NewFake() *Fake {
	return &Fake{
		keys:        make(map[[16]byte][]byte),
		keyrings:    make(map[int]map[string]int32),
		byserial:    make(map[int32][]byte),
		nextID:      1,
		V2Supported: true,
	}
}

func (f *Fake) ProbeV2Support(mountPoint string) bool {
	return f.V2Supported
}

func (f *Fake) InstallKey(mountPoint string, raw []byte) (identifier [16]byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := sha256.Sum256(raw)
	copy(identifier[:], sum[:16])
	stored := make([]byte, len(raw))
	copy(stored, raw)
	f.keys[identifier] = stored
	return identifier, nil
}

func (f *Fake) RemoveKey(mountPoint string, identifier [16]byte) (RemovalStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[identifier]; !ok {
		return RemovalStatus{}, errors.Wrap(errors.ErrNotFound, "key not installed")
	}
	delete(f.keys, identifier)
	return RemovalStatus{}, nil
}

func (f *Fake) SetPolicy(path string, identifier [16]byte, contentsMode, filenamesMode, flags byte) error {
	return nil
}

func (f *Fake) GetPolicy(path string) (Policy, error) {
	return Policy{}, errors.Wrap(errors.ErrNotFound, "fake control does not track policies")
}

func (f *Fake) KeyringAdd(keyType, description string, payload []byte, keyring int) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keyrings[keyring] == nil {
		f.keyrings[keyring] = make(map[string]int32)
	}
	id := f.nextID
	f.nextID++
	f.keyrings[keyring][keyType+":"+description] = id
	stored := make([]byte, len(payload))
	copy(stored, payload)
	f.byserial[id] = stored
	return id, nil
}

func (f *Fake) KeyringSearch(keyring int, keyType, description string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ring := f.keyrings[keyring]
	if ring == nil {
		return 0, errors.Wrap(errors.ErrNotFound, "key not found")
	}
	id, ok := ring[keyType+":"+description]
	if !ok {
		return 0, errors.Wrap(errors.ErrNotFound, "key not found")
	}
	return id, nil
}

func (f *Fake) KeyringUnlink(serial, keyring int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ring := f.keyrings[int(keyring)]
	for k, v := range ring {
		if v == serial {
			delete(ring, k)
		}
	}
	delete(f.byserial, serial)
	return nil
}

var _ Control = (*Fake)(nil)
