package domain

import (
	"encoding/hex"
	"runtime"
)

// KeyBlob is an owned buffer of secret bytes. It is the Go analogue of the
// fixed KeyBlob struct the kernel FBE key hierarchy passes between disk,
// keystore, and kernel install calls: callers never alias the backing array,
// and Clear must be called once the blob is no longer needed.
type KeyBlob struct {
	data []byte
}

// Alloc reserves size bytes of zeroed storage for the blob. Calling Alloc on
// an already-allocated blob first clears the previous contents.
func (k *KeyBlob) Alloc(size int) error {
	if size < 0 {
		return ErrInvalidKeySize
	}
	k.Clear()
	k.data = make([]byte, size)
	return nil
}

// Set copies src into a freshly allocated blob, leaving src untouched.
func (k *KeyBlob) Set(src []byte) {
	k.Clear()
	k.data = make([]byte, len(src))
	copy(k.data, src)
}

// Bytes returns the blob's backing storage. Callers must not retain it past
// the next call to Clear.
func (k *KeyBlob) Bytes() []byte {
	return k.data
}

// IsEmpty reports whether the blob currently holds no material.
func (k *KeyBlob) IsEmpty() bool {
	return len(k.data) == 0
}

// Len returns the number of bytes currently held.
func (k *KeyBlob) Len() int {
	return len(k.data)
}

// Clone returns a new KeyBlob holding an independent copy of the same bytes.
func (k *KeyBlob) Clone() KeyBlob {
	var c KeyBlob
	c.Set(k.data)
	return c
}

// ToHexString renders the blob as hex. Only ever call this for logging at
// debug level against non-secret identifiers (key descriptors, key IDs) —
// never against raw key material.
func (k *KeyBlob) ToHexString() string {
	return hex.EncodeToString(k.data)
}

// Clear overwrites the backing array with zeros and releases it. Safe to
// call on an already-cleared or zero-value KeyBlob.
func (k *KeyBlob) Clear() {
	Zero(k.data)
	runtime.KeepAlive(k.data)
	k.data = nil
}
