package domain

// Size constants for the fixed-shape blobs carried through the key
// hierarchy, mirroring the on-disk fields of a device or user key.
const (
	RawKeySize        = 32
	AliasSize         = 8
	SecDiscardSize    = 16
	KeyIdentifierSize = 16
)

// KeyInfo holds the raw material and derived identifiers of a single
// device or user key once it has been generated or restored.
type KeyInfo struct {
	Key     KeyBlob // raw symmetric key, never written to disk unsealed
	KeyDesc KeyBlob // legacy v1 descriptor, derived via GenerateKeyDesc
	KeyID   KeyBlob // v2 kernel key identifier, returned by InstallKey
}

// Clear releases all key material held by the KeyInfo.
func (ki *KeyInfo) Clear() {
	ki.Key.Clear()
	ki.KeyDesc.Clear()
	ki.KeyID.Clear()
}

// KeyContext is the envelope a KeystoreGateway seals a key under: the
// keystore alias it was generated against, the random discard material
// used to make unauthenticated re-derivation of a cleared key impossible,
// the sealed (encrypted) key bytes, and the AEAD framing around them.
type KeyContext struct {
	Alias      KeyBlob
	SecDiscard KeyBlob
	Encrypted  KeyBlob
	Nonce      KeyBlob
	AAD        KeyBlob // transient, built from SecDiscard + auth token, never persisted
}

// Clear releases all material held by the KeyContext, including the
// transient AAD buffer.
func (kc *KeyContext) Clear() {
	kc.Alias.Clear()
	kc.SecDiscard.Clear()
	kc.Encrypted.Clear()
	kc.Nonce.Clear()
	kc.AAD.Clear()
}
