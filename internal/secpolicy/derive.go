package secpolicy

import (
	"crypto/hmac"
	"hash"
)

// pSHA implements the OPC UA P_SHA1/P_SHA256 pseudo-random function
// (RFC 2246 §5's PRF construction, reused by OPC UA's key derivation):
// A(0) = seed; A(i) = HMAC(secret, A(i-1)); output = HMAC(secret, A(i) + seed)
// repeated until at least length bytes are produced, then truncated.
func pSHA(newHash func() hash.Hash, secret, seed []byte, length int) []byte {
	mac := hmac.New(newHash, secret)
	a := seed
	out := make([]byte, 0, length+mac.Size())
	for len(out) < length {
		mac.Reset()
		mac.Write(a)
		a = mac.Sum(nil)

		mac.Reset()
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:length]
}

// SymmetricKeys is one direction's derived key material: a signing key,
// an encryption key, and an initialization vector (OPC UA Part 6).
type SymmetricKeys struct {
	SigningKey    []byte
	EncryptingKey []byte
	IV            []byte
}

// DerivedKeySet holds both directions' keys produced from a single
// (client_nonce, server_nonce) pair (OPC UA Part 6 key derivation).
type DerivedKeySet struct {
	Client SymmetricKeys
	Server SymmetricKeys
}

// Derive implements OPC UA Part 6's key derivation: client keys are derived
// from the server's nonce as seed (secret=clientNonce), and vice versa,
// matching the OPC UA convention that each side derives the keys it
// will use to protect the messages *it* sends from the nonce the *other*
// side contributed.
func Derive(p Policy, clientNonce, serverNonce []byte) DerivedKeySet {
	if p.IsNone() {
		return DerivedKeySet{}
	}
	clientMaterial := pSHA(p.DerivationHash, clientNonce, serverNonce, p.SigningKeyLength+p.SymmetricKeyLength+p.SymmetricBlockSize)
	serverMaterial := pSHA(p.DerivationHash, serverNonce, clientNonce, p.SigningKeyLength+p.SymmetricKeyLength+p.SymmetricBlockSize)

	split := func(material []byte) SymmetricKeys {
		sk := material[:p.SigningKeyLength]
		ek := material[p.SigningKeyLength : p.SigningKeyLength+p.SymmetricKeyLength]
		iv := material[p.SigningKeyLength+p.SymmetricKeyLength : p.SigningKeyLength+p.SymmetricKeyLength+p.SymmetricBlockSize]
		return SymmetricKeys{SigningKey: sk, EncryptingKey: ek, IV: iv}
	}
	return DerivedKeySet{Client: split(clientMaterial), Server: split(serverMaterial)}
}
