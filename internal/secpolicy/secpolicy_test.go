package secpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownAndUnknownPolicies(t *testing.T) {
	for _, uri := range []URI{None, Basic128Rsa15, Basic256, Basic256Sha256} {
		p, ok := Lookup(uri)
		assert.True(t, ok)
		assert.Equal(t, uri, p.URI)
	}
	_, ok := Lookup(URI("http://opcfoundation.org/UA/SecurityPolicy#Nonexistent"))
	assert.False(t, ok)
}

func TestIsNoneTreatsEmptyURIAsNone(t *testing.T) {
	assert.True(t, Policy{}.IsNone())
	p, _ := Lookup(None)
	assert.True(t, p.IsNone())
	p, _ = Lookup(Basic256Sha256)
	assert.False(t, p.IsNone())
}

// Derive must produce key material of exactly the lengths the policy
// specifies (OPC UA Part 6) and must be deterministic given the same nonces.
func TestDeriveProducesCorrectLengthsAndIsDeterministic(t *testing.T) {
	p, _ := Lookup(Basic256Sha256)
	clientNonce := []byte("client-nonce-0123456789abcdef01")
	serverNonce := []byte("server-nonce-0123456789abcdef01")

	keys := Derive(p, clientNonce, serverNonce)
	assert.Len(t, keys.Client.SigningKey, p.SigningKeyLength)
	assert.Len(t, keys.Client.EncryptingKey, p.SymmetricKeyLength)
	assert.Len(t, keys.Client.IV, p.SymmetricBlockSize)
	assert.Len(t, keys.Server.SigningKey, p.SigningKeyLength)
	assert.Len(t, keys.Server.EncryptingKey, p.SymmetricKeyLength)
	assert.Len(t, keys.Server.IV, p.SymmetricBlockSize)

	again := Derive(p, clientNonce, serverNonce)
	assert.Equal(t, keys, again)

	// Client and server key material must differ: each is derived from
	// a different nonce as the HMAC secret.
	assert.NotEqual(t, keys.Client.SigningKey, keys.Server.SigningKey)
}

func TestDeriveNoneProducesEmptyKeySet(t *testing.T) {
	p, _ := Lookup(None)
	keys := Derive(p, []byte("a"), []byte("b"))
	assert.Equal(t, DerivedKeySet{}, keys)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	p, _ := Lookup(Basic256Sha256)
	key := make([]byte, p.SigningKeyLength)
	data := []byte("chunk body bytes")

	sig := Sign(p, key, data)
	assert.Len(t, sig, p.SignatureLength)
	assert.True(t, Verify(p, key, data, sig))
	assert.False(t, Verify(p, key, append([]byte{}, append(data, 0)...), sig))
}

func TestSignVerifyNoneIsNoOp(t *testing.T) {
	p, _ := Lookup(None)
	assert.Nil(t, Sign(p, nil, []byte("x")))
	assert.True(t, Verify(p, nil, []byte("x"), []byte("bogus")))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	p, _ := Lookup(Basic256)
	key := make([]byte, p.SymmetricKeyLength)
	iv := make([]byte, p.SymmetricBlockSize)
	plaintext := []byte("a message that is not block aligned")

	ciphertext, err := Encrypt(p, key, iv, plaintext)
	require.NoError(t, err)
	assert.Equal(t, 0, len(ciphertext)%p.SymmetricBlockSize)

	decrypted, err := Decrypt(p, key, iv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptDecryptNoneIsIdentity(t *testing.T) {
	p, _ := Lookup(None)
	plaintext := []byte("passthrough")
	ciphertext, err := Encrypt(p, nil, nil, plaintext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, ciphertext)
}

func TestDecryptRejectsUnalignedCiphertext(t *testing.T) {
	p, _ := Lookup(Basic256)
	key := make([]byte, p.SymmetricKeyLength)
	iv := make([]byte, p.SymmetricBlockSize)
	_, err := Decrypt(p, key, iv, []byte("not aligned"))
	assert.Error(t, err)
}
