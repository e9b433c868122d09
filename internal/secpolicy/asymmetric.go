package secpolicy

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
)

// asymmetricHash returns the hash this policy's asymmetric signature
// algorithm commits to: SHA-1 for Basic128Rsa15/Basic256, SHA-256 for
// Basic256Sha256 (OPC UA Part 6).
func (p Policy) asymmetricHash() crypto.Hash {
	if p.URI == Basic256Sha256 {
		return crypto.SHA256
	}
	return crypto.SHA1
}

func (p Policy) digest(data []byte) []byte {
	if p.asymmetricHash() == crypto.SHA256 {
		sum := sha256.Sum256(data)
		return sum[:]
	}
	sum := sha1.Sum(data)
	return sum[:]
}

// SignAsymmetric signs data with the sender's private key per the
// policy's AsymmetricSignatureAlgorithm, applied to OPN chunk bodies
// (OPC UA Part 6 asymmetric security header).
func SignAsymmetric(p Policy, key *rsa.PrivateKey, data []byte) ([]byte, error) {
	if p.IsNone() {
		return nil, nil
	}
	return rsa.SignPKCS1v15(rand.Reader, key, p.asymmetricHash(), p.digest(data))
}

// VerifyAsymmetric checks an OPN chunk's signature against the sender's
// public key.
func VerifyAsymmetric(p Policy, pub *rsa.PublicKey, data, signature []byte) error {
	if p.IsNone() {
		return nil
	}
	return rsa.VerifyPKCS1v15(pub, p.asymmetricHash(), p.digest(data), signature)
}

// EncryptAsymmetric wraps data (typically a chunk body) under the
// receiver's public key per the policy's AsymmetricEncryptionAlgorithm:
// PKCS#1 v1.5 for Basic128Rsa15, OAEP for Basic256/Basic256Sha256
// (OPC UA Part 6).
func EncryptAsymmetric(p Policy, pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if p.IsNone() {
		return plaintext, nil
	}
	if p.URI == Basic128Rsa15 {
		return rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	}
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plaintext, nil)
}

// DecryptAsymmetric reverses EncryptAsymmetric using the server's
// private key.
func DecryptAsymmetric(p Policy, key *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if p.IsNone() {
		return ciphertext, nil
	}
	if p.URI == Basic128Rsa15 {
		return rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext)
	}
	return rsa.DecryptOAEP(sha1.New(), rand.Reader, key, ciphertext, nil)
}

// PlaintextBlockSize returns the maximum plaintext bytes one asymmetric
// block can carry for this policy's key size, used to split an OPN
// chunk body into multiple RSA blocks when it exceeds one block.
func PlaintextBlockSize(p Policy, modulusBytes int) int {
	switch p.URI {
	case Basic128Rsa15:
		return modulusBytes - 11
	case Basic256, Basic256Sha256:
		return modulusBytes - 2*sha1.Size - 2
	default:
		return modulusBytes
	}
}
