package secpolicy

import (
	"bytes"
	"crypto/hmac"
	"fmt"
)

// Sign computes the HMAC over data using the policy's symmetric
// signature algorithm, appended to MSG/CLO chunk bodies (OPC UA Part 6).
func Sign(p Policy, key, data []byte) []byte {
	if p.IsNone() {
		return nil
	}
	mac := hmac.New(p.DerivationHash, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// Verify checks a received signature in constant time.
func Verify(p Policy, key, data, signature []byte) bool {
	if p.IsNone() {
		return true
	}
	expected := Sign(p, key, data)
	return hmac.Equal(expected, signature)
}

// pkcs7Pad/Unpad implement the block padding AES-CBC requires, matching
// the original server's symmetric chunk encryption (padded to the
// cipher's block size with a trailing padding-size byte, OPC UA style:
// every pad byte, the last included, holds the pad length minus one,
// unlike PKCS#7 proper where it holds the full pad length).
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen - 1)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("secpolicy: invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1]) + 1
	if padLen <= 0 || padLen > len(data) {
		return nil, fmt.Errorf("secpolicy: invalid padding length %d", padLen)
	}
	return data[:len(data)-padLen], nil
}

// Encrypt pads and AES-CBC-encrypts a chunk body under the given
// symmetric key/IV (OPC UA Part 6 symmetric security header).
func Encrypt(p Policy, key, iv, plaintext []byte) ([]byte, error) {
	if p.IsNone() {
		return plaintext, nil
	}
	padded := pkcs7Pad(plaintext, p.SymmetricBlockSize)
	enc, err := NewCBCEncrypter(key, iv)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(padded))
	enc.CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// Decrypt reverses Encrypt, rejecting a ciphertext that fails to
// depad as BadSecurityChecksFailed-worthy at the caller.
func Decrypt(p Policy, key, iv, ciphertext []byte) ([]byte, error) {
	if p.IsNone() {
		return ciphertext, nil
	}
	dec, err := NewCBCDecrypter(key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%p.SymmetricBlockSize != 0 {
		return nil, fmt.Errorf("secpolicy: ciphertext not block aligned")
	}
	plaintext := make([]byte, len(ciphertext))
	dec.CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, p.SymmetricBlockSize)
}
