// Package secpolicy implements the four OPC UA SecurityPolicy suites
// named in OPC UA Part 6 (None, Basic128Rsa15, Basic256, Basic256Sha256):
// the asymmetric and symmetric algorithm selection, key derivation, and
// the sign/encrypt primitives the chunker layers on top of chunk bodies.
// Unlike the rest of this server's ambient stack, this package is built
// directly on stdlib crypto/* rather than a third-party
// library: OPC UA's wire crypto is a fixed PKCS#1/X.509/AES-CBC
// construction dictated by OPC UA Part 6, not a pluggable surface a
// generic AES-GCM library can stand in for (see DESIGN.md).
package secpolicy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// URI identifies one of the four supported security policies by its
// canonical OPC UA URI (OPC UA Part 6).
type URI string

const (
	None           URI = "http://opcfoundation.org/UA/SecurityPolicy#None"
	Basic128Rsa15  URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	Basic256       URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	Basic256Sha256 URI = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
)

// Policy fixes every algorithm and key length a SecurityPolicy dictates
// (OPC UA Part 6): asymmetric signature/key-wrap, symmetric signature/
// encryption, and the key-derivation hash (P_SHA1 or P_SHA256).
type Policy struct {
	URI URI

	SymmetricKeyLength int // AES key length in bytes
	SymmetricBlockSize int // AES block size, always 16
	SigningKeyLength   int // HMAC key length in bytes
	SignatureLength    int // HMAC-SHA1 (20) or HMAC-SHA256 (32)
	DerivationHash     func() hash.Hash

	AsymmetricEncryptionAlgorithmURI string
	AsymmetricSignatureAlgorithmURI  string
	SymmetricEncryptionAlgorithmURI  string
	SymmetricSignatureAlgorithmURI   string
}

var suites = map[URI]Policy{
	None: {
		URI: None,
	},
	Basic128Rsa15: {
		URI:                              Basic128Rsa15,
		SymmetricKeyLength:               16,
		SymmetricBlockSize:               aes.BlockSize,
		SigningKeyLength:                 16,
		SignatureLength:                  sha1.Size,
		DerivationHash:                   sha1.New,
		AsymmetricEncryptionAlgorithmURI: "http://www.w3.org/2001/04/xmlenc#rsa-1_5",
		AsymmetricSignatureAlgorithmURI:  "http://www.w3.org/2000/09/xmldsig#rsa-sha1",
		SymmetricEncryptionAlgorithmURI:  "http://www.w3.org/2001/04/xmlenc#aes128-cbc",
		SymmetricSignatureAlgorithmURI:   "http://www.w3.org/2000/09/xmldsig#hmac-sha1",
	},
	Basic256: {
		URI:                              Basic256,
		SymmetricKeyLength:               32,
		SymmetricBlockSize:               aes.BlockSize,
		SigningKeyLength:                 24,
		SignatureLength:                  sha1.Size,
		DerivationHash:                   sha1.New,
		AsymmetricEncryptionAlgorithmURI: "http://www.w3.org/2001/04/xmlenc#rsa-oaep",
		AsymmetricSignatureAlgorithmURI:  "http://www.w3.org/2000/09/xmldsig#rsa-sha1",
		SymmetricEncryptionAlgorithmURI:  "http://www.w3.org/2001/04/xmlenc#aes256-cbc",
		SymmetricSignatureAlgorithmURI:   "http://www.w3.org/2000/09/xmldsig#hmac-sha1",
	},
	Basic256Sha256: {
		URI:                              Basic256Sha256,
		SymmetricKeyLength:               32,
		SymmetricBlockSize:               aes.BlockSize,
		SigningKeyLength:                 32,
		SignatureLength:                  sha256.Size,
		DerivationHash:                   sha256.New,
		AsymmetricEncryptionAlgorithmURI: "http://www.w3.org/2001/04/xmlenc#rsa-oaep",
		AsymmetricSignatureAlgorithmURI:  "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256",
		SymmetricEncryptionAlgorithmURI:  "http://www.w3.org/2001/04/xmlenc#aes256-cbc",
		SymmetricSignatureAlgorithmURI:   "http://www.w3.org/2000/09/xmldsig#hmac-sha256",
	},
}

// Lookup resolves a policy URI, or ok=false for an unrecognised one
// (the chunker reports BadSecurityPolicyRejected in that case).
func Lookup(uri URI) (Policy, bool) {
	p, ok := suites[uri]
	return p, ok
}

func (p Policy) IsNone() bool { return p.URI == None || p.URI == "" }

// NewCBCEncrypter builds the AES-CBC encrypting block mode for this
// policy's symmetric encryption algorithm.
func NewCBCEncrypter(key, iv []byte) (cipher.BlockMode, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCBCEncrypter(block, iv), nil
}

func NewCBCDecrypter(key, iv []byte) (cipher.BlockMode, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCBCDecrypter(block, iv), nil
}
