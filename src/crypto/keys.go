package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of curve25519 public and secret keys.
const KeySize = 32

// KeyPair is a curve25519 key pair as used by nacl/box.
type KeyPair struct {
	Public *[KeySize]byte
	Secret *[KeySize]byte
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, Secret: priv}, nil
}

// KeyPairFromSecret derives the public half from a secret key.
func KeyPairFromSecret(secret *[KeySize]byte) *KeyPair {
	var pub [KeySize]byte
	curve25519.ScalarBaseMult(&pub, secret)
	s := *secret
	return &KeyPair{Public: &pub, Secret: &s}
}

// PublicBase64 returns the base64 encoding of the public key.
func (k *KeyPair) PublicBase64() string {
	return EncodeKey(k.Public[:])
}

// SecretBase64 returns the base64 encoding of the secret key.
func (k *KeyPair) SecretBase64() string {
	return EncodeKey(k.Secret[:])
}

// EncodeKey base64-encodes raw key bytes.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey parses a base64 encoded 32 byte key.
func DecodeKey(s string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	return ToKey(raw)
}

// ToKey copies raw into a fixed size key.
func ToKey(raw []byte) (*[KeySize]byte, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("key is %d bytes, want %d", len(raw), KeySize)
	}
	var k [KeySize]byte
	copy(k[:], raw)
	return &k, nil
}
