package protocol

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// NonceSize is the length of the nonce prepended to every sealed body.
const NonceSize = 24

// MinSealedSize is the smallest body a sealed frame can have.
const MinSealedSize = NonceSize + box.Overhead

// Keys is the key material needed to seal a body for a peer or to open a body
// sent by that peer.
type Keys struct {
	// Local is this node's secret key.
	Local *[32]byte
	// Remote is the other side's public key.
	Remote *[32]byte
}

func (k *Keys) usable() bool {
	return k != nil && k.Local != nil && k.Remote != nil
}

// Seal encrypts body for keys.Remote. The result is nonce || box.
func Seal(body []byte, keys *Keys) ([]byte, error) {
	if !keys.usable() {
		return nil, NewParseError(DecryptionFailed, NotAValidEvent, "missing key material")
	}
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return box.Seal(nonce[:], body, &nonce, keys.Remote, keys.Local), nil
}

// Open authenticates and decrypts a body produced by Seal.
func Open(sealed []byte, keys *Keys) ([]byte, error) {
	if !keys.usable() {
		return nil, NewParseError(DecryptionFailed, NotAValidEvent, "missing key material")
	}
	if len(sealed) < MinSealedSize {
		return nil, NewParseError(Malformed, NotAValidEvent,
			"sealed body of %d bytes, need at least %d", len(sealed), MinSealedSize)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])
	out, ok := box.Open(nil, sealed[NonceSize:], &nonce, keys.Remote, keys.Local)
	if !ok {
		return nil, NewParseError(DecryptionFailed, NotAValidEvent, "authentication failed")
	}
	return out, nil
}
