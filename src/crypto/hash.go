package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// SHA3 returns the SHA3-256 hash of the data.
func SHA3(data ...[]byte) []byte {
	hasher := sha3.New256()
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}

// SHA3Hex returns the lowercase hex encoding of SHA3.
func SHA3Hex(data ...[]byte) string {
	return hex.EncodeToString(SHA3(data...))
}
