package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyPairFromSecret(t *testing.T) {
	key, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	derived := KeyPairFromSecret(key.Secret)
	if *derived.Public != *key.Public {
		t.Fatalf("derived public key %s, want %s", derived.PublicBase64(), key.PublicBase64())
	}

	parsed, err := DecodeKey(key.PublicBase64())
	if err != nil {
		t.Fatal(err)
	}
	if *parsed != *key.Public {
		t.Fatalf("parsed key does not match")
	}

	if _, err := DecodeKey("c2hvcnQ="); err == nil {
		t.Fatalf("short key should be rejected")
	}
}

func TestSimpleKeyfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "priv_key")
	keyfile := NewSimpleKeyfile(path)

	key, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	if err := keyfile.WriteKey(key); err != nil {
		t.Fatal(err)
	}

	read, err := keyfile.ReadKey()
	if err != nil {
		t.Fatal(err)
	}
	if *read.Secret != *key.Secret || *read.Public != *key.Public {
		t.Fatalf("keys from file do not match")
	}

	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := keyfile.ReadKey(); err == nil {
		t.Fatalf("world readable key file should be rejected")
	}
}

func TestSHA3Hex(t *testing.T) {
	// SHA3-256 of the empty string
	want := "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
	if got := SHA3Hex(); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if len(SHA3Hex([]byte("carina"))) != 64 {
		t.Fatalf("hex hash should be 64 characters")
	}
}
