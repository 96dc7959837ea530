package crypto

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SimpleKeyfile stores the secret key as a base64 line in an unencrypted
// file readable by the owner only.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile ...
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{
		keyfile: keyfile,
	}
}

// CheckFileInfo verifies that the file exists and has user permissions only.
func (k *SimpleKeyfile) CheckFileInfo() error {
	info, err := os.Stat(k.keyfile)
	if err != nil {
		return err
	}

	perm := info.Mode().Perm()

	// group and other bits
	var nonUserMask os.FileMode = (1 << 6) - 1

	if perm&nonUserMask != 0 {
		return fmt.Errorf("priv_key file permissions should exclude 'groups' and 'others'. Got %o", perm)
	}

	return nil
}

// ReadKey reads the secret key and derives the key pair.
func (k *SimpleKeyfile) ReadKey() (*KeyPair, error) {
	k.l.Lock()
	defer k.l.Unlock()

	if err := k.CheckFileInfo(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	secret, err := DecodeKey(string(buf))
	if err != nil {
		return nil, err
	}

	return KeyPairFromSecret(secret), nil
}

// WriteKey writes the secret key, creating parent directories as needed.
func (k *SimpleKeyfile) WriteKey(key *KeyPair) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.keyfile), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.keyfile, []byte(key.SecretBase64()), 0600)
}
