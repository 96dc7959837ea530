package peers

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPeersFile is the name of the peers file inside the data directory.
const DefaultPeersFile = "peers.yml"

// YAMLDirectory is an InmemDirectory persisted to a YAML file. The file is
// rewritten on every Upsert so that operators can inspect it.
type YAMLDirectory struct {
	*InmemDirectory
	l    sync.Mutex
	path string
}

// NewYAMLDirectory loads path if it exists. A missing file yields an empty
// directory.
func NewYAMLDirectory(path string) (*YAMLDirectory, error) {
	d := &YAMLDirectory{
		InmemDirectory: NewInmemDirectory(),
		path:           path,
	}

	peers, err := ReadPeersFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, p := range peers {
		d.InmemDirectory.upsert(p)
	}

	return d, nil
}

// Upsert implements Directory.
func (d *YAMLDirectory) Upsert(p *Peer) error {
	d.l.Lock()
	defer d.l.Unlock()

	if err := d.InmemDirectory.Upsert(p); err != nil {
		return err
	}
	return WritePeersFile(d.path, d.InmemDirectory.Peers())
}

// Path returns the location of the file.
func (d *YAMLDirectory) Path() string {
	return d.path
}

// ReadPeersFile parses a YAML peers file.
func ReadPeersFile(path string) ([]*Peer, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Check for no peers
	if len(buf) == 0 {
		return nil, nil
	}

	var peers []*Peer
	if err := yaml.Unmarshal(buf, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// WritePeersFile writes peers to path as YAML.
func WritePeersFile(path string, peers []*Peer) error {
	buf, err := yaml.Marshal(peers)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0600)
}
