package block

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lholznagel/carina/src/crypto"
	"github.com/ugorji/go/codec"
)

// GenesisContent is the content of the first block of every chain.
const GenesisContent = "Genesis"

// GenesisPrev is the previous hash recorded in the genesis block.
var GenesisPrev = strings.Repeat("0", 64)

// Block is a block candidate or a finalised block. Hash is empty until the
// block has been hashed or voted on.
type Block struct {
	Index     uint64
	Content   string
	Timestamp int64
	Nonce     uint64
	Prev      string
	Hash      string
}

// ComputeHash hashes the block fields, excluding Hash, with SHA3-256 and
// returns the hex digest.
func ComputeHash(index uint64, content string, timestamp int64, nonce uint64, prev string) string {
	return crypto.SHA3Hex([]byte(fmt.Sprintf("%d%s%d%d%s", index, content, timestamp, nonce, prev)))
}

// ComputeHash returns the hash of b's fields.
func (b *Block) ComputeHash() string {
	return ComputeHash(b.Index, b.Content, b.Timestamp, b.Nonce, b.Prev)
}

// Genesis returns the hashed genesis block.
func Genesis() *Block {
	b := &Block{
		Index:   0,
		Content: GenesisContent,
		Prev:    GenesisPrev,
	}
	b.Hash = b.ComputeHash()
	return b
}

// Marshal - json encoding of Block
func (b *Block) Marshal() ([]byte, error) {
	bf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(bf, jh)

	if err := enc.Encode(b); err != nil {
		return nil, err
	}

	return bf.Bytes(), nil
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	bf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bf, jh)

	return dec.Decode(b)
}
