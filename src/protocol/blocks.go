package protocol

// PossibleBlockPayload is a mined block candidate, sent with BlockGen.
type PossibleBlockPayload struct {
	Index     uint64 `codec:"index"`
	Timestamp int64  `codec:"timestamp"`
	Nonce     uint64 `codec:"nonce"`
	Prev      string `codec:"prev"`
	Hash      string `codec:"hash"`
	Content   string `codec:"content"`
}

// MarshalLegacy ...
func (p *PossibleBlockPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.u64(p.Index)
	w.i64(p.Timestamp)
	w.u64(p.Nonce)
	w.fixed("prev", p.Prev, HashWidth)
	w.fixed("hash", p.Hash, HashWidth)
	w.tail(p.Content)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *PossibleBlockPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Index = r.u64("index")
	p.Timestamp = r.i64("timestamp")
	p.Nonce = r.u64("nonce")
	p.Prev = r.fixed("prev", HashWidth)
	p.Hash = r.fixed("hash", HashWidth)
	p.Content = r.tail()
	return r.finish()
}

// ValidateHashPayload asks a peer to hash the given block fields, sent with
// HashVal.
type ValidateHashPayload struct {
	Index     uint64 `codec:"index"`
	Timestamp int64  `codec:"timestamp"`
	Nonce     uint64 `codec:"nonce"`
	Prev      string `codec:"prev"`
	Content   string `codec:"content"`
}

// MarshalLegacy ...
func (p *ValidateHashPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.u64(p.Index)
	w.i64(p.Timestamp)
	w.u64(p.Nonce)
	w.fixed("prev", p.Prev, HashWidth)
	w.tail(p.Content)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *ValidateHashPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Index = r.u64("index")
	p.Timestamp = r.i64("timestamp")
	p.Nonce = r.u64("nonce")
	p.Prev = r.fixed("prev", HashWidth)
	p.Content = r.tail()
	return r.finish()
}

// ValidatedHashPayload carries a vote, sent with HashValAck.
type ValidatedHashPayload struct {
	Hash string `codec:"hash"`
}

// MarshalLegacy ...
func (p *ValidatedHashPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.fixed("hash", p.Hash, HashWidth)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *ValidatedHashPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Hash = r.fixed("hash", HashWidth)
	return r.done()
}

// FoundBlockPayload is a block with its winning hash, sent with BlockFound
// and GetBlockAck.
type FoundBlockPayload struct {
	Index     uint64 `codec:"index"`
	Timestamp int64  `codec:"timestamp"`
	Nonce     uint64 `codec:"nonce"`
	Prev      string `codec:"prev"`
	Hash      string `codec:"hash"`
	Content   string `codec:"content"`
}

// MarshalLegacy ...
func (p *FoundBlockPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.u64(p.Index)
	w.i64(p.Timestamp)
	w.u64(p.Nonce)
	w.fixed("prev", p.Prev, HashWidth)
	w.fixed("hash", p.Hash, HashWidth)
	w.tail(p.Content)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *FoundBlockPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Index = r.u64("index")
	p.Timestamp = r.i64("timestamp")
	p.Nonce = r.u64("nonce")
	p.Prev = r.fixed("prev", HashWidth)
	p.Hash = r.fixed("hash", HashWidth)
	p.Content = r.tail()
	return r.finish()
}

// GetBlockPayload names the block requested with GetBlock.
type GetBlockPayload struct {
	Index uint64 `codec:"index"`
}

// MarshalLegacy ...
func (p *GetBlockPayload) MarshalLegacy() ([]byte, error) {
	w := &fieldWriter{}
	w.u64(p.Index)
	return w.bytes()
}

// UnmarshalLegacy ...
func (p *GetBlockPayload) UnmarshalLegacy(data []byte) error {
	r := newFieldReader(data)
	p.Index = r.u64("index")
	return r.done()
}
