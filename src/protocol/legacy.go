package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Field widths of the legacy fixed-offset layout.
const (
	U64Width  = 8
	AddrWidth = 64
	HashWidth = 64
	KeyWidth  = 32
)

// fieldWriter concatenates fixed-width fields.
type fieldWriter struct {
	buf bytes.Buffer
	err error
}

func (w *fieldWriter) u64(v uint64) {
	var b [U64Width]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *fieldWriter) i64(v int64) {
	w.u64(uint64(v))
}

// fixed writes s right-padded with zero bytes to width.
func (w *fieldWriter) fixed(name, s string, width int) {
	if w.err != nil {
		return
	}
	if len(s) > width {
		w.err = fmt.Errorf("field %s is %d bytes, max %d", name, len(s), width)
		return
	}
	w.buf.WriteString(s)
	w.buf.Write(make([]byte, width-len(s)))
}

// key writes a public key. A nil key is written as zeros.
func (w *fieldWriter) key(k []byte) {
	if w.err != nil {
		return
	}
	if k != nil && len(k) != KeyWidth {
		w.err = fmt.Errorf("public key is %d bytes, want %d", len(k), KeyWidth)
		return
	}
	if k == nil {
		k = make([]byte, KeyWidth)
	}
	w.buf.Write(k)
}

func (w *fieldWriter) tail(s string) {
	w.buf.WriteString(s)
}

func (w *fieldWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// fieldReader splits a legacy body by known offsets. The first failure
// sticks; later reads return zero values.
type fieldReader struct {
	buf []byte
	off int
	err error
}

func newFieldReader(b []byte) *fieldReader {
	return &fieldReader{buf: b}
}

func (r *fieldReader) take(name string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = NewParseError(FieldParse, NotAValidEvent,
			"field %s needs %d bytes at offset %d, have %d", name, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *fieldReader) u64(name string) uint64 {
	b := r.take(name, U64Width)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *fieldReader) i64(name string) int64 {
	return int64(r.u64(name))
}

func (r *fieldReader) fixed(name string, width int) string {
	b := r.take(name, width)
	if b == nil {
		return ""
	}
	return string(bytes.TrimRight(b, "\x00"))
}

// key reads a public key. All-zero keys decode to nil.
func (r *fieldReader) key(name string) []byte {
	b := r.take(name, KeyWidth)
	if b == nil {
		return nil
	}
	for _, c := range b {
		if c != 0 {
			k := make([]byte, KeyWidth)
			copy(k, b)
			return k
		}
	}
	return nil
}

func (r *fieldReader) tail() string {
	if r.err != nil {
		return ""
	}
	s := string(r.buf[r.off:])
	r.off = len(r.buf)
	return s
}

// done fails if bytes are left over after the last fixed field.
func (r *fieldReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return NewParseError(FieldParse, NotAValidEvent,
			"%d trailing bytes", len(r.buf)-r.off)
	}
	return nil
}

// finish returns the sticky error without checking for trailing bytes.
func (r *fieldReader) finish() error {
	return r.err
}
