package classfile

import (
	"encoding/binary"
	"io"

	"github.com/jacobin-wasm/j2w/internal/j2werr"
)

// reader is a forward-only, bounds-checked cursor over a class file's
// bytes. The JVM class-file format is entirely big-endian, unlike the
// little-endian WebAssembly formats this module also emits.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) require(n int) error {
	if r.pos+n > len(r.data) {
		return j2werr.New(j2werr.KindDecodeError, "unexpected end of class file")
	}
	return nil
}

func (r *reader) u1() (byte, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u8() (uint64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) skip(n int) error {
	if err := r.require(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *reader) eof() bool { return r.pos >= len(r.data) }

// ReadAll is a small convenience used by callers that accept io.Reader
// inputs per spec.md §1 ("input is one or more compiled class files").
func ReadAll(rd io.Reader) ([]byte, error) {
	b, err := io.ReadAll(rd)
	if err != nil {
		return nil, j2werr.Newf(j2werr.KindDecodeError, "reading class file: %v", err)
	}
	return b, nil
}
