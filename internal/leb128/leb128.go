// Package leb128 implements the variable-length integer encodings used
// throughout the WebAssembly binary format: unsigned LEB128 for indices and
// sizes, and signed LEB128 for constants and block-type immediates.
//
// See https://webassembly.github.io/spec/core/binary/values.html#integers
package leb128

import (
	"bytes"
	"fmt"
	"io"
)

// EncodeInt32 encodes v as a signed LEB128 byte sequence.
func EncodeInt32(v int32) []byte {
	return encodeSigned(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128 byte sequence.
func EncodeInt64(v int64) []byte {
	return encodeSigned(v)
}

// EncodeUint32 encodes v as an unsigned LEB128 byte sequence.
func EncodeUint32(v uint32) []byte {
	return encodeUnsigned(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128 byte sequence.
func EncodeUint64(v uint64) []byte {
	return encodeUnsigned(v)
}

func encodeUnsigned(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

func encodeSigned(v int64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf = append(buf, b)
			return buf
		}
		buf = append(buf, b|0x80)
	}
}

// LoadUint32 decodes an unsigned LEB128 value from the head of buf, returning
// the value, the number of bytes consumed, and an error if buf is truncated
// or the value overflows 32 bits.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := loadUnsigned(buf, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned LEB128 value from the head of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return loadUnsigned(buf, 64)
}

// LoadInt32 decodes a signed LEB128 value from the head of buf.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadSigned(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed LEB128 value from the head of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return loadSigned(buf, 64)
}

func loadUnsigned(buf []byte, bitSize int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	for {
		if int(n) >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[n]
		n++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if shift+7 > uint(bitSize) && (shift >= uint(bitSize) || b&0x7f>>(uint(bitSize)-shift) != 0) {
				return 0, 0, fmt.Errorf("leb128: value overflows %d bits", bitSize)
			}
			return result, n, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128: too many bytes for uint%d", bitSize)
		}
	}
}

func loadSigned(buf []byte, bitSize int) (int64, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	var b byte
	for {
		if int(n) >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b = buf[n]
		n++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128: too many bytes for int%d", bitSize)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, n, nil
}

// DecodeUint32 reads a ULEB128-encoded uint32 one byte at a time from r.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUnsigned(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 reads a ULEB128-encoded uint64 one byte at a time from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUnsigned(r, 64)
}

// DecodeInt32 reads an SLEB128-encoded int32 one byte at a time from r.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSigned(r, 32)
	return int32(v), n, err
}

// DecodeInt64 reads an SLEB128-encoded int64 one byte at a time from r.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 64)
}

// DecodeInt33AsInt64 reads the 33-bit signed LEB128 used for WebAssembly
// block-type immediates (s33), sign-extended into an int64.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 33)
}

func decodeUnsigned(r io.ByteReader, bitSize int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, 0, err
		}
		n++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, n, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128: too many bytes for uint%d", bitSize)
		}
	}
}

func decodeSigned(r io.ByteReader, bitSize int) (int64, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	var b byte
	for {
		nb, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, 0, err
		}
		b = nb
		n++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128: too many bytes for int%d", bitSize)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, n, nil
}

// NewByteReader adapts buf for the streaming Decode* functions.
func NewByteReader(buf []byte) io.ByteReader {
	return bytes.NewReader(buf)
}
