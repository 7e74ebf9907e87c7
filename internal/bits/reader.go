// Package bits provides MSB-first bit readers over a bounded window of a byte
// slice. The base [Reader] is extended by [NALReader], which strips H.264/H.265
// emulation prevention bytes and decodes Exp-Golomb codes, and by [OBUReader],
// which adds the AV1 uvlc() and leb128() variable-length codes.
package bits

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a read needs a byte at or past the
	// reader's limit.
	ErrOutOfBounds = errors.New("bits: read past buffer limit")

	// ErrInvalidBitCount is returned when a read asks for more bits than the
	// result type can hold.
	ErrInvalidBitCount = errors.New("bits: invalid bit count")
)

const (
	maxBits     = 31
	maxBitsLong = 63
)

// bitSource is anything that can yield single bits. ReadBits and
// ReadBitsLong are assembled on top of it so that readers which alter how a
// single bit is fetched (emulation prevention) get multi-bit reads for free.
type bitSource interface {
	ReadBit() (bool, error)
}

// Reader reads bits MSB-first from data[start:limit].
type Reader struct {
	data  []byte
	start int
	limit int
	pos   int
	bit   int
}

// NewReader returns a Reader positioned at offset that refuses to read at or
// past limit. limit is clamped to len(data).
func NewReader(data []byte, offset, limit int) *Reader {
	r := &Reader{}
	r.reset(data, offset, limit)
	return r
}

func (r *Reader) reset(data []byte, offset, limit int) {
	if limit > len(data) {
		limit = len(data)
	}
	if offset < 0 {
		offset = 0
	}
	r.data = data
	r.start = offset
	r.limit = limit
	r.pos = offset
	r.bit = 0
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (bool, error) {
	if r.pos >= r.limit {
		return false, fmt.Errorf("%w: byte offset %d, limit %d", ErrOutOfBounds, r.pos, r.limit)
	}
	v := r.data[r.pos]&(0x80>>r.bit) != 0
	r.bit++
	if r.bit == 8 {
		r.bit = 0
		r.pos++
	}
	return v, nil
}

// ReadBits reads n bits (0..31) as an unsigned integer. The first bit read
// becomes the most significant bit of the result.
func (r *Reader) ReadBits(n int) (uint32, error) {
	return readBits(r, n)
}

// ReadBitsLong reads n bits (0..63) as an unsigned integer.
func (r *Reader) ReadBitsLong(n int) (uint64, error) {
	return readBitsLong(r, n)
}

// ReadFlag reads one bit and reports whether it was set.
func (r *Reader) ReadFlag() (bool, error) {
	return r.ReadBit()
}

// BytePos returns the index of the byte holding the next unread bit.
func (r *Reader) BytePos() int { return r.pos }

// BitPos returns the offset (0..7) of the next unread bit within its byte.
func (r *Reader) BitPos() int { return r.bit }

// BitsRead returns the number of bits consumed since the start offset,
// including any skipped emulation prevention bytes.
func (r *Reader) BitsRead() int {
	return (r.pos-r.start)*8 + r.bit
}

func readBits(src bitSource, n int) (uint32, error) {
	if n < 0 || n > maxBits {
		return 0, fmt.Errorf("%w: %d exceeds 32-bit read capacity of %d", ErrInvalidBitCount, n, maxBits)
	}
	var v uint32
	for i := 0; i < n; i++ {
		b, err := src.ReadBit()
		if err != nil {
			return 0, err
		}
		v <<= 1
		if b {
			v |= 1
		}
	}
	return v, nil
}

func readBitsLong(src bitSource, n int) (uint64, error) {
	if n < 0 || n > maxBitsLong {
		return 0, fmt.Errorf("%w: %d exceeds 64-bit read capacity of %d", ErrInvalidBitCount, n, maxBitsLong)
	}
	var v uint64
	for i := 0; i < n; i++ {
		b, err := src.ReadBit()
		if err != nil {
			return 0, err
		}
		v <<= 1
		if b {
			v |= 1
		}
	}
	return v, nil
}
