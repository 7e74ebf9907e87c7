package bits

import "fmt"

// NALReader reads the payload of an H.264/H.265 NAL unit. It drops the 0x03
// emulation prevention byte of every 00 00 03 sequence as it goes, so callers
// see RBSP bits without copying the unit.
type NALReader struct {
	r Reader
}

// NewNALReader returns a NALReader over data[offset:limit].
func NewNALReader(data []byte, offset, limit int) *NALReader {
	n := &NALReader{}
	n.r.reset(data, offset, limit)
	return n
}

// ReadBit reads a single RBSP bit.
func (nr *NALReader) ReadBit() (bool, error) {
	r := &nr.r
	if r.bit == 0 && r.pos-2 >= r.start && r.pos < r.limit &&
		r.data[r.pos] == 0x03 && r.data[r.pos-1] == 0x00 && r.data[r.pos-2] == 0x00 {
		r.pos++
	}
	return r.ReadBit()
}

// ReadBits reads n RBSP bits (0..31).
func (nr *NALReader) ReadBits(n int) (uint32, error) {
	return readBits(nr, n)
}

// ReadBitsLong reads n RBSP bits (0..63).
func (nr *NALReader) ReadBitsLong(n int) (uint64, error) {
	return readBitsLong(nr, n)
}

// ReadFlag reads one RBSP bit and reports whether it was set.
func (nr *NALReader) ReadFlag() (bool, error) {
	return nr.ReadBit()
}

// ReadUEV reads an unsigned Exp-Golomb code, ue(v).
func (nr *NALReader) ReadUEV() (uint32, error) {
	zeros := 0
	for {
		b, err := nr.ReadBit()
		if err != nil {
			return 0, err
		}
		if b {
			break
		}
		zeros++
	}
	if zeros == 0 {
		return 0, nil
	}
	if zeros > maxBits {
		return 0, fmt.Errorf("%w: ue(v) with %d leading zeros", ErrInvalidBitCount, zeros)
	}
	suffix, err := nr.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return uint32(1)<<zeros - 1 + suffix, nil
}

// BytePos returns the index of the byte holding the next unread bit.
func (nr *NALReader) BytePos() int { return nr.r.pos }

// BitsRead returns the number of bits consumed, counting skipped emulation
// prevention bytes.
func (nr *NALReader) BitsRead() int { return nr.r.BitsRead() }
