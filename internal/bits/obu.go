package bits

// maxLEB128Bytes is the longest leb128() the AV1 syntax allows.
const maxLEB128Bytes = 8

// OBUReader reads AV1 OBU headers and payloads. AV1 has no emulation
// prevention, so bit access is the plain Reader's.
type OBUReader struct {
	Reader
}

// NewOBUReader returns an OBUReader over data[offset:limit].
func NewOBUReader(data []byte, offset, limit int) *OBUReader {
	o := &OBUReader{}
	o.reset(data, offset, limit)
	return o
}

// UVLC reads an AV1 uvlc() code. 32 or more leading zeros saturate to
// 2^32-1 without reading a value field.
func (o *OBUReader) UVLC() (uint64, error) {
	zeros := 0
	for {
		b, err := o.ReadBit()
		if err != nil {
			return 0, err
		}
		if b {
			break
		}
		zeros++
	}
	if zeros >= 32 {
		return 1<<32 - 1, nil
	}
	v, err := o.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return uint64(v) + 1<<zeros - 1, nil
}

// LEB128 reads an AV1 leb128() value and returns the number of bytes it
// occupied alongside the value. It stops at the first byte with a clear high
// bit or after 8 bytes.
func (o *OBUReader) LEB128() (int, uint32, error) {
	var value uint32
	n := 0
	for i := 0; i < maxLEB128Bytes; i++ {
		b, err := o.ReadBits(8)
		if err != nil {
			return n, value, err
		}
		value |= (b & 0x7F) << (7 * i)
		n++
		if b&0x80 == 0 {
			break
		}
	}
	return n, value, nil
}
