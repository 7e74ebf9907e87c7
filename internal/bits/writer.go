package bits

// Writer writes bits MSB-first into a growing byte slice. It is the inverse
// of the readers and is used to synthesize NAL units and OBUs.
type Writer struct {
	data   []byte
	bitPos int
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// PutBit appends one bit.
func (w *Writer) PutBit(v bool) {
	if w.bitPos%8 == 0 {
		w.data = append(w.data, 0)
	}
	if v {
		w.data[w.bitPos/8] |= 0x80 >> uint(w.bitPos%8)
	}
	w.bitPos++
}

// PutBits appends the low n bits of v, most significant first.
func (w *Writer) PutBits(n int, v uint64) {
	for i := n - 1; i >= 0; i-- {
		w.PutBit((v>>uint(i))&1 == 1)
	}
}

// PutFlag appends 1 for true and 0 for false.
func (w *Writer) PutFlag(v bool) {
	w.PutBit(v)
}

// PutUEV appends v as an unsigned Exp-Golomb code.
func (w *Writer) PutUEV(v uint32) {
	code := uint64(v) + 1
	n := 0
	for c := code; c > 1; c >>= 1 {
		n++
	}
	w.PutBits(n, 0)
	w.PutBits(n+1, code)
}

// PutLEB128 appends v as a minimal leb128() byte sequence.
func (w *Writer) PutLEB128(v uint32) {
	for _, b := range AppendLEB128(nil, v) {
		w.PutBits(8, uint64(b))
	}
}

// PutTrailingBits appends a stop bit and zero-pads to the next byte
// boundary, as rbsp_trailing_bits() and AV1 trailing_bits() do.
func (w *Writer) PutTrailingBits() {
	w.PutBit(true)
	w.AlignZero()
}

// AlignZero zero-pads to the next byte boundary.
func (w *Writer) AlignZero() {
	for w.bitPos%8 != 0 {
		w.PutBit(false)
	}
}

// Len returns the number of bits written.
func (w *Writer) Len() int { return w.bitPos }

// Bytes returns the written bytes. A partial final byte is zero-padded.
func (w *Writer) Bytes() []byte {
	return w.data
}

// AppendLEB128 appends the minimal leb128() encoding of v to dst.
func AppendLEB128(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// AddEmulationPrevention converts RBSP bytes into NAL payload bytes by
// inserting 0x03 after every 00 00 pair that precedes a byte <= 0x03.
func AddEmulationPrevention(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/64)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
