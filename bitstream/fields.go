package bitstream

import "github.com/zsiec/pictype/internal/bits"

type bitSource interface {
	ReadBits(n int) (uint32, error)
	ReadBitsLong(n int) (uint64, error)
}

// fieldReader reads fixed-width syntax elements and keeps the first error.
// Once an error is recorded every later read returns zero, so a header walk
// can read its fields unconditionally and check err once at the end.
type fieldReader struct {
	src bitSource
	err error
}

func (f *fieldReader) u(n int) uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.src.ReadBits(n)
	if err != nil {
		f.err = err
	}
	return v
}

// wide reads up to 63 bits. AV1 length-coded fields reach 32 bits, one more
// than u allows.
func (f *fieldReader) wide(n int) uint64 {
	if f.err != nil {
		return 0
	}
	v, err := f.src.ReadBitsLong(n)
	if err != nil {
		f.err = err
	}
	return v
}

func (f *fieldReader) flag() bool { return f.u(1) == 1 }

// nalFields adds ue(v) to fieldReader.
type nalFields struct {
	fieldReader
	nr *bits.NALReader
}

func newNALFields(data []byte, offset, limit int) *nalFields {
	nr := bits.NewNALReader(data, offset, limit)
	return &nalFields{fieldReader: fieldReader{src: nr}, nr: nr}
}

func (f *nalFields) ue() uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.nr.ReadUEV()
	if err != nil {
		f.err = err
	}
	return v
}

// obuFields adds uvlc() to fieldReader.
type obuFields struct {
	fieldReader
	or *bits.OBUReader
}

func newOBUFields(data []byte, offset, limit int) *obuFields {
	or := bits.NewOBUReader(data, offset, limit)
	return &obuFields{fieldReader: fieldReader{src: or}, or: or}
}

func (f *obuFields) uvlc() uint64 {
	if f.err != nil {
		return 0
	}
	v, err := f.or.UVLC()
	if err != nil {
		f.err = err
	}
	return v
}

func newPlainFields(data []byte, offset, limit int) *fieldReader {
	return &fieldReader{src: bits.NewReader(data, offset, limit)}
}
