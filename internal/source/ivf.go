package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/pictype/bitstream"
)

const (
	ivfHeaderSize      = 32
	ivfFrameHeaderSize = 12
	ivfMaxFrameSize    = 64 << 20
)

// IVFHeader is the 32-byte IVF file header.
type IVFHeader struct {
	FourCC      string
	Width       uint16
	Height      uint16
	TimebaseDen uint32
	TimebaseNum uint32
	Frames      uint32
}

var ivfMediaTypes = map[string]string{
	"AV01": bitstream.MediaTypeAV1,
	"VP90": bitstream.MediaTypeVP9,
}

// IVF is a Source over an IVF file. Each IVF frame is one access unit and
// its PTS is in units of TimebaseNum/TimebaseDen seconds.
type IVF struct {
	r         io.Reader
	header    IVFHeader
	mediaType string
	buf       [ivfFrameHeaderSize]byte
}

// NewIVF reads the file header from r.
func NewIVF(r io.Reader) (*IVF, error) {
	var hdr [ivfHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("ivf header: %w", err)
	}
	if string(hdr[0:4]) != "DKIF" {
		return nil, fmt.Errorf("ivf: signature %q", hdr[0:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != 0 {
		return nil, fmt.Errorf("ivf: version %d", v)
	}
	v := &IVF{
		r: r,
		header: IVFHeader{
			FourCC:      string(hdr[8:12]),
			Width:       binary.LittleEndian.Uint16(hdr[12:14]),
			Height:      binary.LittleEndian.Uint16(hdr[14:16]),
			TimebaseDen: binary.LittleEndian.Uint32(hdr[16:20]),
			TimebaseNum: binary.LittleEndian.Uint32(hdr[20:24]),
			Frames:      binary.LittleEndian.Uint32(hdr[24:28]),
		},
	}
	if n := int(binary.LittleEndian.Uint16(hdr[6:8])); n > ivfHeaderSize {
		if _, err := io.CopyN(io.Discard, r, int64(n-ivfHeaderSize)); err != nil {
			return nil, fmt.Errorf("ivf header: %w", err)
		}
	}
	var ok bool
	if v.mediaType, ok = ivfMediaTypes[v.header.FourCC]; !ok {
		return nil, fmt.Errorf("%w: ivf fourcc %q", ErrUnknownFormat, v.header.FourCC)
	}
	return v, nil
}

// Header returns the file header.
func (v *IVF) Header() IVFHeader { return v.header }

func (v *IVF) MediaType() string { return v.mediaType }

func (v *IVF) Next() (AccessUnit, error) {
	if _, err := io.ReadFull(v.r, v.buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return AccessUnit{}, io.EOF
		}
		return AccessUnit{}, fmt.Errorf("ivf frame header: %w", err)
	}
	size := binary.LittleEndian.Uint32(v.buf[0:4])
	if size > ivfMaxFrameSize {
		return AccessUnit{}, fmt.Errorf("ivf: frame size %d", size)
	}
	au := AccessUnit{
		Data: make([]byte, size),
		PTS:  int64(binary.LittleEndian.Uint64(v.buf[4:12])),
	}
	if _, err := io.ReadFull(v.r, au.Data); err != nil {
		return AccessUnit{}, fmt.Errorf("ivf frame: %w", err)
	}
	return au, nil
}

// Close closes the underlying reader if it is an io.Closer.
func (v *IVF) Close() error {
	if c, ok := v.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
