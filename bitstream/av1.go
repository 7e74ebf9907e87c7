package bitstream

import (
	"fmt"
)

// OBUType is an AV1 obu_type.
type OBUType uint8

// OBU types (AV1 section 6.2.2).
const (
	OBUSequenceHeader       OBUType = 1
	OBUTemporalDelimiter    OBUType = 2
	OBUFrameHeader          OBUType = 3
	OBUTileGroup            OBUType = 4
	OBUMetadata             OBUType = 5
	OBUFrame                OBUType = 6
	OBURedundantFrameHeader OBUType = 7
	OBUTileList             OBUType = 8
	OBUPadding              OBUType = 15
)

// OBUHeader describes one OBU in a low-overhead bitstream.
type OBUHeader struct {
	Type          OBUType
	TemporalID    int
	SpatialID     int
	HeaderSize    int // 1, or 2 with obu_extension_header
	SizeFieldSize int // bytes taken by the leb128 obu_size
	PayloadSize   int
}

// PayloadOffset returns the offset of the payload from the start of the OBU.
func (h OBUHeader) PayloadOffset() int { return h.HeaderSize + h.SizeFieldSize }

// Size returns the total size of the OBU in bytes.
func (h OBUHeader) Size() int { return h.HeaderSize + h.SizeFieldSize + h.PayloadSize }

// ParseOBUHeader reads the OBU header and size field at data[pos], reading
// nothing at or past limit. An OBU without obu_has_size_field is reported as
// ErrUnsupportedOBUFormat.
func ParseOBUHeader(data []byte, pos, limit int) (OBUHeader, error) {
	f := newOBUFields(data, pos, limit)
	h := OBUHeader{HeaderSize: 1}
	f.u(1) // obu_forbidden_bit
	h.Type = OBUType(f.u(4))
	extension := f.flag()
	hasSize := f.flag()
	f.u(1) // obu_reserved_1bit
	if f.err != nil {
		return h, f.err
	}
	if !hasSize {
		return h, fmt.Errorf("%w: obu type %d at offset %d", ErrUnsupportedOBUFormat, h.Type, pos)
	}
	if extension {
		h.TemporalID = int(f.u(3))
		h.SpatialID = int(f.u(2))
		f.u(3) // extension_header_reserved_3bits
		h.HeaderSize = 2
		if f.err != nil {
			return h, f.err
		}
	}
	n, size, err := f.or.LEB128()
	if err != nil {
		return h, err
	}
	h.SizeFieldSize = n
	h.PayloadSize = int(size)
	return h, nil
}

// AV1Parser classifies AV1 temporal units. Frame headers can only be read
// against the active sequence header and reference slots, so the parser
// keeps that state in an AV1State across calls. It is not safe for
// concurrent use, and access units must be fed in decode order.
type AV1Parser struct {
	state AV1State
}

// NewAV1Parser returns an AV1Parser with empty state.
func NewAV1Parser() *AV1Parser {
	return &AV1Parser{}
}

func (p *AV1Parser) Codec() string { return "av1" }

// State returns a copy of the parser's sequence header and reference state.
func (p *AV1Parser) State() AV1State {
	s := p.state
	s.Seq.OperatingPoints = append([]OperatingPoint(nil), p.state.Seq.OperatingPoints...)
	return s
}

// Reset discards the sequence header and reference state, as on a stream
// discontinuity.
func (p *AV1Parser) Reset() {
	p.state = AV1State{}
}

// FrameHeaders walks every OBU in the window, applying sequence headers to
// the parser state and returning the frame headers in arrival order.
func (p *AV1Parser) FrameHeaders(data []byte, offset, length int) ([]FrameHeader, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return nil, err
	}
	var headers []FrameHeader
	err = p.walkOBUs(data, start, limit, func(h OBUHeader, f *obuFields) (bool, error) {
		switch h.Type {
		case OBUSequenceHeader:
			return false, p.applySequenceHeader(f)
		case OBUFrameHeader, OBUFrame:
			fh, err := p.state.parseFrameHeader(f, h.TemporalID, h.SpatialID)
			if err != nil {
				return true, fmt.Errorf("av1 frame header: %w", err)
			}
			headers = append(headers, fh)
		}
		return false, nil
	})
	return headers, err
}

// FrameType returns the type of the first frame header in the window with
// show_frame or show_existing_frame set. Every OBU in the window is walked,
// so later sequence headers and reference refreshes still update state.
func (p *AV1Parser) FrameType(data []byte, offset, length int) (PictureType, error) {
	headers, err := p.FrameHeaders(data, offset, length)
	if err != nil {
		return PictureUnknown, err
	}
	for _, fh := range headers {
		if fh.ShowFrame || fh.ShowExistingFrame {
			return fh.FrameType.PictureType(), nil
		}
	}
	return PictureUnknown, nil
}

// ProfileLevel reads an av1C codec configuration record when isCodecConfig
// is set, otherwise the first sequence header OBU in the window. A sequence
// header found this way also becomes the parser's active one.
func (p *AV1Parser) ProfileLevel(data []byte, offset, length int, isCodecConfig bool) (ProfileLevel, bool, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	if isCodecConfig {
		return av1ConfigProfileLevel(data, start, limit)
	}
	var (
		pl    ProfileLevel
		found bool
	)
	err = p.walkOBUs(data, start, limit, func(h OBUHeader, f *obuFields) (bool, error) {
		if h.Type != OBUSequenceHeader {
			return false, nil
		}
		if err := p.applySequenceHeader(f); err != nil {
			return true, err
		}
		seq := &p.state.Seq
		op := seq.OperatingPoints[0]
		pl = av1ProfileLevel(seq.Profile, seq.HighBitDepth, op.Level, op.Tier)
		found = true
		return true, nil
	})
	return pl, found, err
}

func (p *AV1Parser) applySequenceHeader(f *obuFields) error {
	seq, err := parseSequenceHeader(f)
	if err != nil {
		return fmt.Errorf("av1 sequence header: %w", err)
	}
	p.state.Seq = seq
	p.state.SeqSeen = true
	return nil
}

// walkOBUs calls fn for each OBU in data[start:limit] with a reader bounded
// to the OBU payload. The walk advances by the full OBU size whatever the
// type.
func (p *AV1Parser) walkOBUs(data []byte, start, limit int, fn func(OBUHeader, *obuFields) (bool, error)) error {
	for pos := start; pos < limit; {
		h, err := ParseOBUHeader(data, pos, limit)
		if err != nil {
			return fmt.Errorf("av1 obu header at offset %d: %w", pos, err)
		}
		end := pos + h.Size()
		if end > limit {
			end = limit
		}
		done, err := fn(h, newOBUFields(data, pos+h.PayloadOffset(), end))
		if err != nil || done {
			return err
		}
		pos += h.Size()
	}
	return nil
}

func av1ConfigProfileLevel(data []byte, start, limit int) (ProfileLevel, bool, error) {
	f := newPlainFields(data, start, limit)
	marker := f.u(1)
	version := f.u(7)
	profile := uint8(f.u(3))
	levelIdx := uint8(f.u(5))
	tier := uint8(f.u(1))
	highBitDepth := f.flag()
	f.u(1) // twelve_bit
	if f.err != nil {
		return ProfileLevel{}, false, fmt.Errorf("av1 codec config: %w", f.err)
	}
	if marker != 1 || version != 1 {
		return ProfileLevel{}, false, fmt.Errorf("%w: av1C marker %d version %d", ErrMalformed, marker, version)
	}
	return av1ProfileLevel(profile, highBitDepth, levelIdx, tier), true, nil
}

func av1ProfileLevel(profile uint8, highBitDepth bool, levelIdx, tier uint8) ProfileLevel {
	var pl ProfileLevel
	switch profile {
	case 0:
		pl.Profile = "Main8"
		if highBitDepth {
			pl.Profile = "Main10"
		}
	case 1:
		pl.Profile = "High"
	case 2:
		pl.Profile = "Professional"
	}
	switch {
	case levelIdx <= 23:
		pl.Level = fmt.Sprintf("%d.%d", 2+levelIdx>>2, levelIdx&3)
	case levelIdx == 31:
		pl.Level = "Max"
	}
	pl.Tier = "Main"
	if tier == 1 {
		pl.Tier = "High"
	}
	return pl
}
