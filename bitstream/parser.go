package bitstream

import (
	"errors"
	"fmt"

	"github.com/zsiec/pictype/internal/bits"
)

// MIME types accepted by NewParser.
const (
	MediaTypeAVC   = "video/avc"
	MediaTypeHEVC  = "video/hevc"
	MediaTypeAV1   = "video/av01"
	MediaTypeVP9   = "video/x-vnd.on2.vp9"
	MediaTypeMPEG4 = "video/mp4v-es"
	MediaTypeH263  = "video/3gpp"
	MediaTypeAAC   = "audio/mp4a-latm"
)

var (
	// ErrOutOfBounds is returned when a header runs past the end of the
	// supplied window, or when the window itself does not fit the buffer.
	ErrOutOfBounds = bits.ErrOutOfBounds

	// ErrUnsupportedOBUFormat is returned for an AV1 OBU without an
	// obu_size field. Only the low-overhead bitstream format is supported.
	ErrUnsupportedOBUFormat = errors.New("bitstream: OBU without size field")

	// ErrMalformed is returned when a fixed-value syntax element such as a
	// start code, marker or version does not hold its required value.
	ErrMalformed = errors.New("bitstream: malformed header")
)

// Parser classifies access units of one codec.
type Parser interface {
	// Codec returns a short codec name such as "avc" or "av1".
	Codec() string

	// FrameType returns the picture type of the first displayable picture in
	// data[offset:offset+length]. The window must hold one access unit in
	// the codec's elementary stream framing.
	FrameType(data []byte, offset, length int) (PictureType, error)

	// ProfileLevel extracts profile and level from the first parameter set
	// in the window. isCodecConfig selects the container codec
	// configuration record format where the codec has one. ok is false when
	// no parameter set is present.
	ProfileLevel(data []byte, offset, length int, isCodecConfig bool) (pl ProfileLevel, ok bool, err error)
}

// NewParser returns a Parser for the given MIME type. ok is false for media
// types without a parser; callers should treat that as unsupported rather
// than as an error.
func NewParser(mediaType string) (p Parser, ok bool) {
	switch mediaType {
	case MediaTypeAVC:
		return avcParser{}, true
	case MediaTypeHEVC:
		return hevcParser{}, true
	case MediaTypeAV1:
		return NewAV1Parser(), true
	case MediaTypeVP9:
		return vp9Parser{}, true
	case MediaTypeMPEG4:
		return mpeg4Parser{}, true
	case MediaTypeH263:
		return h263Parser{}, true
	case MediaTypeAAC:
		return aacParser{}, true
	}
	return nil, false
}

// FrameTypeOf classifies a whole buffer. A nil parser yields PictureUnknown.
func FrameTypeOf(p Parser, data []byte) (PictureType, error) {
	if p == nil {
		return PictureUnknown, nil
	}
	return p.FrameType(data, 0, len(data))
}

// ProfileLevelOf extracts profile and level from a whole buffer. A nil parser
// reports no result.
func ProfileLevelOf(p Parser, data []byte, isCodecConfig bool) (ProfileLevel, bool, error) {
	if p == nil {
		return ProfileLevel{}, false, nil
	}
	return p.ProfileLevel(data, 0, len(data), isCodecConfig)
}

// window validates an offset/length pair and returns the [start, limit)
// bounds it describes.
func window(data []byte, offset, length int) (start, limit int, err error) {
	if offset < 0 || length < 0 || offset > len(data) || length > len(data)-offset {
		return 0, 0, fmt.Errorf("%w: window offset %d length %d over %d bytes",
			ErrOutOfBounds, offset, length, len(data))
	}
	return offset, offset + length, nil
}
