// Package bitstream classifies the coded picture type of compressed video
// access units without decoding them. Parsers exist for H.264/AVC, H.265/HEVC
// and AV1, which walk just enough of the slice or frame header syntax to find
// the picture type, and for VP9, MPEG-4 Visual, H.263 and AAC, which only
// report profile and level.
//
// A Parser is selected by MIME type with [NewParser]. AVC and HEVC parsers are
// stateless; the AV1 parser accumulates sequence header and reference frame
// state and must be fed access units of one stream in decode order.
package bitstream

// PictureType is the coded type of a picture.
type PictureType uint8

// Picture types. Unknown is a valid result, not an error: it is returned when
// the access unit holds no classifiable slice or frame header.
const (
	PictureUnknown PictureType = iota
	PictureI
	PictureP
	PictureB
)

// String returns "I", "P", "B" or "unknown".
func (t PictureType) String() string {
	switch t {
	case PictureI:
		return "I"
	case PictureP:
		return "P"
	case PictureB:
		return "B"
	default:
		return "unknown"
	}
}

// IsIntra reports whether the picture can be decoded without references.
func (t PictureType) IsIntra() bool { return t == PictureI }
