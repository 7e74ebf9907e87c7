package mpegts

import (
	"fmt"

	"github.com/zsiec/pictype/bitstream"
)

// Stream types from ISO/IEC 13818-1 Table 2-34 that carry video.
const (
	StreamTypeMPEG4Video = 0x10
	StreamTypeH264       = 0x1B
	StreamTypeH265       = 0x24
)

// Stream is one elementary stream announced in a PMT.
type Stream struct {
	PID           uint16
	StreamType    uint8
	ProgramNumber uint16
}

// MediaType returns the MIME type bitstream.NewParser accepts for the stream,
// or "" when the stream type is not a supported video codec.
func (s Stream) MediaType() string {
	switch s.StreamType {
	case StreamTypeH264:
		return bitstream.MediaTypeAVC
	case StreamTypeH265:
		return bitstream.MediaTypeHEVC
	case StreamTypeMPEG4Video:
		return bitstream.MediaTypeMPEG4
	}
	return ""
}

func (s Stream) String() string {
	return fmt.Sprintf("pid 0x%04X type 0x%02X program %d", s.PID, s.StreamType, s.ProgramNumber)
}

// IsVideo reports whether s carries a supported video codec.
func (s Stream) IsVideo() bool { return s.MediaType() != "" }

// Unit is one reassembled PES packet payload. For video streams this is
// normally one access unit.
type Unit struct {
	Stream Stream
	PTS    int64 // 90 kHz, or NoTimestamp
	DTS    int64 // 90 kHz, or NoTimestamp
	Data   []byte

	// Discontinuity is set on the first unit after packets were lost on
	// the PID.
	Discontinuity bool
}
