// Package synth builds syntactically valid AVC, HEVC and AV1 streams with a
// chosen sequence of picture types. Only the headers a classifier reads are
// real; slice and tile data are filler.
package synth

import (
	"fmt"
	"strings"

	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/bits"
)

// ParsePattern parses a picture type string such as "IBBPBBP". Letters are
// case-insensitive and spaces are ignored.
func ParsePattern(s string) ([]bitstream.PictureType, error) {
	var out []bitstream.PictureType
	for i, c := range strings.ToUpper(s) {
		switch c {
		case 'I':
			out = append(out, bitstream.PictureI)
		case 'P':
			out = append(out, bitstream.PictureP)
		case 'B':
			out = append(out, bitstream.PictureB)
		case ' ':
		default:
			return nil, fmt.Errorf("synth: invalid picture type %q at %d", c, i)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("synth: empty pattern")
	}
	if out[0] != bitstream.PictureI {
		return nil, fmt.Errorf("synth: pattern must start with I")
	}
	return out, nil
}

// GOP returns n picture types in decode order for closed GOPs of gopLen
// pictures with up to bFrames B pictures between anchors.
func GOP(n, gopLen, bFrames int) []bitstream.PictureType {
	if gopLen < 1 {
		gopLen = 1
	}
	out := make([]bitstream.PictureType, 0, n)
	for i := 0; len(out) < n; i++ {
		pos := i % gopLen
		switch {
		case pos == 0:
			out = append(out, bitstream.PictureI)
		case bFrames > 0 && (pos-1)%(bFrames+1) != 0:
			out = append(out, bitstream.PictureB)
		default:
			out = append(out, bitstream.PictureP)
		}
	}
	return out
}

// Options tunes the generated stream.
type Options struct {
	// FillerBytes of slice or tile data follow each picture header.
	FillerBytes int
}

// Stream returns one access unit per picture type. Intra pictures carry the
// parameter sets or sequence header in band.
func Stream(mediaType string, types []bitstream.PictureType, opts Options) ([][]byte, error) {
	var gen func(i int, t bitstream.PictureType) ([]byte, error)
	switch mediaType {
	case bitstream.MediaTypeAVC:
		gen = func(i int, t bitstream.PictureType) ([]byte, error) { return avcAccessUnit(i, t, opts), nil }
	case bitstream.MediaTypeHEVC:
		gen = func(i int, t bitstream.PictureType) ([]byte, error) { return hevcAccessUnit(t, opts), nil }
	case bitstream.MediaTypeAV1:
		gen = func(i int, t bitstream.PictureType) ([]byte, error) { return av1TemporalUnit(i, t, opts) }
	default:
		return nil, fmt.Errorf("synth: cannot generate %q", mediaType)
	}
	aus := make([][]byte, 0, len(types))
	for i, t := range types {
		au, err := gen(i, t)
		if err != nil {
			return nil, fmt.Errorf("synth: picture %d: %w", i, err)
		}
		aus = append(aus, au)
	}
	return aus, nil
}

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// nal returns header and rbsp behind a start code, with emulation prevention.
func nal(header []byte, body func(w *bits.Writer), filler int) []byte {
	w := bits.NewWriter()
	body(w)
	fill(w, filler)
	w.PutTrailingBits()
	out := append(append([]byte{}, startCode...), header...)
	return append(out, bits.AddEmulationPrevention(w.Bytes())...)
}

// fill appends n bytes of a fixed pattern that includes zero runs, so
// emulation prevention is exercised.
func fill(w *bits.Writer, n int) {
	for i := 0; i < n; i++ {
		v := uint64(i*131) & 0xFF
		if i%17 < 3 {
			v = 0
		}
		w.PutBits(8, v)
	}
}
