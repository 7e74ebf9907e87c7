package source

import (
	"fmt"

	"github.com/zsiec/pictype/bitstream"
)

// AV1 is a Source over an AV1 low-overhead bitstream. The length-delimited
// Annex B format is not supported. Temporal units start at temporal
// delimiter OBUs.
type AV1 struct {
	units
}

// NewAV1 splits data into temporal units. It fails on OBUs without a size
// field and on an OBU that runs past the end of data.
func NewAV1(data []byte) (*AV1, error) {
	tus, err := splitTemporalUnits(data)
	if err != nil {
		return nil, err
	}
	a := &AV1{units{mediaType: bitstream.MediaTypeAV1}}
	for _, tu := range tus {
		a.aus = append(a.aus, AccessUnit{Data: tu, PTS: NoPTS})
	}
	return a, nil
}

func splitTemporalUnits(data []byte) ([][]byte, error) {
	var tus [][]byte
	begin := 0
	for pos := 0; pos < len(data); {
		h, err := bitstream.ParseOBUHeader(data, pos, len(data))
		if err != nil {
			return nil, err
		}
		if h.Size() > len(data)-pos {
			return nil, fmt.Errorf("%w: obu type %d at offset %d needs %d bytes, %d left",
				bitstream.ErrOutOfBounds, h.Type, pos, h.Size(), len(data)-pos)
		}
		if h.Type == bitstream.OBUTemporalDelimiter && pos > begin {
			tus = append(tus, data[begin:pos])
			begin = pos
		}
		pos += h.Size()
	}
	if begin < len(data) {
		tus = append(tus, data[begin:])
	}
	return tus, nil
}
