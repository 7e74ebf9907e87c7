package source

import (
	"fmt"

	"github.com/zsiec/pictype/bitstream"
)

// nalRole is how a NAL unit relates to access unit boundaries.
type nalRole uint8

const (
	roleOther    nalRole = iota // stays with the current access unit
	roleAUD                     // always opens an access unit
	rolePrefix                  // opens an access unit once a VCL NAL unit was seen
	roleVCL                     // continues the current picture
	roleVCLFirst                // first slice of a picture
)

// nalUnit is a NAL unit located in an Annex-B byte stream.
type nalUnit struct {
	start int    // offset of the start code
	data  []byte // header onward, up to the next start code
}

// nalUnits finds every NAL unit behind a 3- or 4-byte start code. Bytes
// before the first start code are ignored.
func nalUnits(data []byte) []nalUnit {
	var starts, bodies []int
	n := len(data)
	for i := 0; i+2 < n; {
		if data[i] == 0 && data[i+1] == 0 {
			if i+3 < n && data[i+2] == 0 && data[i+3] == 1 {
				starts, bodies = append(starts, i), append(bodies, i+4)
				i += 4
				continue
			}
			if data[i+2] == 1 {
				starts, bodies = append(starts, i), append(bodies, i+3)
				i += 3
				continue
			}
		}
		i++
	}

	nals := make([]nalUnit, 0, len(starts))
	for k, body := range bodies {
		end := n
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		if body >= end {
			continue
		}
		nals = append(nals, nalUnit{start: starts[k], data: data[body:end]})
	}
	return nals
}

func avcRole(nal []byte) nalRole {
	switch t := nal[0] & 0x1F; {
	case t == 9:
		return roleAUD
	case t == 1 || t == 2 || t == 5:
		// first_mb_in_slice is ue(v); a leading 1 bit means zero.
		if len(nal) > 1 && nal[1]&0x80 != 0 {
			return roleVCLFirst
		}
		return roleVCL
	case t == 3 || t == 4:
		return roleVCL
	case t >= 6 && t <= 8, t >= 13 && t <= 18:
		return rolePrefix
	}
	return roleOther
}

func hevcRole(nal []byte) nalRole {
	if len(nal) < 2 {
		return roleOther
	}
	switch t := (nal[0] & 0x7E) >> 1; {
	case t == 35:
		return roleAUD
	case t <= 31:
		if len(nal) > 2 && nal[2]&0x80 != 0 {
			return roleVCLFirst
		}
		return roleVCL
	case t >= 32 && t <= 34, t == 39, t >= 41 && t <= 44, t >= 48 && t <= 55:
		return rolePrefix
	}
	return roleOther
}

// splitAnnexB groups the NAL units of an Annex-B stream into access units.
// Each access unit keeps the start code of its first NAL unit.
func splitAnnexB(data []byte, role func([]byte) nalRole) [][]byte {
	var aus [][]byte
	begin, hasVCL := -1, false
	for _, nal := range nalUnits(data) {
		r := role(nal.data)
		if begin >= 0 && (r == roleAUD || hasVCL && (r == rolePrefix || r == roleVCLFirst)) {
			aus = append(aus, data[begin:nal.start])
			begin, hasVCL = -1, false
		}
		if begin < 0 {
			begin = nal.start
		}
		if r == roleVCL || r == roleVCLFirst {
			hasVCL = true
		}
	}
	if begin >= 0 {
		aus = append(aus, data[begin:])
	}
	return aus
}

// AnnexB is a Source over an H.264 or H.265 Annex-B elementary stream.
type AnnexB struct {
	units
}

// NewAnnexB splits data into access units. Boundaries fall on access unit
// delimiters, on parameter sets or SEI following a picture, and on the first
// slice of each new picture.
func NewAnnexB(data []byte, mediaType string) (*AnnexB, error) {
	var role func([]byte) nalRole
	switch mediaType {
	case bitstream.MediaTypeAVC:
		role = avcRole
	case bitstream.MediaTypeHEVC:
		role = hevcRole
	default:
		return nil, fmt.Errorf("source: %q is not an Annex-B codec", mediaType)
	}
	a := &AnnexB{units{mediaType: mediaType}}
	for _, au := range splitAnnexB(data, role) {
		a.aus = append(a.aus, AccessUnit{Data: au, PTS: NoPTS})
	}
	return a, nil
}
