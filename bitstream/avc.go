package bitstream

import (
	"fmt"

	"github.com/zsiec/pictype/internal/bits"
)

// H.264 NAL unit types used by the parser (ITU-T H.264 Table 7-1).
const (
	avcNALSlice          = 1
	avcNALSliceDataPartA = 2
	avcNALIDR            = 5
	avcNALSPS            = 7
)

type avcParser struct{}

func (avcParser) Codec() string { return "avc" }

func isAVCSlice(nalType byte) bool {
	return nalType == avcNALSlice || nalType == avcNALSliceDataPartA || nalType == avcNALIDR
}

// FrameType classifies the first coded slice in the window by its
// slice_type. Types 5..9 repeat 0..4 with the all-slices-same-type meaning,
// hence the modulo.
func (avcParser) FrameType(data []byte, offset, length int) (PictureType, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return PictureUnknown, err
	}
	pt := PictureUnknown
	err = scanNALs(data, start, limit, func(off int) (bool, error) {
		if !isAVCSlice(data[off] & 0x1F) {
			return false, nil
		}
		sliceType, err := avcSliceType(data, off, limit)
		if err != nil {
			return true, fmt.Errorf("avc slice header at offset %d: %w", off, err)
		}
		switch sliceType % 5 {
		case 0:
			pt = PictureP
		case 1:
			pt = PictureB
		case 2:
			pt = PictureI
		}
		return true, nil
	})
	return pt, err
}

func avcSliceType(data []byte, off, limit int) (uint32, error) {
	nr := bits.NewNALReader(data, off, limit)
	if _, err := nr.ReadBits(8); err != nil { // forbidden_zero_bit, nal_ref_idc, nal_unit_type
		return 0, err
	}
	if _, err := nr.ReadUEV(); err != nil { // first_mb_in_slice
		return 0, err
	}
	return nr.ReadUEV()
}

// ProfileLevel reads profile_idc, the constraint flags and level_idc from the
// first SPS in the window. isCodecConfig is ignored: the SPS is found in
// Annex-B codec config and in-band alike.
func (avcParser) ProfileLevel(data []byte, offset, length int, _ bool) (ProfileLevel, bool, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	var (
		pl    ProfileLevel
		found bool
	)
	err = scanNALs(data, start, limit, func(off int) (bool, error) {
		if data[off]&0x1F != avcNALSPS {
			return false, nil
		}
		f := newNALFields(data, off, limit)
		f.u(8) // NAL header
		profileIDC := f.u(8)
		constraints := f.u(8)
		levelIDC := f.u(8)
		if f.err != nil {
			return true, fmt.Errorf("avc sps at offset %d: %w", off, f.err)
		}
		if constraints&0x03 != 0 {
			return true, fmt.Errorf("%w: avc sps reserved_zero_2bits = %d", ErrMalformed, constraints&0x03)
		}
		pl = avcProfileLevel(uint8(profileIDC), uint8(constraints), uint8(levelIDC))
		found = true
		return true, nil
	})
	return pl, found, err
}

// constraint_set flags, MSB first.
const (
	avcConstraintSet0 = 0x80
	avcConstraintSet1 = 0x40
	avcConstraintSet2 = 0x20
	avcConstraintSet3 = 0x10
	avcConstraintSet4 = 0x08
	avcConstraintSet5 = 0x04
)

func avcProfileLevel(profileIDC, constraints, levelIDC uint8) ProfileLevel {
	set := func(mask uint8) bool { return constraints&mask != 0 }

	var profile string
	switch {
	case set(avcConstraintSet0) || profileIDC == 66:
		profile = "Baseline"
		if set(avcConstraintSet1) {
			profile = "ConstrainedBaseline"
		}
	case set(avcConstraintSet1) || profileIDC == 77:
		profile = "Main"
	case set(avcConstraintSet2) || profileIDC == 88:
		profile = "Extended"
	case profileIDC == 100:
		profile = "High"
		if set(avcConstraintSet4) && set(avcConstraintSet5) {
			profile = "ConstrainedHigh"
		}
	case profileIDC == 110:
		profile = "High10"
	case profileIDC == 122:
		profile = "High422"
	case profileIDC == 244:
		profile = "High444"
	}

	var level string
	switch profile {
	case "Baseline", "ConstrainedBaseline", "Main", "Extended":
		if levelIDC == 11 && set(avcConstraintSet3) {
			level = "1b"
		}
	case "High", "High10", "High422", "High444":
		if levelIDC == 9 {
			level = "1b"
		}
	}
	if level == "" {
		level = avcLevels[levelIDC]
	}
	return ProfileLevel{Profile: profile, Level: level}
}

var avcLevels = map[uint8]string{
	10: "1", 11: "1.1", 12: "1.2", 13: "1.3",
	20: "2", 21: "2.1", 22: "2.2",
	30: "3", 31: "3.1", 32: "3.2",
	40: "4", 41: "4.1", 42: "4.2",
	50: "5", 51: "5.1", 52: "5.2",
	60: "6", 61: "6.1", 62: "6.2",
}
