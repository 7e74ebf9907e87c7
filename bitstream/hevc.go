package bitstream

import (
	"fmt"

	"github.com/zsiec/pictype/internal/bits"
)

// H.265 NAL unit type ranges (ITU-T H.265 Table 7-1).
const (
	hevcNALTrailN       = 0  // TRAIL_N
	hevcNALRASLR        = 9  // RASL_R
	hevcNALBLAWLP       = 16 // BLA_W_LP, first IRAP type
	hevcNALRsvIRAPVCL23 = 23 // RSV_IRAP_VCL23, last IRAP type
	hevcNALSPS          = 33
)

type hevcParser struct{}

func (hevcParser) Codec() string { return "hevc" }

func hevcNALType(b byte) byte { return (b & 0x7E) >> 1 }

func isHEVCIRAP(nalType byte) bool {
	return nalType >= hevcNALBLAWLP && nalType <= hevcNALRsvIRAPVCL23
}

func isHEVCSlice(nalType byte) bool {
	return nalType <= hevcNALRASLR || isHEVCIRAP(nalType)
}

// FrameType classifies the first slice segment in the window. Only a
// segment with first_slice_segment_in_pic_flag set is parsed; any other
// first segment yields PictureUnknown.
//
// slice_type follows slice_pic_parameter_set_id directly, which holds only
// when the active PPS has num_extra_slice_header_bits == 0. The PPS is not
// parsed, so streams using extra slice header bits are misread.
func (hevcParser) FrameType(data []byte, offset, length int) (PictureType, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return PictureUnknown, err
	}
	pt := PictureUnknown
	err = scanNALs(data, start, limit, func(off int) (bool, error) {
		nalType := hevcNALType(data[off])
		if !isHEVCSlice(nalType) {
			return false, nil
		}
		first, sliceType, err := hevcSliceType(data, off, limit, nalType)
		if err != nil {
			return true, fmt.Errorf("hevc slice segment header at offset %d: %w", off, err)
		}
		if !first {
			return true, nil
		}
		switch sliceType {
		case 0:
			pt = PictureB
		case 1:
			pt = PictureP
		case 2:
			pt = PictureI
		}
		return true, nil
	})
	return pt, err
}

func hevcSliceType(data []byte, off, limit int, nalType byte) (first bool, sliceType uint32, err error) {
	nr := bits.NewNALReader(data, off, limit)
	if _, err = nr.ReadBits(16); err != nil { // nal_unit_header
		return false, 0, err
	}
	if first, err = nr.ReadFlag(); err != nil || !first {
		return false, 0, err
	}
	if isHEVCIRAP(nalType) {
		if _, err = nr.ReadFlag(); err != nil { // no_output_of_prior_pics_flag
			return false, 0, err
		}
	}
	if _, err = nr.ReadUEV(); err != nil { // slice_pic_parameter_set_id
		return false, 0, err
	}
	sliceType, err = nr.ReadUEV()
	return true, sliceType, err
}

// ProfileLevel reads the general profile_tier_level fields of the first SPS
// in the window.
func (hevcParser) ProfileLevel(data []byte, offset, length int, _ bool) (ProfileLevel, bool, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	var (
		pl    ProfileLevel
		found bool
	)
	err = scanNALs(data, start, limit, func(off int) (bool, error) {
		if hevcNALType(data[off]) != hevcNALSPS {
			return false, nil
		}
		f := newNALFields(data, off, limit)
		f.u(16) // nal_unit_header
		f.u(4)  // sps_video_parameter_set_id
		f.u(3)  // sps_max_sub_layers_minus1
		f.u(1)  // sps_temporal_id_nesting_flag
		f.u(2)  // general_profile_space
		highTier := f.flag()
		profileIDC := f.u(5)
		compat := f.wide(32)
		f.u(4)     // progressive, interlaced, non_packed, frame_only
		f.wide(43) // profile-specific constraint flags
		f.u(1)     // general_inbld_flag / reserved
		levelIDC := f.u(8)
		if f.err != nil {
			return true, fmt.Errorf("hevc sps at offset %d: %w", off, f.err)
		}
		pl = hevcProfileLevel(uint8(profileIDC), uint32(compat), highTier, uint8(levelIDC))
		found = true
		return true, nil
	})
	return pl, found, err
}

func hevcProfileLevel(profileIDC uint8, compat uint32, highTier bool, levelIDC uint8) ProfileLevel {
	// general_profile_compatibility_flag[j] is bit 31-j of compat.
	compatible := func(j uint) bool { return compat&(1<<(31-j)) != 0 }

	var pl ProfileLevel
	switch {
	case profileIDC == 1 || compatible(1):
		pl.Profile = "Main"
	case profileIDC == 2 || compatible(2):
		pl.Profile = "Main10"
	case profileIDC == 3 || compatible(3):
		pl.Profile = "MainStill"
	}
	if highTier {
		pl.Tier = "High"
		pl.Level = hevcHighTierLevels[levelIDC]
	} else {
		pl.Tier = "Main"
		pl.Level = hevcMainTierLevels[levelIDC]
	}
	return pl
}

// general_level_idc is 30 times the level number.
var hevcMainTierLevels = map[uint8]string{
	30: "1", 60: "2", 63: "2.1", 90: "3", 93: "3.1",
	120: "4", 123: "4.1", 150: "5", 153: "5.1", 156: "5.2",
	180: "6", 183: "6.1", 186: "6.2",
}

var hevcHighTierLevels = map[uint8]string{
	120: "4", 123: "4.1", 150: "5", 153: "5.1", 156: "5.2",
	180: "6", 183: "6.1", 186: "6.2",
}
