package synth

import (
	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/bits"
)

// HEVC NAL unit types written by the generator.
const (
	hevcTrailR   = 1
	hevcIDRWRADL = 19
	hevcVPS      = 32
	hevcSPS      = 33
	hevcPPS      = 34
	hevcAUD      = 35
)

// Main profile, Main tier, level 4.0.
const (
	hevcProfileMain = 1
	hevcCompatMain  = 1<<30 | 1<<29
	hevcLevel40     = 120
)

func hevcHeader(nalType byte) []byte { return []byte{nalType << 1, 0x01} }

func hevcPTL(w *bits.Writer) {
	w.PutBits(2, 0)  // general_profile_space
	w.PutFlag(false) // general_tier_flag
	w.PutBits(5, hevcProfileMain)
	w.PutBits(32, hevcCompatMain)
	w.PutBits(4, 0b1001)
	w.PutBits(44, 0)
	w.PutBits(8, hevcLevel40)
}

func hevcParameterSets() []byte {
	vps := nal(hevcHeader(hevcVPS), func(w *bits.Writer) {
		w.PutBits(4, 0) // vps_video_parameter_set_id
		w.PutBits(2, 3) // vps_base_layer_internal_flag, available_flag
		w.PutBits(6, 0) // vps_max_layers_minus1
		w.PutBits(3, 0) // vps_max_sub_layers_minus1
		w.PutFlag(true) // vps_temporal_id_nesting_flag
		w.PutBits(16, 0xFFFF)
		hevcPTL(w)
	}, 0)
	sps := nal(hevcHeader(hevcSPS), func(w *bits.Writer) {
		w.PutBits(4, 0) // sps_video_parameter_set_id
		w.PutBits(3, 0) // sps_max_sub_layers_minus1
		w.PutFlag(true) // sps_temporal_id_nesting_flag
		hevcPTL(w)
		w.PutUEV(0)    // sps_seq_parameter_set_id
		w.PutUEV(1)    // chroma_format_idc
		w.PutUEV(1920) // pic_width_in_luma_samples
		w.PutUEV(1080) // pic_height_in_luma_samples
	}, 0)
	pps := nal(hevcHeader(hevcPPS), func(w *bits.Writer) {
		w.PutUEV(0)      // pps_pic_parameter_set_id
		w.PutUEV(0)      // pps_seq_parameter_set_id
		w.PutFlag(false) // dependent_slice_segments_enabled_flag
		w.PutFlag(false) // output_flag_present_flag
		w.PutBits(3, 0)  // num_extra_slice_header_bits
	}, 0)
	return append(append(vps, sps...), pps...)
}

// hevcAccessUnit writes AUD, parameter sets on I pictures, and a single slice
// segment. I pictures are IDR_W_RADL; P and B pictures are TRAIL_R.
func hevcAccessUnit(t bitstream.PictureType, opts Options) []byte {
	var (
		nalType   byte = hevcTrailR
		sliceType uint32
		picType   uint64
	)
	switch t {
	case bitstream.PictureI:
		nalType, sliceType, picType = hevcIDRWRADL, 2, 0
	case bitstream.PictureP:
		sliceType, picType = 1, 1
	default:
		sliceType, picType = 0, 2
	}
	au := nal(hevcHeader(hevcAUD), func(w *bits.Writer) { w.PutBits(3, picType) }, 0)
	if t == bitstream.PictureI {
		au = append(au, hevcParameterSets()...)
	}
	return append(au, nal(hevcHeader(nalType), func(w *bits.Writer) {
		w.PutFlag(true) // first_slice_segment_in_pic_flag
		if nalType == hevcIDRWRADL {
			w.PutFlag(false) // no_output_of_prior_pics_flag
		}
		w.PutUEV(0) // slice_pic_parameter_set_id
		w.PutUEV(sliceType)
	}, opts.FillerBytes)...)
}
