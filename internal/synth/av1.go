package synth

import (
	"errors"

	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/bits"
)

// errAV1BPicture is returned for B in an AV1 pattern. AV1 frames are key,
// intra-only, inter or switch frames; none maps to B.
var errAV1BPicture = errors.New("av1 has no B pictures")

const (
	av1OrderHintBits = 7
	av1Level40       = 8 // seq_level_idx for level 4.0
)

func obu(typ bitstream.OBUType, payload []byte) []byte {
	out := []byte{byte(typ)<<3 | 0x02}
	out = bits.AppendLEB128(out, uint32(len(payload)))
	return append(out, payload...)
}

func obuPayload(write func(w *bits.Writer), filler int) []byte {
	w := bits.NewWriter()
	write(w)
	w.PutTrailingBits()
	for i := 0; i < filler; i++ {
		w.PutBits(8, uint64(i*131)&0xFF)
	}
	return w.Bytes()
}

// av1SequenceHeader writes a Main profile 8-bit 4:2:0 sequence header with
// one operating point, order hints on and screen content tools off.
func av1SequenceHeader() []byte {
	return obu(bitstream.OBUSequenceHeader, obuPayload(func(w *bits.Writer) {
		w.PutBits(3, 0)  // seq_profile
		w.PutFlag(false) // still_picture
		w.PutFlag(false) // reduced_still_picture_header
		w.PutFlag(false) // timing_info_present_flag
		w.PutFlag(false) // initial_display_delay_present_flag
		w.PutBits(5, 0)  // operating_points_cnt_minus_1
		w.PutBits(12, 0) // operating_point_idc
		w.PutBits(5, av1Level40)
		w.PutBits(1, 0) // seq_tier
		w.PutBits(4, 10)
		w.PutBits(4, 10)
		w.PutBits(11, 1919)
		w.PutBits(11, 1079)
		w.PutFlag(false) // frame_id_numbers_present_flag
		w.PutBits(3, 0)  // use_128x128_superblock, enable_filter_intra, enable_intra_edge_filter
		w.PutBits(4, 0)  // enable_interintra_compound .. enable_dual_filter
		w.PutFlag(true)  // enable_order_hint
		w.PutBits(2, 0)  // enable_jnt_comp, enable_ref_frame_mvs
		w.PutFlag(false) // seq_choose_screen_content_tools
		w.PutBits(1, 0)  // seq_force_screen_content_tools
		w.PutBits(3, av1OrderHintBits-1)
		w.PutBits(3, 0)  // enable_superres, enable_cdef, enable_restoration
		w.PutFlag(false) // high_bitdepth
		w.PutFlag(false) // mono_chrome
		w.PutFlag(false) // color_description_present_flag
		w.PutFlag(false) // color_range
		w.PutBits(2, 0)  // chroma_sample_position
		w.PutFlag(false) // separate_uv_delta_q
		w.PutFlag(false) // film_grain_params_present
	}, 0))
}

// av1TemporalUnit writes a temporal delimiter and one shown frame. I pictures
// are key frames preceded by the sequence header; P pictures are inter frames
// that refresh slot 0.
func av1TemporalUnit(i int, t bitstream.PictureType, opts Options) ([]byte, error) {
	if t == bitstream.PictureB {
		return nil, errAV1BPicture
	}
	tu := obu(bitstream.OBUTemporalDelimiter, nil)
	if t == bitstream.PictureI {
		tu = append(tu, av1SequenceHeader()...)
	}
	orderHint := uint64(i) & (1<<av1OrderHintBits - 1)
	frame := obuPayload(func(w *bits.Writer) {
		w.PutFlag(false) // show_existing_frame
		if t == bitstream.PictureI {
			w.PutBits(2, uint64(bitstream.KeyFrame))
			w.PutFlag(true)  // show_frame
			w.PutFlag(false) // disable_cdf_update
			w.PutFlag(false) // frame_size_override_flag
			w.PutBits(av1OrderHintBits, orderHint)
			return
		}
		w.PutBits(2, uint64(bitstream.InterFrame))
		w.PutFlag(true)  // show_frame
		w.PutFlag(false) // error_resilient_mode
		w.PutFlag(false) // disable_cdf_update
		w.PutFlag(false) // frame_size_override_flag
		w.PutBits(av1OrderHintBits, orderHint)
		w.PutBits(3, 7) // primary_ref_frame
		w.PutBits(8, 0x01)
	}, opts.FillerBytes)
	return append(tu, obu(bitstream.OBUFrame, frame)...), nil
}
