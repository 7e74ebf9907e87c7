package synth

import (
	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/bits"
)

// High profile, level 4.0.
const (
	avcProfileHigh = 100
	avcLevel40     = 40
)

var (
	avcAUD = []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0xF0}
	avcPPS = []byte{0x00, 0x00, 0x00, 0x01, 0x68, 0xEB, 0xE3, 0xCB, 0x22, 0xC0}
)

func avcSPS() []byte {
	return nal([]byte{0x67, avcProfileHigh, 0x00, avcLevel40}, func(w *bits.Writer) {
		w.PutUEV(0) // seq_parameter_set_id
		w.PutUEV(1) // chroma_format_idc
		w.PutUEV(0) // bit_depth_luma_minus8
		w.PutUEV(0) // bit_depth_chroma_minus8
		w.PutBits(2, 0)
		w.PutUEV(0) // log2_max_frame_num_minus4
		w.PutUEV(2) // pic_order_cnt_type
		w.PutUEV(4) // max_num_ref_frames
		w.PutFlag(false)
		w.PutUEV(119) // pic_width_in_mbs_minus1
		w.PutUEV(67)  // pic_height_in_map_units_minus1
		w.PutFlag(true)
		w.PutFlag(true)
		w.PutFlag(false)
		w.PutFlag(false)
	}, 0)
}

// avcAccessUnit writes AUD, parameter sets on I pictures, and a single slice.
// slice_type uses the 5..9 range that promises every slice shares the type.
func avcAccessUnit(i int, t bitstream.PictureType, opts Options) []byte {
	var (
		header    byte
		sliceType uint32
	)
	switch t {
	case bitstream.PictureI:
		header, sliceType = 0x65, 7
	case bitstream.PictureP:
		header, sliceType = 0x41, 5
	default:
		header, sliceType = 0x01, 6
	}
	au := append([]byte{}, avcAUD...)
	if t == bitstream.PictureI {
		au = append(au, avcSPS()...)
		au = append(au, avcPPS...)
	}
	return append(au, nal([]byte{header}, func(w *bits.Writer) {
		w.PutUEV(0) // first_mb_in_slice
		w.PutUEV(sliceType)
		w.PutUEV(0)                  // pic_parameter_set_id
		w.PutBits(4, uint64(i)&0x0F) // frame_num
		if t == bitstream.PictureI {
			w.PutUEV(0) // idr_pic_id
		}
	}, opts.FillerBytes)...)
}
