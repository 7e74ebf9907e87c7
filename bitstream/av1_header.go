package bitstream

// NumRefFrames is the number of AV1 reference frame slots.
const NumRefFrames = 8

// AV1FrameType is an AV1 frame_type.
type AV1FrameType uint8

// AV1 frame types (AV1 section 6.8.2).
const (
	KeyFrame       AV1FrameType = 0
	InterFrame     AV1FrameType = 1
	IntraOnlyFrame AV1FrameType = 2
	SwitchFrame    AV1FrameType = 3
)

func (t AV1FrameType) String() string {
	switch t {
	case KeyFrame:
		return "KEY_FRAME"
	case InterFrame:
		return "INTER_FRAME"
	case IntraOnlyFrame:
		return "INTRA_ONLY_FRAME"
	case SwitchFrame:
		return "SWITCH_FRAME"
	}
	return "UNKNOWN"
}

// PictureType maps key and intra-only frames to I and inter frames to P.
// Switch frames have no picture type equivalent.
func (t AV1FrameType) PictureType() PictureType {
	switch t {
	case KeyFrame, IntraOnlyFrame:
		return PictureI
	case InterFrame:
		return PictureP
	}
	return PictureUnknown
}

// Sentinels for SequenceHeader.ForceScreenContentTools and ForceIntegerMV
// meaning the choice is signalled per frame.
const (
	SelectScreenContentTools = 2
	SelectIntegerMV          = 2
)

// OperatingPoint holds the per operating point fields of a sequence header.
type OperatingPoint struct {
	IDC                 uint16 // operating_point_idc
	Level               uint8  // seq_level_idx
	Tier                uint8
	DecoderModelPresent bool
}

// SequenceHeader holds the sequence header fields that decide the layout of
// later frame headers.
type SequenceHeader struct {
	Profile                   uint8
	StillPicture              bool
	ReducedStillPictureHeader bool

	TimingInfoPresent                 bool
	EqualPictureInterval              bool
	DecoderModelInfoPresent           bool
	BufferDelayLengthMinus1           uint8
	BufferRemovalTimeLengthMinus1     uint8
	FramePresentationTimeLengthMinus1 uint8
	InitialDisplayDelayPresent        bool

	// OperatingPoints has operating_points_cnt_minus_1+1 entries, at most 32.
	OperatingPoints []OperatingPoint

	MaxFrameWidth  int
	MaxFrameHeight int

	FrameIDNumbersPresent         bool
	DeltaFrameIDLengthMinus2      uint8
	AdditionalFrameIDLengthMinus1 uint8

	ForceScreenContentTools uint8
	ForceIntegerMV          uint8
	OrderHintBits           int
	HighBitDepth            bool
}

// frameIDLength returns idLen, the width of frame id fields.
func (s *SequenceHeader) frameIDLength() int {
	if !s.FrameIDNumbersPresent {
		return 0
	}
	return int(s.AdditionalFrameIDLengthMinus1) + int(s.DeltaFrameIDLengthMinus2) + 3
}

// AV1State is the cross temporal unit state frame header parsing depends
// on: the active sequence header and the frame type held in each reference
// slot.
type AV1State struct {
	Seq          SequenceHeader
	SeqSeen      bool
	RefFrameType [NumRefFrames]AV1FrameType
}

// FrameHeader holds the fields of an uncompressed frame header that decide
// the picture type.
type FrameHeader struct {
	FrameType          AV1FrameType
	ShowFrame          bool
	ShowExistingFrame  bool
	FrameToShowMapIdx  int
	ErrorResilientMode bool
	RefreshFrameFlags  uint8
	TemporalID         int
	SpatialID          int

	// HeaderBits is the number of bits of the OBU payload consumed.
	HeaderBits int
}

const allFrames = 1<<NumRefFrames - 1

// parseSequenceHeader reads sequence_header_obu() up to and including
// high_bitdepth. Frame dimensions are read only for their bit widths.
func parseSequenceHeader(f *obuFields) (SequenceHeader, error) {
	var s SequenceHeader
	s.Profile = uint8(f.u(3))
	s.StillPicture = f.flag()
	s.ReducedStillPictureHeader = f.flag()
	if s.ReducedStillPictureHeader {
		s.OperatingPoints = []OperatingPoint{{Level: uint8(f.u(5))}}
	} else {
		s.TimingInfoPresent = f.flag()
		if s.TimingInfoPresent {
			f.wide(32) // num_units_in_display_tick
			f.wide(32) // time_scale
			s.EqualPictureInterval = f.flag()
			if s.EqualPictureInterval {
				f.uvlc() // num_ticks_per_picture_minus_1
			}
			s.DecoderModelInfoPresent = f.flag()
			if s.DecoderModelInfoPresent {
				s.BufferDelayLengthMinus1 = uint8(f.u(5))
				f.wide(32) // num_units_in_decoding_tick
				s.BufferRemovalTimeLengthMinus1 = uint8(f.u(5))
				s.FramePresentationTimeLengthMinus1 = uint8(f.u(5))
			}
		}
		s.InitialDisplayDelayPresent = f.flag()
		s.OperatingPoints = make([]OperatingPoint, f.u(5)+1)
		for i := range s.OperatingPoints {
			op := &s.OperatingPoints[i]
			op.IDC = uint16(f.u(12))
			op.Level = uint8(f.u(5))
			if op.Level > 7 {
				op.Tier = uint8(f.u(1))
			}
			if s.DecoderModelInfoPresent {
				op.DecoderModelPresent = f.flag()
				if op.DecoderModelPresent {
					n := int(s.BufferDelayLengthMinus1) + 1
					f.wide(n) // decoder_buffer_delay
					f.wide(n) // encoder_buffer_delay
					f.u(1)    // low_delay_mode_flag
				}
			}
			if s.InitialDisplayDelayPresent && f.flag() {
				f.u(4) // initial_display_delay_minus_1
			}
		}
	}

	widthBits := int(f.u(4)) + 1
	heightBits := int(f.u(4)) + 1
	s.MaxFrameWidth = int(f.u(widthBits)) + 1
	s.MaxFrameHeight = int(f.u(heightBits)) + 1
	if !s.ReducedStillPictureHeader {
		s.FrameIDNumbersPresent = f.flag()
	}
	if s.FrameIDNumbersPresent {
		s.DeltaFrameIDLengthMinus2 = uint8(f.u(4))
		s.AdditionalFrameIDLengthMinus1 = uint8(f.u(3))
	}
	f.u(3) // use_128x128_superblock, enable_filter_intra, enable_intra_edge_filter

	if s.ReducedStillPictureHeader {
		s.ForceScreenContentTools = SelectScreenContentTools
		s.ForceIntegerMV = SelectIntegerMV
		s.OrderHintBits = 0
	} else {
		f.u(4) // enable_interintra_compound, enable_masked_compound, enable_warped_motion, enable_dual_filter
		enableOrderHint := f.flag()
		if enableOrderHint {
			f.u(2) // enable_jnt_comp, enable_ref_frame_mvs
		}
		if f.flag() { // seq_choose_screen_content_tools
			s.ForceScreenContentTools = SelectScreenContentTools
		} else {
			s.ForceScreenContentTools = uint8(f.u(1))
		}
		if s.ForceScreenContentTools > 0 {
			if f.flag() { // seq_choose_integer_mv
				s.ForceIntegerMV = SelectIntegerMV
			} else {
				s.ForceIntegerMV = uint8(f.u(1))
			}
		} else {
			s.ForceIntegerMV = SelectIntegerMV
		}
		if enableOrderHint {
			s.OrderHintBits = int(f.u(3)) + 1
		}
	}
	f.u(3) // enable_superres, enable_cdef, enable_restoration
	s.HighBitDepth = f.flag()
	return s, f.err
}

// parseFrameHeader reads uncompressed_header() as far as
// refresh_frame_flags and applies the refresh to the reference slots. The
// slots are left untouched if the header is truncated.
func (st *AV1State) parseFrameHeader(f *obuFields, temporalID, spatialID int) (FrameHeader, error) {
	seq := &st.Seq
	fh := FrameHeader{TemporalID: temporalID, SpatialID: spatialID}
	idLen := seq.frameIDLength()
	presentationTime := seq.DecoderModelInfoPresent && !seq.EqualPictureInterval

	var intra bool
	if seq.ReducedStillPictureHeader {
		fh.FrameType = KeyFrame
		fh.ShowFrame = true
		intra = true
	} else {
		fh.ShowExistingFrame = f.flag()
		if fh.ShowExistingFrame {
			fh.FrameToShowMapIdx = int(f.u(3))
			if presentationTime {
				f.wide(int(seq.FramePresentationTimeLengthMinus1) + 1) // frame_presentation_time
			}
			if seq.FrameIDNumbersPresent {
				f.u(idLen) // display_frame_id
			}
			if f.err != nil {
				return fh, f.err
			}
			fh.FrameType = st.RefFrameType[fh.FrameToShowMapIdx]
			// Reference slots keep their types; the flags are reported only.
			if fh.FrameType == KeyFrame {
				fh.RefreshFrameFlags = allFrames
			}
			fh.HeaderBits = f.or.BitsRead()
			return fh, nil
		}

		fh.FrameType = AV1FrameType(f.u(2))
		intra = fh.FrameType == KeyFrame || fh.FrameType == IntraOnlyFrame
		fh.ShowFrame = f.flag()
		if fh.ShowFrame && presentationTime {
			f.wide(int(seq.FramePresentationTimeLengthMinus1) + 1) // frame_presentation_time
		}
		if !fh.ShowFrame {
			f.u(1) // showable_frame
		}
		if fh.FrameType == SwitchFrame || (fh.FrameType == KeyFrame && fh.ShowFrame) {
			fh.ErrorResilientMode = true
		} else {
			fh.ErrorResilientMode = f.flag()
		}
	}

	f.u(1) // disable_cdf_update
	allowScreenContentTools := uint32(seq.ForceScreenContentTools)
	if seq.ForceScreenContentTools == SelectScreenContentTools {
		allowScreenContentTools = f.u(1)
	}
	if allowScreenContentTools == 1 && seq.ForceIntegerMV == SelectIntegerMV {
		f.u(1) // force_integer_mv
	}
	if seq.FrameIDNumbersPresent {
		f.u(idLen) // current_frame_id
	}
	if fh.FrameType != SwitchFrame && !seq.ReducedStillPictureHeader {
		f.u(1) // frame_size_override_flag
	}
	f.u(seq.OrderHintBits) // order_hint
	if !intra && !fh.ErrorResilientMode {
		f.u(3) // primary_ref_frame
	}

	if seq.DecoderModelInfoPresent && f.flag() { // buffer_removal_time_present_flag
		for _, op := range seq.OperatingPoints {
			if !op.DecoderModelPresent {
				continue
			}
			inTemporalLayer := (op.IDC>>temporalID)&1 == 1
			inSpatialLayer := (op.IDC>>(spatialID+8))&1 == 1
			if op.IDC == 0 || (inTemporalLayer && inSpatialLayer) {
				f.wide(int(seq.BufferRemovalTimeLengthMinus1) + 1) // buffer_removal_time
			}
		}
	}

	if fh.FrameType == SwitchFrame || (fh.FrameType == KeyFrame && fh.ShowFrame) {
		fh.RefreshFrameFlags = allFrames
	} else {
		fh.RefreshFrameFlags = uint8(f.u(8))
	}
	if f.err != nil {
		return fh, f.err
	}
	st.refresh(fh.RefreshFrameFlags, fh.FrameType)
	fh.HeaderBits = f.or.BitsRead()
	return fh, nil
}

// refresh stores t in every slot whose bit is set in flags. Bit i selects
// slot i.
func (st *AV1State) refresh(flags uint8, t AV1FrameType) {
	for i := 0; i < NumRefFrames; i++ {
		if flags>>i&1 == 1 {
			st.RefFrameType[i] = t
		}
	}
}
