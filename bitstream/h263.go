package bitstream

import "fmt"

// h263Parser reports H.263 profile only. H.263 picture headers carry no
// level.
type h263Parser struct{}

func (h263Parser) Codec() string { return "h263" }

func (h263Parser) FrameType(data []byte, offset, length int) (PictureType, error) {
	if _, _, err := window(data, offset, length); err != nil {
		return PictureUnknown, err
	}
	return PictureUnknown, nil
}

const (
	h263PictureStartCode = 0x20 // 22 bits: 0000 0000 0000 0000 1000 00
	h263ExtendedPType    = 7    // source_format signalling PLUSPTYPE
)

// ProfileLevel infers the profile from the optional modes signalled in the
// picture header at the start of the window: Advanced Prediction alone
// means BackwardCompatible, and Advanced INTRA Coding, Deblocking Filter,
// Slice Structured and Modified Quantization together mean ISWV2.
func (h263Parser) ProfileLevel(data []byte, offset, length int, _ bool) (ProfileLevel, bool, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	f := newPlainFields(data, start, limit)
	psc := f.u(22)
	f.u(8) // temporal reference
	marker := f.u(1)
	splitFlag := f.u(1)
	f.u(3) // split screen, document camera, freeze picture release
	sourceFormat := f.u(3)

	var ap, aic, df, ss, mq bool
	if sourceFormat == h263ExtendedPType {
		ufep := f.u(3)
		if ufep == 1 {
			f.u(3) // source format
			f.u(1) // custom PCF
			f.u(1) // unrestricted motion vector
			f.u(1) // syntax-based arithmetic coding
			ap = f.flag()
			aic = f.flag()
			df = f.flag()
			ss = f.flag()
			f.u(1) // reference picture selection
			f.u(1) // independent segment decoding
			f.u(1) // alternative inter VLC
			mq = f.flag()
			if one, zero := f.u(1), f.u(3); f.err == nil && (one != 1 || zero != 0) {
				return ProfileLevel{}, false, fmt.Errorf("%w: h263 OPPTYPE marker", ErrMalformed)
			}
		}
		f.u(3) // picture type code
		f.u(2) // reference picture resampling, reduced-resolution update
		f.u(1) // rounding type
		if zero, one := f.u(2), f.u(1); f.err == nil && (zero != 0 || one != 1) {
			return ProfileLevel{}, false, fmt.Errorf("%w: h263 MPPTYPE marker", ErrMalformed)
		}
	} else {
		f.u(1) // picture coding type
		f.u(1) // unrestricted motion vector
		f.u(1) // syntax-based arithmetic coding
		ap = f.flag()
		f.u(1) // PB-frames
	}
	if f.err != nil {
		return ProfileLevel{}, false, fmt.Errorf("h263 picture header: %w", f.err)
	}
	if psc != h263PictureStartCode || marker != 1 || splitFlag != 0 {
		return ProfileLevel{}, false, fmt.Errorf("%w: h263 picture start code %06x", ErrMalformed, psc)
	}

	pl := ProfileLevel{Profile: "Baseline"}
	if ap {
		pl.Profile = "BackwardCompatible"
	}
	if aic && df && ss && mq {
		pl.Profile = "ISWV2"
	}
	return pl, true, nil
}
