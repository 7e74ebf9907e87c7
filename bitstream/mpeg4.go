package bitstream

import "fmt"

// mpeg4Parser reports MPEG-4 Visual profile and level only.
type mpeg4Parser struct{}

func (mpeg4Parser) Codec() string { return "mpeg4" }

func (mpeg4Parser) FrameType(data []byte, offset, length int) (PictureType, error) {
	if _, _, err := window(data, offset, length); err != nil {
		return PictureUnknown, err
	}
	return PictureUnknown, nil
}

const mpeg4VOSStartCode = 0x000001B0

// ProfileLevel reads profile_and_level_indication from a
// visual_object_sequence header at the start of the window.
func (mpeg4Parser) ProfileLevel(data []byte, offset, length int, _ bool) (ProfileLevel, bool, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	f := newPlainFields(data, start, limit)
	startCode := f.wide(32)
	indication := uint8(f.u(8))
	if f.err != nil {
		return ProfileLevel{}, false, fmt.Errorf("mpeg4 visual object sequence: %w", f.err)
	}
	if startCode != mpeg4VOSStartCode {
		return ProfileLevel{}, false, fmt.Errorf("%w: mpeg4 start code %08x", ErrMalformed, startCode)
	}
	pl, ok := mpeg4ProfileLevels[indication]
	return pl, ok, nil
}

var mpeg4ProfileLevels = map[uint8]ProfileLevel{
	0x08: {Profile: "Simple", Level: "0"},
	0x01: {Profile: "Simple", Level: "1"},
	0x02: {Profile: "Simple", Level: "2"},
	0x03: {Profile: "Simple", Level: "3"},
	0xF0: {Profile: "AdvancedSimple", Level: "0"},
	0xF1: {Profile: "AdvancedSimple", Level: "1"},
	0xF2: {Profile: "AdvancedSimple", Level: "2"},
	0xF3: {Profile: "AdvancedSimple", Level: "3"},
	0xF7: {Profile: "AdvancedSimple", Level: "3b"},
	0xF4: {Profile: "AdvancedSimple", Level: "4"},
	0xF5: {Profile: "AdvancedSimple", Level: "5"},
}
