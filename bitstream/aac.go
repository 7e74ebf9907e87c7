package bitstream

import (
	"fmt"

	"github.com/bluenviron/mediacommon/pkg/codecs/mpeg4audio"
)

// aacParser reports the audio object type of an AudioSpecificConfig as the
// profile.
type aacParser struct{}

func (aacParser) Codec() string { return "aac" }

func (aacParser) FrameType(data []byte, offset, length int) (PictureType, error) {
	if _, _, err := window(data, offset, length); err != nil {
		return PictureUnknown, err
	}
	return PictureUnknown, nil
}

// ProfileLevel reads audioObjectType from the AudioSpecificConfig
// (ISO/IEC 14496-3 1.6.2.1) at the start of the window. Configs mpeg4audio
// cannot decode (other object types, truncated sampling fields) fall back to
// reading the object type alone, following the escape value 31 into
// audioObjectTypeExt.
func (aacParser) ProfileLevel(data []byte, offset, length int, _ bool) (ProfileLevel, bool, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	aot, err := aacObjectType(data, start, limit)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	name, ok := aacObjectTypes[aot]
	if !ok {
		name = fmt.Sprintf("AOT%d", aot)
	}
	return ProfileLevel{Profile: name}, true, nil
}

func aacObjectType(data []byte, start, limit int) (uint32, error) {
	var conf mpeg4audio.AudioSpecificConfig
	if err := conf.Unmarshal(data[start:limit]); err == nil {
		return uint32(conf.Type), nil
	}
	f := newPlainFields(data, start, limit)
	aot := f.u(5)
	if aot == 31 {
		aot = 32 + f.u(6)
	}
	if f.err != nil {
		return 0, fmt.Errorf("aac audio specific config: %w", f.err)
	}
	return aot, nil
}

var aacObjectTypes = map[uint32]string{
	1:  "Main",
	2:  "LC",
	3:  "SSR",
	4:  "LTP",
	5:  "HE",
	6:  "Scalable",
	17: "ERLC",
	20: "ERScalable",
	23: "LD",
	29: "HEv2",
	39: "ELD",
	42: "xHE",
}
