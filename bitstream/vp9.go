package bitstream

import (
	"fmt"

	"github.com/bluenviron/mediacommon/pkg/codecs/vp9"
)

// vp9Parser reports VP9 profile and level only.
type vp9Parser struct{}

func (vp9Parser) Codec() string { return "vp9" }

func (vp9Parser) FrameType(data []byte, offset, length int) (PictureType, error) {
	if _, _, err := window(data, offset, length); err != nil {
		return PictureUnknown, err
	}
	return PictureUnknown, nil
}

// ProfileLevel reads the profile and level entries of a CodecPrivate
// record when isCodecConfig is set. Otherwise it decodes the profile from the
// uncompressed frame header; frames carry no level.
func (vp9Parser) ProfileLevel(data []byte, offset, length int, isCodecConfig bool) (ProfileLevel, bool, error) {
	start, limit, err := window(data, offset, length)
	if err != nil {
		return ProfileLevel{}, false, err
	}
	if isCodecConfig {
		return vp9ConfigProfileLevel(data[start:limit])
	}
	var h vp9.Header
	if err := h.Unmarshal(data[start:limit]); err != nil {
		return ProfileLevel{}, false, fmt.Errorf("%w: vp9 frame header: %v", ErrMalformed, err)
	}
	return ProfileLevel{Profile: fmt.Sprintf("Profile%d", h.Profile)}, true, nil
}

// CodecPrivate feature ids.
const (
	vp9FeatureProfile = 1
	vp9FeatureLevel   = 2
)

// vp9ConfigProfileLevel walks the id, length, value triplets of a VP9
// CodecPrivate record.
func vp9ConfigProfileLevel(rec []byte) (ProfileLevel, bool, error) {
	var pl ProfileLevel
	profile, level, pos := -1, -1, 0
	for pos+2 <= len(rec) && (profile < 0 || level < 0) {
		id, n := rec[pos], int(rec[pos+1])
		pos += 2
		if pos+n > len(rec) {
			return pl, false, fmt.Errorf("%w: vp9 codec private feature %d length %d at offset %d",
				ErrOutOfBounds, id, n, pos)
		}
		if id == vp9FeatureProfile || id == vp9FeatureLevel {
			if n != 1 {
				return pl, false, fmt.Errorf("%w: vp9 codec private feature %d length %d", ErrMalformed, id, n)
			}
			if id == vp9FeatureProfile {
				profile = int(rec[pos])
			} else {
				level = int(rec[pos])
			}
		}
		pos += n
	}
	if profile < 0 && level < 0 {
		return pl, false, nil
	}
	if profile >= 0 && profile <= 3 {
		pl.Profile = fmt.Sprintf("Profile%d", profile)
	}
	pl.Level = vp9Levels[level]
	return pl, true, nil
}

// level is 10 times the level number.
var vp9Levels = map[int]string{
	10: "1", 11: "1.1", 20: "2", 21: "2.1", 30: "3", 31: "3.1",
	40: "4", 41: "4.1", 50: "5", 51: "5.1", 52: "5.2",
	60: "6", 61: "6.1", 62: "6.2",
}
