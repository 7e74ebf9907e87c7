package main

import (
	"fmt"
	"strings"

	"github.com/zsiec/pictype/bitstream"
)

var codecNames = map[string]string{
	"avc":  bitstream.MediaTypeAVC,
	"h264": bitstream.MediaTypeAVC,
	"hevc": bitstream.MediaTypeHEVC,
	"h265": bitstream.MediaTypeHEVC,
	"av1":  bitstream.MediaTypeAV1,
	"vp9":  bitstream.MediaTypeVP9,
}

// mediaTypeFor resolves a codec flag, either a short name or a MIME type.
// The empty string means no override.
func mediaTypeFor(codec string) (string, error) {
	if codec == "" {
		return "", nil
	}
	if strings.Contains(codec, "/") {
		if _, ok := bitstream.NewParser(codec); !ok {
			return "", fmt.Errorf("unsupported media type %q", codec)
		}
		return codec, nil
	}
	mt, ok := codecNames[strings.ToLower(codec)]
	if !ok {
		return "", fmt.Errorf("unknown codec %q (want avc, hevc, av1 or vp9)", codec)
	}
	return mt, nil
}
