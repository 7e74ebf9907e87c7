package bitstream

import (
	"errors"
	"testing"
)

func TestNewParser(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mediaType string
		codec     string
	}{
		{MediaTypeAVC, "avc"},
		{MediaTypeHEVC, "hevc"},
		{MediaTypeAV1, "av1"},
		{MediaTypeVP9, "vp9"},
		{MediaTypeMPEG4, "mpeg4"},
		{MediaTypeH263, "h263"},
		{MediaTypeAAC, "aac"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.mediaType, func(t *testing.T) {
			t.Parallel()
			p, ok := NewParser(tt.mediaType)
			if !ok || p == nil {
				t.Fatalf("NewParser(%q) = %v, %v", tt.mediaType, p, ok)
			}
			if got := p.Codec(); got != tt.codec {
				t.Errorf("Codec() = %q, want %q", got, tt.codec)
			}
		})
	}
}

func TestNewParserUnsupported(t *testing.T) {
	t.Parallel()
	for _, mt := range []string{"", "video/vp8", "audio/opus", "video/AVC"} {
		p, ok := NewParser(mt)
		if ok || p != nil {
			t.Errorf("NewParser(%q) = %v, %v; want nil, false", mt, p, ok)
		}
	}
}

func TestNewParserAV1Independent(t *testing.T) {
	t.Parallel()
	a, _ := NewParser(MediaTypeAV1)
	b, _ := NewParser(MediaTypeAV1)
	tu := concat(temporalDelimiter, reducedStillSequenceHeader(8))
	if _, err := FrameTypeOf(a, tu); err != nil {
		t.Fatal(err)
	}
	if !a.(*AV1Parser).State().SeqSeen {
		t.Error("first parser did not record the sequence header")
	}
	if b.(*AV1Parser).State().SeqSeen {
		t.Error("parsers share sequence header state")
	}
}

func TestNilParser(t *testing.T) {
	t.Parallel()
	got, err := FrameTypeOf(nil, avcSlice(avcNALIDR, 0, 2))
	if got != PictureUnknown || err != nil {
		t.Errorf("FrameTypeOf(nil) = %v, %v; want unknown, nil", got, err)
	}
	pl, ok, err := ProfileLevelOf(nil, avcSPS(100, 0, 40), false)
	if pl != (ProfileLevel{}) || ok || err != nil {
		t.Errorf("ProfileLevelOf(nil) = %+v, %v, %v", pl, ok, err)
	}
}

func TestProfileOnlyParsersFrameType(t *testing.T) {
	t.Parallel()
	data := []byte{0x00, 0x00, 0x01, 0xB0, 0xF5, 0x00, 0x00, 0x01, 0xB6, 0x10}
	for _, mt := range []string{MediaTypeVP9, MediaTypeMPEG4, MediaTypeH263, MediaTypeAAC} {
		p, _ := NewParser(mt)
		got, err := FrameTypeOf(p, data)
		if got != PictureUnknown || err != nil {
			t.Errorf("%s: FrameType = %v, %v; want unknown, nil", mt, got, err)
		}
		if _, err := p.FrameType(data, 8, 3); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("%s: bad window: err = %v, want ErrOutOfBounds", mt, err)
		}
	}
}

func TestWindow(t *testing.T) {
	t.Parallel()
	data := make([]byte, 10)
	tests := []struct {
		offset, length int
		ok             bool
	}{
		{0, 10, true},
		{0, 0, true},
		{10, 0, true},
		{3, 7, true},
		{3, 8, false},
		{11, 0, false},
		{-1, 1, false},
		{0, -1, false},
	}
	for _, tt := range tests {
		start, limit, err := window(data, tt.offset, tt.length)
		if tt.ok {
			if err != nil {
				t.Errorf("window(%d, %d): %v", tt.offset, tt.length, err)
				continue
			}
			if start != tt.offset || limit != tt.offset+tt.length {
				t.Errorf("window(%d, %d) = [%d, %d)", tt.offset, tt.length, start, limit)
			}
			continue
		}
		if !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("window(%d, %d): err = %v, want ErrOutOfBounds", tt.offset, tt.length, err)
		}
	}
}

func TestPictureTypeString(t *testing.T) {
	t.Parallel()
	tests := map[PictureType]string{
		PictureI:       "I",
		PictureP:       "P",
		PictureB:       "B",
		PictureUnknown: "unknown",
		PictureType(9): "unknown",
	}
	for pt, want := range tests {
		if got := pt.String(); got != want {
			t.Errorf("PictureType(%d).String() = %q, want %q", pt, got, want)
		}
	}
	if !PictureI.IsIntra() || PictureP.IsIntra() {
		t.Error("IsIntra reports the wrong picture types")
	}
}

func TestProfileLevelString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		pl   ProfileLevel
		want string
	}{
		{ProfileLevel{"High", "4.1", ""}, "High@4.1"},
		{ProfileLevel{"Main10", "5.1", "High"}, "Main10@5.1 (High tier)"},
		{ProfileLevel{Profile: "LC"}, "LC"},
		{ProfileLevel{}, ""},
	}
	for _, tt := range tests {
		if got := tt.pl.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.pl, got, tt.want)
		}
	}
}
