package synth

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/zsiec/pictype/bitstream"
)

func TestParsePattern(t *testing.T) {
	t.Parallel()
	got, err := ParsePattern("i bb p")
	if err != nil {
		t.Fatal(err)
	}
	want := []bitstream.PictureType{bitstream.PictureI, bitstream.PictureB, bitstream.PictureB, bitstream.PictureP}
	if len(got) != len(want) {
		t.Fatalf("ParsePattern = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("picture %d = %v, want %v", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"", "  ", "PIP", "IXP"} {
		if _, err := ParsePattern(bad); err == nil {
			t.Errorf("ParsePattern(%q) accepted", bad)
		}
	}
}

func TestGOP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n, gop, b int
		want      string
	}{
		{8, 4, 0, "IPPPIPPP"},
		{7, 7, 2, "IPBBPBB"},
		{5, 1, 2, "IIIII"},
		{6, 0, 0, "IIIIII"},
		{9, 6, 1, "IPBPBPIPB"},
	}
	for _, tt := range tests {
		var got string
		for _, pt := range GOP(tt.n, tt.gop, tt.b) {
			got += pt.String()
		}
		if got != tt.want {
			t.Errorf("GOP(%d, %d, %d) = %s, want %s", tt.n, tt.gop, tt.b, got, tt.want)
		}
	}
}

func TestStreamClassifies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mediaType string
		pattern   string
		profile   string
	}{
		{bitstream.MediaTypeAVC, "IPBBPBBI", "High"},
		{bitstream.MediaTypeHEVC, "IPBBPBBI", "Main"},
		{bitstream.MediaTypeAV1, "IPPPIPPP", "Main8"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.mediaType, func(t *testing.T) {
			t.Parallel()
			types, err := ParsePattern(tt.pattern)
			if err != nil {
				t.Fatal(err)
			}
			aus, err := Stream(tt.mediaType, types, Options{FillerBytes: 300})
			if err != nil {
				t.Fatal(err)
			}
			p, ok := bitstream.NewParser(tt.mediaType)
			if !ok {
				t.Fatalf("no parser for %s", tt.mediaType)
			}
			for i, au := range aus {
				got, err := p.FrameType(au, 0, len(au))
				if err != nil {
					t.Fatalf("au %d: %v", i, err)
				}
				if got != types[i] {
					t.Errorf("au %d: FrameType = %v, want %v", i, got, types[i])
				}
			}

			pl, ok, err := bitstream.ProfileLevelOf(p, aus[0], false)
			if err != nil || !ok {
				t.Fatalf("ProfileLevel = %v, %v, %v", pl, ok, err)
			}
			if pl.Profile != tt.profile {
				t.Errorf("Profile = %q, want %q", pl.Profile, tt.profile)
			}
		})
	}
}

func TestStreamAV1RejectsB(t *testing.T) {
	t.Parallel()
	_, err := Stream(bitstream.MediaTypeAV1, []bitstream.PictureType{bitstream.PictureI, bitstream.PictureB}, Options{})
	if !errors.Is(err, errAV1BPicture) {
		t.Errorf("err = %v, want errAV1BPicture", err)
	}
}

func TestStreamUnsupported(t *testing.T) {
	t.Parallel()
	if _, err := Stream(bitstream.MediaTypeVP9, GOP(2, 2, 0), Options{}); err == nil {
		t.Error("vp9 generation accepted")
	}
}

func TestWriteIVF(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	frames := [][]byte{{1, 2, 3}, {4, 5}}
	if err := WriteIVF(&buf, "AV01", 1920, 1080, 30, frames); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if len(b) != 32+12+3+12+2 {
		t.Fatalf("len = %d, want %d", len(b), 32+12+3+12+2)
	}
	if string(b[0:4]) != "DKIF" || string(b[8:12]) != "AV01" {
		t.Errorf("header = % x", b[:12])
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != 2 {
		t.Errorf("frame count = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint64(b[32+12+3+4:]); got != 1 {
		t.Errorf("second frame pts = %d, want 1", got)
	}

	if err := WriteIVF(&buf, "AV1", 0, 0, 1, nil); err == nil {
		t.Error("3-byte fourcc accepted")
	}
}
