package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/mpegts"
	"github.com/zsiec/pictype/internal/synth"
)

func TestOpen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	gen := func(mediaType string) [][]byte {
		t.Helper()
		aus, err := synth.Stream(mediaType, synth.GOP(5, 5, 0), synth.Options{FillerBytes: 16})
		if err != nil {
			t.Fatal(err)
		}
		return aus
	}
	avc, hevc, av1 := gen(bitstream.MediaTypeAVC), gen(bitstream.MediaTypeHEVC), gen(bitstream.MediaTypeAV1)

	m2ts := func(data []byte) []byte {
		var out []byte
		for i := 0; i+188 <= len(data); i += 188 {
			out = append(out, 0, 0, 0, 0)
			out = append(out, data[i:i+188]...)
		}
		return out
	}

	files := []struct {
		name      string
		data      []byte
		mediaType string
		override  string
	}{
		{"a.h264", concat(avc...), bitstream.MediaTypeAVC, ""},
		{"a.HEVC", concat(hevc...), bitstream.MediaTypeHEVC, ""},
		{"a.obu", concat(av1...), bitstream.MediaTypeAV1, ""},
		{"a.bin", concat(hevc...), bitstream.MediaTypeHEVC, bitstream.MediaTypeHEVC},
		{"a.ivf", ivfFile(t, "AV01", av1), bitstream.MediaTypeAV1, ""},
		{"a.ts", tsFile(t, mpegts.StreamTypeH264, avc), bitstream.MediaTypeAVC, ""},
		{"a.m2ts", m2ts(tsFile(t, mpegts.StreamTypeH265, hevc)), bitstream.MediaTypeHEVC, bitstream.MediaTypeAVC},
	}
	for _, f := range files {
		f := f
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			t.Fatal(err)
		}
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			s, err := Open(context.Background(), path, f.override)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if s.MediaType() != f.mediaType {
				t.Errorf("MediaType = %q, want %q", s.MediaType(), f.mediaType)
			}
			if n := len(drain(t, s)); n != 5 {
				t.Errorf("got %d access units, want 5", n)
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	unknown := filepath.Join(dir, "clip.mkv")
	if err := os.WriteFile(unknown, []byte{0x1A, 0x45, 0xDF, 0xA3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(context.Background(), unknown, ""); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("mkv: err = %v, want ErrUnknownFormat", err)
	}
	if _, err := Open(context.Background(), filepath.Join(dir, "missing.ts"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing: err = %v, want os.ErrNotExist", err)
	}

	empty := filepath.Join(dir, "empty.ts")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(context.Background(), empty, ""); !errors.Is(err, ErrNoVideo) {
		t.Errorf("empty ts: err = %v, want ErrNoVideo", err)
	}
}

func TestRawMediaType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want string
	}{
		{"a.h264", bitstream.MediaTypeAVC},
		{"dir/b.HEVC", bitstream.MediaTypeHEVC},
		{"c.265", bitstream.MediaTypeHEVC},
		{"d.obu", bitstream.MediaTypeAV1},
		{"e.ts", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		if got := RawMediaType(tt.path); got != tt.want {
			t.Errorf("RawMediaType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
