package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/ingest"
	"github.com/zsiec/pictype/internal/mpegts"
	"github.com/zsiec/pictype/internal/synth"
)

func TestMediaTypeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		codec   string
		want    string
		wantErr bool
	}{
		{codec: "", want: ""},
		{codec: "avc", want: bitstream.MediaTypeAVC},
		{codec: "H264", want: bitstream.MediaTypeAVC},
		{codec: "h265", want: bitstream.MediaTypeHEVC},
		{codec: "av1", want: bitstream.MediaTypeAV1},
		{codec: "video/hevc", want: bitstream.MediaTypeHEVC},
		{codec: "video/mpeg2", wantErr: true},
		{codec: "theora", wantErr: true},
	}
	for _, tt := range tests {
		got, err := mediaTypeFor(tt.codec)
		if (err != nil) != tt.wantErr {
			t.Errorf("mediaTypeFor(%q) error = %v, wantErr %v", tt.codec, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("mediaTypeFor(%q) = %q, want %q", tt.codec, got, tt.want)
		}
	}
}

func TestGenThenProbe(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := []struct {
		file    string
		codec   string
		pattern string
		want    string
	}{
		{file: "a.h264", codec: "avc", pattern: "IPBBPBBI", want: "codec=avc profile=High"},
		{file: "b.h265", codec: "hevc", pattern: "IPPPIPP", want: "codec=hevc profile=Main"},
		{file: "c.obu", codec: "av1", pattern: "IPPPP", want: "codec=av1 profile=Main8"},
		{file: "d.ivf", codec: "av1", pattern: "IPIP", want: "codec=av1"},
		{file: "e.ts", codec: "avc", pattern: "IPBBI", want: "codec=avc"},
		{file: "f.ts", codec: "hevc", pattern: "IPPIPP", want: "codec=hevc"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.file, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(dir, tt.file)
			err := runGen(&genOptions{codec: tt.codec, pattern: tt.pattern, filler: 64, output: path})
			if err != nil {
				t.Fatal(err)
			}

			var out bytes.Buffer
			if err := runProbe(context.Background(), &out, []string{path}, &probeOptions{concurrency: 1, frames: true}); err != nil {
				t.Fatalf("runProbe: %v\n%s", err, out.String())
			}
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			if len(lines) != len(tt.pattern)+1 {
				t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(tt.pattern)+1, out.String())
			}
			for i, c := range tt.pattern {
				fields := strings.Split(lines[i], "\t")
				if len(fields) < 3 || fields[2] != string(c) {
					t.Errorf("frame %d: %q, want type %c", i, lines[i], c)
				}
			}
			summary := lines[len(lines)-1]
			if !strings.Contains(summary, tt.want) || !strings.Contains(summary, "errors=0") {
				t.Errorf("summary = %q, want %q and no errors", summary, tt.want)
			}
		})
	}
}

func TestGenErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := []struct {
		name string
		opts genOptions
	}{
		{name: "av1 in ts", opts: genOptions{codec: "av1", pattern: "IP", output: filepath.Join(dir, "x.ts")}},
		{name: "avc in ivf", opts: genOptions{codec: "avc", pattern: "IP", output: filepath.Join(dir, "x.ivf")}},
		{name: "extension mismatch", opts: genOptions{codec: "hevc", pattern: "IP", output: filepath.Join(dir, "x.h264")}},
		{name: "unknown extension", opts: genOptions{codec: "avc", pattern: "IP", output: filepath.Join(dir, "x.mkv")}},
		{name: "bad pattern", opts: genOptions{codec: "avc", pattern: "PI", output: filepath.Join(dir, "y.h264")}},
		{name: "av1 b pictures", opts: genOptions{codec: "av1", pattern: "IBP", output: filepath.Join(dir, "y.obu")}},
	}
	for _, tt := range tests {
		if err := runGen(&tt.opts); err == nil {
			t.Errorf("%s: runGen succeeded", tt.name)
		}
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("failed runs left %d files behind", len(entries))
	}
}

func TestGenGOP(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "gop.h265")
	if err := runGen(&genOptions{codec: "hevc", frames: 60, gop: 30, bFrames: 2, output: path}); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := runProbe(context.Background(), &out, []string{path}, &probeOptions{json: true}); err != nil {
		t.Fatal(err)
	}
	var reports []fileReport
	if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
		t.Fatal(err)
	}
	st := reports[0].Stats
	if st.AccessUnits != 60 || st.I != 2 || st.KeyframeInterval != 30 {
		t.Errorf("stats = %+v, want 60 AUs, 2 I, interval 30", st)
	}
}

func TestProbeFailures(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "good.h264")
	if err := runGen(&genOptions{codec: "avc", pattern: "IPP", output: good}); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.h264")
	unknown := filepath.Join(dir, "clip.mkv")
	if err := os.WriteFile(unknown, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := runProbe(context.Background(), &out, []string{good, missing, unknown}, &probeOptions{concurrency: 2, json: true})
	if err == nil || !strings.Contains(err.Error(), "2 of 3 files failed") {
		t.Fatalf("runProbe = %v, want 2 of 3 failed", err)
	}
	var reports []fileReport
	if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
		t.Fatal(err)
	}
	if len(reports) != 3 || reports[0].Error != "" || reports[0].Stats.P != 2 {
		t.Errorf("good report = %+v", reports[0])
	}
	if reports[1].Error == "" || reports[2].Error == "" || reports[1].Stats != nil {
		t.Errorf("failure reports = %+v, %+v", reports[1], reports[2])
	}
}

func tsData(t *testing.T, mediaType string, streamType uint8, pattern string) []byte {
	t.Helper()
	types, err := synth.ParsePattern(pattern)
	if err != nil {
		t.Fatal(err)
	}
	aus, err := synth.Stream(mediaType, types, synth.Options{FillerBytes: 100})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	mux := mpegts.NewMuxer(&buf, streamType)
	for i, au := range aus {
		if err := mux.WriteUnit(au, 900000+int64(i)*ptsStep); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestTSDuration(t *testing.T) {
	t.Parallel()
	data := tsData(t, bitstream.MediaTypeAVC, mpegts.StreamTypeH264, strings.Repeat("IPPPPPPPPP", 3))
	d, err := tsDuration(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	// 30 frames at 3003 ticks.
	if want := time.Duration(30*ptsStep) * time.Second / 90000; d != want {
		t.Errorf("tsDuration = %v, want %v", d, want)
	}
}

func TestParsePull(t *testing.T) {
	t.Parallel()
	req, err := parsePull("cam1@10.0.0.5:6000")
	if err != nil {
		t.Fatal(err)
	}
	if req.StreamKey != "cam1" || req.Address != "10.0.0.5:6000" {
		t.Errorf("parsePull = %+v", req)
	}
	for _, bad := range []string{"cam1", "@host:1", "cam1@"} {
		if _, err := parsePull(bad); err == nil {
			t.Errorf("parsePull(%q) succeeded", bad)
		}
	}
}

func TestMonitorHandleStream(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := newMonitor(ctx, "", discardLogger())

	pattern := "IPPPPIPPPPIPPP"
	data := tsData(t, bitstream.MediaTypeHEVC, mpegts.StreamTypeH265, pattern)
	stream, w, err := m.registry.Register("cam1", ingest.FormatMPEGTS)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	m.registry.Unregister("cam1")

	deadline := time.After(5 * time.Second)
	for {
		if p := stream.Probe(); p != nil && p.Stats().AccessUnits == int64(len(pattern)) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("stream was not fully probed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	st := stream.Probe().Stats()
	if st.Codec != "hevc" || st.I != 3 || st.P != 11 || st.KeyframeInterval != 5 {
		t.Errorf("stats = %+v", st)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "pictype ") {
		t.Errorf("version output = %q", out.String())
	}
	if got := normalizeVersion("v1.2.3"); got != "1.2.3" {
		t.Errorf("normalizeVersion = %q, want 1.2.3", got)
	}
}
