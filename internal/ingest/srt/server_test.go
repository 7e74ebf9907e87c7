package srt

import (
	"testing"
	"time"

	"github.com/zsiec/pictype/internal/ingest"
)

func TestExtractStreamKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		streamID string
		want     string
	}{
		{name: "simple key", streamID: "camera1", want: "camera1"},
		{name: "leading slash", streamID: "/camera1", want: "camera1"},
		{name: "live prefix", streamID: "live/camera1", want: "camera1"},
		{name: "slash and live prefix", streamID: "/live/camera1", want: "camera1"},
		{name: "empty returns default", streamID: "", want: "default"},
		{name: "just slash returns default", streamID: "/", want: "default"},
		{name: "just live/ returns default", streamID: "live/", want: "default"},
		{name: "nested path preserved", streamID: "studio/camera1", want: "studio/camera1"},
		{name: "live in name preserved", streamID: "liveshow", want: "liveshow"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := extractStreamKey(tc.streamID)
			if got != tc.want {
				t.Errorf("extractStreamKey(%q) = %q, want %q", tc.streamID, got, tc.want)
			}
		})
	}
}

func TestServerAccept(t *testing.T) {
	t.Parallel()

	reg := ingest.NewRegistry(nil)
	if _, _, err := reg.Register("busy", ingest.FormatMPEGTS); err != nil {
		t.Fatal(err)
	}
	s := NewServer(ServerConfig{Addr: ":0"}, reg, nil)

	tests := []struct {
		streamID string
		want     bool
	}{
		{streamID: "", want: false},
		{streamID: "live/busy", want: false},
		{streamID: "/busy", want: false},
		{streamID: "live/free", want: true},
		{streamID: "/", want: true},
	}
	for _, tc := range tests {
		if got := s.accept(tc.streamID); got != tc.want {
			t.Errorf("accept(%q) = %v, want %v", tc.streamID, got, tc.want)
		}
	}
}

func TestNewServerDefaultLatency(t *testing.T) {
	t.Parallel()

	s := NewServer(ServerConfig{Addr: ":6000"}, ingest.NewRegistry(nil), nil)
	if s.cfg.Latency != DefaultLatency {
		t.Errorf("Latency = %v, want %v", s.cfg.Latency, DefaultLatency)
	}
	s = NewServer(ServerConfig{Addr: ":6000", Latency: 300 * time.Millisecond}, ingest.NewRegistry(nil), nil)
	if s.cfg.Latency != 300*time.Millisecond {
		t.Errorf("Latency = %v, want 300ms", s.cfg.Latency)
	}
}
