package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	srtingest "github.com/zsiec/pictype/internal/ingest/srt"
	"github.com/zsiec/pictype/internal/source"
)

type pushOptions struct {
	addr     string
	streamID string
	rate     float64
	latency  time.Duration
	loop     bool
}

func newPushCmd() *cobra.Command {
	o := &pushOptions{}
	cmd := &cobra.Command{
		Use:   "push [flags] file.ts",
		Short: "Publish a transport stream file to an SRT listener in real time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", envOr("PICTYPE_SRT_ADDR", "127.0.0.1:6000"), "SRT listener address")
	f.StringVar(&o.streamID, "stream-id", "", "SRT stream ID (default: live/<file name>)")
	f.Float64Var(&o.rate, "rate", 0, "send rate in bytes per second (default: from the PTS span of the file)")
	f.DurationVar(&o.latency, "latency", srtingest.DefaultLatency, "SRT latency")
	f.BoolVar(&o.loop, "loop", false, "restart from the beginning at the end of the file")
	return cmd
}

func runPush(ctx context.Context, path string, o *pushOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data)%188 != 0 {
		slog.Warn("file size not a multiple of 188", "path", path, "size", len(data))
	}

	streamID := o.streamID
	if streamID == "" {
		base := filepath.Base(path)
		streamID = "live/" + strings.TrimSuffix(base, filepath.Ext(base))
	}

	rate := o.rate
	if rate <= 0 {
		d, err := tsDuration(ctx, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: cannot derive a send rate from timestamps, use --rate", path)
		}
		rate = float64(len(data)) / d.Seconds()
		slog.Info("derived send rate", "path", path, "duration", d, "bytes_per_sec", int64(rate))
	}

	n, err := srtingest.Push(ctx, srtingest.PushConfig{
		Addr:        o.addr,
		StreamID:    streamID,
		Latency:     o.latency,
		BytesPerSec: rate,
		Loop:        o.loop,
	}, data, nil)
	slog.Info("push finished", "stream_id", streamID, "bytes", n)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// tsDuration returns the playback duration of the first video stream of a
// transport stream, from the span of its PTS values plus one frame.
func tsDuration(ctx context.Context, data []byte) (time.Duration, error) {
	ts, err := source.NewTS(ctx, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	first, last := source.NoPTS, source.NoPTS
	var n int64
	for {
		au, err := ts.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if au.PTS == source.NoPTS {
			continue
		}
		if first == source.NoPTS {
			first = au.PTS
		}
		last = au.PTS
		n++
	}
	if n < 2 || last <= first {
		return 0, nil
	}
	ticks := (last - first) * n / (n - 1)
	return time.Duration(ticks) * time.Second / 90000, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
