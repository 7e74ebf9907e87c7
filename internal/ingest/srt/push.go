package srt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	srtgo "github.com/zsiec/srtgo"
)

// chunkSize is one SRT payload of 7 MPEG-TS packets.
const chunkSize = 188 * 7

// pushLogInterval is how often Push reports its send rate.
const pushLogInterval = 10 * time.Second

// PushConfig configures Push.
type PushConfig struct {
	Addr     string
	StreamID string
	Latency  time.Duration // DefaultLatency when zero

	// BytesPerSec paces the sender. Zero sends as fast as the connection
	// accepts.
	BytesPerSec float64

	// Loop restarts from the first byte after the last chunk until ctx is
	// cancelled.
	Loop bool
}

// Push publishes a transport stream to the SRT listener at cfg.Addr. It
// returns the number of bytes sent once data is sent, ctx is cancelled, or
// a write fails.
func Push(ctx context.Context, cfg PushConfig, data []byte, log *slog.Logger) (int64, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt-push", "stream_id", cfg.StreamID)
	if cfg.Latency <= 0 {
		cfg.Latency = DefaultLatency
	}

	scfg := srtgo.DefaultConfig()
	scfg.Latency = cfg.Latency
	scfg.StreamID = cfg.StreamID

	log.Info("connecting", "addr", cfg.Addr)
	conn, err := srtgo.Dial(cfg.Addr, scfg)
	if err != nil {
		return 0, fmt.Errorf("SRT dial %s: %w", cfg.Addr, err)
	}
	defer conn.Close()
	log.Info("connected", "bytes", len(data), "bytes_per_sec", cfg.BytesPerSec)

	return send(ctx, conn, data, cfg.BytesPerSec, cfg.Loop, log)
}

// send writes data in SRT-sized chunks, pacing against a clock started at
// the first write so that timing stays continuous across loop boundaries.
func send(ctx context.Context, w io.Writer, data []byte, bytesPerSec float64, loop bool, log *slog.Logger) (int64, error) {
	start := time.Now()
	lastLog := start
	var sent int64

	for pass := 1; ; pass++ {
		if pass > 1 {
			log.Debug("loop complete", "loop", pass-1, "sent", sent, "elapsed", time.Since(start).Truncate(time.Second))
		}
		for i := 0; i < len(data); i += chunkSize {
			if err := ctx.Err(); err != nil {
				return sent, err
			}
			end := min(i+chunkSize, len(data))
			if _, err := w.Write(data[i:end]); err != nil {
				return sent, err
			}
			sent += int64(end - i)

			if bytesPerSec > 0 {
				due := time.Duration(float64(sent) / bytesPerSec * float64(time.Second))
				if wait := due - time.Since(start); wait > 0 {
					if err := sleepCtx(ctx, wait); err != nil {
						return sent, err
					}
				}
			}

			if time.Since(lastLog) >= pushLogInterval {
				rate := float64(sent) / time.Since(start).Seconds()
				log.Info("sending", "loop", pass, "rate", int64(rate), "sent", sent)
				lastLog = time.Now()
			}
		}
		if !loop || len(data) == 0 {
			return sent, nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
