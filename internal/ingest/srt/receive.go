package srt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/zsiec/pictype/internal/ingest"
)

// srtReadBufferSize is the read buffer for SRT socket reads.
// 1316 bytes = 7 MPEG-TS packets (188 * 7), the standard SRT payload size.
const srtReadBufferSize = 1316 * 10

// DefaultLatency is the SRT receive latency used when none is configured.
const DefaultLatency = 120 * time.Millisecond

// receive copies conn into the stream until the connection ends, ctx is
// cancelled, or the probe stops reading.
func receive(ctx context.Context, conn io.Reader, stream *ingest.Stream, w io.Writer, log *slog.Logger) {
	buf := make([]byte, srtReadBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			stream.RecordRead(n)
			if _, werr := w.Write(buf[:n]); werr != nil {
				log.Debug("pipe write error", "stream_key", stream.Key, "error", werr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("read error", "stream_key", stream.Key, "error", err)
			}
			return
		}
	}
}
