package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zsiec/pictype/internal/mpegts"
)

// ErrNoVideo is returned by NewTS when the transport stream ends before any
// supported video stream delivers a unit.
var ErrNoVideo = errors.New("source: no supported video stream")

// TS is a Source over the first supported video stream of an MPEG transport
// stream, or the stream on a chosen PID. Each PES packet is one access unit
// and its PTS is on the 90 kHz clock.
type TS struct {
	r       io.Reader
	d       *mpegts.Demuxer
	pid     uint16
	stream  mpegts.Stream
	pending *AccessUnit
}

type tsConfig struct {
	pid     uint16
	pktSize int
	log     *slog.Logger
}

// TSOption configures NewTS.
type TSOption func(*tsConfig)

// WithPID selects the video stream on pid instead of the first one found.
func WithPID(pid uint16) TSOption {
	return func(c *tsConfig) { c.pid = pid }
}

// WithM2TS reads 192-byte packets with a timecode prefix.
func WithM2TS() TSOption {
	return func(c *tsConfig) { c.pktSize = 192 }
}

// WithTSLogger sets the demuxer logger.
func WithTSLogger(l *slog.Logger) TSOption {
	return func(c *tsConfig) { c.log = l }
}

// NewTS reads from r until the first unit of the selected video stream
// arrives, so that MediaType is known on return. It blocks on live input.
func NewTS(ctx context.Context, r io.Reader, opts ...TSOption) (*TS, error) {
	cfg := tsConfig{pktSize: 188, log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	t := &TS{r: r, pid: cfg.pid}
	t.d = mpegts.NewDemuxer(ctx, r,
		mpegts.WithPacketSize(cfg.pktSize),
		mpegts.WithLogger(cfg.log),
		mpegts.WithStreamFilter(t.keep),
	)

	u, err := t.d.NextUnit()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoVideo
	}
	if err != nil {
		return nil, err
	}
	t.pid = u.Stream.PID
	t.stream = u.Stream
	t.pending = &AccessUnit{Data: u.Data, PTS: u.PTS, Discontinuity: u.Discontinuity}
	return t, nil
}

func (t *TS) keep(s mpegts.Stream) bool {
	return s.IsVideo() && (t.pid == 0 || s.PID == t.pid)
}

// Stream returns the elementary stream being read.
func (t *TS) Stream() mpegts.Stream { return t.stream }

// Stats returns the demuxer counters.
func (t *TS) Stats() mpegts.Stats { return t.d.Stats() }

func (t *TS) MediaType() string { return t.stream.MediaType() }

func (t *TS) Next() (AccessUnit, error) {
	if t.pending != nil {
		au := *t.pending
		t.pending = nil
		return au, nil
	}
	for {
		u, err := t.d.NextUnit()
		if err != nil {
			return AccessUnit{}, err
		}
		// Units of other video PIDs may be queued from before the lock.
		if u.Stream.PID != t.pid {
			continue
		}
		if u.Stream != t.stream {
			return AccessUnit{}, fmt.Errorf("source: stream on pid 0x%04X changed to %v", t.pid, u.Stream)
		}
		return AccessUnit{Data: u.Data, PTS: u.PTS, Discontinuity: u.Discontinuity}, nil
	}
}

// Close closes the underlying reader if it is an io.Closer.
func (t *TS) Close() error {
	if c, ok := t.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
