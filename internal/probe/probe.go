// Package probe classifies the access units of a single stream, forwarding
// per-picture results to an observer while collecting statistics.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/source"
)

// ErrUnsupported is returned by New when no parser exists for the source's
// media type.
var ErrUnsupported = errors.New("probe: unsupported media type")

// Result is the classification of one access unit.
type Result struct {
	Index int64 // position in decode order, from 0
	PTS   int64 // source timebase, or source.NoPTS
	Size  int
	Type  bitstream.PictureType
	Err   error

	// Discontinuity is set when the source lost data before this unit.
	Discontinuity bool
}

// Observer receives every Result of a stream. It is called from the
// goroutine running Probe.Run.
type Observer interface {
	Observe(stream, codec string, r Result)
}

// Stats summarizes the results of a stream so far.
type Stats struct {
	Codec           string `json:"codec"`
	Profile         string `json:"profile,omitempty"`
	AccessUnits     int64  `json:"accessUnits"`
	Bytes           int64  `json:"bytes"`
	I               int64  `json:"i"`
	P               int64  `json:"p"`
	B               int64  `json:"b"`
	Unknown         int64  `json:"unknown"`
	Errors          int64  `json:"errors"`
	Discontinuities int64  `json:"discontinuities"`

	// KeyframeInterval is the number of access units from the previous I
	// picture to the latest one; 0 until two have been seen.
	KeyframeInterval    int64 `json:"keyframeInterval"`
	MaxKeyframeInterval int64 `json:"maxKeyframeInterval"`

	UptimeMs int64 `json:"uptimeMs"`
}

// Count returns the counter for t.
func (s Stats) Count(t bitstream.PictureType) int64 {
	switch t {
	case bitstream.PictureI:
		return s.I
	case bitstream.PictureP:
		return s.P
	case bitstream.PictureB:
		return s.B
	}
	return s.Unknown
}

// Probe reads a Source to the end, classifying every access unit.
type Probe struct {
	log       *slog.Logger
	key       string
	src       source.Source
	parser    bitstream.Parser
	observer  Observer
	startTime time.Time

	mu       sync.Mutex
	stats    Stats
	next     int64
	lastKey  int64 // index of the latest I picture, -1 before the first
	profiled bool
}

// Option configures a Probe.
type Option func(*Probe)

// WithObserver forwards each Result to o.
func WithObserver(o Observer) Option {
	return func(p *Probe) { p.observer = o }
}

// WithLogger sets the logger; the stream key is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(p *Probe) { p.log = l }
}

// WithMediaType overrides the media type reported by the source.
func WithMediaType(mediaType string) Option {
	return func(p *Probe) {
		if parser, ok := bitstream.NewParser(mediaType); ok {
			p.parser = parser
		}
	}
}

// New creates a Probe for src under the stream key.
func New(key string, src source.Source, opts ...Option) (*Probe, error) {
	p := &Probe{
		log:       slog.Default(),
		key:       key,
		src:       src,
		startTime: time.Now(),
		lastKey:   -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.parser == nil {
		parser, ok := bitstream.NewParser(src.MediaType())
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupported, src.MediaType())
		}
		p.parser = parser
	}
	p.log = p.log.With("stream", key, "codec", p.parser.Codec())
	p.stats.Codec = p.parser.Codec()
	return p, nil
}

// Key returns the stream key.
func (p *Probe) Key() string { return p.key }

// Run classifies access units until the source is exhausted, the source
// fails, or ctx is cancelled. Reaching the end of the source is not an error.
func (p *Probe) Run(ctx context.Context) error {
	p.log.Info("probe started")
	defer func() {
		st := p.Stats()
		p.log.Info("probe finished", "access_units", st.AccessUnits,
			"i", st.I, "p", st.P, "b", st.B, "unknown", st.Unknown, "errors", st.Errors)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		au, err := p.src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream %s: %w", p.key, err)
		}
		r := p.Classify(au)
		if p.observer != nil {
			p.observer.Observe(p.key, p.parser.Codec(), r)
		}
	}
}

// Classify classifies one access unit and records it in the statistics.
// Units must be passed in decode order.
func (p *Probe) Classify(au source.AccessUnit) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := Result{Index: p.next, PTS: au.PTS, Size: len(au.Data), Discontinuity: au.Discontinuity}
	p.next++

	r.Type, r.Err = p.parser.FrameType(au.Data, 0, len(au.Data))
	if r.Err != nil {
		r.Type = bitstream.PictureUnknown
		p.stats.Errors++
		p.log.Debug("classify failed", "index", r.Index, "size", r.Size, "error", r.Err)
	}

	if !p.profiled {
		pl, ok, err := p.parser.ProfileLevel(au.Data, 0, len(au.Data), false)
		if err == nil && ok {
			p.profiled = true
			p.stats.Profile = pl.String()
			p.log.Info("profile", "profile", p.stats.Profile)
		}
	}

	st := &p.stats
	st.AccessUnits++
	st.Bytes += int64(r.Size)
	if r.Discontinuity {
		st.Discontinuities++
	}
	switch r.Type {
	case bitstream.PictureI:
		st.I++
		if p.lastKey >= 0 {
			st.KeyframeInterval = r.Index - p.lastKey
			st.MaxKeyframeInterval = max(st.MaxKeyframeInterval, st.KeyframeInterval)
		}
		p.lastKey = r.Index
	case bitstream.PictureP:
		st.P++
	case bitstream.PictureB:
		st.B++
	default:
		st.Unknown++
	}
	return r
}

// Stats returns a snapshot of the statistics.
func (p *Probe) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.stats
	st.UptimeMs = time.Since(p.startTime).Milliseconds()
	return st
}
