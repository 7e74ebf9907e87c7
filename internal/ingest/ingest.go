// Package ingest manages active ingest connections, coupling SRT byte
// readers with metadata, lifecycle signaling, and probe dispatch.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/pictype/internal/probe"
)

// InputFormat identifies the container format of an ingested stream.
type InputFormat int

// Supported ingest container formats.
const (
	FormatMPEGTS InputFormat = iota
)

func (f InputFormat) String() string {
	switch f {
	case FormatMPEGTS:
		return "mpegts"
	}
	return fmt.Sprintf("InputFormat(%d)", int(f))
}

// ErrStreamExists is returned by Register when the key is already publishing.
var ErrStreamExists = errors.New("ingest: stream already exists")

// IngestStats captures connection-level metrics for an ingest stream.
type IngestStats struct {
	BytesReceived int64  `json:"bytesReceived"`
	ReadCount     int64  `json:"readCount"`
	ConnectedAt   int64  `json:"connectedAt"`
	UptimeMs      int64  `json:"uptimeMs"`
	RemoteAddr    string `json:"remoteAddr"`
}

// Stream represents an active ingest connection. Bytes written to the
// internal pipe by the SRT receiver are read by the stream's probe.
type Stream struct {
	Key       string
	StartedAt time.Time
	Format    InputFormat
	input     *io.PipeReader
	pw        *io.PipeWriter
	done      chan struct{}

	bytesReceived atomic.Int64
	readCount     atomic.Int64
	remoteAddr    atomic.Value
	probe         atomic.Pointer[probe.Probe]
}

// RecordRead increments the byte and read counters, called by the SRT
// receiver after each successful socket read.
func (s *Stream) RecordRead(n int) {
	s.bytesReceived.Add(int64(n))
	s.readCount.Add(1)
}

// SetRemoteAddr stores the remote address of the ingest connection for
// diagnostics.
func (s *Stream) SetRemoteAddr(addr string) {
	s.remoteAddr.Store(addr)
}

// SetProbe attaches the probe classifying the stream.
func (s *Stream) SetProbe(p *probe.Probe) {
	s.probe.Store(p)
}

// Probe returns the attached probe, or nil before one is attached.
func (s *Stream) Probe() *probe.Probe {
	return s.probe.Load()
}

// CloseInput closes the reading side of the stream. Later writes by the
// receiver fail with err, which ends the connection.
func (s *Stream) CloseInput(err error) {
	s.input.CloseWithError(err)
}

// Done is closed when the stream is unregistered.
func (s *Stream) Done() <-chan struct{} { return s.done }

// IngestStats returns a snapshot of ingest connection metrics.
func (s *Stream) IngestStats() IngestStats {
	addr, _ := s.remoteAddr.Load().(string)
	return IngestStats{
		BytesReceived: s.bytesReceived.Load(),
		ReadCount:     s.readCount.Load(),
		ConnectedAt:   s.StartedAt.UnixMilli(),
		UptimeMs:      time.Since(s.StartedAt).Milliseconds(),
		RemoteAddr:    addr,
	}
}

// Snapshot is the state of one stream for the metrics and status endpoints.
type Snapshot struct {
	Key    string       `json:"key"`
	Format string       `json:"format"`
	Ingest IngestStats  `json:"ingest"`
	Probe  *probe.Stats `json:"probe,omitempty"`
}

// Snapshot returns the stream's current state.
func (s *Stream) Snapshot() Snapshot {
	snap := Snapshot{Key: s.Key, Format: s.Format.String(), Ingest: s.IngestStats()}
	if p := s.Probe(); p != nil {
		st := p.Stats()
		snap.Probe = &st
	}
	return snap
}

// Registry tracks active ingest streams by key and dispatches new streams
// to the onStream callback for probe setup. It is the rendezvous point
// between the SRT ingest layer and the probes.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	onStream func(stream *Stream, input io.Reader)
}

// NewRegistry creates a Registry. The onStream callback is invoked
// asynchronously whenever a new stream is registered.
func NewRegistry(onStream func(stream *Stream, input io.Reader)) *Registry {
	return &Registry{
		streams:  make(map[string]*Stream),
		onStream: onStream,
	}
}

// Register creates a new ingest stream with the given key and format,
// returning the Stream and a Writer that the SRT receiver should write into.
// A key can publish only once at a time.
func (r *Registry) Register(key string, format InputFormat) (*Stream, io.Writer, error) {
	pr, pw := io.Pipe()

	stream := &Stream{
		Key:       key,
		StartedAt: time.Now(),
		Format:    format,
		input:     pr,
		pw:        pw,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if _, ok := r.streams[key]; ok {
		r.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %q", ErrStreamExists, key)
	}
	r.streams[key] = stream
	r.mu.Unlock()

	if r.onStream != nil {
		go r.onStream(stream, pr)
	}

	return stream, pw, nil
}

// Unregister removes a stream by key, closing its pipe and signaling Done.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	stream, ok := r.streams[key]
	if ok {
		delete(r.streams, key)
	}
	r.mu.Unlock()

	if ok {
		stream.pw.Close()
		close(stream.done)
	}
}

// Get returns the Stream for the given key, or false if not found.
func (r *Registry) Get(key string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[key]
	return s, ok
}

// List returns the active streams ordered by key.
func (r *Registry) List() []*Stream {
	r.mu.RLock()
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Stream) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Snapshots returns the state of every active stream ordered by key.
func (r *Registry) Snapshots() []Snapshot {
	streams := r.List()
	out := make([]Snapshot, 0, len(streams))
	for _, s := range streams {
		out = append(out, s.Snapshot())
	}
	return out
}
