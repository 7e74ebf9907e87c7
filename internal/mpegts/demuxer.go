package mpegts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
)

// Stats counts what the demuxer has seen so far.
type Stats struct {
	Packets   int64
	Corrupt   int64 // wrong size or sync byte
	CCErrors  int64
	CRCErrors int64
	Units     int64
}

// pidBuffer reassembles the payload units of one PID.
type pidBuffer struct {
	data   []byte
	lastCC int // -1 before the first packet
	synced bool
	lost   bool
}

// Demuxer reads transport stream packets and returns the PES units of the
// elementary streams its PMTs announce.
type Demuxer struct {
	ctx     context.Context
	r       io.Reader
	buf     []byte
	pktSize int
	log     *slog.Logger
	filter  func(Stream) bool

	pmtPIDs map[uint16]bool
	streams map[uint16]Stream
	pids    map[uint16]*pidBuffer
	ready   []Unit
	eof     bool
	stats   Stats
}

// Option configures a Demuxer.
type Option func(*Demuxer)

// WithPacketSize sets the packet size: 188 (default), 192 for M2TS with a
// 4-byte timecode prefix, or 204 with 16 trailing Reed-Solomon bytes.
func WithPacketSize(size int) Option {
	return func(d *Demuxer) { d.pktSize = size }
}

// WithStreamFilter limits reassembly to streams for which keep returns true.
func WithStreamFilter(keep func(Stream) bool) Option {
	return func(d *Demuxer) { d.filter = keep }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Demuxer) { d.log = l }
}

// NewDemuxer creates a demuxer reading from r.
func NewDemuxer(ctx context.Context, r io.Reader, opts ...Option) *Demuxer {
	d := &Demuxer{
		ctx:     ctx,
		r:       r,
		pktSize: packetSize,
		log:     slog.Default(),
		pmtPIDs: make(map[uint16]bool),
		streams: make(map[uint16]Stream),
		pids:    make(map[uint16]*pidBuffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pktSize < packetSize {
		d.pktSize = packetSize
	}
	d.log = d.log.With("component", "mpegts")
	d.buf = make([]byte, d.pktSize)
	return d
}

// NextUnit returns the next PES unit. It returns io.EOF once the reader is
// exhausted and every buffered unit has been returned.
func (d *Demuxer) NextUnit() (Unit, error) {
	for {
		if len(d.ready) > 0 {
			u := d.ready[0]
			d.ready = d.ready[1:]
			return u, nil
		}
		if d.eof {
			return Unit{}, io.EOF
		}
		if err := d.ctx.Err(); err != nil {
			return Unit{}, err
		}

		if _, err := io.ReadFull(d.r, d.buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.eof = true
				d.flushAll()
				continue
			}
			return Unit{}, err
		}

		raw := d.buf[:packetSize]
		if d.pktSize == 192 {
			raw = d.buf[4:]
		}
		p, err := parsePacket(raw)
		if err != nil {
			d.stats.Corrupt++
			continue
		}
		d.handle(p)
	}
}

// Streams returns the elementary streams announced so far, ordered by PID.
func (d *Demuxer) Streams() []Stream {
	out := make([]Stream, 0, len(d.streams))
	for _, pid := range slices.Sorted(maps.Keys(d.streams)) {
		out = append(out, d.streams[pid])
	}
	return out
}

// Stats returns a snapshot of the demuxer counters.
func (d *Demuxer) Stats() Stats { return d.stats }

func (d *Demuxer) handle(p packet) {
	d.stats.Packets++
	h := p.header
	psi := h.pid == pidPAT || d.pmtPIDs[h.pid]
	if !psi && !d.wanted(h.pid) {
		return
	}
	pb := d.pids[h.pid]
	if pb == nil {
		pb = &pidBuffer{lastCC: -1}
		d.pids[h.pid] = pb
	}

	if h.tei {
		pb.drop()
		return
	}
	// The continuity counter only advances on packets with payload.
	if !h.hasPayload {
		return
	}
	if pb.lastCC >= 0 && !h.discontinuity {
		if int(h.cc) == pb.lastCC {
			return
		}
		if int(h.cc) != (pb.lastCC+1)&0x0F {
			d.stats.CCErrors++
			d.log.Debug("continuity error", "pid", h.pid, "want", (pb.lastCC+1)&0x0F, "got", h.cc)
			pb.drop()
		}
	}
	pb.lastCC = int(h.cc)

	if h.pusi {
		if !psi {
			d.flushPES(h.pid, pb)
		}
		pb.data = nil
		pb.synced = true
	}
	if !pb.synced {
		return
	}
	pb.data = append(pb.data, p.payload...)

	if psi {
		d.handlePSI(h.pid, pb)
		return
	}
	// A bounded PES can be emitted without waiting for the next unit start.
	if len(pb.data) >= 6 {
		if n := int(pb.data[4])<<8 | int(pb.data[5]); n > 0 && len(pb.data) >= 6+n {
			d.flushPES(h.pid, pb)
		}
	}
}

func (pb *pidBuffer) drop() {
	pb.data = nil
	pb.synced = false
	pb.lost = true
}

func (d *Demuxer) wanted(pid uint16) bool {
	s, ok := d.streams[pid]
	return ok && (d.filter == nil || d.filter(s))
}

func (d *Demuxer) handlePSI(pid uint16, pb *pidBuffer) {
	secs, complete := sections(pb.data)
	if !complete {
		return
	}
	pb.data = nil
	pb.synced = false
	for _, s := range secs {
		switch {
		case s.tableID() == tableIDPAT && pid == pidPAT:
			entries, err := parsePAT(s)
			if err != nil {
				d.sectionError(pid, err)
				continue
			}
			for _, e := range entries {
				d.pmtPIDs[e.pmtPID] = true
			}
		case s.tableID() == tableIDPMT && d.pmtPIDs[pid]:
			streams, err := parsePMT(s)
			if err != nil {
				d.sectionError(pid, err)
				continue
			}
			for _, st := range streams {
				if prev, ok := d.streams[st.PID]; !ok || prev != st {
					d.log.Info("elementary stream", "pid", st.PID, "stream_type", st.StreamType,
						"program", st.ProgramNumber, "media_type", st.MediaType())
				}
				d.streams[st.PID] = st
			}
		}
	}
}

func (d *Demuxer) sectionError(pid uint16, err error) {
	if errors.Is(err, errCRC) {
		d.stats.CRCErrors++
	}
	d.log.Debug("dropping PSI section", "pid", pid, "error", err)
}

func (d *Demuxer) flushPES(pid uint16, pb *pidBuffer) {
	data := pb.data
	pb.data = nil
	if !pb.synced || len(data) == 0 {
		return
	}
	pb.synced = false
	h, err := parsePESHeader(data)
	if err != nil {
		d.log.Debug("dropping PES", "pid", pid, "error", err)
		return
	}
	end := len(data)
	if h.packetLength > 0 && 6+h.packetLength < end {
		end = 6 + h.packetLength
	}
	if end < h.dataOffset {
		d.log.Debug("dropping PES", "pid", pid, "packet_length", h.packetLength)
		return
	}
	d.ready = append(d.ready, Unit{
		Stream:        d.streams[pid],
		PTS:           h.pts,
		DTS:           h.dts,
		Data:          data[h.dataOffset:end],
		Discontinuity: pb.lost,
	})
	pb.lost = false
	d.stats.Units++
}

func (d *Demuxer) flushAll() {
	for _, pid := range slices.Sorted(maps.Keys(d.pids)) {
		if pid == pidPAT || d.pmtPIDs[pid] {
			continue
		}
		d.flushPES(pid, d.pids[pid])
	}
}
