package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

// packetize splits payload into packets on pid, stuffing the last one with an
// adaptation field. cc is advanced per packet.
func packetize(pid uint16, cc *uint8, payload []byte) [][]byte {
	var pkts [][]byte
	for first := true; first || len(payload) > 0; first = false {
		n := min(len(payload), packetSize-4)
		buf := make([]byte, 0, packetSize)
		buf = append(buf, syncByte, byte(pid>>8)&0x1F, byte(pid), 0x10|*cc&0x0F)
		if first {
			buf[1] |= 0x40
		}
		if n < packetSize-4 {
			buf[3] |= 0x20
			afLen := packetSize - 5 - n
			buf = append(buf, byte(afLen))
			if afLen > 0 {
				buf = append(buf, 0x00)
				buf = append(buf, bytes.Repeat([]byte{0xFF}, afLen-1)...)
			}
		}
		buf = append(buf, payload[:n]...)
		payload = payload[n:]
		*cc = (*cc + 1) & 0x0F
		pkts = append(pkts, buf)
	}
	return pkts
}

func psiSection(tableID byte, id uint16, body []byte) []byte {
	s := []byte{tableID, 0, 0, byte(id >> 8), byte(id), 0xC1, 0x00, 0x00}
	s = append(s, body...)
	n := len(s) - 3 + 4
	s[1] = 0xB0 | byte(n>>8)
	s[2] = byte(n)
	crc := crc32MPEG2(s)
	return append(s, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

func buildPAT(programs map[uint16]uint16) []byte {
	var body []byte
	body = append(body, 0x00, 0x00, 0xE0, 0x10) // network PID entry
	for num, pid := range programs {
		body = append(body, byte(num>>8), byte(num), 0xE0|byte(pid>>8), byte(pid))
	}
	return append([]byte{0x00}, psiSection(tableIDPAT, 1, body)...)
}

type esEntry struct {
	streamType uint8
	pid        uint16
}

func buildPMT(program uint16, streams ...esEntry) []byte {
	body := []byte{0xE1, 0x00, 0xF0, 0x00}
	for _, es := range streams {
		body = append(body, es.streamType, 0xE0|byte(es.pid>>8), byte(es.pid), 0xF0, 0x00)
	}
	return append([]byte{0x00}, psiSection(tableIDPMT, program, body)...)
}

func encodeTimestamp(prefix byte, ts int64) []byte {
	return []byte{
		prefix<<4 | byte(ts>>29)&0x0E | 1,
		byte(ts >> 22),
		byte(ts>>14)&0xFE | 1,
		byte(ts >> 7),
		byte(ts<<1) | 1,
	}
}

func buildPES(streamID byte, pts, dts int64, data []byte, bounded bool) []byte {
	var opt []byte
	var flags byte
	switch {
	case dts != NoTimestamp:
		flags = 0xC0
		opt = append(encodeTimestamp(3, pts), encodeTimestamp(1, dts)...)
	case pts != NoTimestamp:
		flags = 0x80
		opt = encodeTimestamp(2, pts)
	}
	out := []byte{0x00, 0x00, 0x01, streamID, 0x00, 0x00, 0x80, flags, byte(len(opt))}
	out = append(out, opt...)
	out = append(out, data...)
	if bounded {
		n := len(out) - 6
		out[4], out[5] = byte(n>>8), byte(n)
	}
	return out
}

const (
	testPMTPID   = 0x1000
	testVideoPID = 0x100
	testAudioPID = 0x101
)

// tsStream collects packets with per-PID continuity counters.
type tsStream struct {
	pkts [][]byte
	cc   map[uint16]*uint8
}

func newTSStream() *tsStream { return &tsStream{cc: make(map[uint16]*uint8)} }

func (s *tsStream) add(pid uint16, payload []byte) {
	cc := s.cc[pid]
	if cc == nil {
		cc = new(uint8)
		s.cc[pid] = cc
	}
	s.pkts = append(s.pkts, packetize(pid, cc, payload)...)
}

func (s *tsStream) tables() {
	s.add(pidPAT, buildPAT(map[uint16]uint16{1: testPMTPID}))
	s.add(testPMTPID, buildPMT(1, esEntry{StreamTypeH264, testVideoPID}, esEntry{0x0F, testAudioPID}))
}

func (s *tsStream) bytes() []byte { return bytes.Join(s.pkts, nil) }

func readUnits(t *testing.T, d *Demuxer) []Unit {
	t.Helper()
	var units []Unit
	for {
		u, err := d.NextUnit()
		if errors.Is(err, io.EOF) {
			return units
		}
		if err != nil {
			t.Fatal(err)
		}
		units = append(units, u)
	}
}

func patterned(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func TestDemuxer_Synthetic(t *testing.T) {
	t.Parallel()
	s := newTSStream()
	s.tables()
	video1 := patterned(500, 1)
	video2 := patterned(90, 7)
	audio := patterned(40, 3)
	s.add(testVideoPID, buildPES(0xE0, 93003, 90000, video1, false))
	s.add(testAudioPID, buildPES(0xC0, 90000, NoTimestamp, audio, true))
	s.add(testVideoPID, buildPES(0xE0, 96006, NoTimestamp, video2, false))

	d := NewDemuxer(context.Background(), bytes.NewReader(s.bytes()))
	units := readUnits(t, d)
	if len(units) != 3 {
		t.Fatalf("units = %d, want 3", len(units))
	}

	// The bounded audio PES completes first; video waits for the next unit start.
	if units[0].Stream.PID != testAudioPID || !bytes.Equal(units[0].Data, audio) {
		t.Errorf("unit 0 = pid %#x %d bytes, want audio", units[0].Stream.PID, len(units[0].Data))
	}
	if units[0].PTS != 90000 || units[0].DTS != NoTimestamp {
		t.Errorf("audio PTS/DTS = %d/%d, want 90000/-1", units[0].PTS, units[0].DTS)
	}
	if units[1].Stream.PID != testVideoPID || !bytes.Equal(units[1].Data, video1) {
		t.Errorf("unit 1 = pid %#x %d bytes, want first video", units[1].Stream.PID, len(units[1].Data))
	}
	if units[1].PTS != 93003 || units[1].DTS != 90000 {
		t.Errorf("video PTS/DTS = %d/%d, want 93003/90000", units[1].PTS, units[1].DTS)
	}
	if !bytes.Equal(units[2].Data, video2) || units[2].PTS != 96006 {
		t.Errorf("unit 2 = %d bytes PTS %d, want %d bytes PTS 96006", len(units[2].Data), units[2].PTS, len(video2))
	}
	if got := units[1].Stream.MediaType(); got != "video/avc" {
		t.Errorf("MediaType = %q, want video/avc", got)
	}

	streams := d.Streams()
	if len(streams) != 2 || streams[0].PID != testVideoPID || streams[1].PID != testAudioPID {
		t.Errorf("Streams = %v", streams)
	}
	if st := d.Stats(); st.Units != 3 || st.CCErrors != 0 || st.CRCErrors != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestDemuxer_StreamFilter(t *testing.T) {
	t.Parallel()
	s := newTSStream()
	s.tables()
	s.add(testAudioPID, buildPES(0xC0, 0, NoTimestamp, patterned(20, 0), true))
	s.add(testVideoPID, buildPES(0xE0, 0, NoTimestamp, patterned(20, 0), false))

	d := NewDemuxer(context.Background(), bytes.NewReader(s.bytes()), WithStreamFilter(Stream.IsVideo))
	units := readUnits(t, d)
	if len(units) != 1 || units[0].Stream.PID != testVideoPID {
		t.Fatalf("units = %+v, want one video unit", units)
	}
}

func TestDemuxer_ContinuityError(t *testing.T) {
	t.Parallel()
	s := newTSStream()
	s.tables()
	s.add(testVideoPID, buildPES(0xE0, 0, NoTimestamp, patterned(500, 0), false))
	lost := len(s.pkts) - 2
	s.add(testVideoPID, buildPES(0xE0, 3003, NoTimestamp, patterned(50, 9), false))
	s.pkts = append(s.pkts[:lost], s.pkts[lost+1:]...)

	d := NewDemuxer(context.Background(), bytes.NewReader(s.bytes()))
	units := readUnits(t, d)
	if len(units) != 1 {
		t.Fatalf("units = %d, want 1", len(units))
	}
	if units[0].PTS != 3003 || !units[0].Discontinuity {
		t.Errorf("unit PTS = %d discontinuity = %v, want 3003 true", units[0].PTS, units[0].Discontinuity)
	}
	if got := d.Stats().CCErrors; got != 1 {
		t.Errorf("CCErrors = %d, want 1", got)
	}
}

func TestDemuxer_DuplicatePacket(t *testing.T) {
	t.Parallel()
	s := newTSStream()
	s.tables()
	data := patterned(300, 5)
	s.add(testVideoPID, buildPES(0xE0, 0, NoTimestamp, data, false))
	dup := s.pkts[len(s.pkts)-2]
	s.pkts = append(s.pkts[:len(s.pkts)-1], dup, s.pkts[len(s.pkts)-1])

	d := NewDemuxer(context.Background(), bytes.NewReader(s.bytes()))
	units := readUnits(t, d)
	if len(units) != 1 || !bytes.Equal(units[0].Data, data) {
		t.Fatalf("units = %d, want one intact unit", len(units))
	}
	if units[0].Discontinuity {
		t.Error("duplicate packet flagged a discontinuity")
	}
}

func TestDemuxer_BadPMTCRC(t *testing.T) {
	t.Parallel()
	s := newTSStream()
	s.add(pidPAT, buildPAT(map[uint16]uint16{1: testPMTPID}))
	pmt := buildPMT(1, esEntry{StreamTypeH265, testVideoPID})
	pmt[len(pmt)-1] ^= 0xFF
	s.add(testPMTPID, pmt)
	s.add(testVideoPID, buildPES(0xE0, 0, NoTimestamp, patterned(20, 0), false))

	d := NewDemuxer(context.Background(), bytes.NewReader(s.bytes()))
	if units := readUnits(t, d); len(units) != 0 {
		t.Errorf("units = %d, want 0", len(units))
	}
	if got := d.Stats().CRCErrors; got != 1 {
		t.Errorf("CRCErrors = %d, want 1", got)
	}
	if len(d.Streams()) != 0 {
		t.Errorf("Streams = %v, want none", d.Streams())
	}
}

func TestDemuxer_M2TSPacketSize(t *testing.T) {
	t.Parallel()
	s := newTSStream()
	s.tables()
	data := patterned(250, 2)
	s.add(testVideoPID, buildPES(0xE0, 1234, NoTimestamp, data, false))
	var m2ts []byte
	for _, p := range s.pkts {
		m2ts = append(m2ts, 0x00, 0x00, 0x00, 0x00)
		m2ts = append(m2ts, p...)
	}

	d := NewDemuxer(context.Background(), bytes.NewReader(m2ts), WithPacketSize(192))
	units := readUnits(t, d)
	if len(units) != 1 || !bytes.Equal(units[0].Data, data) || units[0].PTS != 1234 {
		t.Fatalf("units = %+v", units)
	}
}

func TestDemuxer_CorruptPacketSkipped(t *testing.T) {
	t.Parallel()
	s := newTSStream()
	s.tables()
	s.pkts = append(s.pkts, bytes.Repeat([]byte{0xAA}, packetSize))
	s.add(testVideoPID, buildPES(0xE0, 0, NoTimestamp, patterned(20, 0), false))

	d := NewDemuxer(context.Background(), bytes.NewReader(s.bytes()))
	if units := readUnits(t, d); len(units) != 1 {
		t.Errorf("units = %d, want 1", len(units))
	}
	if got := d.Stats().Corrupt; got != 1 {
		t.Errorf("Corrupt = %d, want 1", got)
	}
}

func TestDemuxer_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTSStream()
	s.tables()
	d := NewDemuxer(ctx, bytes.NewReader(s.bytes()))
	if _, err := d.NextUnit(); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDemuxer_ReadError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	d := NewDemuxer(context.Background(), io.MultiReader(bytes.NewReader(make([]byte, 10)), errReader{boom}))
	if _, err := d.NextUnit(); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
