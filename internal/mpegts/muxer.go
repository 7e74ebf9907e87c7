package mpegts

import "io"

// Fixed layout written by Muxer.
const (
	MuxPMTPID   = 0x1000
	MuxVideoPID = 0x0100
	muxProgram  = 1

	// tables are repeated before every tablesInterval-th unit.
	tablesInterval = 25
)

// Muxer writes a single-program transport stream carrying one video
// elementary stream. It writes no PCR, which the Demuxer does not need.
type Muxer struct {
	w          io.Writer
	streamType uint8
	cc         map[uint16]uint8
	units      int
	pkt        [packetSize]byte
}

// NewMuxer returns a Muxer writing a stream of the given stream type to w.
func NewMuxer(w io.Writer, streamType uint8) *Muxer {
	return &Muxer{w: w, streamType: streamType, cc: make(map[uint16]uint8)}
}

// WriteUnit writes one access unit as a PES packet, preceded by PAT and PMT
// on the first unit and periodically after. pts is on the 90 kHz clock;
// NoTimestamp omits it.
func (m *Muxer) WriteUnit(data []byte, pts int64) error {
	if m.units%tablesInterval == 0 {
		if err := m.packetize(pidPAT, m.pat()); err != nil {
			return err
		}
		if err := m.packetize(MuxPMTPID, m.pmt()); err != nil {
			return err
		}
	}
	m.units++
	return m.packetize(MuxVideoPID, pesPacket(0xE0, pts, data))
}

func (m *Muxer) pat() []byte {
	return psi(tableIDPAT, 1, []byte{
		0, muxProgram, 0xE0 | MuxPMTPID>>8, MuxPMTPID & 0xFF,
	})
}

func (m *Muxer) pmt() []byte {
	return psi(tableIDPMT, muxProgram, []byte{
		0xE0 | MuxVideoPID>>8, MuxVideoPID & 0xFF, // PCR_PID
		0xF0, 0x00, // program_info_length
		m.streamType, 0xE0 | MuxVideoPID>>8, MuxVideoPID & 0xFF, 0xF0, 0x00,
	})
}

// psi wraps a table body in a long-form section behind a zero pointer field.
func psi(tableID byte, id uint16, body []byte) []byte {
	n := 5 + len(body) + 4
	s := make([]byte, 0, 4+n)
	s = append(s, 0x00, tableID, 0xB0|byte(n>>8), byte(n), byte(id>>8), byte(id), 0xC1, 0x00, 0x00)
	s = append(s, body...)
	crc := crc32MPEG2(s[1:])
	return append(s, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

// pesPacket builds an unbounded PES packet with an optional PTS.
func pesPacket(streamID byte, pts int64, data []byte) []byte {
	hdr := []byte{0x00, 0x00, 0x01, streamID, 0x00, 0x00, 0x80, 0x00, 0x00}
	if pts != NoTimestamp {
		hdr[7], hdr[8] = 0x80, 5
		hdr = append(hdr,
			0x20|byte(pts>>29)&0x0E|1,
			byte(pts>>22),
			byte(pts>>14)&0xFE|1,
			byte(pts>>7),
			byte(pts<<1)|1,
		)
	}
	return append(hdr, data...)
}

// packetize splits a payload unit into packets, stuffing the last one through
// its adaptation field.
func (m *Muxer) packetize(pid uint16, payload []byte) error {
	for first := true; first || len(payload) > 0; first = false {
		p := m.pkt[:0]
		cc := m.cc[pid]
		m.cc[pid] = (cc + 1) & 0x0F
		p = append(p, syncByte, byte(pid>>8)&0x1F, byte(pid), 0x10|cc)
		if first {
			p[1] |= 0x40
		}
		n := min(len(payload), packetSize-4)
		if n < packetSize-4 {
			p[3] |= 0x20
			stuff := packetSize - 5 - n
			p = append(p, byte(stuff))
			if stuff > 0 {
				p = append(p, 0x00)
				for i := 1; i < stuff; i++ {
					p = append(p, 0xFF)
				}
			}
		}
		p = append(p, payload[:n]...)
		payload = payload[n:]
		if _, err := m.w.Write(p); err != nil {
			return err
		}
	}
	return nil
}
