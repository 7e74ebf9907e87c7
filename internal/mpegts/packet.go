// Package mpegts demuxes MPEG transport streams into elementary stream units.
// It parses only what is needed to recover coded pictures: the PAT, the PMTs
// it points at, and PES headers with their timestamps.
package mpegts

import "fmt"

const (
	packetSize = 188
	syncByte   = 0x47
)

type packetHeader struct {
	pid           uint16
	cc            uint8
	pusi          bool
	tei           bool
	hasPayload    bool
	discontinuity bool
}

type packet struct {
	header  packetHeader
	payload []byte
}

// parsePacket parses one 188-byte packet. The payload aliases buf.
func parsePacket(buf []byte) (packet, error) {
	var p packet
	if len(buf) != packetSize {
		return p, fmt.Errorf("mpegts: packet size %d, want %d", len(buf), packetSize)
	}
	if buf[0] != syncByte {
		return p, fmt.Errorf("mpegts: sync byte 0x%02X", buf[0])
	}

	h := &p.header
	h.tei = buf[1]&0x80 != 0
	h.pusi = buf[1]&0x40 != 0
	h.pid = uint16(buf[1]&0x1F)<<8 | uint16(buf[2])
	hasAF := buf[3]&0x20 != 0
	h.hasPayload = buf[3]&0x10 != 0
	h.cc = buf[3] & 0x0F

	offset := 4
	if hasAF {
		afLen := int(buf[offset])
		if afLen > 0 {
			h.discontinuity = buf[offset+1]&0x80 != 0
		}
		offset += 1 + afLen
	}
	if h.hasPayload && offset < packetSize {
		p.payload = buf[offset:]
	}
	return p, nil
}
