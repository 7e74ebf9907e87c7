package mpegts

import "fmt"

// NoTimestamp marks an absent PTS or DTS.
const NoTimestamp int64 = -1

type pesHeader struct {
	streamID     uint8
	packetLength int // 0 means unbounded
	pts, dts     int64
	dataOffset   int
}

// hasOptionalHeader reports whether stream_id is followed by the optional
// PES header. Padding, private_stream_2, ECM, EMM, DSM-CC, H.222.1 type E and
// the program stream directory have none.
func hasOptionalHeader(streamID uint8) bool {
	switch streamID {
	case 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

func parsePESHeader(b []byte) (pesHeader, error) {
	h := pesHeader{pts: NoTimestamp, dts: NoTimestamp}
	if len(b) < 6 || b[0] != 0 || b[1] != 0 || b[2] != 1 {
		return h, fmt.Errorf("mpegts: no PES start code")
	}
	h.streamID = b[3]
	h.packetLength = int(b[4])<<8 | int(b[5])
	h.dataOffset = 6
	if !hasOptionalHeader(h.streamID) {
		return h, nil
	}
	if len(b) < 9 {
		return h, fmt.Errorf("mpegts: PES optional header truncated")
	}
	h.dataOffset = 9 + int(b[8])
	if h.dataOffset > len(b) {
		return h, fmt.Errorf("mpegts: PES header data length %d exceeds %d bytes", b[8], len(b)-9)
	}
	switch b[7] >> 6 {
	case 2:
		if len(b) >= 14 {
			h.pts = timestamp(b[9:14])
		}
	case 3:
		if len(b) >= 19 {
			h.pts = timestamp(b[9:14])
			h.dts = timestamp(b[14:19])
		}
	}
	return h, nil
}

// timestamp decodes a 33-bit PTS or DTS from its 5-byte marker-bit layout.
func timestamp(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1)
}
