package mpegts

import (
	"errors"
	"fmt"
)

const (
	pidPAT     = 0x0000
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

var errCRC = errors.New("mpegts: CRC32 mismatch")

// section is one PSI section from table_id through CRC_32.
type section []byte

func (s section) tableID() byte { return s[0] }

// sections splits a reassembled PSI payload, pointer field first, into whole
// sections. complete is false while the last section is still missing bytes.
func sections(payload []byte) (secs []section, complete bool) {
	if len(payload) < 1 {
		return nil, false
	}
	offset := 1 + int(payload[0])
	for offset < len(payload) {
		// 0xFF is stuffing. A clear section_syntax_indicator is zero padding.
		if payload[offset] == 0xFF {
			return secs, true
		}
		if offset+3 > len(payload) {
			return secs, false
		}
		if payload[offset+1]&0x80 == 0 {
			return secs, true
		}
		end := offset + 3 + (int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2]))
		if end > len(payload) {
			return secs, false
		}
		secs = append(secs, section(payload[offset:end]))
		offset = end
	}
	return secs, offset == len(payload)
}

type patEntry struct {
	programNumber uint16
	pmtPID        uint16
}

// parsePAT returns the program entries of a PAT section, skipping the
// network PID entry.
func parsePAT(s section) ([]patEntry, error) {
	if len(s) < 12 {
		return nil, fmt.Errorf("mpegts: PAT section of %d bytes", len(s))
	}
	if crc32MPEG2(s) != 0 {
		return nil, fmt.Errorf("PAT: %w", errCRC)
	}
	var entries []patEntry
	for i := 8; i+4 <= len(s)-4; i += 4 {
		num := uint16(s[i])<<8 | uint16(s[i+1])
		if num == 0 {
			continue
		}
		entries = append(entries, patEntry{
			programNumber: num,
			pmtPID:        uint16(s[i+2]&0x1F)<<8 | uint16(s[i+3]),
		})
	}
	return entries, nil
}

// parsePMT returns the elementary streams of a PMT section.
func parsePMT(s section) ([]Stream, error) {
	if len(s) < 16 {
		return nil, fmt.Errorf("mpegts: PMT section of %d bytes", len(s))
	}
	if crc32MPEG2(s) != 0 {
		return nil, fmt.Errorf("PMT: %w", errCRC)
	}
	program := uint16(s[3])<<8 | uint16(s[4])
	end := len(s) - 4
	offset := 12 + (int(s[10]&0x0F)<<8 | int(s[11]))
	var streams []Stream
	for offset+5 <= end {
		streams = append(streams, Stream{
			PID:           uint16(s[offset+1]&0x1F)<<8 | uint16(s[offset+2]),
			StreamType:    s[offset],
			ProgramNumber: program,
		})
		offset += 5 + (int(s[offset+3]&0x0F)<<8 | int(s[offset+4]))
	}
	return streams, nil
}

// MPEG-2 CRC32, polynomial 0x04C11DB7, MSB first. Over a section that
// includes its CRC_32 field the result is zero.
var crcTable = func() (t [256]uint32) {
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

func crc32MPEG2(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
