package synth

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteIVF writes frames as an IVF file with a timebase of 1/rate and one
// frame per tick.
func WriteIVF(w io.Writer, fourcc string, width, height, rate int, frames [][]byte) error {
	if len(fourcc) != 4 {
		return fmt.Errorf("synth: fourcc %q must be 4 bytes", fourcc)
	}
	hdr := make([]byte, 32)
	copy(hdr, "DKIF")
	binary.LittleEndian.PutUint16(hdr[6:], 32)
	copy(hdr[8:], fourcc)
	binary.LittleEndian.PutUint16(hdr[12:], uint16(width))
	binary.LittleEndian.PutUint16(hdr[14:], uint16(height))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(rate))
	binary.LittleEndian.PutUint32(hdr[20:], 1)
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(frames)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	var fh [12]byte
	for i, f := range frames {
		binary.LittleEndian.PutUint32(fh[0:], uint32(len(f)))
		binary.LittleEndian.PutUint64(fh[4:], uint64(i))
		if _, err := w.Write(fh[:]); err != nil {
			return err
		}
		if _, err := w.Write(f); err != nil {
			return err
		}
	}
	return nil
}
