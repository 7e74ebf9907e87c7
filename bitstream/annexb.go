package bitstream

// nextNAL scans data[pos:limit] for an Annex-B start code and returns the
// offset of the NAL header byte that follows it, or -1. At each position a
// 3-byte 00 00 01 is tried before a 4-byte 00 00 00 01. Either match requires
// at least one byte after the start code within the limit.
func nextNAL(data []byte, pos, limit int) int {
	for ; pos+3 < limit; pos++ {
		if data[pos] != 0 || data[pos+1] != 0 {
			continue
		}
		if data[pos+2] == 1 {
			return pos + 3
		}
		if pos+4 < limit && data[pos+2] == 0 && data[pos+3] == 1 {
			return pos + 4
		}
	}
	return -1
}

// scanNALs calls fn with the header offset of each NAL unit in
// data[start:limit] until fn returns done or the window is exhausted.
func scanNALs(data []byte, start, limit int, fn func(off int) (done bool, err error)) error {
	for pos := start; pos < limit; {
		off := nextNAL(data, pos, limit)
		if off < 0 {
			return nil
		}
		done, err := fn(off)
		if err != nil || done {
			return err
		}
		pos = off
	}
	return nil
}
