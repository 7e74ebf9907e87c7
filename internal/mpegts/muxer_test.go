package mpegts

import (
	"bytes"
	"context"
	"testing"
)

func TestMuxer_RoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	m := NewMuxer(&buf, StreamTypeH264)

	var want [][]byte
	for i := range 30 {
		data := patterned(50+i*37, byte(i))
		want = append(want, data)
		pts := int64(i) * 3000
		if i == 3 {
			pts = NoTimestamp
		}
		if err := m.WriteUnit(data, pts); err != nil {
			t.Fatal(err)
		}
	}
	if buf.Len()%packetSize != 0 {
		t.Fatalf("output length %d is not a multiple of %d", buf.Len(), packetSize)
	}

	d := NewDemuxer(context.Background(), bytes.NewReader(buf.Bytes()))
	units := readUnits(t, d)
	if len(units) != len(want) {
		t.Fatalf("units = %d, want %d", len(units), len(want))
	}
	for i, u := range units {
		if !bytes.Equal(u.Data, want[i]) {
			t.Errorf("unit %d: data mismatch (%d bytes, want %d)", i, len(u.Data), len(want[i]))
		}
		wantPTS := int64(i) * 3000
		if i == 3 {
			wantPTS = NoTimestamp
		}
		if u.PTS != wantPTS {
			t.Errorf("unit %d: PTS = %d, want %d", i, u.PTS, wantPTS)
		}
		if u.Stream.PID != MuxVideoPID || u.Stream.StreamType != StreamTypeH264 {
			t.Errorf("unit %d: stream = %v", i, u.Stream)
		}
	}

	st := d.Stats()
	if st.CCErrors != 0 || st.CRCErrors != 0 || st.Corrupt != 0 {
		t.Errorf("stats = %+v, want no errors", st)
	}
}

func TestMuxer_ExactPayload(t *testing.T) {
	t.Parallel()
	// A PES of exactly one packet payload needs no adaptation field.
	var buf bytes.Buffer
	m := NewMuxer(&buf, StreamTypeH265)
	data := patterned(packetSize-4-14, 1)
	if err := m.WriteUnit(data, 0); err != nil {
		t.Fatal(err)
	}
	pkts := buf.Bytes()
	last := pkts[len(pkts)-packetSize:]
	if last[3]&0x30 != 0x10 {
		t.Errorf("adaptation_field_control = %#x, want payload only", last[3]>>4&0x03)
	}

	units := readUnits(t, NewDemuxer(context.Background(), bytes.NewReader(pkts)))
	if len(units) != 1 || !bytes.Equal(units[0].Data, data) {
		t.Fatalf("units = %d, want 1 matching unit", len(units))
	}
}
