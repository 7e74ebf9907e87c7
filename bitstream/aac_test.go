package bitstream

import (
	"errors"
	"testing"
)

func TestAACProfileLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		asc  []byte
		want string
	}{
		{"lc", []byte{0x12, 0x10}, "LC"},
		{"lc object type only", []byte{0x10}, "LC"},
		{"main", []byte{0x0A, 0x10}, "Main"},
		{"he", []byte{0x2B, 0x92, 0x08, 0x00}, "HE"},
		{"escaped xhe", []byte{0xF9, 0x40}, "xHE"},
		{"unnamed", []byte{0x38, 0x00}, "AOT7"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok, err := ProfileLevelOf(aacParser{}, tt.asc, true)
			if err != nil {
				t.Fatal(err)
			}
			if !ok || got != (ProfileLevel{Profile: tt.want}) {
				t.Errorf("ProfileLevel = %+v, %v; want %s", got, ok, tt.want)
			}
		})
	}
}

func TestAACProfileLevelTruncated(t *testing.T) {
	t.Parallel()
	if _, _, err := ProfileLevelOf(aacParser{}, []byte{0xF8}, true); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("err = %v, want ErrOutOfBounds", err)
	}
}
