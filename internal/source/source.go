// Package source splits media files and live streams into the access units
// a bitstream.Parser classifies.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zsiec/pictype/bitstream"
)

// NoPTS marks an access unit whose container carried no timestamp.
const NoPTS int64 = -1

// AccessUnit is one coded picture's worth of bytes in the codec's elementary
// stream framing: Annex-B for AVC and HEVC, low-overhead OBUs for AV1.
type AccessUnit struct {
	Data []byte
	PTS  int64 // container timebase, or NoPTS

	// Discontinuity is set when data was lost before this unit.
	Discontinuity bool
}

// Source yields the access units of one video stream in decode order.
type Source interface {
	// MediaType returns the MIME type to pass to bitstream.NewParser.
	MediaType() string

	// Next returns the next access unit, or io.EOF after the last one.
	Next() (AccessUnit, error)

	Close() error
}

// ErrUnknownFormat is returned by Open for file extensions it does not
// recognize.
var ErrUnknownFormat = errors.New("source: unknown file format")

var rawMediaTypes = map[string]string{
	".h264": bitstream.MediaTypeAVC,
	".264":  bitstream.MediaTypeAVC,
	".avc":  bitstream.MediaTypeAVC,
	".h265": bitstream.MediaTypeHEVC,
	".265":  bitstream.MediaTypeHEVC,
	".hevc": bitstream.MediaTypeHEVC,
	".obu":  bitstream.MediaTypeAV1,
	".av1":  bitstream.MediaTypeAV1,
}

// RawMediaType returns the media type of an elementary stream file named
// path, or "" when the extension is not a raw stream extension.
func RawMediaType(path string) string {
	return rawMediaTypes[strings.ToLower(filepath.Ext(path))]
}

// Open opens a file and picks a Source by extension. mediaType, when set,
// overrides the codec guessed for raw elementary streams; containers always
// report the codec they carry.
func Open(ctx context.Context, path, mediaType string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".ivf":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		s, err := NewIVF(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	case ".ts", ".m2ts", ".mts":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		var opts []TSOption
		if ext != ".ts" {
			opts = append(opts, WithM2TS())
		}
		s, err := NewTS(ctx, f, opts...)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	}

	if mediaType == "" {
		mediaType = RawMediaType(path)
	}
	if mediaType == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if mediaType == bitstream.MediaTypeAV1 {
		s, err := NewAV1(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	}
	s, err := NewAnnexB(data, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// units is a Source over access units split up front.
type units struct {
	mediaType string
	aus       []AccessUnit
	next      int
}

func (u *units) MediaType() string { return u.mediaType }

func (u *units) Next() (AccessUnit, error) {
	if u.next >= len(u.aus) {
		return AccessUnit{}, io.EOF
	}
	au := u.aus[u.next]
	u.next++
	return au, nil
}

func (u *units) Close() error { return nil }

// Len returns the number of access units.
func (u *units) Len() int { return len(u.aus) }
