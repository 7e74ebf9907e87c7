package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zsiec/pictype/bitstream"
	"github.com/zsiec/pictype/internal/mpegts"
	"github.com/zsiec/pictype/internal/source"
	"github.com/zsiec/pictype/internal/synth"
)

// ptsStep is one frame at 29.97 Hz on the 90 kHz clock.
const ptsStep = 3003

type genOptions struct {
	codec   string
	pattern string
	frames  int
	gop     int
	bFrames int
	filler  int
	output  string
}

func newGenCmd() *cobra.Command {
	o := &genOptions{}
	cmd := &cobra.Command{
		Use:   "gen [flags] -o file",
		Short: "Write a synthetic stream with a known picture type sequence",
		Long: "Write a synthetic AVC, HEVC or AV1 stream whose pictures follow --pattern,\n" +
			"or a regular GOP. The container is chosen by the output extension:\n" +
			".h264/.h265/.obu for elementary streams, .ivf (AV1) or .ts (AVC, HEVC).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGen(o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.codec, "codec", "avc", "codec to generate (avc, hevc, av1)")
	f.StringVar(&o.pattern, "pattern", "", "picture types in decode order, e.g. IPBBPBB")
	f.IntVar(&o.frames, "frames", 300, "pictures to generate without --pattern")
	f.IntVar(&o.gop, "gop", 30, "keyframe interval without --pattern")
	f.IntVar(&o.bFrames, "bframes", 2, "B pictures between references without --pattern")
	f.IntVar(&o.filler, "filler", 256, "filler bytes per picture")
	f.StringVarP(&o.output, "output", "o", "", "output file")
	cmd.MarkFlagRequired("output")
	return cmd
}

func runGen(o *genOptions) error {
	mediaType, err := mediaTypeFor(o.codec)
	if err != nil {
		return err
	}

	var types []bitstream.PictureType
	if o.pattern != "" {
		if types, err = synth.ParsePattern(o.pattern); err != nil {
			return err
		}
	} else {
		bFrames := o.bFrames
		if mediaType == bitstream.MediaTypeAV1 {
			bFrames = 0
		}
		types = synth.GOP(o.frames, o.gop, bFrames)
	}

	aus, err := synth.Stream(mediaType, types, synth.Options{FillerBytes: o.filler})
	if err != nil {
		return err
	}

	f, err := os.Create(o.output)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := writeStream(w, o.output, mediaType, aus); err != nil {
		f.Close()
		os.Remove(o.output)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeStream writes aus in the container named by the extension of path.
func writeStream(w io.Writer, path, mediaType string, aus [][]byte) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ts":
		var streamType uint8
		switch mediaType {
		case bitstream.MediaTypeAVC:
			streamType = mpegts.StreamTypeH264
		case bitstream.MediaTypeHEVC:
			streamType = mpegts.StreamTypeH265
		default:
			return fmt.Errorf("%s: MPEG-TS output supports avc and hevc", path)
		}
		mux := mpegts.NewMuxer(w, streamType)
		for i, au := range aus {
			if err := mux.WriteUnit(au, int64(i)*ptsStep); err != nil {
				return err
			}
		}
		return nil
	case ".ivf":
		if mediaType != bitstream.MediaTypeAV1 {
			return fmt.Errorf("%s: IVF output supports av1", path)
		}
		return synth.WriteIVF(w, "AV01", 1920, 1080, 30, aus)
	default:
		raw := source.RawMediaType(path)
		if raw == "" {
			return fmt.Errorf("%s: unknown output extension %q", path, ext)
		}
		if raw != mediaType {
			return fmt.Errorf("%s: extension does not match codec %s", path, mediaType)
		}
		for _, au := range aus {
			if _, err := w.Write(au); err != nil {
				return err
			}
		}
		return nil
	}
}
