package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/pictype/internal/probe"
	"github.com/zsiec/pictype/internal/source"
)

type probeOptions struct {
	codec       string
	concurrency int
	frames      bool
	json        bool
}

func newProbeCmd(root *rootOptions) *cobra.Command {
	o := &probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe [flags] file...",
		Short: "Classify the pictures of media files",
		Long: "Classify every access unit of raw AVC/HEVC (.h264, .h265), AV1 (.obu),\n" +
			"IVF and MPEG-TS files and print per-file statistics.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("concurrency") {
				o.concurrency = conf.Probe.Concurrency
			}
			if o.codec == "" {
				o.codec = conf.Probe.Codec
			}
			return runProbe(cmd.Context(), cmd.OutOrStdout(), args, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.codec, "codec", "", "codec of raw elementary streams (avc, hevc, av1); guessed from the extension by default")
	f.IntVarP(&o.concurrency, "concurrency", "j", 4, "files probed in parallel")
	f.BoolVar(&o.frames, "frames", false, "print one line per access unit")
	f.BoolVar(&o.json, "json", false, "print JSON instead of text")
	return cmd
}

// fileReport is the outcome of probing one file.
type fileReport struct {
	Path   string         `json:"path"`
	Stats  *probe.Stats   `json:"stats,omitempty"`
	Frames []probe.Result `json:"-"`
	Err    error          `json:"-"`
	Error  string         `json:"error,omitempty"`
}

// frameLog keeps every result of one file.
type frameLog struct {
	results []probe.Result
}

func (l *frameLog) Observe(_, _ string, r probe.Result) {
	l.results = append(l.results, r)
}

func runProbe(ctx context.Context, out io.Writer, paths []string, o *probeOptions) error {
	mediaType, err := mediaTypeFor(o.codec)
	if err != nil {
		return err
	}

	reports := make([]fileReport, len(paths))
	var g errgroup.Group
	g.SetLimit(max(o.concurrency, 1))
	for i, path := range paths {
		g.Go(func() error {
			reports[i] = probeFile(ctx, path, mediaType, o.frames)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	failed := 0
	for i := range reports {
		if reports[i].Err != nil {
			failed++
			reports[i].Error = reports[i].Err.Error()
			slog.Error("probe failed", "path", reports[i].Path, "error", reports[i].Err)
		}
	}

	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			writeReport(out, r)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func probeFile(ctx context.Context, path, mediaType string, frames bool) fileReport {
	rep := fileReport{Path: path}
	src, err := source.Open(ctx, path, mediaType)
	if err != nil {
		rep.Err = err
		return rep
	}
	defer src.Close()

	var opts []probe.Option
	log := &frameLog{}
	if frames {
		opts = append(opts, probe.WithObserver(log))
	}
	p, err := probe.New(path, src, opts...)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Err = p.Run(ctx)
	st := p.Stats()
	rep.Stats = &st
	rep.Frames = log.results
	return rep
}

func writeReport(w io.Writer, r fileReport) {
	for _, f := range r.Frames {
		pts := "-"
		if f.PTS != source.NoPTS {
			pts = fmt.Sprint(f.PTS)
		}
		line := fmt.Sprintf("%s\t%d\t%s\tpts=%s\tsize=%d", r.Path, f.Index, f.Type, pts, f.Size)
		if f.Err != nil {
			line += "\terror=" + f.Err.Error()
		}
		fmt.Fprintln(w, line)
	}

	if r.Stats == nil {
		fmt.Fprintf(w, "%s: error: %v\n", r.Path, r.Err)
		return
	}
	st := r.Stats
	profile := st.Profile
	if profile == "" {
		profile = "-"
	}
	fmt.Fprintf(w, "%s: codec=%s profile=%s aus=%d I=%d P=%d B=%d unknown=%d errors=%d keyint=%d max_keyint=%d\n",
		r.Path, st.Codec, profile, st.AccessUnits, st.I, st.P, st.B, st.Unknown, st.Errors,
		st.KeyframeInterval, st.MaxKeyframeInterval)
	if r.Err != nil {
		fmt.Fprintf(w, "%s: error: %v\n", r.Path, r.Err)
	}
}
