package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/pictype/internal/config"
	"github.com/zsiec/pictype/internal/ingest"
	srtingest "github.com/zsiec/pictype/internal/ingest/srt"
	"github.com/zsiec/pictype/internal/metrics"
	"github.com/zsiec/pictype/internal/probe"
	"github.com/zsiec/pictype/internal/source"
)

// errProbeStopped fails the ingest writes of a stream whose probe returned.
var errProbeStopped = errors.New("probe stopped")

type monitorOptions struct {
	srtAddr     string
	metricsAddr string
	latency     time.Duration
	codec       string
	pulls       []string
}

func newMonitorCmd(root *rootOptions) *cobra.Command {
	o := &monitorOptions{}
	cmd := &cobra.Command{
		Use:   "monitor [flags]",
		Short: "Classify live MPEG-TS streams published over SRT and export metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := root.loadConfig()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("srt-addr") {
				conf.Monitor.SRTAddr = o.srtAddr
			}
			if f.Changed("metrics-addr") {
				conf.Metrics.Addr = o.metricsAddr
			}
			if f.Changed("latency") {
				conf.Monitor.LatencyMs = uint(o.latency / time.Millisecond)
			}
			if f.Changed("codec") {
				conf.Monitor.Codec = o.codec
			}
			return runMonitor(cmd.Context(), conf, o.pulls)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.srtAddr, "srt-addr", "", "SRT listen address (overrides monitor.srt_addr)")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "metrics HTTP address (overrides metrics.addr)")
	f.DurationVar(&o.latency, "latency", 0, "SRT latency (overrides monitor.latency_ms)")
	f.StringVar(&o.codec, "codec", "", "codec of every stream, ignoring the PMT stream type")
	f.StringArrayVar(&o.pulls, "pull", nil, "pull a stream from a remote SRT listener, as key@host:port (repeatable)")
	return cmd
}

// monitor probes every stream the ingest registry announces.
type monitor struct {
	log       *slog.Logger
	metrics   *metrics.Metrics
	registry  *ingest.Registry
	mediaType string
}

func newMonitor(ctx context.Context, mediaType string, log *slog.Logger) *monitor {
	m := &monitor{
		log:       log,
		metrics:   metrics.New(),
		mediaType: mediaType,
	}
	m.registry = ingest.NewRegistry(func(stream *ingest.Stream, input io.Reader) {
		m.handleStream(ctx, stream, input)
	})
	if err := m.metrics.Register(metrics.NewIngestCollector(m.registry)); err != nil {
		log.Error("register ingest collector", "error", err)
	}
	return m
}

func runMonitor(ctx context.Context, conf *config.Config, pulls []string) error {
	mediaType, err := mediaTypeFor(conf.Monitor.Codec)
	if err != nil {
		return err
	}
	requests := make([]srtingest.PullRequest, 0, len(pulls))
	for _, s := range pulls {
		req, err := parsePull(s)
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}

	log := slog.Default()
	log.Info("pictype monitor starting",
		"version", resolveVersion(),
		"srt", conf.Monitor.SRTAddr,
		"latency", conf.Monitor.Latency(),
		"metrics", conf.Metrics.Enabled,
		"metrics_addr", conf.Metrics.Addr,
	)

	g, ctx := errgroup.WithContext(ctx)

	// Create the registry after the errgroup so stream handlers capture the
	// errgroup-derived context and stop when any component fails.
	m := newMonitor(ctx, mediaType, log)

	srtSrv := srtingest.NewServer(srtingest.ServerConfig{
		Addr:    conf.Monitor.SRTAddr,
		Latency: conf.Monitor.Latency(),
	}, m.registry, log)
	g.Go(func() error {
		return srtSrv.Start(ctx)
	})

	if conf.Metrics.Enabled {
		metricsSrv := metrics.NewServer(metrics.ServerConfig{
			Addr:    conf.Metrics.Addr,
			Path:    conf.Metrics.Path,
			Metrics: m.metrics,
			Streams: m.registry,
			Log:     log,
		})
		g.Go(func() error {
			return metricsSrv.Start(ctx)
		})
	}

	if len(requests) > 0 {
		caller := srtingest.NewCaller(m.registry, conf.Monitor.Latency(), log)
		for _, req := range requests {
			g.Go(func() error {
				if err := caller.Pull(ctx, req); err != nil && ctx.Err() == nil {
					log.Error("pull failed", "address", req.Address, "stream_key", req.StreamKey, "error", err)
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// handleStream probes one ingest stream until it disconnects.
func (m *monitor) handleStream(ctx context.Context, stream *ingest.Stream, input io.Reader) {
	log := m.log.With("stream", stream.Key)
	defer stream.CloseInput(errProbeStopped)
	log.Info("new stream from ingest")

	src, err := source.NewTS(ctx, input, source.WithTSLogger(log))
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("no video in stream", "error", err)
		}
		return
	}
	defer src.Close()
	log.Info("video stream", "pid", src.Stream().PID, "media_type", src.MediaType())

	opts := []probe.Option{probe.WithObserver(m.metrics), probe.WithLogger(m.log)}
	if m.mediaType != "" {
		opts = append(opts, probe.WithMediaType(m.mediaType))
	}
	p, err := probe.New(stream.Key, src, opts...)
	if err != nil {
		log.Warn("cannot probe stream", "error", err)
		return
	}
	stream.SetProbe(p)

	m.metrics.StreamStarted(stream.Key)
	defer m.metrics.StreamEnded(stream.Key)

	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("probe error", "error", err)
	}
	ts := src.Stats()
	log.Info("stream ended", "packets", ts.Packets, "cc_errors", ts.CCErrors, "crc_errors", ts.CRCErrors)
}

// parsePull parses key@host:port.
func parsePull(s string) (srtingest.PullRequest, error) {
	key, addr, ok := strings.Cut(s, "@")
	if !ok || key == "" || addr == "" {
		return srtingest.PullRequest{}, fmt.Errorf("pull %q: want key@host:port", s)
	}
	return srtingest.PullRequest{Address: addr, StreamKey: key}, nil
}

