package srt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/pictype/internal/ingest"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr    string
	Latency time.Duration // DefaultLatency when zero
}

// Server accepts incoming SRT publish connections and registers them
// with the ingest registry for probing.
type Server struct {
	log      *slog.Logger
	cfg      ServerConfig
	registry *ingest.Registry
}

// NewServer creates an SRT server that listens on cfg.Addr and registers
// incoming streams with the given registry. If log is nil, slog.Default() is used.
func NewServer(cfg ServerConfig, registry *ingest.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Latency <= 0 {
		cfg.Latency = DefaultLatency
	}
	return &Server{
		log:      log.With("component", "srt-server"),
		cfg:      cfg,
		registry: registry,
	}
}

// Start begins accepting SRT publish connections. It blocks until the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = s.cfg.Latency

	l, err := srtgo.Listen(s.cfg.Addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT listen on %s: %w", s.cfg.Addr, err)
	}
	s.log.Info("listening", "addr", s.cfg.Addr, "latency", s.cfg.Latency)

	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if !s.accept(req.StreamID) {
			return srtgo.RejPeer
		}
		return 0
	})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		streamKey := extractStreamKey(conn.StreamID())
		s.log.Info("publish", "stream_key", streamKey, "remote", conn.RemoteAddr())

		go s.handleConnection(ctx, conn, streamKey)
	}
}

// accept reports whether a publish request with streamID may connect.
// Requests without a stream ID and keys already publishing are refused
// during the handshake.
func (s *Server) accept(streamID string) bool {
	if streamID == "" {
		return false
	}
	key := extractStreamKey(streamID)
	if _, busy := s.registry.Get(key); busy {
		s.log.Warn("rejecting duplicate publish", "stream_key", key)
		return false
	}
	return true
}

func (s *Server) handleConnection(ctx context.Context, conn *srtgo.Conn, streamKey string) {
	defer conn.Close()

	// A second publisher can still race past the handshake check.
	stream, writer, err := s.registry.Register(streamKey, ingest.FormatMPEGTS)
	if errors.Is(err, ingest.ErrStreamExists) {
		s.log.Warn("rejecting duplicate stream connection", "stream_key", streamKey)
		return
	}
	if err != nil {
		s.log.Error("register stream", "stream_key", streamKey, "error", err)
		return
	}
	stream.SetRemoteAddr(conn.RemoteAddr().String())

	receive(ctx, conn, stream, writer, s.log)

	stats := stream.IngestStats()
	s.registry.Unregister(streamKey)
	s.log.Info("connection closed", "stream_key", streamKey,
		"bytes", stats.BytesReceived, "reads", stats.ReadCount,
		"uptime_ms", stats.UptimeMs)
}

func extractStreamKey(streamID string) string {
	streamID = strings.TrimPrefix(streamID, "/")
	streamID = strings.TrimPrefix(streamID, "live/")
	if streamID == "" {
		return "default"
	}
	return streamID
}
