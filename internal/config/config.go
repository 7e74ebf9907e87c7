// Package config loads the pictype configuration from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPaths are searched in order when no path is given.
var DefaultPaths = []string{"pictype.toml", "/etc/pictype/pictype.toml"}

// Config is the complete configuration.
type Config struct {
	Monitor MonitorConfig `toml:"monitor"`
	Metrics MetricsConfig `toml:"metrics"`
	Probe   ProbeConfig   `toml:"probe"`
}

// MonitorConfig configures the SRT listener of the monitor command.
type MonitorConfig struct {
	SRTAddr   string `toml:"srt_addr"`
	LatencyMs uint   `toml:"latency_ms"`

	// Codec overrides the media type announced in the transport stream.
	Codec string `toml:"codec"`
}

// Latency returns the SRT receive latency.
func (c MonitorConfig) Latency() time.Duration {
	return time.Duration(c.LatencyMs) * time.Millisecond
}

// MetricsConfig configures the HTTP metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// ProbeConfig configures batch probing of files.
type ProbeConfig struct {
	Concurrency int    `toml:"concurrency"`
	Codec       string `toml:"codec"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			SRTAddr:   ":6000",
			LatencyMs: 120,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9100",
			Path:    "/metrics",
		},
		Probe: ProbeConfig{
			Concurrency: 4,
		},
	}
}

// Parse reads the first existing file of paths over the defaults, then
// applies environment overrides. A missing file is not an error.
func Parse(paths []string) (*Config, error) {
	config := Default()

	var data []byte
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		slog.Debug("read config", "path", path)
		data = b
		break
	}

	if data != nil {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		slog.Debug("config file not found, using defaults")
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() error {
	c.Monitor.SRTAddr = envOr("PICTYPE_SRT_ADDR", c.Monitor.SRTAddr)
	c.Metrics.Addr = envOr("PICTYPE_METRICS_ADDR", c.Metrics.Addr)
	if v := os.Getenv("PICTYPE_LATENCY_MS"); v != "" {
		ms, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("PICTYPE_LATENCY_MS: %w", err)
		}
		c.Monitor.LatencyMs = uint(ms)
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Monitor.SRTAddr == "" {
		return errors.New("monitor.srt_addr is empty")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is empty")
	}
	if c.Metrics.Path == "" || c.Metrics.Path[0] != '/' {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}
	if c.Probe.Concurrency < 1 {
		return fmt.Errorf("probe.concurrency %d must be positive", c.Probe.Concurrency)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
