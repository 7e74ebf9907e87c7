// Command pictype classifies the coded pictures of AVC, HEVC and AV1
// streams as I, P or B, from files or live SRT ingest.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zsiec/pictype/internal/config"
)

var version = "dev"

type rootOptions struct {
	debug      bool
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pictype",
		Short:         "Classify I, P and B pictures of AVC, HEVC and AV1 streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(opts.debug)
		},
	}
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging (also DEBUG env)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML config file (default: pictype.toml, /etc/pictype/pictype.toml)")

	cmd.AddCommand(
		newProbeCmd(opts),
		newMonitorCmd(opts),
		newGenCmd(),
		newPushCmd(),
		newVersionCmd(),
	)
	return cmd
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the file named by --config, or the default paths.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	paths := config.DefaultPaths
	if o.configPath != "" {
		if _, err := os.Stat(o.configPath); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		paths = []string{o.configPath}
	}
	return config.Parse(paths)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	cmd := newRootCmd()
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pictype:", err)
		os.Exit(1)
	}
}
