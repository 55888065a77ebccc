package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	jimmy "github.com/st-keller/jimmy-client"
	"github.com/st-keller/jimmy-client/diag"
	"github.com/st-keller/jimmy-client/sink"
)

// app carries state shared by subcommands after the config is loaded.
type app struct {
	cfg appConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "jimmy",
		Short: "Ask Jimmy and wait for the answer",
		Long: `jimmy tracks a question submitted to the Jimmy search service.

It checks the queue with an adaptive backoff (every 10s near the front,
up to every 20 minutes deep in the queue), offers to move the question
to the top when it is far back, and prints the answer when it arrives.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/jimmy/config.yaml)")
	flags.String("base-url", "", "Jimmy backend URL")
	flags.String("cert", "", "client certificate for mTLS")
	flags.String("key", "", "client key for mTLS")
	flags.String("ca", "", "CA certificate for mTLS")
	flags.Duration("request-timeout", 0, "per-request timeout (0 = none)")
	flags.String("cache", "", "question cache: memory, file or redis")
	flags.String("cache-path", "", "file cache location")
	flags.String("redis-url", "", "redis URL for the redis cache")
	flags.String("redis-key", "", "redis hash holding question texts")
	flags.String("log-file", "", "write JSON logs to this file")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newTrackCmd(a),
		newRecentCmd(a),
		newBumpCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// logger builds the process logger. While the TUI owns the terminal, logs go
// nowhere unless a log file is configured.
func (a *app) logger(tuiActive bool) (*slog.Logger, io.Closer, error) {
	if tuiActive && a.cfg.LogFile == "" {
		return diag.DiscardLogger(), nopCloser{}, nil
	}
	return diag.NewLogger(a.cfg.LogFile, a.cfg.LogLevel)
}

// newClient opens the cache and logger and builds a client reporting to s.
// The returned cleanup closes everything in reverse order.
func (a *app) newClient(ctx context.Context, s sink.Sink, tuiActive bool) (*jimmy.Client, func(), error) {
	logger, logCloser, err := a.logger(tuiActive)
	if err != nil {
		return nil, nil, err
	}

	store, err := a.cfg.openCache(ctx)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}

	client, err := jimmy.New(a.cfg.clientConfig(store, logger), s)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing client", "error", err)
		}
		logCloser.Close()
	}
	return client, cleanup, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			info := diag.DetectClientInfo("jimmy-cli", version)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "jimmy - Jimmy search client\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
			fmt.Fprintf(out, "  Platform:   %s/%s\n", info.OS, info.Arch)
		},
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
