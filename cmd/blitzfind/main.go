// Command blitzfind runs the record API and works with records through it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spounge-ai/blitzfind/internal/client"
	infra_config "github.com/spounge-ai/blitzfind/internal/infra/config"
	"github.com/spounge-ai/blitzfind/internal/wiring"
)

const (
	configPathEnv = "BLITZFIND_CONFIG_PATH"
	serverURLEnv  = "BLITZFIND_URL"
)

// cli carries what the persistent pre-run resolves for every subcommand.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string
	serverURL  string
	direct     bool

	cfg    *infra_config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "blitzfind",
		Short: "BlitzFind - cached key-value store for GeoJSON features",
		Long: `BlitzFind stores JSON documents by id in SQLite or Postgres and serves
them through an in-memory LRU/TTL cache.

Every command reads configs/config.yaml (or --config) and BLITZFIND_* environment
variables. The record and import commands talk to the server at --url so that
its cache stays consistent. With --direct they open the configured store
instead; a running server does not see those changes until its cached copies
expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), c.logLevel, c.logFormat)
			if err != nil {
				return err
			}
			c.logger = logger

			cfg, err := infra_config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv(configPathEnv), "path to the YAML config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&c.serverURL, "url", envOr(serverURLEnv, client.DefaultURL), "base URL of the BlitzFind server")
	root.PersistentFlags().BoolVar(&c.direct, "direct", false, "operate on the configured store without a server; a running server's cache is not invalidated")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newImportCmd(c),
		newGetCmd(c),
		newQueryCmd(c),
		newSetCmd(c),
		newDeleteCmd(c),
		newListCmd(c),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

// withContainer opens the store for the duration of fn.
func (c *cli) withContainer(ctx context.Context, fn func(*wiring.Container) error) error {
	container, err := wiring.ProvideDependencies(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			c.logger.Error("failed to close container", "error", err)
		}
	}()
	return fn(container)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
