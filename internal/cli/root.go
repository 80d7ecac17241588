// Package cli implements the flowkit command: route listing and one-off
// requests against the demo application.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/flowkit"
	"github.com/dmitrymomot/flowkit/core/config"
	"github.com/dmitrymomot/flowkit/core/logger"
	redisconn "github.com/dmitrymomot/flowkit/integration/database/redis"
	"github.com/dmitrymomot/flowkit/internal/demo"
	"github.com/dmitrymomot/flowkit/pkg/ratelimiter"
)

// ValidFormats are the output formats of the routes command.
var ValidFormats = []string{"text", "json", "yaml"}

// AppLoader builds the application the commands operate on. The returned
// cleanup releases its external resources.
type AppLoader func(ctx context.Context, log *slog.Logger) (app *flowkit.App, cleanup func(), err error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Load    AppLoader
}

// NewRootCommand creates the root command. A nil loader builds the demo app
// from the environment.
func NewRootCommand(load AppLoader) *cobra.Command {
	if load == nil {
		load = LoadDemo
	}
	opts := &RootOptions{Load: load}

	cmd := &cobra.Command{
		Use:   "flowkit",
		Short: "Inspect and exercise a flowkit application",
		Long: `flowkit inspects the demo application without starting a server.

List the registered routes with their operation ids, or run a single
request through the full pipeline and print the response.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log request processing to stderr")

	cmd.AddCommand(NewRoutesCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))

	return cmd
}

// logger writes to the command's stderr; only warnings unless verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return logger.New(logger.WithOutput(w), logger.WithLevel(level), logger.WithTextFormatter())
}

// LoadDemo builds the demo app from the environment. With REDIS_URL set the
// rate limiter is shared through Redis and readiness checks the connection.
func LoadDemo(ctx context.Context, log *slog.Logger) (*flowkit.App, func(), error) {
	cfg, err := flowkit.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	var redisCfg redisconn.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, nil, err
	}

	opts := demo.Options{Config: cfg, Logger: log}
	cleanup := func() {}

	if redisCfg.ConnectionURL != "" {
		client, err := redisconn.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := ratelimiter.NewRedisStore(client, ratelimiter.Config{Limit: 100, Window: time.Minute},
			ratelimiter.WithKeyPrefix("flowkit:ratelimit:"))
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		opts.Limiter = store
		opts.Checks = append(opts.Checks, redisconn.Healthcheck(client))
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.WarnContext(ctx, "redis close failed", logger.Error(err))
			}
		}
	}

	app, err := demo.New(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return app, cleanup, nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func invalidFormat(format string) error {
	return fmt.Errorf("invalid format %q: must be one of %v", format, ValidFormats)
}
