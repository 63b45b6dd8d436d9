// Package cli implements the rdfproxy command-line interface.
//
// This package provides commands for running the caching conversion
// proxy, converting documents locally, inspecting the format catalogue
// and conversion graph, and managing the document cache. The CLI is
// built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - serve: Run the HTTP proxy
//   - convert: Convert a local file or remote document once
//   - formats: Show the format catalogue and conversion graph
//   - cache: Manage the document cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context to allow structured progress
// tracking.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/semwebtools/rdfproxy/pkg/buildinfo"
	"github.com/semwebtools/rdfproxy/pkg/cache"
	"github.com/semwebtools/rdfproxy/pkg/config"
	"github.com/semwebtools/rdfproxy/pkg/convert"
	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// appName is the application name used for directories and display.
const appName = "rdfproxy"

// Execute runs the rdfproxy CLI and returns an error if any command
// fails. This is the main entry point for the CLI application.
func Execute(ctx context.Context) error {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:   appName,
		Short: "rdfproxy serves RDF documents in the serialization you ask for",
		Long: `rdfproxy is a caching proxy for RDF documents. It fetches a document,
identifies its serialization, converts it to the one you asked for
(Turtle, N-Triples, N-Quads, TriG, RDF/XML, JSON-LD, N3, or an HTML
rendering), and caches every serialization it has seen.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newConvertCmd(&configPath))
	root.AddCommand(newFormatsCmd(&configPath))
	root.AddCommand(newCacheCmd(&configPath))
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(ctx)
}

// loadConfig reads the configuration for a command invocation.
func loadConfig(path *string) (config.Config, error) {
	return config.Load(*path)
}

// newStore builds the cache store selected by the configuration.
func newStore(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "file":
		return cache.NewFileCache(cfg.Cache.Dir)
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.Cache.Redis.TTL.Std(),
		})
	case "mongo":
		return cache.NewMongoCache(ctx, cache.MongoOptions{
			URI:        cfg.Cache.Mongo.URI,
			Database:   cfg.Cache.Mongo.Database,
			Collection: cfg.Cache.Mongo.Collection,
		})
	case "null":
		return cache.NewNullCache(), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", cfg.Cache.Backend)
}

// newResolver builds the conversion resolver from the configuration.
func newResolver(cfg config.Config) (*format.Registry, *convert.Resolver) {
	reg := format.NewRegistry()
	backends := convert.DefaultBackends(convert.ToolOptions{
		Dir:     cfg.Tools.Dir,
		Timeout: cfg.Tools.Timeout.Std(),
	})
	return reg, convert.NewResolver(reg, backends...)
}
