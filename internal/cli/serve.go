package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/semwebtools/rdfproxy/pkg/buildinfo"
	"github.com/semwebtools/rdfproxy/pkg/config"
	"github.com/semwebtools/rdfproxy/pkg/fetch"
	"github.com/semwebtools/rdfproxy/pkg/proxy"
	"github.com/semwebtools/rdfproxy/pkg/server"
)

// newServeCmd creates the serve command, which runs the HTTP proxy
// until interrupted.
func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr         string
		cacheDir     string
		cacheBackend string
		prefer       bool
		toolTimeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the caching conversion proxy",
		Long: `Serve answers GET /?uri=<document>&accept=<format> requests: it fetches
the document, converts it to the requested serialization, and caches the
result. Flags override the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("cache-dir") {
				cfg.Cache.Dir = cacheDir
			}
			if cmd.Flags().Changed("cache-backend") {
				cfg.Cache.Backend = cacheBackend
			}
			if cmd.Flags().Changed("prefer-conversion") {
				cfg.Server.PreferConversion = prefer
			}
			if cmd.Flags().Changed("tool-timeout") {
				cfg.Tools.Timeout = config.Duration(toolTimeout)
			}
			applyLogConfig(logger, cfg.Log)

			store, err := newStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			reg, resolver := newResolver(cfg)
			if err := resolver.Validate(); err != nil {
				// Serve what we can; requests for orphaned targets fail
				// with a clear error.
				logger.Warn("conversion graph incomplete", "err", err)
			}

			svc := proxy.NewService(proxy.Options{
				Cache: store,
				Fetcher: fetch.NewFetcher(fetch.Options{
					Client:      &http.Client{Timeout: cfg.Fetch.Timeout.Std()},
					Attempts:    cfg.Fetch.Attempts,
					MaxBodySize: cfg.Fetch.MaxBodySize,
					UserAgent:   cfg.Fetch.UserAgent,
				}),
				Converter: resolver,
				Registry:  reg,
				Logger:    logger,
			})

			srv := server.New(server.Options{
				Service:          svc,
				Registry:         reg,
				Logger:           logger,
				Version:          buildinfo.Version,
				PreferConversion: cfg.Server.PreferConversion,
			})

			httpSrv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", cfg.Server.Addr, "cache", cfg.Cache.Backend)
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("shut down")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":3032", "listen address")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "cache directory for the file backend")
	cmd.Flags().StringVar(&cacheBackend, "cache-backend", "file", "cache backend: file, redis, mongo or null")
	cmd.Flags().BoolVar(&prefer, "prefer-conversion", false, "convert cached siblings instead of re-downloading")
	cmd.Flags().DurationVar(&toolTimeout, "tool-timeout", 2*time.Minute, "timeout per external tool run")

	return cmd
}
