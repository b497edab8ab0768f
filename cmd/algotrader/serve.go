package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/server"
	"github.com/carloswaibl/algotrader/internal/ws"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored bars and options chains over HTTP",
		Long: `Start the read-only replay API over the data directory.

Routes:
  GET  /healthz
  GET  /v1/{root}/dates
  GET  /v1/{root}/{date}/bars
  GET  /v1/{root}/{date}/chain?at=HH:MM
  GET  /v1/{root}/{date}/next?key=CLIENT
  POST /v1/replay/reset?key=CLIENT
  GET  /v1/stream (WebSocket; subscribe to ROOT/YYYY-MM-DD groups)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if port == "" {
				port = cfg.Server.Port
			}

			loader := data.NewMemoryLoader(data.NewFileLoader(cfg.Output.Directory, logger))
			cache := data.NewIndexCache(data.ParseCacheMode(cfg.Server.ReplayMode))
			srv := server.NewServer(loader, cache, cfg.Backtest.ChainMaxAge(), logger)

			if cfg.Server.Preload {
				start := time.Now()
				n, err := srv.Preload(cfg.Underlying)
				if err != nil {
					return err
				}
				logger.Info("data preloaded",
					zap.Int("sessions", n),
					zap.Strings("keys", loader.GetLoadedKeys()),
					zap.Duration("duration", time.Since(start)),
				)
			}

			var hub *ws.Hub
			if cfg.Server.Stream {
				hub = ws.NewHub(logger)
				go hub.Run(ctx)
				streamer := ws.NewStreamer(hub, loader, cache, cfg.Backtest.ChainMaxAge(), cfg.Server.StreamInterval, logger)
				go streamer.Run(ctx)
			}

			httpServer := &http.Server{
				Addr:         ":" + port,
				Handler:      server.NewRouter(srv, hub, cfg.Server.Compression, logger),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server",
					zap.String("addr", httpServer.Addr),
					zap.String("data_dir", cfg.Output.Directory),
					zap.String("replay_mode", string(cache.Mode())),
					zap.Bool("compression", cfg.Server.Compression),
					zap.Bool("stream", cfg.Server.Stream),
				)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (default from config)")

	return cmd
}
