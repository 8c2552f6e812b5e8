package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/datasource"
	"github.com/MeKo-Tech/gpx2png/internal/pipeline"
	"github.com/MeKo-Tech/gpx2png/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve track rendering over HTTP",
	Long: `Start an HTTP server that renders uploaded tracks.

  POST /api/v1/render?format=gpx   track file as body, returns image/png
  GET  /api/v1/status              render and tile cache counters
  GET  /healthz                    liveness probe

Request parameters size, start-zoom, linecolour, linewidth, notice,
background and notice-text override the command line defaults.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("max-concurrent-renders", 2, "Max renders running at once")
	serveCmd.Flags().Duration("request-timeout", 2*time.Minute, "Timeout per render request")
	serveCmd.Flags().Duration("memory-ttl", 10*time.Minute, "How long tiles stay in the in-memory cache")
	serveCmd.Flags().Int64("max-body-bytes", 32<<20, "Maximum size of an uploaded track")
	serveCmd.Flags().Int("max-size", 8, "Largest size (in tiles) a request may ask for")
	serveCmd.Flags().Int("max-start-zoom", 18, "Largest start-zoom a request may ask for")

	bindFlags(serveCmd.Flags(), []flagBinding{
		{"serve.addr", "addr"},
		{"serve.max_concurrent_renders", "max-concurrent-renders"},
		{"serve.request_timeout", "request-timeout"},
		{"serve.memory_ttl", "memory-ttl"},
		{"serve.max_body_bytes", "max-body-bytes"},
		{"serve.max_size", "max-size"},
		{"serve.max_start_zoom", "max-start-zoom"},
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	timeout := viper.GetDuration("serve.request_timeout")
	cfg := configFromViper(viper.GetViper())
	cfg.Progress = false

	var source pipeline.TileSource
	if cfg.Background {
		store, closeStore, err := pipeline.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore() // nolint:errcheck

		mem := datasource.NewMemoryStore(store, viper.GetDuration("serve.memory_ttl"))
		src, err := pipeline.NewTileSource(cfg, mem, logger)
		if err != nil {
			return err
		}
		source = src
	}

	srv, err := server.New(server.Config{
		Render:               cfg,
		MaxConcurrentRenders: viper.GetInt("serve.max_concurrent_renders"),
		MaxBodyBytes:         viper.GetInt64("serve.max_body_bytes"),
		Timeout:              timeout,
		MaxSize:              viper.GetInt("serve.max_size"),
		MaxStartZoom:         viper.GetInt("serve.max_start_zoom"),
	}, source, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      timeout + 10*time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("render server listening",
		"addr", addr,
		"background", cfg.Background,
		"cache", cfg.CacheDir,
		"cache_format", cfg.CacheFormat,
		"max_concurrent_renders", viper.GetInt("serve.max_concurrent_renders"),
	)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
