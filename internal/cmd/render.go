package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/geojson"
	"github.com/MeKo-Tech/gpx2png/internal/pipeline"
	"github.com/MeKo-Tech/gpx2png/internal/track"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render [flags] track",
	Short: "Render a track to PNG",
	Long:  `Render a GPX, KML or KMZ track over map tiles. Same as running gpx2png with a file argument.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		cmd.Usage() // nolint:errcheck
		return errNoTrack
	}

	if logger == nil {
		initLogging()
	}

	cfg := configFromViper(viper.GetViper())

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return renderFile(ctx, cfg, args[0], viper.GetString("geojson"), logger)
}

// renderFile loads the track at path, renders it with cfg and writes
// cfg.Filename. A non-empty geojsonOut also receives the track and tile
// grid as GeoJSON.
func renderFile(ctx context.Context, cfg pipeline.Config, path, geojsonOut string, logger *slog.Logger) error {
	start := time.Now()

	points, err := track.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load track %s: %w", path, err)
	}
	logger.Debug("Loaded track", "path", path, "points", len(points))

	renderer, closeFn, err := newRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn() // nolint:errcheck

	res, err := renderer.Render(ctx, points)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}

	if err := pipeline.WritePNG(cfg.Filename, res.Image); err != nil {
		return err
	}

	if geojsonOut != "" {
		data, err := geojson.FromTrackBytes(points, res.Plan.Grid)
		if err != nil {
			return err
		}
		if err := os.WriteFile(geojsonOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write GeoJSON: %w", err)
		}
		logger.Info("Wrote GeoJSON", "output", geojsonOut)
	}

	b := res.Image.Bounds()
	logger.Info("Wrote map",
		"output", cfg.Filename,
		"width", b.Dx(),
		"height", b.Dy(),
		"zoom", res.Plan.Grid.Zoom,
		"tiles", res.Plan.Grid.Count(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return nil
}

// newRenderer opens the tile cache and source that cfg needs. The returned
// close function is never nil.
func newRenderer(cfg pipeline.Config, logger *slog.Logger) (*pipeline.Renderer, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Background {
		r, err := pipeline.NewRenderer(cfg, nil, logger)
		return r, noop, err
	}

	store, closeStore, err := pipeline.OpenStore(cfg)
	if err != nil {
		return nil, noop, err
	}
	src, err := pipeline.NewTileSource(cfg, store, logger)
	if err != nil {
		closeStore() // nolint:errcheck
		return nil, noop, err
	}
	r, err := pipeline.NewRenderer(cfg, src, logger)
	if err != nil {
		closeStore() // nolint:errcheck
		return nil, noop, err
	}
	return r, closeStore, nil
}
