package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/gpx2png/internal/composite"
	"github.com/MeKo-Tech/gpx2png/internal/datasource"
	"github.com/MeKo-Tech/gpx2png/internal/mbtiles"
	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the tile cache",
}

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy the directory tile cache into an MBTiles file",
	Long: `Export the tiles cached for --renderer (or --tile-url) under --cache
into an MBTiles database. The result can be used with --cache-format mbtiles.`,
	Args: cobra.NoArgs,
	RunE: runCacheExport,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheExportCmd)

	cacheExportCmd.Flags().StringP("mbtiles", "m", "", "Output MBTiles file (default: <cache>/<renderer>.mbtiles)")
	cacheExportCmd.Flags().String("name", "", "Tileset name (default: renderer name)")
	cacheExportCmd.Flags().String("description", "gpx2png tile cache", "Tileset description")
	cacheExportCmd.Flags().Int("batch-size", mbtiles.DefaultBatchSize, "Tiles per transaction")

	bindFlags(cacheExportCmd.Flags(), []flagBinding{
		{"cache_export.mbtiles", "mbtiles"},
		{"cache_export.name", "name"},
		{"cache_export.description", "description"},
		{"cache_export.batch_size", "batch-size"},
	})
}

func runCacheExport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	cfg := configFromViper(viper.GetViper())
	inputDir := filepath.Join(cfg.CacheDir, cfg.CacheName())
	outputFile := viper.GetString("cache_export.mbtiles")
	if outputFile == "" {
		outputFile = filepath.Join(cfg.CacheDir, cfg.CacheName()+".mbtiles")
	}
	name := viper.GetString("cache_export.name")
	if name == "" {
		name = cfg.CacheName()
	}

	// Verify input directory exists
	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("cache directory does not exist: %s", inputDir)
	}

	logger.Info("Exporting tile cache to MBTiles",
		"input_dir", inputDir,
		"output", outputFile,
		"name", name,
	)

	n, err := exportCache(datasource.NewDirStore(inputDir), outputFile, mbtiles.Metadata{
		Name:        name,
		Format:      "png",
		Attribution: composite.NoticeText,
		Description: viper.GetString("cache_export.description"),
	}, viper.GetInt("cache_export.batch_size"), logger)
	if err != nil {
		return err
	}

	logger.Info("Export complete", "output", outputFile, "tiles", n)
	return nil
}

// exportCache copies every tile of src into the MBTiles file at out. Zoom
// range and bounds of meta are filled in from the tiles found.
func exportCache(src *datasource.DirStore, out string, meta mbtiles.Metadata, batchSize int, logger *slog.Logger) (int, error) {
	if batchSize <= 0 {
		batchSize = mbtiles.DefaultBatchSize
	}

	var tiles []tile.Coords
	err := src.Walk(func(c tile.Coords, path string) error {
		tiles = append(tiles, c)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache directory: %w", err)
	}
	if len(tiles) == 0 {
		return 0, fmt.Errorf("no tiles found in %s", src.Dir())
	}

	meta.MinZoom, meta.MaxZoom = tile.MaxZoom, 0
	var bound orb.Bound
	for i, c := range tiles {
		meta.MinZoom = min(meta.MinZoom, int(c.Z))
		meta.MaxZoom = max(meta.MaxZoom, int(c.Z))
		if i == 0 {
			bound = c.Bounds().Bound()
		} else {
			bound = bound.Union(c.Bounds().Bound())
		}
	}
	meta.Bounds = bound
	logger.Info("Found tiles", "count", len(tiles), "min_zoom", meta.MinZoom, "max_zoom", meta.MaxZoom)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	store, err := mbtiles.Open(out, meta)
	if err != nil {
		return 0, fmt.Errorf("failed to create MBTiles file: %w", err)
	}
	defer store.Close() // nolint:errcheck

	written := 0
	batch := make([]mbtiles.Entry, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.PutBatch(batch); err != nil {
			return fmt.Errorf("failed to write tiles: %w", err)
		}
		written += len(batch)
		batch = batch[:0]
		logger.Debug("Progress", "converted", written, "total", len(tiles))
		return nil
	}

	for _, c := range tiles {
		data, err := src.Get(c)
		if err != nil {
			logger.Error("Failed to read tile", "coords", c.String(), "error", err)
			continue
		}
		batch = append(batch, mbtiles.Entry{Coords: c, Data: data})
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
