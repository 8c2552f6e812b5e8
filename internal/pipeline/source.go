package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/gpx2png/internal/datasource"
)

// OpenStore opens the tile cache selected by cfg. The returned close
// function releases it and is never nil.
func OpenStore(cfg Config) (datasource.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.CacheFormat {
	case CacheFormatDir, "":
		return datasource.NewDirStore(filepath.Join(cfg.CacheDir, cfg.CacheName())), noop, nil
	case CacheFormatMBTiles:
		path := filepath.Join(cfg.CacheDir, cfg.CacheName()+".mbtiles")
		s, err := datasource.OpenMBTilesStore(path, cfg.CacheName())
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open tile cache %s: %w", path, err)
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache format %q", cfg.CacheFormat)
	}
}

// NewTileSource builds the cached tile source for cfg on top of store.
func NewTileSource(cfg Config, store datasource.Store, logger *slog.Logger) (*datasource.TileSource, error) {
	template, err := cfg.URLTemplate()
	if err != nil {
		return nil, err
	}
	return datasource.NewTileSource(datasource.SourceConfig{
		URLTemplate: template,
		Store:       store,
		Fetcher:     datasource.NewFetcher(cfg.FetcherConfig()),
		Logger:      logger,
	})
}
