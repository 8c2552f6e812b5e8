package datasource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // tile servers may answer with JPEG
	_ "image/png"
	"log/slog"
	"sync/atomic"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"golang.org/x/sync/singleflight"
)

// SourceConfig configures a TileSource.
type SourceConfig struct {
	// URLTemplate is a base URL or a {z}/{x}/{y} template
	URLTemplate string
	// Store caches downloaded tiles (required)
	Store Store
	// Fetcher downloads missing tiles (default: NewFetcher(DefaultFetcherConfig()))
	Fetcher *Fetcher
	// Logger for cache and fetch events
	Logger *slog.Logger
}

// Stats counts cache activity of a TileSource.
type Stats struct {
	CacheHits   int64 `json:"cache_hits"`
	Fetches     int64 `json:"fetches"`
	CacheWrites int64 `json:"cache_writes"`
	Failures    int64 `json:"failures"`
}

// TileSource serves tiles from a cache, downloading and storing misses.
// Concurrent requests for the same tile share a single download.
type TileSource struct {
	template string
	store    Store
	fetcher  *Fetcher
	logger   *slog.Logger
	group    singleflight.Group

	hits     atomic.Int64
	fetches  atomic.Int64
	writes   atomic.Int64
	failures atomic.Int64
}

// NewTileSource creates a tile source.
func NewTileSource(cfg SourceConfig) (*TileSource, error) {
	if cfg.URLTemplate == "" {
		return nil, errors.New("tile URL template is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("tile store is required")
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewFetcher(DefaultFetcherConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TileSource{
		template: cfg.URLTemplate,
		store:    cfg.Store,
		fetcher:  cfg.Fetcher,
		logger:   cfg.Logger,
	}, nil
}

// URL returns the download address of tile c.
func (s *TileSource) URL(c tile.Coords) string {
	return tile.URL(s.template, c)
}

// Bytes returns the encoded image of tile c.
func (s *TileSource) Bytes(ctx context.Context, c tile.Coords) ([]byte, error) {
	data, err := s.store.Get(c)
	if err == nil {
		s.hits.Add(1)
		return data, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("tile cache read failed, refetching", "coords", c.String(), "error", err)
	}

	v, err, shared := s.group.Do(c.String(), func() (any, error) {
		// Another caller may have stored the tile while we waited.
		if data, err := s.store.Get(c); err == nil {
			s.hits.Add(1)
			return data, nil
		}
		return s.download(ctx, c)
	})
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}
	if shared {
		s.logger.Debug("shared in-flight tile download", "coords", c.String())
	}
	return v.([]byte), nil
}

func (s *TileSource) download(ctx context.Context, c tile.Coords) ([]byte, error) {
	url := s.URL(c)
	s.logger.Debug("fetching tile", "coords", c.String(), "url", url)

	s.fetches.Add(1)
	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile %s: %w", c, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("tile %s from %s is not an image: %w", c, url, err)
	}

	if err := s.store.Put(c, data); err != nil {
		return nil, fmt.Errorf("failed to cache tile %s: %w", c, err)
	}
	s.writes.Add(1)
	return data, nil
}

// Tile implements composite.TileProvider.
func (s *TileSource) Tile(ctx context.Context, c tile.Coords) (image.Image, error) {
	data, err := s.Bytes(ctx, c)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile %s: %w", c, err)
	}
	return img, nil
}

// Stats returns a snapshot of the counters.
func (s *TileSource) Stats() Stats {
	return Stats{
		CacheHits:   s.hits.Load(),
		Fetches:     s.fetches.Load(),
		CacheWrites: s.writes.Load(),
		Failures:    s.failures.Load(),
	}
}
