package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/composite"
	"github.com/MeKo-Tech/gpx2png/internal/datasource"
	"github.com/MeKo-Tech/gpx2png/internal/raster"
	"github.com/MeKo-Tech/gpx2png/internal/tile"
)

// Cache backends.
const (
	CacheFormatDir     = "dir"
	CacheFormatMBTiles = "mbtiles"
)

// Config holds every option of a render. It is built once, validated and
// passed by value; nothing in the pipeline mutates it.
type Config struct {
	// Size is the maximum canvas width and height in tiles
	Size int
	// Border is accepted for compatibility and has no effect
	Border     int
	Background bool
	LineColour string
	LineWidth  float64
	Filename   string
	Renderer   string
	// CacheDir is the root of the tile cache
	CacheDir string
	Notice   string

	StartZoom         int
	TileURL           string
	CacheFormat       string
	Workers           int
	Rate              float64
	Retries           int
	Timeout           time.Duration
	UserAgent         string
	AllowMissingTiles bool
	AssetsDir         string
	NoticeText        bool
	Progress          bool
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	fetch := datasource.DefaultFetcherConfig()
	return Config{
		Size:        2,
		Border:      20,
		Background:  true,
		LineColour:  "black",
		LineWidth:   1,
		Filename:    "output.png",
		Renderer:    datasource.DefaultRenderer,
		CacheDir:    "cache",
		Notice:      string(composite.NoticeNormal),
		StartZoom:   tile.DefaultStartZoom,
		CacheFormat: CacheFormatDir,
		Workers:     4,
		Rate:        fetch.RequestsPerSecond,
		Retries:     fetch.Retries,
		Timeout:     fetch.Timeout,
		UserAgent:   fetch.UserAgent,
		AssetsDir:   "assets/notice",
	}
}

// Validate reports the first invalid option.
func (c Config) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("size must be at least 1, got %d", c.Size)
	}
	if c.LineWidth <= 0 {
		return fmt.Errorf("linewidth must be positive, got %g", c.LineWidth)
	}
	if _, err := raster.ParseColor(c.LineColour); err != nil {
		return err
	}
	if c.Filename == "" {
		return errors.New("filename is required")
	}
	if c.StartZoom < 0 || c.StartZoom > tile.MaxZoom {
		return fmt.Errorf("start-zoom must be within [0, %d], got %d", tile.MaxZoom, c.StartZoom)
	}
	if _, err := composite.ParseNoticeSize(c.Notice); err != nil {
		return err
	}
	if !c.Background {
		return nil
	}

	if _, err := c.URLTemplate(); err != nil {
		return err
	}
	switch c.CacheFormat {
	case CacheFormatDir, CacheFormatMBTiles:
	default:
		return fmt.Errorf("unknown cache format %q (expected %s or %s)", c.CacheFormat, CacheFormatDir, CacheFormatMBTiles)
	}
	if c.CacheDir == "" {
		return errors.New("cache directory is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %g", c.Rate)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	return nil
}

// URLTemplate returns the tile URL: tile-url when set, otherwise the
// renderer's base URL.
func (c Config) URLTemplate() (string, error) {
	if c.TileURL != "" {
		return c.TileURL, nil
	}
	return datasource.RendererURL(c.Renderer)
}

// CacheName names the cache partition. A custom tile-url gets its own.
func (c Config) CacheName() string {
	if c.TileURL != "" {
		return "custom"
	}
	return c.Renderer
}

// LineStyle returns the track stroke.
func (c Config) LineStyle() (raster.LineStyle, error) {
	col, err := raster.ParseColor(c.LineColour)
	if err != nil {
		return raster.LineStyle{}, err
	}
	return raster.LineStyle{Color: col, Width: c.LineWidth}, nil
}

// FetcherConfig returns the HTTP options for tile downloads.
func (c Config) FetcherConfig() datasource.FetcherConfig {
	fc := datasource.DefaultFetcherConfig()
	fc.RequestsPerSecond = c.Rate
	fc.Retries = c.Retries
	fc.Timeout = c.Timeout
	if c.UserAgent != "" {
		fc.UserAgent = c.UserAgent
	}
	return fc
}
