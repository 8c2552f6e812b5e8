// Package pipeline turns a track into a finished map image.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/gpx2png/internal/composite"
	"github.com/MeKo-Tech/gpx2png/internal/raster"
	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"github.com/MeKo-Tech/gpx2png/internal/types"
	"github.com/MeKo-Tech/gpx2png/internal/worker"
)

// TileSource provides tiles for assembly and prefetch.
// datasource.TileSource implements it.
type TileSource interface {
	composite.TileProvider
	worker.Loader
}

// Plan is the geometry of one render. A fresh Plan is built for every call
// to Render.
type Plan struct {
	Box    types.GeoBox
	Grid   tile.Grid
	Pixels []image.Point
	Track  image.Rectangle
	Crop   image.Rectangle
}

// Result is a rendered image with the plan that produced it.
type Result struct {
	Image       *image.RGBA
	Plan        Plan
	Substituted []tile.Coords
	Prefetched  int
	Failed      int
}

// Renderer draws tracks with a fixed configuration.
type Renderer struct {
	cfg         Config
	source      TileSource
	style       raster.LineStyle
	notice      composite.NoticeSize
	attribution *composite.Attribution
	logger      *slog.Logger
}

// NewRenderer validates cfg and prepares a renderer. source may be nil
// when cfg.Background is false.
func NewRenderer(cfg Config, source TileSource, logger *slog.Logger) (*Renderer, error) {
	return NewRendererWithAssets(cfg, source, NewAssets(cfg.AssetsDir), logger)
}

// NewRendererWithAssets is NewRenderer with attribution artwork taken from
// assets instead of cfg.AssetsDir, so renderers can share decoded images.
func NewRendererWithAssets(cfg Config, source TileSource, assets *Assets, logger *slog.Logger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	style, err := cfg.LineStyle()
	if err != nil {
		return nil, err
	}
	notice, err := composite.ParseNoticeSize(cfg.Notice)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		cfg:    cfg,
		source: source,
		style:  style,
		notice: notice,
		logger: logger,
	}
	if cfg.Background {
		if source == nil {
			return nil, errors.New("tile source is required when background is enabled")
		}
		r.attribution, err = assets.Attribution(notice)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Config returns the renderer's configuration.
func (r *Renderer) Config() Config {
	return r.cfg
}

// Render draws points over the map and returns the cropped image.
func (r *Renderer) Render(ctx context.Context, points []types.GeoPoint) (*Result, error) {
	for i, p := range points {
		if err := tile.ValidatePoint(p); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}

	box, err := types.ComputeGeoBox(points)
	if err != nil {
		return nil, err
	}
	grid, err := tile.SelectZoom(box, r.cfg.Size, r.cfg.StartZoom)
	if err != nil {
		return nil, fmt.Errorf("failed to select zoom: %w", err)
	}
	r.log().Info("Selected tile grid", "grid", grid.String(), "tiles", grid.Count(), "box", box.String())

	res := &Result{Plan: Plan{Box: box, Grid: grid}}

	var canvas *image.RGBA
	if r.cfg.Background {
		canvas, err = r.assemble(ctx, grid, res)
		if err != nil {
			return nil, err
		}
	} else {
		canvas = composite.Blank(grid.PixelSize(), color.White)
	}

	topLeft, bottomRight := grid.Corners()
	mapper := raster.NewMapper(topLeft, bottomRight, grid.PixelSize())
	res.Plan.Pixels = mapper.Pixels(points)
	raster.DrawTrack(canvas, res.Plan.Pixels, r.style)

	res.Plan.Track = raster.Extent(res.Plan.Pixels)
	res.Plan.Crop = composite.PlanCrop(res.Plan.Track, canvas.Bounds().Size(), r.cfg.Size*tile.Size)
	if res.Plan.Crop != canvas.Bounds() {
		r.log().Debug("Cropping canvas", "from", canvas.Bounds().String(), "to", res.Plan.Crop.String())
		canvas = composite.Crop(canvas, res.Plan.Crop)
	}

	if r.attribution != nil {
		r.attribution.Apply(canvas)
	}
	if r.cfg.NoticeText {
		if err := composite.DrawNoticeText(canvas, composite.NoticeText, r.notice); err != nil {
			return nil, err
		}
	}

	res.Image = canvas
	return res, nil
}

func (r *Renderer) assemble(ctx context.Context, grid tile.Grid, res *Result) (*image.RGBA, error) {
	tiles := grid.Tiles()

	poolCfg := worker.Config{Workers: r.cfg.Workers, Loader: r.source}
	var progress *worker.Progress
	if r.cfg.Progress {
		progress = worker.NewProgress(len(tiles), true)
		poolCfg.OnProgress = progress.Callback()
	}

	results := worker.New(poolCfg).Run(ctx, tiles)
	if progress != nil {
		progress.Done()
		r.log().Info(progress.Summary())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := worker.Failed(results)
	res.Prefetched = len(results)
	res.Failed = len(failed)
	for _, f := range failed {
		r.log().Debug("Tile prefetch failed", "coords", f.Coords.String(), "error", f.Err)
	}

	asm, err := composite.Assemble(ctx, grid, prefetched(r.source, failed), composite.AssembleOptions{
		AllowMissing: r.cfg.AllowMissingTiles,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range asm.Substituted {
		r.log().Warn("Tile unavailable; using placeholder", "coords", c.String())
	}
	res.Substituted = asm.Substituted
	return asm.Canvas, nil
}

// prefetched serves tiles from source, except that tiles whose prefetch
// failed report the recorded error instead of being requested again.
func prefetched(source composite.TileProvider, failed []worker.Result) composite.TileProvider {
	if len(failed) == 0 {
		return source
	}
	errs := make(map[tile.Coords]error, len(failed))
	for _, f := range failed {
		errs[f.Coords] = f.Err
	}
	return composite.TileProviderFunc(func(ctx context.Context, c tile.Coords) (image.Image, error) {
		if err, ok := errs[c]; ok {
			return nil, err
		}
		return source.Tile(ctx, c)
	})
}

// WritePNG encodes img to path. The image is written to path+".part" first
// and renamed, so a failed write leaves no file at path.
func WritePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()      // nolint:errcheck
		os.Remove(tmp) // nolint:errcheck
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp) // nolint:errcheck
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // nolint:errcheck
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
