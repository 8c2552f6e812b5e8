package composite

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
	xdraw "golang.org/x/image/draw"
)

// ErrTileUnavailable matches every *TileUnavailableError.
var ErrTileUnavailable = errors.New("tile unavailable")

// TileUnavailableError reports the tile that could not be fetched or decoded.
type TileUnavailableError struct {
	Coords tile.Coords
	Err    error
}

func (e *TileUnavailableError) Error() string {
	return fmt.Sprintf("tile %s unavailable: %v", e.Coords, e.Err)
}

func (e *TileUnavailableError) Unwrap() []error {
	return []error{ErrTileUnavailable, e.Err}
}

// TileProvider returns the decoded raster for a tile.
type TileProvider interface {
	Tile(ctx context.Context, c tile.Coords) (image.Image, error)
}

// TileProviderFunc adapts a function to TileProvider.
type TileProviderFunc func(ctx context.Context, c tile.Coords) (image.Image, error)

// Tile implements TileProvider.
func (f TileProviderFunc) Tile(ctx context.Context, c tile.Coords) (image.Image, error) {
	return f(ctx, c)
}

// AssembleOptions controls failure handling during assembly.
type AssembleOptions struct {
	// AllowMissing replaces unavailable tiles with Placeholder instead of failing.
	AllowMissing bool
	// Placeholder fills substituted tiles. Defaults to light grey.
	Placeholder color.Color
}

// Assembly is the stitched canvas and the tiles that had to be substituted.
type Assembly struct {
	Canvas      *image.RGBA
	Grid        tile.Grid
	Substituted []tile.Coords
}

var defaultPlaceholder = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}

// Assemble requests every tile of grid from provider and pastes it at
// (256*(x-MinX), 256*(y-MinY)). Tiles are requested sequentially; any
// concurrency belongs to the provider.
func Assemble(ctx context.Context, grid tile.Grid, provider TileProvider, opts AssembleOptions) (*Assembly, error) {
	placeholder := opts.Placeholder
	if placeholder == nil {
		placeholder = defaultPlaceholder
	}

	out := &Assembly{
		Canvas: image.NewRGBA(image.Rectangle{Max: grid.PixelSize()}),
		Grid:   grid,
	}
	tileSize := image.Pt(tile.Size, tile.Size)

	for _, c := range grid.Tiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dst := image.Rectangle{Min: grid.Offset(c)}
		dst.Max = dst.Min.Add(tileSize)

		img, err := provider.Tile(ctx, c)
		if err == nil && img.Bounds().Size() != tileSize {
			err = fmt.Errorf("tile bounds %v do not match expected %v", img.Bounds().Size(), tileSize)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			tileErr := &TileUnavailableError{Coords: c, Err: err}
			if !opts.AllowMissing {
				return nil, tileErr
			}
			out.Substituted = append(out.Substituted, c)
			xdraw.Draw(out.Canvas, dst, image.NewUniform(placeholder), image.Point{}, xdraw.Src)
			continue
		}

		xdraw.Draw(out.Canvas, dst, img, img.Bounds().Min, xdraw.Src)
	}

	return out, nil
}

// Blank returns a canvas of size filled with c, used when tiles are not fetched.
func Blank(size image.Point, c color.Color) *image.RGBA {
	canvas := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(c), image.Point{}, xdraw.Src)
	return canvas
}
