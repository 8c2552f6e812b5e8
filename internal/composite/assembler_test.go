package composite

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
)

// colourTile returns a tile whose colour encodes its column and row.
func colourTile(c tile.Coords) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	fill := color.RGBA{R: uint8(c.X), G: uint8(c.Y), B: 0x80, A: 0xff}
	for y := 0; y < tile.Size; y++ {
		for x := 0; x < tile.Size; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	return img
}

func TestAssemble_PlacesTilesInGridOrder(t *testing.T) {
	grid := tile.Grid{Zoom: 8, MinX: 10, MaxX: 12, MinY: 20, MaxY: 21}

	var requested []tile.Coords
	provider := TileProviderFunc(func(_ context.Context, c tile.Coords) (image.Image, error) {
		requested = append(requested, c)
		return colourTile(c), nil
	})

	out, err := Assemble(context.Background(), grid, provider, AssembleOptions{})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	if got := out.Canvas.Bounds().Size(); got != image.Pt(768, 512) {
		t.Fatalf("canvas size = %v, want 768x512", got)
	}
	if len(requested) != grid.Count() {
		t.Fatalf("requested %d tiles, want %d", len(requested), grid.Count())
	}
	if len(out.Substituted) != 0 {
		t.Fatalf("unexpected substitutions: %v", out.Substituted)
	}

	grid.ForEach(func(c tile.Coords) {
		off := grid.Offset(c)
		for _, p := range []image.Point{off, off.Add(image.Pt(255, 255))} {
			got := out.Canvas.RGBAAt(p.X, p.Y)
			if got.R != uint8(c.X) || got.G != uint8(c.Y) {
				t.Errorf("pixel %v = %v, want tile %v", p, got, c)
			}
		}
	})
}

func TestAssemble_TileUnavailable(t *testing.T) {
	grid := tile.Grid{Zoom: 3, MinX: 1, MaxX: 2, MinY: 1, MaxY: 1}
	boom := errors.New("connection refused")
	provider := TileProviderFunc(func(_ context.Context, c tile.Coords) (image.Image, error) {
		if c.X == 2 {
			return nil, boom
		}
		return colourTile(c), nil
	})

	_, err := Assemble(context.Background(), grid, provider, AssembleOptions{})
	if !errors.Is(err, ErrTileUnavailable) {
		t.Fatalf("expected ErrTileUnavailable, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}

	var tileErr *TileUnavailableError
	if !errors.As(err, &tileErr) || tileErr.Coords != tile.NewCoords(3, 2, 1) {
		t.Fatalf("expected TileUnavailableError for z3_x2_y1, got %v", err)
	}
}

func TestAssemble_WrongTileSize(t *testing.T) {
	grid := tile.Grid{Zoom: 1}
	provider := TileProviderFunc(func(context.Context, tile.Coords) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 512, 512)), nil
	})

	_, err := Assemble(context.Background(), grid, provider, AssembleOptions{})
	if !errors.Is(err, ErrTileUnavailable) {
		t.Fatalf("expected ErrTileUnavailable for oversized tile, got %v", err)
	}
}

func TestAssemble_AllowMissingReportsSubstitutions(t *testing.T) {
	grid := tile.Grid{Zoom: 3, MinX: 1, MaxX: 2, MinY: 1, MaxY: 2}
	provider := TileProviderFunc(func(_ context.Context, c tile.Coords) (image.Image, error) {
		if c.Y == 2 {
			return nil, errors.New("404")
		}
		return colourTile(c), nil
	})

	placeholder := color.RGBA{R: 1, G: 2, B: 3, A: 255}
	out, err := Assemble(context.Background(), grid, provider, AssembleOptions{AllowMissing: true, Placeholder: placeholder})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := []tile.Coords{tile.NewCoords(3, 1, 2), tile.NewCoords(3, 2, 2)}
	if len(out.Substituted) != len(want) || out.Substituted[0] != want[0] || out.Substituted[1] != want[1] {
		t.Fatalf("Substituted = %v, want %v", out.Substituted, want)
	}
	if got := out.Canvas.RGBAAt(10, 300); got != placeholder {
		t.Fatalf("placeholder pixel = %v, want %v", got, placeholder)
	}
}

func TestAssemble_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := TileProviderFunc(func(context.Context, tile.Coords) (image.Image, error) {
		t.Fatal("provider must not be called after cancellation")
		return nil, nil
	})
	if _, err := Assemble(ctx, tile.Grid{}, provider, AssembleOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBlank(t *testing.T) {
	img := Blank(image.Pt(512, 256), color.White)
	if img.Bounds().Size() != image.Pt(512, 256) {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	if got := img.RGBAAt(511, 255); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("unexpected pixel %v", got)
	}
}
