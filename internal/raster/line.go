package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/colornames"
)

// LineStyle describes how the track polyline is stroked.
type LineStyle struct {
	Color color.Color
	Width float64 // pixels
}

// DrawTrack strokes pts onto dst in order, through the pixel centres. A
// track with a single distinct pixel is drawn as a dot of the line width.
func DrawTrack(dst *image.RGBA, pts []image.Point, style LineStyle) {
	if len(pts) == 0 {
		return
	}

	dc := gg.NewContextForRGBA(dst)
	dc.SetColor(style.Color)
	dc.SetLineWidth(style.Width)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	if isDot(pts) {
		x, y := centre(pts[0])
		dc.DrawPoint(x, y, max(style.Width/2, 0.5))
		dc.Fill()
		return
	}

	dc.MoveTo(centre(pts[0]))
	for _, p := range pts[1:] {
		dc.LineTo(centre(p))
	}
	dc.Stroke()
}

func centre(p image.Point) (float64, float64) {
	return float64(p.X) + 0.5, float64(p.Y) + 0.5
}

func isDot(pts []image.Point) bool {
	for _, p := range pts[1:] {
		if p != pts[0] {
			return false
		}
	}
	return true
}

// ParseColor accepts an SVG/CSS colour name ("black", "darkred") or a hex
// value in #rgb or #rrggbb form.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.NRGBA{}, errors.New("empty colour")
	}

	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}, nil
	}

	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("unknown colour %q", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
