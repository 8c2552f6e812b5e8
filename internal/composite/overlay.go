package composite

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/disintegration/gift"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"
)

// ErrMissingAsset is returned when an attribution image cannot be found.
var ErrMissingAsset = errors.New("missing asset")

// NoticeText is the textual attribution for OpenStreetMap tiles.
const NoticeText = "CC BY-SA OpenStreetMap"

// NoticeSize selects the attribution artwork.
type NoticeSize string

const (
	NoticeSmall  NoticeSize = "small"
	NoticeNormal NoticeSize = "normal"
)

type noticeLayout struct {
	offset   image.Point // licence badge, measured from the bottom-right corner
	logoSize int
	fontSize float64
}

var noticeLayouts = map[NoticeSize]noticeLayout{
	NoticeSmall:  {offset: image.Pt(85, 20), logoSize: 16, fontSize: 9},
	NoticeNormal: {offset: image.Pt(93, 36), logoSize: 32, fontSize: 12},
}

// ParseNoticeSize validates a notice size name.
func ParseNoticeSize(s string) (NoticeSize, error) {
	n := NoticeSize(s)
	if _, ok := noticeLayouts[n]; !ok {
		return "", fmt.Errorf("unknown notice size %q (want small or normal)", s)
	}
	return n, nil
}

// Attribution holds the licence badge and the source logo.
type Attribution struct {
	Size    NoticeSize
	Licence image.Image
	Logo    image.Image
}

// LoadAttribution reads cc-by-sa.<size>.png and osm.png from dir.
func LoadAttribution(dir string, size NoticeSize) (*Attribution, error) {
	if _, ok := noticeLayouts[size]; !ok {
		return nil, fmt.Errorf("unknown notice size %q", size)
	}

	licence, err := loadAsset(filepath.Join(dir, fmt.Sprintf("cc-by-sa.%s.png", size)))
	if err != nil {
		return nil, err
	}
	logo, err := loadAsset(filepath.Join(dir, "osm.png"))
	if err != nil {
		return nil, err
	}
	return &Attribution{Size: size, Licence: licence, Logo: logo}, nil
}

func loadAsset(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingAsset, path)
		}
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode asset %s: %w", path, err)
	}
	return img, nil
}

// Apply pastes the licence badge near the bottom-right corner of dst and
// the logo, scaled to the notice size, 5 px to its left.
func (a *Attribution) Apply(dst *image.RGBA) {
	layout := noticeLayouts[a.Size]
	b := dst.Bounds()
	badge := image.Pt(b.Max.X-layout.offset.X, b.Max.Y-layout.offset.Y)
	paste(dst, a.Licence, badge)

	g := gift.New(gift.Resize(layout.logoSize, layout.logoSize, gift.LanczosResampling))
	logo := image.NewNRGBA(g.Bounds(a.Logo.Bounds()))
	g.Draw(logo, a.Logo)
	paste(dst, logo, image.Pt(badge.X-layout.logoSize-5, badge.Y))
}

func paste(dst *image.RGBA, src image.Image, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	xdraw.Draw(dst, r, src, src.Bounds().Min, xdraw.Over)
}

// DrawNoticeText writes text in the bottom-left corner of dst using the Go
// regular font.
func DrawNoticeText(dst *image.RGBA, text string, size NoticeSize) error {
	layout, ok := noticeLayouts[size]
	if !ok {
		return fmt.Errorf("unknown notice size %q", size)
	}

	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}

	dc := gg.NewContextForRGBA(dst)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: layout.fontSize}))
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(text, 5, float64(dst.Bounds().Dy())-5, 0, 0)
	return nil
}
