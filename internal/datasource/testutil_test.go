package datasource

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
)

func pngTile(t *testing.T, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	for y := 0; y < tile.Size; y++ {
		for x := 0; x < tile.Size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// tileServer serves body for every request and counts hits.
func tileServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func fastFetcher() *Fetcher {
	return NewFetcher(FetcherConfig{
		RequestsPerSecond: 1000,
		Burst:             100,
		Retries:           3,
		RetryDelay:        time.Millisecond,
	})
}
