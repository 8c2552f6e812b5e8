package datasource

import (
	"context"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"github.com/stretchr/testify/require"
)

func TestTileSource_FetchesOnceThenServesFromCache(t *testing.T) {
	srv, hits := tileServer(t, pngTile(t, color.White))
	store := &countingStore{Store: NewDirStore(t.TempDir())}

	src, err := NewTileSource(SourceConfig{URLTemplate: srv.URL, Store: store, Fetcher: fastFetcher()})
	require.NoError(t, err)

	c := tile.NewCoords(16, 32407, 21710)
	for i := 0; i < 2; i++ {
		img, err := src.Tile(context.Background(), c)
		require.NoError(t, err)
		require.Equal(t, tile.Size, img.Bounds().Dx())
	}

	require.Equal(t, int64(1), hits.Load(), "network fetches")
	require.Equal(t, 1, store.puts, "cache writes")
	require.Equal(t, Stats{CacheHits: 1, Fetches: 1, CacheWrites: 1}, src.Stats())
}

func TestTileSource_RequestsExpectedPath(t *testing.T) {
	var path atomic.Value
	body := pngTile(t, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Write(body)
	}))
	defer srv.Close()

	src, err := NewTileSource(SourceConfig{URLTemplate: srv.URL + "/tiles/", Store: NewDirStore(t.TempDir()), Fetcher: fastFetcher()})
	require.NoError(t, err)

	_, err = src.Bytes(context.Background(), tile.NewCoords(10, 506, 338))
	require.NoError(t, err)
	require.Equal(t, "/tiles/10/506/338.png", path.Load())
}

func TestTileSource_ConcurrentRequestsShareDownload(t *testing.T) {
	body := pngTile(t, color.Black)
	release := make(chan struct{})
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write(body)
	}))
	defer srv.Close()

	src, err := NewTileSource(SourceConfig{URLTemplate: srv.URL, Store: NewDirStore(t.TempDir()), Fetcher: fastFetcher()})
	require.NoError(t, err)

	c := tile.NewCoords(12, 2025, 1353)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := src.Bytes(context.Background(), c)
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int64(1), hits.Load())
	require.Equal(t, int64(1), src.Stats().CacheWrites)
}

func TestTileSource_RejectsNonImage(t *testing.T) {
	srv, _ := tileServer(t, []byte("<html>rate limited</html>"))
	store := &countingStore{Store: NewDirStore(t.TempDir())}

	src, err := NewTileSource(SourceConfig{URLTemplate: srv.URL, Store: store, Fetcher: fastFetcher()})
	require.NoError(t, err)

	_, err = src.Tile(context.Background(), tile.NewCoords(1, 0, 0))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "not an image"), err.Error())
	require.Zero(t, store.puts)
	require.Equal(t, int64(1), src.Stats().Failures)
}

func TestTileSource_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src, err := NewTileSource(SourceConfig{URLTemplate: srv.URL, Store: NewDirStore(t.TempDir()), Fetcher: fastFetcher()})
	require.NoError(t, err)

	_, err = src.Tile(context.Background(), tile.NewCoords(1, 1, 1))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestNewTileSource_Validation(t *testing.T) {
	_, err := NewTileSource(SourceConfig{Store: NewDirStore(t.TempDir())})
	require.Error(t, err)

	_, err = NewTileSource(SourceConfig{URLTemplate: "http://example.com"})
	require.Error(t, err)
}
