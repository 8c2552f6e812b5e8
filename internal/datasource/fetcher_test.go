package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcher_SetsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{UserAgent: "gpx2png-test/0.1", RequestsPerSecond: 100})
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("Fetch() = %q", body)
	}
	if got := ua.Load(); got != "gpx2png-test/0.1" {
		t.Fatalf("User-Agent = %v", got)
	}
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("tile"))
	}))
	defer srv.Close()

	f := fastFetcher()
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "tile" || calls.Load() != 3 || f.Requests() != 3 {
		t.Fatalf("body=%q calls=%d requests=%d", body, calls.Load(), f.Requests())
	}
}

func TestFetcher_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := fastFetcher()
	_, err := f.Fetch(context.Background(), srv.URL)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
	if f.Requests() != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.Requests())
	}
}

func TestFetcher_NoRetryOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := fastFetcher()
	_, err := f.Fetch(context.Background(), srv.URL)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
	if f.Requests() != 1 {
		t.Fatalf("expected a single attempt, got %d", f.Requests())
	}
}

func TestFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{RequestsPerSecond: 1000, Retries: 5, RetryDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRendererURL(t *testing.T) {
	for _, name := range []string{"mapnik", "osmarender", "cyclemap"} {
		if _, err := RendererURL(name); err != nil {
			t.Errorf("RendererURL(%q) error = %v", name, err)
		}
	}
	if u, _ := RendererURL("mapnik"); u != "http://tile.openstreetmap.org" {
		t.Errorf("mapnik URL = %s", u)
	}
	if _, err := RendererURL("watercolor"); err == nil {
		t.Error("expected error for unknown renderer")
	}
	if names := RendererNames(); len(names) != 3 || names[0] != "cyclemap" {
		t.Errorf("RendererNames() = %v", names)
	}
}
