// Package server exposes track rendering over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/composite"
	"github.com/MeKo-Tech/gpx2png/internal/datasource"
	"github.com/MeKo-Tech/gpx2png/internal/pipeline"
	"github.com/MeKo-Tech/gpx2png/internal/tile"
	"github.com/MeKo-Tech/gpx2png/internal/track"
	"github.com/MeKo-Tech/gpx2png/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Config configures the render server.
type Config struct {
	// Render holds the defaults every request starts from
	Render pipeline.Config
	// MaxConcurrentRenders bounds parallel renders (default: 2)
	MaxConcurrentRenders int
	// MaxBodyBytes bounds the uploaded track (default: 32 MiB)
	MaxBodyBytes int64
	// Timeout bounds one request (default: 2m)
	Timeout time.Duration
	// MaxSize bounds the size query parameter in tiles (default: 8)
	MaxSize int
	// MaxStartZoom bounds the start-zoom query parameter (default: 18)
	MaxStartZoom int
}

// Server renders uploaded tracks.
type Server struct {
	cfg    Config
	source pipeline.TileSource
	assets *pipeline.Assets
	logger *slog.Logger
	sem    chan struct{}

	active   atomic.Int32
	rendered atomic.Int64
	failed   atomic.Int64
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Status is returned by GET /api/v1/status.
type Status struct {
	ActiveRenders int32             `json:"active_renders"`
	TotalRendered int64             `json:"total_rendered"`
	TotalFailed   int64             `json:"total_failed"`
	MaxConcurrent int               `json:"max_concurrent"`
	Tiles         *datasource.Stats `json:"tiles,omitempty"`
}

// New creates a server. source may be nil when cfg.Render.Background is false.
func New(cfg Config, source pipeline.TileSource, logger *slog.Logger) (*Server, error) {
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 2
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 8
	}
	if cfg.MaxStartZoom <= 0 {
		cfg.MaxStartZoom = 18
	}
	if err := cfg.Render.Validate(); err != nil {
		return nil, fmt.Errorf("invalid render defaults: %w", err)
	}

	return &Server{
		cfg:    cfg,
		source: source,
		assets: pipeline.NewAssets(cfg.Render.AssetsDir),
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentRenders),
	}, nil
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/render", s.handleRender)
		r.Get("/status", s.handleStatus)
	})

	return r
}

// Status returns a snapshot of the render counters.
func (s *Server) Status() Status {
	st := Status{
		ActiveRenders: s.active.Load(),
		TotalRendered: s.rendered.Load(),
		TotalFailed:   s.failed.Load(),
		MaxConcurrent: cap(s.sem),
	}
	if src, ok := s.source.(interface{ Stats() datasource.Stats }); ok {
		stats := src.Stats()
		st.Tiles = &stats
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.log().Error("Failed to encode status", "error", err)
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	cfg, err := s.requestConfig(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), reqID)
		return
	}

	parser, err := track.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), reqID)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "TRACK_TOO_LARGE", err.Error(), reqID)
			return
		}
		s.writeError(w, http.StatusBadRequest, "INVALID_TRACK", err.Error(), reqID)
		return
	}

	points, err := track.Load(parser, data)
	if err != nil {
		s.failed.Add(1)
		status, code := classify(err, http.StatusBadRequest, "INVALID_TRACK")
		s.writeError(w, status, code, err.Error(), reqID)
		return
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		w.Header().Set("Retry-After", "1")
		s.writeError(w, http.StatusServiceUnavailable, "BUSY", "all render slots are in use", reqID)
		return
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	start := time.Now()
	img, zoom, err := s.render(r.Context(), cfg, points)
	if err != nil {
		s.failed.Add(1)
		status, code := classify(err, http.StatusInternalServerError, "INTERNAL_ERROR")
		s.log().Warn("Render failed", "request_id", reqID, "points", len(points), "error", err)
		s.writeError(w, status, code, err.Error(), reqID)
		return
	}
	s.rendered.Add(1)
	s.log().Info("Rendered track",
		"request_id", reqID,
		"points", len(points),
		"zoom", zoom,
		"bytes", len(img),
		"elapsed", time.Since(start).String(),
	)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("X-Map-Zoom", strconv.Itoa(zoom))
	if _, err := w.Write(img); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}

func (s *Server) render(ctx context.Context, cfg pipeline.Config, points []types.GeoPoint) ([]byte, int, error) {
	renderer, err := pipeline.NewRendererWithAssets(cfg, s.source, s.assets, s.logger)
	if err != nil {
		return nil, 0, err
	}
	res, err := renderer.Render(ctx, points)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, res.Image); err != nil {
		return nil, 0, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), int(res.Plan.Grid.Zoom), nil
}

// requestConfig applies the query parameters to the server defaults.
func (s *Server) requestConfig(r *http.Request) (pipeline.Config, error) {
	cfg := s.cfg.Render
	q := r.URL.Query()

	ints := []struct {
		name string
		dst  *int
		max  int
	}{
		{"size", &cfg.Size, s.cfg.MaxSize},
		{"start-zoom", &cfg.StartZoom, s.cfg.MaxStartZoom},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid %s %q: %w", p.name, v, err)
			}
			if n > p.max {
				return cfg, fmt.Errorf("%s %d exceeds the server limit of %d", p.name, n, p.max)
			}
			*p.dst = n
		}
	}

	bools := map[string]*bool{
		"background":  &cfg.Background,
		"notice-text": &cfg.NoticeText,
	}
	for name, dst := range bools {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			*dst = b
		}
	}

	if v := q.Get("linewidth"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid linewidth %q: %w", v, err)
		}
		cfg.LineWidth = f
	}
	if v := q.Get("linecolour"); v != "" {
		cfg.LineColour = v
	}
	if v := q.Get("notice"); v != "" {
		cfg.Notice = v
	}
	if cfg.Background && s.source == nil {
		return cfg, errors.New("background tiles are disabled on this server")
	}
	// the tile source is fixed at startup
	cfg.Renderer = s.cfg.Render.Renderer
	cfg.TileURL = s.cfg.Render.TileURL

	return cfg, cfg.Validate()
}

// classify maps an error to an HTTP status and error code. Unknown errors
// get the fallback.
func classify(err error, fallbackStatus int, fallbackCode string) (int, string) {
	switch {
	case errors.Is(err, types.ErrEmptyTrack):
		return http.StatusBadRequest, "EMPTY_TRACK"
	case errors.Is(err, tile.ErrInvalidCoordinate):
		return http.StatusBadRequest, "INVALID_COORDINATE"
	case errors.Is(err, track.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT"
	case errors.Is(err, track.ErrCorruptArchive):
		return http.StatusBadRequest, "CORRUPT_ARCHIVE"
	case errors.Is(err, composite.ErrTileUnavailable):
		return http.StatusBadGateway, "TILE_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, composite.ErrMissingAsset):
		return http.StatusInternalServerError, "MISSING_ASSET"
	default:
		return fallbackStatus, fallbackCode
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message, reqID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message, RequestID: reqID}); err != nil {
		s.log().Error("Failed to encode error response", "error", err)
	}
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
