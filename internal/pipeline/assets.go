package pipeline

import (
	"sync"

	"github.com/MeKo-Tech/gpx2png/internal/composite"
)

// Assets loads attribution artwork from one directory and keeps it for reuse.
// It is safe for concurrent use; the loaded images are only read.
type Assets struct {
	dir string

	mu     sync.Mutex
	loaded map[composite.NoticeSize]*composite.Attribution
}

// NewAssets returns an asset cache for dir.
func NewAssets(dir string) *Assets {
	return &Assets{dir: dir, loaded: make(map[composite.NoticeSize]*composite.Attribution)}
}

// Dir returns the asset directory.
func (a *Assets) Dir() string { return a.dir }

// Attribution returns the artwork for size, reading it on first use.
// Failed loads are not remembered.
func (a *Assets) Attribution(size composite.NoticeSize) (*composite.Attribution, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if attr, ok := a.loaded[size]; ok {
		return attr, nil
	}
	attr, err := composite.LoadAttribution(a.dir, size)
	if err != nil {
		return nil, err
	}
	a.loaded[size] = attr
	return attr, nil
}
