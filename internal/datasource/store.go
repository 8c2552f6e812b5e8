package datasource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/mbtiles"
	"github.com/MeKo-Tech/gpx2png/internal/tile"
	gocache "github.com/patrickmn/go-cache"
)

// ErrCacheMiss is returned by a Store that does not hold the tile.
var ErrCacheMiss = errors.New("tile not cached")

// Store persists encoded tile images.
type Store interface {
	Get(c tile.Coords) ([]byte, error)
	Put(c tile.Coords, data []byte) error
}

// DirStore keeps one file per tile named "{zoom}-{x}-{y}.png" in a directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir. The directory is created on first write.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the cache directory
func (s *DirStore) Dir() string { return s.dir }

// Path returns the file path of tile c.
func (s *DirStore) Path(c tile.Coords) string {
	return filepath.Join(s.dir, c.CacheKey())
}

// Get implements Store.
func (s *DirStore) Get(c tile.Coords) ([]byte, error) {
	data, err := os.ReadFile(s.Path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached tile: %w", err)
	}
	return data, nil
}

// Put implements Store. The file is written under a temporary name and
// renamed so readers never observe a partial tile.
func (s *DirStore) Put(c tile.Coords, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, c.CacheKey()+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write tile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close tile: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(c)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move tile into place: %w", err)
	}
	return nil
}

// Walk calls fn for every cached tile. Files that are not tiles are skipped.
func (s *DirStore) Walk(fn func(c tile.Coords, path string) error) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list cache directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		c, err := tile.ParseCacheKey(e.Name())
		if err != nil {
			continue
		}
		if err := fn(c, filepath.Join(s.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// MBTilesStore adapts an mbtiles.Store to Store.
type MBTilesStore struct {
	*mbtiles.Store
}

// OpenMBTilesStore opens (or creates) the MBTiles cache for renderer at path.
func OpenMBTilesStore(path, renderer string) (*MBTilesStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	s, err := mbtiles.Open(path, mbtiles.Metadata{
		Name:        renderer,
		Format:      "png",
		Attribution: "CC BY-SA OpenStreetMap",
		Description: "gpx2png tile cache",
	})
	if err != nil {
		return nil, err
	}
	return &MBTilesStore{Store: s}, nil
}

// Get implements Store.
func (s *MBTilesStore) Get(c tile.Coords) ([]byte, error) {
	data, err := s.Store.Get(c)
	if errors.Is(err, mbtiles.ErrTileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, c)
	}
	return data, err
}

// MemoryStore keeps recently used tiles in memory in front of another store.
type MemoryStore struct {
	cache *gocache.Cache
	next  Store
}

// NewMemoryStore wraps next with an in-memory layer whose entries expire after ttl.
func NewMemoryStore(next Store, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(ttl, 2*ttl),
		next:  next,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(c tile.Coords) ([]byte, error) {
	key := c.String()
	if v, ok := s.cache.Get(key); ok {
		return v.([]byte), nil
	}
	data, err := s.next.Get(c)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, data, gocache.DefaultExpiration)
	return data, nil
}

// Put implements Store.
func (s *MemoryStore) Put(c tile.Coords, data []byte) error {
	if err := s.next.Put(c, data); err != nil {
		return err
	}
	s.cache.Set(c.String(), data, gocache.DefaultExpiration)
	return nil
}

// Len returns the number of tiles held in memory.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
