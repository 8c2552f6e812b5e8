package datasource

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultRenderer is the tile style used when none is configured.
const DefaultRenderer = "mapnik"

// Renderers maps the named tile styles to their tile server base URLs.
var Renderers = map[string]string{
	"mapnik":     "http://tile.openstreetmap.org",
	"osmarender": "http://tah.openstreetmap.org/Tiles/tile/",
	"cyclemap":   "http://andy.sandbox.cloudmade.com/tiles/cycle/",
}

// RendererURL returns the base URL of a named renderer.
func RendererURL(name string) (string, error) {
	u, ok := Renderers[name]
	if !ok {
		return "", fmt.Errorf("unknown renderer %q (available: %s)", name, strings.Join(RendererNames(), ", "))
	}
	return u, nil
}

// RendererNames returns the renderer names in sorted order.
func RendererNames() []string {
	names := make([]string, 0, len(Renderers))
	for name := range Renderers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
