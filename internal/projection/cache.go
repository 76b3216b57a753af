package projection

import (
	"sync"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
	"github.com/jengzang/vehicle-forensics-go/internal/spatial"
)

type cacheEntry struct {
	kind       Kind
	zone       int
	south      bool
	center     spatial.Point
	projection *Projection
}

// Cache reuses projections between vehicles recorded in the same area.
// AEQD entries match any center within the tolerance; UTM entries match by
// zone and hemisphere. The oldest entry is evicted once maxSize is reached.
// A Cache is safe for concurrent use; builds run under the lock so two
// workers never insert the same key.
type Cache struct {
	mu         sync.Mutex
	entries    []cacheEntry
	maxSize    int
	toleranceM float64

	hits, misses int
}

// NewCache creates a projection cache
func NewCache(maxSize int, toleranceKm float64) *Cache {
	if maxSize <= 0 {
		maxSize = 32
	}
	if toleranceKm < 0 {
		toleranceKm = 0
	}
	return &Cache{
		maxSize:    maxSize,
		toleranceM: toleranceKm * 1000,
	}
}

// SelectBestProjection behaves like the package-level function but reuses
// cached projections
func (c *Cache) SelectBestProjection(points []*models.GPSPoint, areaThresholdKm float64) (*Projection, error) {
	return selectBest(points, areaThresholdKm, c)
}

// GetOrCreate returns a cached projection matching kind and center or stores
// the result of build
func (c *Cache) GetOrCreate(kind Kind, center spatial.Point, build func() (*Projection, error)) (*Projection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.lookup(kind, center); ok {
		c.hits++
		return p, nil
	}
	c.misses++

	p, err := build()
	if err != nil {
		return nil, err
	}

	if len(c.entries) >= c.maxSize {
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, cacheEntry{
		kind:       kind,
		zone:       p.Zone,
		south:      p.South,
		center:     center,
		projection: p,
	})
	return p, nil
}

// Get returns a cached projection without building one
func (c *Cache) Get(kind Kind, center spatial.Point) (*Projection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(kind, center)
}

// Len returns the number of cached projections
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache hits and misses
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

func (c *Cache) lookup(kind Kind, center spatial.Point) (*Projection, bool) {
	for _, e := range c.entries {
		if e.kind != kind {
			continue
		}
		if kind == KindUTM {
			if e.zone == UTMZone(center.Lon) && e.south == (center.Lat < 0) {
				return e.projection, true
			}
			continue
		}
		if spatial.HaversineDistance(e.center.Lat, e.center.Lon, center.Lat, center.Lon) <= c.toleranceM {
			return e.projection, true
		}
	}
	return nil, false
}
