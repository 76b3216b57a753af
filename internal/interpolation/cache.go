package interpolation

import (
	"context"
	"sync"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

type cacheKey struct {
	vehicleID string
	intervalS float64
}

// Cache keeps resampled playback sequences per vehicle and interval.
// Callers must Invalidate a vehicle whenever its points change.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*models.VehicleData
	order   []cacheKey
	maxSize int
}

// NewCache creates a cache holding at most maxSize sequences
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &Cache{
		entries: make(map[cacheKey]*models.VehicleData),
		maxSize: maxSize,
	}
}

// Resample returns the cached sequence for vd and opts or computes it
func (c *Cache) Resample(ctx context.Context, vd *models.VehicleData, opts Options) (*models.VehicleData, error) {
	key := cacheKey{vehicleID: vd.VehicleID, intervalS: opts.IntervalS}

	c.mu.Lock()
	if hit, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return hit, nil
	}
	c.mu.Unlock()

	resampled, err := InterpolatePathGlobalResampling(ctx, vd, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hit, ok := c.entries[key]; ok {
		return hit, nil
	}
	if len(c.order) >= c.maxSize {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[key] = resampled
	c.order = append(c.order, key)
	return resampled, nil
}

// Invalidate drops every cached sequence of vehicleID
func (c *Cache) Invalidate(vehicleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.order[:0]
	for _, key := range c.order {
		if key.vehicleID == vehicleID {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

// Len returns the number of cached sequences
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
