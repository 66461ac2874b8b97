// Package cache provides in-memory caching of trust neighborhoods using
// Ristretto. Propagation is the expensive step of every read-side query;
// the engine itself stays cache-free, so reuse lives here with the
// caller, keyed by everything that shapes a traversal.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/nintynick/transitive-trust/internal/trust"
)

const (
	// DefaultMaxEntries bounds the number of cached neighborhoods.
	DefaultMaxEntries = 10_000

	// DefaultTTL keeps entries short-lived; graph mutations also clear
	// the cache outright, so staleness is doubly bounded.
	DefaultTTL = 30 * time.Second
)

// NeighborhoodCache caches computed neighborhoods per
// (viewer, domain, propagation options).
type NeighborhoodCache struct {
	cache *ristretto.Cache[string, trust.Neighborhood]
	ttl   time.Duration
}

// New builds a neighborhood cache. Zero arguments select the defaults.
func New(maxEntries int64, ttl time.Duration) (*NeighborhoodCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, trust.Neighborhood]{
		NumCounters: maxEntries * 10, // keys tracked for frequency
		MaxCost:     maxEntries,      // cost 1 per neighborhood
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &NeighborhoodCache{cache: cache, ttl: ttl}, nil
}

// Get returns a cached neighborhood for the query, if present.
func (c *NeighborhoodCache) Get(viewer, domain string, opts trust.Options) (trust.Neighborhood, bool) {
	return c.cache.Get(key(viewer, domain, opts))
}

// Put stores a computed neighborhood under the query's key.
func (c *NeighborhoodCache) Put(viewer, domain string, opts trust.Options, nb trust.Neighborhood) {
	c.cache.SetWithTTL(key(viewer, domain, opts), nb, 1, c.ttl)
}

// Invalidate drops every cached neighborhood. Graph mutations call this:
// a changed edge can reshape any viewer's neighborhood, and at this
// scale a full clear is the cheap correct answer.
func (c *NeighborhoodCache) Invalidate() {
	c.cache.Clear()
}

// Wait blocks until buffered writes are applied. Tests and benchmarks
// need it; request handlers do not.
func (c *NeighborhoodCache) Wait() {
	c.cache.Wait()
}

// Close releases the cache's internal goroutines.
func (c *NeighborhoodCache) Close() {
	c.cache.Close()
}

// key fingerprints a query by viewer, domain, and the option fields that
// shape propagation. Scoring-only options (AsOf, boosts, half-life) are
// deliberately excluded: they do not change the neighborhood.
func key(viewer, domain string, opts trust.Options) string {
	return fmt.Sprintf("%s|%s|%d|%s|%g|%s|%g|%g",
		viewer, domain,
		opts.MaxHops, opts.DecayFunction, opts.DecayParameter,
		opts.Aggregation, opts.MinTrustThreshold, opts.DomainDistanceFactor)
}
