// Package cache holds the web layer's per-country copy of the prayed list.
//
// The store is authoritative; PrayedCache is only a read-through copy that
// handlers refresh explicitly after every mutation that can change it. The
// engine itself never touches the cache.
package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// AllCountries is the key under which the unfiltered prayed list is cached.
const AllCountries = ""

// Loader fetches the prayed list for a country ("" for all).
// services.PrayerService.ListPrayed satisfies it.
type Loader func(ctx context.Context, country string) ([]domain.Candidate, error)

// PrayedCache is safe for concurrent use.
//
// Every Refresh and InvalidateAll bumps the generation of the keys it
// touches; a load only stores its result if its key's generation is still
// the one it started with, so an older load finishing late cannot overwrite
// a newer one.
type PrayedCache struct {
	load Loader

	mu      sync.Mutex
	entries map[string][]domain.Candidate
	gens    map[string]uint64
}

// NewPrayedCache returns an empty cache backed by load.
func NewPrayedCache(load Loader) *PrayedCache {
	return &PrayedCache{
		load:    load,
		entries: make(map[string][]domain.Candidate),
		gens:    make(map[string]uint64),
	}
}

// Get returns the cached prayed list for country, loading it on a miss.
// Callers must not modify the returned slice.
func (c *PrayedCache) Get(ctx context.Context, country string) ([]domain.Candidate, error) {
	c.mu.Lock()
	items, ok := c.entries[country]
	c.mu.Unlock()
	if ok {
		return items, nil
	}
	return c.Refresh(ctx, country)
}

// Refresh reloads country from the store. The unfiltered entry is dropped
// too, since it contains country's rows. When a later Refresh of the same
// key has already stored its list, that newer list is returned instead.
func (c *PrayedCache) Refresh(ctx context.Context, country string) ([]domain.Candidate, error) {
	c.mu.Lock()
	gen := c.bump(country)
	if country != AllCountries {
		c.bump(AllCountries)
		delete(c.entries, AllCountries)
	}
	c.mu.Unlock()

	items, err := c.load(ctx, country)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	stored := c.gens[country] == gen
	if stored {
		c.entries[country] = items
	} else if newer, ok := c.entries[country]; ok {
		items = newer
	}
	c.mu.Unlock()

	log.Debug().Str("country", country).Int("prayed", len(items)).Bool("superseded", !stored).
		Msg("prayed cache refreshed")
	return items, nil
}

// InvalidateAll empties the cache; used after purge and reseed. Loads in
// flight when it is called do not repopulate it.
func (c *PrayedCache) InvalidateAll() {
	c.mu.Lock()
	for k := range c.gens {
		c.gens[k]++
	}
	c.entries = make(map[string][]domain.Candidate)
	c.mu.Unlock()
}

// bump advances the generation of key and returns it. c.mu must be held.
func (c *PrayedCache) bump(key string) uint64 {
	c.gens[key]++
	return c.gens[key]
}
