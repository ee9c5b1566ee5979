////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package profiles

import (
	"context"
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
	"go.uber.org/ratelimit"

	"gitlab.com/elixxir/convsync/api"
	"gitlab.com/elixxir/convsync/metrics"
)

// Cache resolves participant identifiers to profiles. Lookups hit the
// in-process tier first, then the shared tier, then the service.
type Cache struct {
	params  Params
	memory  map[string]Entry
	shared  *SharedStore
	limiter ratelimit.Limiter
	mux     sync.RWMutex
}

// NewCache builds a Cache. The shared tier is optional.
func NewCache(shared *SharedStore, params Params) *Cache {
	limiter := ratelimit.NewUnlimited()
	if params.FetchRate > 0 {
		limiter = ratelimit.New(params.FetchRate)
	}
	return &Cache{
		params:  params,
		memory:  make(map[string]Entry),
		shared:  shared,
		limiter: limiter,
	}
}

// Get returns the cached profile for an identifier, with or without a device
// fragment. Shared tier hits are promoted to the in-process tier.
func (c *Cache) Get(id string) (Entry, bool) {
	canonical := Canonicalize(id)

	c.mux.RLock()
	e, exists := c.memory[canonical]
	c.mux.RUnlock()
	if exists {
		metrics.ProfileLookups.WithLabelValues(metrics.TierMemory).Inc()
		return e, true
	}

	if c.shared == nil {
		return Entry{}, false
	}
	if e, exists = c.shared.Get(canonical); !exists {
		return Entry{}, false
	}
	metrics.ProfileLookups.WithLabelValues(metrics.TierShared).Inc()

	c.mux.Lock()
	c.memory[canonical] = e
	c.mux.Unlock()
	return e, true
}

// Entries returns every profile in the in-process tier, ordered by ID.
func (c *Cache) Entries() []Entry {
	c.mux.RLock()
	defer c.mux.RUnlock()
	list := make([]Entry, 0, len(c.memory))
	for _, e := range c.memory {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Len returns the number of profiles in the in-process tier.
func (c *Cache) Len() int {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return len(c.memory)
}

// EnsureProfiles makes sure every identifier is resolved, fetching the ones
// neither tier holds in batches. A failed batch is logged and does not stop
// the others. The returned map is keyed by the identifiers exactly as passed;
// identifiers the service does not know are absent.
func (c *Cache) EnsureProfiles(ctx context.Context, ids []string,
	client api.ProfileAPI) map[string]Entry {

	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		canonical := Canonicalize(id)
		if _, dup := seen[canonical]; dup || canonical == "" {
			continue
		}
		seen[canonical] = struct{}{}
		if _, cached := c.Get(canonical); !cached {
			missing = append(missing, canonical)
		}
	}

	if len(missing) > 0 {
		c.fetch(ctx, missing, client)
	}

	result := make(map[string]Entry, len(ids))
	c.mux.RLock()
	for _, id := range ids {
		if e, exists := c.memory[Canonicalize(id)]; exists {
			result[id] = e
		}
	}
	c.mux.RUnlock()
	return result
}

// fetch resolves canonical identifiers from the service and stores the
// results in both tiers.
func (c *Cache) fetch(ctx context.Context, ids []string, client api.ProfileAPI) {
	size := c.params.batchSize()

	var wg sync.WaitGroup
	var fetchedMux sync.Mutex
	fetched := make([]Entry, 0, len(ids))

	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		wg.Add(1)
		go func(batch []string) {
			defer wg.Done()
			c.limiter.Take()
			if ctx.Err() != nil {
				return
			}

			profiles, err := client.GetProfiles(ctx, batch)
			if err != nil {
				if api.IsCanceled(err) {
					jww.DEBUG.Printf("[Profiles] Batch of %d canceled",
						len(batch))
				} else {
					jww.WARN.Printf("[Profiles] Failed to fetch batch of %d "+
						"profiles: %+v", len(batch), err)
				}
				return
			}

			now := netTime.Now()
			entries := make([]Entry, 0, len(profiles))
			for _, p := range profiles {
				entries = append(entries, newEntry(p, now))
			}

			c.mux.Lock()
			for _, e := range entries {
				c.memory[e.ID] = e
			}
			c.mux.Unlock()

			fetchedMux.Lock()
			fetched = append(fetched, entries...)
			fetchedMux.Unlock()
		}(batch)
	}
	wg.Wait()

	metrics.ProfileLookups.WithLabelValues(metrics.TierFetched).
		Add(float64(len(fetched)))
	if n := len(ids) - len(fetched); n > 0 {
		metrics.ProfileLookups.WithLabelValues(metrics.TierMissing).
			Add(float64(n))
	}
	jww.DEBUG.Printf("[Profiles] Fetched %d of %d profiles", len(fetched),
		len(ids))

	if c.shared != nil {
		if err := c.shared.Put(fetched...); err != nil {
			jww.WARN.Printf("[Profiles] Failed to write shared tier: %+v", err)
		}
	}
}
