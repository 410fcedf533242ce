// Package cache owns the single process-wide flight-board snapshot and the
// refresh protocol that keeps it current.
package cache

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sh3rwan/erbil-api/internal/metrics"
	"github.com/sh3rwan/erbil-api/pkg/models"
)

// DefaultTTL is how long a successful fetch stays fresh.
const DefaultTTL = 15 * time.Minute

// FetchFunc retrieves the current flight board from the upstream source.
type FetchFunc func(ctx context.Context) ([]models.FlightRecord, error)

// Snapshot is the complete, atomically-replaced cache state at a point in
// time. Records are sorted by ScheduledAt ascending. FetchedAt is the zero
// time until the first successful fetch.
type Snapshot struct {
	Records   []models.FlightRecord
	FetchedAt time.Time
	Freshness models.Freshness
}

// Filter returns the records of one kind, preserving sort order.
func (s Snapshot) Filter(kind models.Kind) []models.FlightRecord {
	out := make([]models.FlightRecord, 0, len(s.Records))
	for _, r := range s.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// clone copies the snapshot so callers never observe later mutations.
func (s Snapshot) clone() Snapshot {
	cp := s
	cp.Records = make([]models.FlightRecord, len(s.Records))
	copy(cp.Records, s.Records)
	return cp
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

// CacheOption configures the Cache.
type CacheOption func(*Cache)

// WithTTL overrides the snapshot lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the time source (useful for expiry tests).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// Cache holds the flight-board snapshot behind a refresh-on-read policy.
// Overlapping refresh attempts are coalesced: concurrent callers await the
// same in-flight fetch and observe its single committed result.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration
	now   func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	group singleflight.Group
}

// New creates a cache around the given fetcher. The snapshot starts empty
// and stale, so the first read triggers a fetch.
func New(fetch FetchFunc, opts ...CacheOption) *Cache {
	c := &Cache{
		fetch: fetch,
		ttl:   DefaultTTL,
		now:   time.Now,
		snap:  Snapshot{Freshness: models.Stale},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the snapshot as-is, without triggering a refresh.
func (c *Cache) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.clone()
}

// Get returns the current snapshot, refreshing first when it is stale,
// expired, never fetched, or when force is set. An unforced refresh failure
// degrades to serving the retained stale records; the error is surfaced only
// when forced or when no fetch has ever succeeded.
func (c *Cache) Get(ctx context.Context, force bool) (Snapshot, error) {
	if !force {
		cur := c.Current()
		if cur.Freshness == models.Fresh && !cur.FetchedAt.IsZero() && !c.expired(cur) {
			metrics.CacheHits.Inc()
			return cur, nil
		}
	}

	snap, err := c.refresh(ctx)
	if err != nil {
		if !force && len(snap.Records) > 0 {
			// Degrade gracefully: old data beats no data.
			metrics.CacheStaleServes.Inc()
			return snap, nil
		}
		return snap, err
	}
	return snap, nil
}

// ForceRefresh unconditionally runs the refresh protocol and reports its
// outcome. Used by the manual-refresh endpoint and the scheduler.
func (c *Cache) ForceRefresh(ctx context.Context) (Snapshot, error) {
	return c.refresh(ctx)
}

func (c *Cache) expired(s Snapshot) bool {
	return c.now().Sub(s.FetchedAt) > c.ttl
}

type refreshResult struct {
	snap Snapshot
	err  error
}

// refresh runs fetch → sort → commit-or-degrade. Coalesced through a
// singleflight group so at most one fetch is ever in flight; the commit
// replaces the snapshot as one unit, so readers never see a partial update.
func (c *Cache) refresh(ctx context.Context) (Snapshot, error) {
	v, _, _ := c.group.Do("refresh", func() (interface{}, error) {
		metrics.CacheRefreshes.Inc()

		records, err := c.fetch(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()

		if err != nil {
			// Failed fetch never touches the records.
			c.snap.Freshness = models.Stale
			return refreshResult{snap: c.snap.clone(), err: err}, nil
		}

		if len(records) == 0 {
			// A successful fetch of an empty set. Either no flights are
			// scheduled or the source page shape changed under us; only an
			// operator can tell which.
			log.Println("Warning: fetch succeeded but zero rows were extracted")
		}

		sort.SliceStable(records, func(i, j int) bool {
			return records[i].ScheduledAt.Before(records[j].ScheduledAt)
		})
		c.snap = Snapshot{
			Records:   records,
			FetchedAt: c.now(),
			Freshness: models.Fresh,
		}
		metrics.CacheRecords.Set(float64(len(records)))
		return refreshResult{snap: c.snap.clone()}, nil
	})

	res := v.(refreshResult)
	return res.snap, res.err
}
