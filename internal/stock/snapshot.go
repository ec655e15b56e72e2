package stock

import (
	"context"
	"strconv"
	"time"

	"github.com/tillpoint/tillpoint-backend/pkg/redis"
)

// untracked SKUs are cached with a sentinel so a miss and "no ceiling" stay
// distinguishable.
const untrackedSentinel = -1

// SnapshotCache holds short-lived advisory copies of ledger quantities so
// cart-side checks do not hammer the database. It is never authoritative;
// every mutation of the ledger invalidates the SKU's entry. All methods are
// nil-safe and degrade to a miss on any cache error.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache builds a snapshot cache over the provided redis client.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached availability for a SKU and whether it was present.
func (c *SnapshotCache) Get(ctx context.Context, sku string) (Availability, bool) {
	if c == nil {
		return Availability{}, false
	}
	raw, err := c.client.Get(ctx, c.client.SnapshotKey(sku))
	if err != nil {
		return Availability{}, false
	}
	qty, err := strconv.Atoi(raw)
	if err != nil {
		return Availability{}, false
	}
	if qty == untrackedSentinel {
		return Availability{Tracked: false}, true
	}
	return Availability{Quantity: qty, Tracked: true}, true
}

// Put stores the availability snapshot for a SKU.
func (c *SnapshotCache) Put(ctx context.Context, sku string, av Availability) {
	if c == nil {
		return
	}
	qty := av.Quantity
	if !av.Tracked {
		qty = untrackedSentinel
	}
	_ = c.client.Set(ctx, c.client.SnapshotKey(sku), strconv.Itoa(qty), c.ttl)
}

// Invalidate drops the snapshot for a SKU after a ledger mutation.
func (c *SnapshotCache) Invalidate(ctx context.Context, sku string) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, c.client.SnapshotKey(sku))
}
