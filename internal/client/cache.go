package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderFetcher loads one order
type OrderFetcher interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
}

// Invalidator reacts to live channel events
type Invalidator interface {
	// InvalidateOrder marks one order stale
	InvalidateOrder(ctx context.Context, id uuid.UUID)
	// InvalidateOrderList marks any cached order listing stale
	InvalidateOrderList(ctx context.Context)
	// InvalidateAll marks everything stale, used after a reconnect
	InvalidateAll(ctx context.Context)
}

type cacheEntry struct {
	order    *Order
	stale    bool
	fetching bool
	// again is set when an invalidation lands while a fetch is in flight
	again bool
}

// OrderCache holds the orders a viewer watches. An invalidation triggers
// one refetch per order; invalidations arriving during that fetch
// collapse into a single follow-up fetch.
type OrderCache struct {
	fetcher OrderFetcher
	logger  *zap.Logger

	mu          sync.Mutex
	entries     map[uuid.UUID]*cacheEntry
	listStale   bool
	onUpdate    []func(Order)
	onListStale []func()

	wg sync.WaitGroup
}

// NewOrderCache creates an empty cache
func NewOrderCache(fetcher OrderFetcher, logger *zap.Logger) *OrderCache {
	return &OrderCache{
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[uuid.UUID]*cacheEntry),
	}
}

// OnUpdate registers fn to run after every successful refetch
func (c *OrderCache) OnUpdate(fn func(Order)) {
	c.mu.Lock()
	c.onUpdate = append(c.onUpdate, fn)
	c.mu.Unlock()
}

// OnListStale registers fn to run when the order list is invalidated
func (c *OrderCache) OnListStale(fn func()) {
	c.mu.Lock()
	c.onListStale = append(c.onListStale, fn)
	c.mu.Unlock()
}

// Watch fetches the order and keeps it fresh from then on
func (c *OrderCache) Watch(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := c.fetcher.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		if !e.fetching {
			e.order, e.stale = o, false
		}
	} else {
		c.entries[id] = &cacheEntry{order: o}
	}
	c.mu.Unlock()

	cp := *o
	return &cp, nil
}

// Unwatch stops tracking the order
func (c *OrderCache) Unwatch(id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Get returns a copy of the cached order and whether it is fresh
func (c *OrderCache) Get(id uuid.UUID) (Order, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.order == nil {
		return Order{}, false, false
	}
	return *e.order, !e.stale, true
}

// Watched lists the tracked order ids
func (c *OrderCache) Watched() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

// ListStale reports whether an order listing needs reloading. Reading it
// clears the flag.
func (c *OrderCache) ListStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	stale := c.listStale
	c.listStale = false
	return stale
}

// InvalidateOrder implements Invalidator. Orders that are not watched are
// ignored.
func (c *OrderCache) InvalidateOrder(ctx context.Context, id uuid.UUID) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.stale = true
	if e.fetching {
		e.again = true
		c.mu.Unlock()
		return
	}
	e.fetching = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.refetch(context.WithoutCancel(ctx), id)
}

// InvalidateOrderList implements Invalidator
func (c *OrderCache) InvalidateOrderList(context.Context) {
	c.mu.Lock()
	c.listStale = true
	hooks := append([]func(){}, c.onListStale...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// InvalidateAll implements Invalidator
func (c *OrderCache) InvalidateAll(ctx context.Context) {
	c.InvalidateOrderList(ctx)
	for _, id := range c.Watched() {
		c.InvalidateOrder(ctx, id)
	}
}

// Wait blocks until no refetch is in flight
func (c *OrderCache) Wait() {
	c.wg.Wait()
}

func (c *OrderCache) refetch(ctx context.Context, id uuid.UUID) {
	defer c.wg.Done()

	for {
		o, err := c.fetcher.GetOrder(ctx, id)

		c.mu.Lock()
		e, ok := c.entries[id]
		if !ok {
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.logger.Warn("order refetch failed", zap.String("order_id", id.String()), zap.Error(err))
		} else if !e.again {
			e.order, e.stale = o, false
		}
		if e.again {
			e.again = false
			c.mu.Unlock()
			continue
		}
		e.fetching = false
		hooks := append([]func(Order){}, c.onUpdate...)
		c.mu.Unlock()

		if err == nil {
			for _, fn := range hooks {
				fn(*o)
			}
		}
		return
	}
}

var _ Invalidator = (*OrderCache)(nil)
