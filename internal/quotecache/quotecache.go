// Package quotecache implements a per-advisor market quote cache: a
// mapping (venue_id, product_symbol) -> MarketQuote held privately by one
// advisor, with no cross-advisor sharing.
package quotecache

import (
	"sync"

	"github.com/LaoKpa/tai/pkg/types"
)

// Cache is a per-advisor cache of the latest known MarketQuote per
// (venue, symbol). A *Cache is safe for concurrent use, though in practice
// only the owning advisor's goroutine ever touches it.
type Cache struct {
	mu     sync.RWMutex
	quotes map[types.Product]types.MarketQuote
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{quotes: make(map[types.Product]types.MarketQuote)}
}

// For returns the cached quote for (venue, symbol), if any.
func (c *Cache) For(venue, symbol string) (types.MarketQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[types.Product{VenueID: venue, Symbol: symbol}]
	return q, ok
}

// Put stores quote as the latest known state for (venue, symbol).
func (c *Cache) Put(venue, symbol string, quote types.MarketQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[types.Product{VenueID: venue, Symbol: symbol}] = quote
}
