package engine

import (
	"sync"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Collector is an append-only, lock-guarded result set shared by
// concurrently running sources.
type Collector struct {
	mu    sync.Mutex
	items []*types.NewsItem
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Append adds items.
func (c *Collector) Append(items ...*types.NewsItem) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

// Items returns a copy of the collected items.
func (c *Collector) Items() []*types.NewsItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.NewsItem, len(c.items))
	copy(out, c.items)
	return out
}
