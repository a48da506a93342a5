package exchange

import (
	"context"
	"sync"
	"time"

	"futures_bot/pkg/logger"
)

// ContractCache держит список контрактов ttl от момента загрузки.
// Часы передаются снаружи, чтобы истечение можно было проверить в тестах.
type ContractCache struct {
	ttl  time.Duration
	now  func() time.Time
	load func(ctx context.Context) ([]Contract, error)

	mu       sync.Mutex
	items    []Contract
	bySymbol map[string]Contract
	loadedAt time.Time
}

func NewContractCache(ttl time.Duration, now func() time.Time, load func(ctx context.Context) ([]Contract, error)) *ContractCache {
	if now == nil {
		now = time.Now
	}
	return &ContractCache{ttl: ttl, now: now, load: load}
}

// All отдаёт кэш, пока он свежий, иначе перечитывает. Если биржа не
// ответила, а старый список есть — отдаём его.
func (c *ContractCache) All(ctx context.Context) ([]Contract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.items != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return c.items, nil
	}

	items, err := c.load(ctx)
	if err != nil {
		if c.items != nil {
			logger.Warn("[SCAN] contracts refresh failed, using stale list: %v", err)
			return c.items, nil
		}
		return nil, err
	}
	if items == nil {
		items = []Contract{}
	}

	c.items = items
	c.bySymbol = make(map[string]Contract, len(items))
	for _, it := range items {
		c.bySymbol[it.Symbol] = it
	}
	c.loadedAt = c.now()
	return c.items, nil
}

// Get — контракт по символу.
func (c *ContractCache) Get(ctx context.Context, symbol string) (Contract, bool, error) {
	if _, err := c.All(ctx); err != nil {
		return Contract{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ct, ok := c.bySymbol[symbol]
	return ct, ok, nil
}

func (c *ContractCache) Invalidate() {
	c.mu.Lock()
	c.items = nil
	c.bySymbol = nil
	c.mu.Unlock()
}
