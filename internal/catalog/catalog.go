// Package catalog is the storefront's consumer-side view of the external read-only catalog.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
)

// Client is implemented by *commerce.Client.
type Client interface {
	GetUnit(ctx context.Context, unitID string) (*commerce.Unit, error)
	GetBundle(ctx context.Context, bundleID string) (*commerce.Bundle, error)
	ActivePromotions(ctx context.Context) ([]commerce.Promotion, error)
}

var _ Client = (*commerce.Client)(nil)

// Cached wraps a Client and memoizes the promotion list for ttl. Units and bundles are
// always read through.
type Cached struct {
	Client
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	until time.Time
	list  []commerce.Promotion
}

func NewCached(client Client, ttl time.Duration) *Cached {
	return &Cached{Client: client, ttl: ttl, now: time.Now}
}

func (c *Cached) ActivePromotions(ctx context.Context) ([]commerce.Promotion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.list != nil && c.now().Before(c.until) {
		return c.list, nil
	}
	promos, err := c.Client.ActivePromotions(ctx)
	if err != nil {
		return nil, err
	}
	if promos == nil {
		promos = []commerce.Promotion{}
	}
	c.list = promos
	c.until = c.now().Add(c.ttl)
	return promos, nil
}
