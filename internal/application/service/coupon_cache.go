package service

import (
	"sync"
	"time"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
)

type couponCacheEntry struct {
	coupon    *entity.Coupon
	expiresAt time.Time
}

// couponCache keeps coupon rows by canonical code for a short TTL. A nil
// coupon is cached too, so unknown codes do not hit the database repeatedly.
type couponCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	store map[string]couponCacheEntry
}

func newCouponCache(ttl time.Duration) *couponCache {
	return &couponCache{
		ttl:   ttl,
		store: make(map[string]couponCacheEntry),
	}
}

func (c *couponCache) get(code string, now time.Time) (*entity.Coupon, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.store[code]
	if !ok || !now.Before(entry.expiresAt) {
		return nil, false
	}
	if entry.coupon == nil {
		return nil, true
	}
	cp := *entry.coupon
	return &cp, true
}

func (c *couponCache) set(code string, coupon *entity.Coupon, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	var stored *entity.Coupon
	if coupon != nil {
		cp := *coupon
		stored = &cp
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[code] = couponCacheEntry{coupon: stored, expiresAt: now.Add(c.ttl)}
}

func (c *couponCache) invalidate(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, code)
}
