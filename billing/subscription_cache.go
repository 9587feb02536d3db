package billing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const subscriptionCacheKeyPrefix = "go-callback-relay::subscription::v1"

// CachedSubscriptions keeps short-lived subscription snapshots so a burst of
// invoice events for one subscription hits the provider once.
type CachedSubscriptions struct {
	base  SubscriptionReader
	cache repositorycache.CacheService
}

func NewCachedSubscriptions(base SubscriptionReader, cacheService repositorycache.CacheService) (*CachedSubscriptions, error) {
	if base == nil {
		return nil, fmt.Errorf("billing: base subscription reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("billing: subscription cache service is required")
	}
	return &CachedSubscriptions{base: base, cache: cacheService}, nil
}

func SubscriptionCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("billing: subscription id is required")
	}
	return subscriptionCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (c *CachedSubscriptions) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	if c == nil || c.base == nil || c.cache == nil {
		return Subscription{}, fmt.Errorf("billing: cached subscriptions are not configured")
	}
	key, err := SubscriptionCacheKey(id)
	if err != nil {
		return Subscription{}, err
	}
	id = strings.TrimSpace(id)
	return repositorycache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (Subscription, error) {
		return c.base.GetSubscription(ctx, id)
	})
}

// Invalidate drops the snapshot for id. Subscription lifecycle events call
// it before applying their own update.
func (c *CachedSubscriptions) Invalidate(ctx context.Context, id string) error {
	if c == nil || c.cache == nil {
		return nil
	}
	key, err := SubscriptionCacheKey(id)
	if err != nil {
		return nil
	}
	return c.cache.Delete(ctx, key)
}

var _ SubscriptionReader = (*CachedSubscriptions)(nil)
