package capability

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/taskroute/taskroute/internal/cache"
	"github.com/taskroute/taskroute/internal/metrics"
)

// listingCacheType 是能力列表缓存在指标中的 cache_type 标签。
const listingCacheType = "capabilities"

// CachedClient 在 Client 之上缓存能力列表。
// 缓存未命中或缓存故障都穿透到实时调用：缓存故障只损失加速效果，
// 永远不会使操作失败。Invoke 与 HealthProbe 直接透传。
type CachedClient struct {
	inner   Client
	cache   *cache.Manager
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewCachedClient 包装一个 Client，为其能力列表加缓存。
func NewCachedClient(inner Client, cacheManager *cache.Manager, ttl time.Duration, collector *metrics.Collector, logger *zap.Logger) *CachedClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClient{
		inner:   inner,
		cache:   cacheManager,
		ttl:     ttl,
		metrics: collector,
		logger:  logger,
	}
}

// cacheKey 形如 capabilities:<provider>。
func (c *CachedClient) cacheKey() string {
	return "capabilities:" + c.inner.Provider().Name
}

// ListCapabilities 先查缓存，未命中或缓存出错时调用内层客户端，
// 成功结果写回缓存。
func (c *CachedClient) ListCapabilities(ctx context.Context) ([]Descriptor, error) {
	key := c.cacheKey()

	var cached []Descriptor
	err := c.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		c.recordHit()
		return cached, nil
	case cache.IsCacheMiss(err):
		c.recordMiss()
	default:
		c.recordMiss()
		c.logger.Warn("capability listing cache read failed",
			zap.String("provider", c.inner.Provider().Name),
			zap.Error(err))
	}

	descriptors, err := c.inner.ListCapabilities(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetJSON(ctx, key, descriptors, c.ttl); err != nil {
		c.logger.Warn("capability listing cache write failed",
			zap.String("provider", c.inner.Provider().Name),
			zap.Error(err))
	}
	return descriptors, nil
}

// Invoke 直接透传到内层客户端。
func (c *CachedClient) Invoke(ctx context.Context, capability string, args map[string]any) (json.RawMessage, error) {
	return c.inner.Invoke(ctx, capability, args)
}

// HealthProbe 直接透传到内层客户端。
func (c *CachedClient) HealthProbe(ctx context.Context) bool {
	return c.inner.HealthProbe(ctx)
}

// Provider 返回内层客户端的提供者声明。
func (c *CachedClient) Provider() Provider {
	return c.inner.Provider()
}

func (c *CachedClient) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(listingCacheType)
	}
}

func (c *CachedClient) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(listingCacheType)
	}
}
