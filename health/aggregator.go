package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskroute/taskroute/backend"
	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/internal/cache"
	"github.com/taskroute/taskroute/internal/metrics"
)

// ServiceStatus 是单个依赖服务的三态健康状态。
type ServiceStatus string

const (
	StatusHealthy       ServiceStatus = "healthy"
	StatusUnhealthy     ServiceStatus = "unhealthy"
	StatusNotConfigured ServiceStatus = "not_configured"
)

// 整体状态只有两档：未配置的组件不参与降级判定。
const (
	OverallHealthy  = "healthy"
	OverallDegraded = "degraded"
)

// Snapshot 是一次健康检查的完整结果。
type Snapshot struct {
	Status              string                   `json:"status"`
	Timestamp           time.Time                `json:"timestamp"`
	Version             string                   `json:"version"`
	Services            map[string]ServiceStatus `json:"services"`
	CapabilityProviders map[string]bool          `json:"capability_providers"`
}

// Config 控制健康聚合行为。
type Config struct {
	Version      string        // 上报在快照中的服务版本
	ProbeTimeout time.Duration // 单个探测的超时上限
}

// Aggregator 并行探测各依赖组件并汇总健康快照。
type Aggregator struct {
	cache        *cache.Manager
	gateway      backend.Gateway
	registry     *capability.Registry
	clients      *capability.ClientFactory
	version      string
	probeTimeout time.Duration
	metrics      *metrics.Collector
	logger       *zap.Logger
}

// NewAggregator 创建健康聚合器。
// cacheManager 为 nil 表示缓存未配置，collector 为 nil 时不计指标。
func NewAggregator(cfg Config, cacheManager *cache.Manager, gateway backend.Gateway, registry *capability.Registry, clients *capability.ClientFactory, collector *metrics.Collector, logger *zap.Logger) *Aggregator {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cache:        cacheManager,
		gateway:      gateway,
		registry:     registry,
		clients:      clients,
		version:      cfg.Version,
		probeTimeout: cfg.ProbeTimeout,
		metrics:      collector,
		logger:       logger,
	}
}

// Check 实时探测所有依赖并返回快照，结果不做任何缓存。
// 所有探测并行执行，单个探测失败归入状态值，从不中止其余探测。
func (a *Aggregator) Check(ctx context.Context) Snapshot {
	providers := a.registry.List()

	var (
		cacheStatus   ServiceStatus
		backendStatus ServiceStatus
	)
	reachable := make([]bool, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cacheStatus = a.probeCache(gctx)
		return nil
	})
	g.Go(func() error {
		backendStatus = a.probeBackend(gctx)
		return nil
	})
	for i, p := range providers {
		g.Go(func() error {
			reachable[i] = a.probeProvider(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	snap := Snapshot{
		Timestamp: time.Now().UTC(),
		Version:   a.version,
		Services: map[string]ServiceStatus{
			"cache":   cacheStatus,
			"backend": backendStatus,
		},
		CapabilityProviders: make(map[string]bool, len(providers)),
	}
	for i, p := range providers {
		snap.CapabilityProviders[p.Name] = reachable[i]
	}

	// 提供者可达性不参与降级判定
	snap.Status = OverallHealthy
	if cacheStatus == StatusUnhealthy || backendStatus == StatusUnhealthy {
		snap.Status = OverallDegraded
	}

	if a.metrics != nil {
		a.metrics.RecordHealthStatus(snap.Status == OverallHealthy)
	}
	return snap
}

// probeCache 探测缓存连通性，未配置时返回 not_configured。
func (a *Aggregator) probeCache(ctx context.Context) ServiceStatus {
	if a.cache == nil {
		return StatusNotConfigured
	}
	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	if err := a.cache.Ping(probeCtx); err != nil {
		a.logger.Warn("cache health probe failed", zap.Error(err))
		return StatusUnhealthy
	}
	return StatusHealthy
}

// probeBackend 探测后端可达性，未配置时返回 not_configured。
func (a *Aggregator) probeBackend(ctx context.Context) ServiceStatus {
	if !a.gateway.Available() {
		return StatusNotConfigured
	}
	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	if err := a.gateway.Probe(probeCtx); err != nil {
		a.logger.Warn("backend health probe failed", zap.Error(err))
		return StatusUnhealthy
	}
	return StatusHealthy
}

// probeProvider 探测单个提供者的健康端点。
func (a *Aggregator) probeProvider(ctx context.Context, p capability.Provider) bool {
	probeCtx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	return a.clients.ClientFor(p).HealthProbe(probeCtx)
}
