package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taskroute/taskroute/api/handlers"
	"github.com/taskroute/taskroute/backend"
	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/config"
	"github.com/taskroute/taskroute/health"
	"github.com/taskroute/taskroute/internal/cache"
	"github.com/taskroute/taskroute/internal/metrics"
	"github.com/taskroute/taskroute/internal/server"
	"github.com/taskroute/taskroute/internal/telemetry"
	"github.com/taskroute/taskroute/routing"
)

// =============================================================================
// 🖥️ 服务器
// =============================================================================

// Server TaskRoute 服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	// HTTP 服务器管理
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心组件
	metricsCollector *metrics.Collector
	cacheManager     *cache.Manager
	registry         *capability.Registry
	clients          *capability.ClientFactory
	dispatcher       *capability.Dispatcher
	gateway          backend.Gateway
	aggregator       *health.Aggregator
	router           *routing.Router

	// API 处理器
	taskHandler      *handlers.TaskHandler
	providersHandler *handlers.ProvidersHandler
	healthHandler    *handlers.HealthHandler

	// 限流器清理协程的取消函数
	rateLimiterCancel context.CancelFunc

	// 等待组
	wg sync.WaitGroup
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("Initializing TaskRoute server...")

	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("taskroute", s.logger)

	// 2. 初始化缓存（可选，失败不阻止启动）
	s.initCache()

	// 3. 加载提供者注册表
	if err := s.initRegistry(); err != nil {
		return fmt.Errorf("failed to load provider registry: %w", err)
	}

	// 4. 初始化核心组件
	s.initComponents()

	// 5. 初始化 API 处理器
	s.initHandlers()

	// 6. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 7. 启动指标服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("TaskRoute server started",
		zap.String("addr", s.cfg.Server.Addr()),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr()),
		zap.Int("providers", s.registry.Len()),
		zap.Bool("backend_configured", s.cfg.Backend.Configured()),
		zap.Bool("cache_enabled", s.cacheManager != nil),
	)

	return nil
}

// =============================================================================
// 🔧 组件初始化
// =============================================================================

// initCache 初始化 Redis 缓存管理器。
// 缓存是可选依赖：连接失败只降级能力列表缓存，不阻止服务启动。
func (s *Server) initCache() {
	if !s.cfg.Cache.Enabled {
		s.logger.Info("cache disabled, capability listings will not be cached")
		return
	}

	manager, err := cache.NewManager(cache.Config{
		Addr:                s.cfg.Cache.Addr,
		Password:            s.cfg.Cache.Password,
		DB:                  s.cfg.Cache.DB,
		DefaultTTL:          s.cfg.Cache.ListingTTL,
		PoolSize:            s.cfg.Cache.PoolSize,
		MinIdleConns:        s.cfg.Cache.MinIdleConns,
		HealthCheckInterval: 30 * time.Second,
	}, s.logger)
	if err != nil {
		s.logger.Warn("cache not available, continuing without listing cache", zap.Error(err))
		return
	}

	s.cacheManager = manager
}

// initRegistry 加载静态提供者注册表
func (s *Server) initRegistry() error {
	registry, err := capability.LoadProviders(s.cfg.Registry.ProvidersFile)
	if err != nil {
		return err
	}
	s.registry = registry

	if s.cfg.Registry.ProvidersFile == "" {
		s.logger.Info("no providers file configured, registry is empty")
	} else {
		s.logger.Info("provider registry loaded",
			zap.String("file", s.cfg.Registry.ProvidersFile),
			zap.Int("providers", registry.Len()),
			zap.Strings("names", registry.Names()),
		)
	}

	return nil
}

// initComponents 初始化能力分发和任务路由组件
func (s *Server) initComponents() {
	// 能力客户端工厂
	s.clients = capability.NewClientFactory(capability.ClientFactoryConfig{
		ConnectTimeout: s.cfg.Dispatch.ConnectTimeout,
		RequestTimeout: s.cfg.Dispatch.RequestTimeout,
		ListingTTL:     s.cfg.Cache.ListingTTL,
	}, s.cacheManager, s.metricsCollector, s.logger)

	// 能力分发器
	s.dispatcher = capability.NewDispatcher(s.registry, s.clients, capability.DispatcherConfig{
		MaxConcurrent:  s.cfg.Dispatch.MaxConcurrent,
		RequestTimeout: s.cfg.Dispatch.RequestTimeout,
	}, s.metricsCollector, s.logger)

	// 推理后端网关
	s.gateway = backend.New(backend.Config{
		BaseURL:        s.cfg.Backend.BaseURL,
		RequestTimeout: s.cfg.Backend.RequestTimeout,
	}, s.metricsCollector, s.logger)

	// 任务路由器
	s.router = routing.NewRouter(s.dispatcher, s.gateway, routing.Config{
		DefaultModel:   s.cfg.Backend.DefaultModel,
		ReportFailures: s.cfg.Dispatch.ReportFailures,
	}, s.metricsCollector, s.logger)

	// 健康聚合器
	s.aggregator = health.NewAggregator(health.Config{
		Version:      Version,
		ProbeTimeout: s.cfg.Dispatch.ConnectTimeout,
	}, s.cacheManager, s.gateway, s.registry, s.clients, s.metricsCollector, s.logger)
}

// initHandlers 初始化 API 处理器
func (s *Server) initHandlers() {
	s.taskHandler = handlers.NewTaskHandler(s.router, s.logger)
	s.providersHandler = handlers.NewProvidersHandler(s.registry, s.clients, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.aggregator, s.logger)
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========== 服务信息 ==========
	mux.HandleFunc("/", s.healthHandler.HandleRoot(Version))
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========== 健康检查 ==========
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)

	// ========== 任务路由 ==========
	mux.HandleFunc("/route", s.taskHandler.HandleRoute)

	// ========== 提供者 ==========
	mux.HandleFunc("/providers", s.providersHandler.HandleList)
	mux.HandleFunc("/providers/", s.providersHandler.HandleProviderPath)

	// 应用中间件
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	handler := Chain(mux,
		Recovery(s.logger),
		RequestContext(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)

	// 创建服务器管理器
	serverConfig := server.Config{
		Addr:            s.cfg.Server.Addr(),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.ReadTimeout * 2,
		MaxHeaderBytes:  1 << 20, // 1MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	return s.httpManager.Start()
}

// =============================================================================
// 📊 指标服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            s.cfg.Server.MetricsAddr(),
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭
// =============================================================================

// WaitForShutdown 等待关闭信号并执行优雅关闭
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown 按依赖顺序关闭各组件
func (s *Server) Shutdown() {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 1. 停止限流器清理协程
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭指标服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭缓存连接
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache close error", zap.Error(err))
		}
	}

	// 5. 关闭 OpenTelemetry
	if err := s.otel.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	// 等待后台任务完成
	s.wg.Wait()

	s.logger.Info("Server shutdown complete")
}
