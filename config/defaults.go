// =============================================================================
// 📦 TaskRoute 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Backend:   DefaultBackendConfig(),
		Registry:  DefaultRegistryConfig(),
		Dispatch:  DefaultDispatchConfig(),
		Cache:     DefaultCacheConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:               "0.0.0.0",
		HTTPPort:           8000,
		MetricsPort:        9090,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       150 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		CORSAllowedOrigins: nil,
		RateLimitRPS:       50,
		RateLimitBurst:     100,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultBackendConfig 返回默认推理后端配置
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		BaseURL:        "",
		DefaultModel:   "mistralai/Mistral-7B-Instruct-v0.3",
		RequestTimeout: 120 * time.Second,
	}
}

// DefaultRegistryConfig 返回默认注册表配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		ProvidersFile: "",
	}
}

// DefaultDispatchConfig 返回默认分发配置
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		MaxConcurrent:  10,
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		ReportFailures: false,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		ListingTTL:   5 * time.Minute,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "taskroute",
		SampleRate:   1.0,
	}
}
