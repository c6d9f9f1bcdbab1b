package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskroute/taskroute/internal/cache"
	"github.com/taskroute/taskroute/internal/metrics"
	"github.com/taskroute/taskroute/internal/tlsutil"
	"github.com/taskroute/taskroute/types"
)

// Descriptor 描述提供者暴露的单个能力。
// 提供者响应中的多余字段被忽略。
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Client 是访问单个能力提供者的客户端。
// 三个操作是相互独立的网络调用，本层不做任何重试，
// 重试策略（如果有）属于调用方。
type Client interface {
	// ListCapabilities 枚举提供者暴露的能力。
	ListCapabilities(ctx context.Context) ([]Descriptor, error)

	// Invoke 调用指定能力并返回其原始 JSON 结果。
	Invoke(ctx context.Context, capability string, args map[string]any) (json.RawMessage, error)

	// HealthProbe 报告提供者存活状态。从不返回错误：
	// 不可达或非 200 都报告为 false。
	HealthProbe(ctx context.Context) bool

	// Provider 返回客户端对应的提供者声明。
	Provider() Provider
}

// HTTPClient 通过统一的 HTTP 线上契约访问提供者：
// GET /tools 列出能力，POST /call 调用能力，GET /health 探测存活。
type HTTPClient struct {
	provider Provider
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPClient 创建提供者 HTTP 客户端。
// httpClient 可以在多个提供者客户端之间共享以复用连接池。
func NewHTTPClient(provider Provider, httpClient *http.Client, logger *zap.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		provider: provider,
		baseURL:  strings.TrimRight(provider.BaseURL, "/"),
		client:   httpClient,
		logger:   logger.With(zap.String("provider", provider.Name)),
	}
}

// Provider 返回客户端对应的提供者声明。
func (c *HTTPClient) Provider() Provider { return c.provider }

// buildHeaders 设置 JSON 内容头并注入请求上下文三元组。
func (c *HTTPClient) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	types.RequestContextFrom(req.Context()).ApplyHeaders(req.Header)
}

// ListCapabilities 调用 GET {base_url}/tools。
func (c *HTTPClient) ListCapabilities(ctx context.Context) ([]Descriptor, error) {
	endpoint := c.baseURL + "/tools"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewError(types.ErrCapabilityUnreachable, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(c.provider.Name)
	}
	c.buildHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.remoteError(resp)
	}

	var descriptors []Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&descriptors); err != nil {
		return nil, types.NewError(types.ErrCapabilityBadResponse,
			fmt.Sprintf("decode capability listing: %v", err)).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(c.provider.Name)
	}
	return descriptors, nil
}

// invokeRequest 是提供者调用端点的请求体。
type invokeRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Invoke 调用 POST {base_url}/call，请求体为 {"tool", "arguments"}。
// 成功时返回提供者的原始 JSON 结果，不做任何解释。
func (c *HTTPClient) Invoke(ctx context.Context, capability string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(invokeRequest{Tool: capability, Arguments: args})
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("encode invocation arguments: %v", err)).
			WithHTTPStatus(http.StatusBadRequest).
			WithProvider(c.provider.Name)
	}

	endpoint := c.baseURL + "/call"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrCapabilityUnreachable, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(c.provider.Name)
	}
	c.buildHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.remoteError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(err)
	}
	if !json.Valid(body) {
		return nil, types.NewError(types.ErrCapabilityBadResponse,
			"provider returned malformed JSON result").
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(c.provider.Name)
	}
	return json.RawMessage(body), nil
}

// HealthProbe 调用 GET {base_url}/health，仅当返回 200 时为真。
func (c *HTTPClient) HealthProbe(ctx context.Context) bool {
	endpoint := c.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	c.buildHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// transportError 区分超时与连接失败。
func (c *HTTPClient) transportError(err error) *types.Error {
	if isTimeout(err) {
		return types.NewError(types.ErrCapabilityTimeout, err.Error()).
			WithHTTPStatus(http.StatusGatewayTimeout).
			WithRetryable(true).
			WithProvider(c.provider.Name).
			WithCause(err)
	}
	return types.NewError(types.ErrCapabilityUnreachable, err.Error()).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(c.provider.Name).
		WithCause(err)
}

// remoteError 将提供者的非 2xx 响应映射为远端错误，携带其错误文本。
func (c *HTTPClient) remoteError(resp *http.Response) *types.Error {
	msg := readErrText(resp.Body)
	return types.NewError(types.ErrCapabilityRemote,
		fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, msg)).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(resp.StatusCode >= 500).
		WithProvider(c.provider.Name)
}

// isTimeout 判断传输错误是否为超时。
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// readErrText 提取错误响应中的文本。
// 优先取 JSON 的 error 或 detail 字段，否则返回原始响应体。
func readErrText(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return strings.TrimSpace(string(data))
}

// ClientFactoryConfig 控制客户端的传输参数。
type ClientFactoryConfig struct {
	ConnectTimeout time.Duration // 建立连接超时
	RequestTimeout time.Duration // 单次调用整体超时
	ListingTTL     time.Duration // 能力列表缓存 TTL
}

// ClientFactory 按提供者构造客户端。
// 所有客户端共享一个 http.Client 以复用连接池；
// 配置了缓存管理器时返回带能力列表缓存的装饰器。
type ClientFactory struct {
	config     ClientFactoryConfig
	httpClient *http.Client
	cache      *cache.Manager
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewClientFactory 创建客户端工厂。
// cacheManager 为 nil 时不做列表缓存，collector 为 nil 时不计指标。
func NewClientFactory(cfg ClientFactoryConfig, cacheManager *cache.Manager, collector *metrics.Collector, logger *zap.Logger) *ClientFactory {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := tlsutil.SecureTransport()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &ClientFactory{
		config: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		cache:   cacheManager,
		metrics: collector,
		logger:  logger,
	}
}

// ClientFor 返回提供者的客户端。
func (f *ClientFactory) ClientFor(p Provider) Client {
	base := NewHTTPClient(p, f.httpClient, f.logger)
	if f.cache == nil {
		return base
	}
	return NewCachedClient(base, f.cache, f.config.ListingTTL, f.metrics, f.logger)
}
