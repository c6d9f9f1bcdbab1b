package backend

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

	"github.com/taskroute/taskroute/internal/metrics"
	"github.com/taskroute/taskroute/internal/tlsutil"
	"github.com/taskroute/taskroute/internal/tokenizer"
	"github.com/taskroute/taskroute/types"
)

// CompletionRequest 是发往后端的一次补全请求。
type CompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

// Completion 是后端返回的补全载荷，本服务不做任何解释。
type Completion struct {
	Payload json.RawMessage
}

// Gateway 是后端补全服务的客户端。
type Gateway interface {
	// Complete 转发一次补全请求并返回原始载荷。
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// Probe 探测后端可达性，仅当健康端点返回 200 时为 nil。
	Probe(ctx context.Context) error

	// Available 报告后端是否已配置。
	Available() bool
}

// Config 控制后端网关的连接参数。
type Config struct {
	BaseURL        string        // 为空表示后端未配置
	RequestTimeout time.Duration // 单次补全请求整体超时
}

// New 根据配置构造网关。base_url 为空时返回 Unconfigured，
// 因此进程中永远不存在空的网关指针。
func New(cfg Config, collector *metrics.Collector, logger *zap.Logger) Gateway {
	if cfg.BaseURL == "" {
		return Unconfigured{}
	}
	return NewHTTPGateway(cfg, collector, logger)
}

// HTTPGateway 通过 HTTP 访问后端的聊天补全端点。
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewHTTPGateway 创建后端 HTTP 网关。
func NewHTTPGateway(cfg Config, collector *metrics.Collector, logger *zap.Logger) *HTTPGateway {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  tlsutil.SecureHTTPClient(timeout),
		metrics: collector,
		logger:  logger.With(zap.String("component", "backend")),
	}
}

// Available 恒为真：构造出 HTTPGateway 即表示已配置。
func (g *HTTPGateway) Available() bool { return true }

// Complete 调用 POST {base_url}/v1/chat/completions。
// 响应体作为原始 JSON 返回，不做解释；所有失败都映射为类型化错误。
func (g *HTTPGateway) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	start := time.Now()
	g.estimateTokens(req)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("encode completion request: %v", err)).
			WithHTTPStatus(http.StatusBadRequest)
	}

	endpoint := g.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrBackendUnreachable, err.Error()).
			WithHTTPStatus(http.StatusBadGateway)
	}
	g.buildHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		terr := g.transportError(err)
		g.observe(outcomeFor(terr), start)
		g.logger.Warn("backend request failed", zap.Error(terr))
		return nil, terr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrText(resp.Body)
		rerr := types.NewError(types.ErrBackendRemote,
			fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, msg)).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(resp.StatusCode >= 500)
		g.observe("error", start)
		g.logger.Warn("backend request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, rerr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		terr := g.transportError(err)
		g.observe(outcomeFor(terr), start)
		return nil, terr
	}
	if !json.Valid(body) {
		g.observe("error", start)
		return nil, types.NewError(types.ErrBackendBadResponse,
			"backend returned malformed JSON").
			WithHTTPStatus(http.StatusBadGateway)
	}

	g.observe("success", start)
	g.logger.Debug("backend request completed",
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)))

	return &Completion{Payload: json.RawMessage(body)}, nil
}

// Probe 调用 GET {base_url}/health，仅当返回 200 时为 nil。
func (g *HTTPGateway) Probe(ctx context.Context) error {
	endpoint := g.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	g.buildHeaders(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend health probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health probe: status %d", resp.StatusCode)
	}
	return nil
}

// buildHeaders 设置 JSON 内容头并注入请求上下文三元组。
func (g *HTTPGateway) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	types.RequestContextFrom(req.Context()).ApplyHeaders(req.Header)
}

// estimateTokens 估算出站消息的 prompt token 总量。
// 仅用于日志与指标，估算失败被忽略。
func (g *HTTPGateway) estimateTokens(req *CompletionRequest) {
	counter := tokenizer.ForModel(req.Model)
	total, err := counter.CountMessages(req.Messages)
	if err != nil {
		g.logger.Debug("prompt token estimation failed", zap.Error(err))
		return
	}
	if g.metrics != nil {
		g.metrics.RecordBackendPromptTokens(total)
	}
	g.logger.Debug("estimated prompt tokens",
		zap.Int("tokens", total),
		zap.String("model", req.Model),
		zap.String("counter", counter.Name()))
}

// observe 记录一次后端请求的指标。
func (g *HTTPGateway) observe(outcome string, start time.Time) {
	if g.metrics != nil {
		g.metrics.RecordBackendRequest(outcome, time.Since(start))
	}
}

// transportError 区分超时与连接失败。
func (g *HTTPGateway) transportError(err error) *types.Error {
	if isTimeout(err) {
		return types.NewError(types.ErrBackendTimeout, err.Error()).
			WithHTTPStatus(http.StatusGatewayTimeout).
			WithRetryable(true).
			WithCause(err)
	}
	return types.NewError(types.ErrBackendUnreachable, err.Error()).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithCause(err)
}

// outcomeFor 将传输错误归类为指标 outcome 标签。
func outcomeFor(err *types.Error) string {
	if err.Code == types.ErrBackendTimeout {
		return "timeout"
	}
	return "error"
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

// Unconfigured 是后端从未配置时的显式网关实现。
// 它使未配置成为可表示的状态，而不是一个空指针。
type Unconfigured struct{}

// Available 恒为假。
func (Unconfigured) Available() bool { return false }

// Complete 返回服务不可用错误，不发起任何网络调用。
func (Unconfigured) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	return nil, types.NewError(types.ErrBackendUnavailable, "backend client not available").
		WithHTTPStatus(http.StatusServiceUnavailable)
}

// Probe 返回未配置错误。
func (Unconfigured) Probe(ctx context.Context) error {
	return types.NewError(types.ErrBackendUnavailable, "backend client not configured").
		WithHTTPStatus(http.StatusServiceUnavailable)
}
