package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskroute/taskroute/internal/metrics"
	"github.com/taskroute/taskroute/types"
)

// DispatcherConfig 控制分发行为。
type DispatcherConfig struct {
	MaxConcurrent  int           // 最大并发调用数
	RequestTimeout time.Duration // 单次调用超时
}

// DefaultDispatcherConfig 返回分发的默认配置。
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxConcurrent:  10,
		RequestTimeout: 30 * time.Second,
	}
}

// Dispatcher 将一组能力引用并发分发到各自的提供者。
type Dispatcher struct {
	registry *Registry
	clients  *ClientFactory
	config   DispatcherConfig
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewDispatcher 创建分发协调器。collector 为 nil 时不计指标。
func NewDispatcher(registry *Registry, clients *ClientFactory, config DispatcherConfig, collector *metrics.Collector, logger *zap.Logger) *Dispatcher {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		clients:  clients,
		config:   config,
		metrics:  collector,
		logger:   logger,
	}
}

// InvocationResult 是单次能力调用的结果。
// 失败以值的形式记录在结果槽位中，不跨越汇聚边界传播。
type InvocationResult struct {
	Ref       string          // 请求中的原始引用
	Succeeded bool            // 调用是否成功
	Output    json.RawMessage // 成功时的原始 JSON 结果
	Err       error           // 失败时的错误
}

// ErrorText 返回失败结果的错误文本，成功结果返回空串。
func (r InvocationResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Dispatch 按请求顺序分发能力引用并返回逐项结果，
// 结果槽位与请求位置一一对应，重复引用各自分发一次。
//
// 解析失败或提供者未注册的引用立即记录为失败，不发起网络调用。
// 其余引用以受限并发各自调用一次，每次调用携带独立超时；
// 单个调用的失败或超时不影响兄弟调用，也不中止整体分发。
func (d *Dispatcher) Dispatch(ctx context.Context, refs []string, args map[string]map[string]any, defaultArgs map[string]any) []InvocationResult {
	results := make([]InvocationResult, len(refs))
	if len(refs) == 0 {
		return results
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.MaxConcurrent)

	for i, raw := range refs {
		results[i] = InvocationResult{Ref: raw}

		ref, err := ParseRef(raw)
		if err != nil {
			results[i].Err = err
			d.logger.Warn("capability ref rejected", zap.String("ref", raw), zap.Error(err))
			continue
		}

		provider, ok := d.registry.Resolve(ref.Provider)
		if !ok {
			results[i].Err = types.NewError(types.ErrProviderNotFound,
				fmt.Sprintf("unknown provider %q", ref.Provider)).
				WithHTTPStatus(http.StatusNotFound)
			d.logger.Warn("capability provider not registered",
				zap.String("ref", raw),
				zap.String("provider", ref.Provider))
			continue
		}

		invokeArgs := defaultArgs
		if a, ok := args[raw]; ok {
			invokeArgs = a
		}

		g.Go(func() error {
			callStart := time.Now()
			callCtx, cancel := context.WithTimeout(gctx, d.config.RequestTimeout)
			defer cancel()

			client := d.clients.ClientFor(provider)
			output, err := client.Invoke(callCtx, ref.Name, invokeArgs)
			elapsed := time.Since(callStart)

			if err != nil {
				results[i].Err = err
				d.observe(provider.Name, outcomeFor(err), elapsed)
				d.logger.Warn("capability invocation failed",
					zap.String("ref", ref.String()),
					zap.Duration("elapsed", elapsed),
					zap.Error(err))
				return nil
			}

			results[i].Succeeded = true
			results[i].Output = output
			d.observe(provider.Name, "success", elapsed)
			d.logger.Debug("capability invocation succeeded",
				zap.String("ref", ref.String()),
				zap.Duration("elapsed", elapsed))
			return nil
		})
	}

	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Succeeded {
			succeeded++
		}
	}
	d.logger.Info("capability dispatch completed",
		zap.Int("requested", len(refs)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(refs)-succeeded),
		zap.Duration("elapsed", time.Since(start)))

	return results
}

// observe 记录单次调用的指标。
func (d *Dispatcher) observe(provider, outcome string, elapsed time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordCapabilityInvocation(provider, outcome, elapsed)
	}
}

// outcomeFor 将调用错误归类为指标 outcome 标签。
func outcomeFor(err error) string {
	if types.GetErrorCode(err) == types.ErrCapabilityTimeout {
		return "timeout"
	}
	return "error"
}
