package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/taskroute/taskroute/backend"
	"github.com/taskroute/taskroute/capability"
	"github.com/taskroute/taskroute/internal/metrics"
	"github.com/taskroute/taskroute/types"
)

// Config 控制任务路由行为。
type Config struct {
	DefaultModel   string // 请求未指定时使用的模型
	ReportFailures bool   // 失败的能力调用是否出现在响应中
}

// Router 把任务请求按固定流水线处理到终态。
type Router struct {
	dispatcher *capability.Dispatcher
	gateway    backend.Gateway
	config     Config
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewRouter 创建任务路由器。collector 为 nil 时不计指标。
func NewRouter(dispatcher *capability.Dispatcher, gateway backend.Gateway, cfg Config, collector *metrics.Collector, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		dispatcher: dispatcher,
		gateway:    gateway,
		config:     cfg,
		metrics:    collector,
		logger:     logger,
	}
}

// Route 把一次任务请求处理到终态。
//
// 流水线固定为：校验 → 后端可用性检查 → 能力分发 → 组装出站消息 →
// 后端补全 → 汇总响应。校验失败与后端未配置作为类型化错误返回，
// 其余情况都产出 TaskResponse：后端成功为 completed，后端失败为
// failed。能力失败只会缺席 tools_used，从不使任务失败。
func (r *Router) Route(ctx context.Context, req *TaskRequest) (*TaskResponse, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.applyDefaults(r.config.DefaultModel)

	if !r.gateway.Available() {
		return nil, types.NewError(types.ErrBackendUnavailable, "backend client not available").
			WithHTTPStatus(http.StatusServiceUnavailable)
	}

	taskID := NewTaskID()
	rc := types.RequestContextFrom(ctx)
	logger := r.logger.With(
		zap.String("task_id", taskID),
		zap.String("trace_id", rc.TraceID),
		zap.String("run_id", rc.RunID),
	)
	logger.Info("processing task",
		zap.Int("prompt_length", len(req.userText())),
		zap.Strings("capabilities", req.RequestedCapabilities))

	results := r.dispatcher.Dispatch(ctx, req.RequestedCapabilities, req.CapabilityArguments,
		map[string]any{"query": req.userText()})

	toolsUsed := make([]string, 0, len(results))
	for _, res := range results {
		if res.Succeeded {
			toolsUsed = append(toolsUsed, res.Ref)
		}
	}

	resp := &TaskResponse{
		TaskID:    taskID,
		ToolsUsed: toolsUsed,
	}
	if r.config.ReportFailures {
		resp.CapabilityErrors = failureMap(results)
	}

	completion, err := r.gateway.Complete(ctx, &backend.CompletionRequest{
		Model:       req.Model,
		Messages:    buildMessages(req, results),
		Temperature: *req.Temperature,
		MaxTokens:   maxTokens(req),
	})
	resp.ExecutionTime = time.Since(start).Seconds()

	if err != nil {
		resp.Status = StatusFailed
		resp.Error = "backend request failed: " + errorText(err)
		r.observe(resp.Status, start)
		logger.Error("task failed",
			zap.String("error", resp.Error),
			zap.Float64("execution_time", resp.ExecutionTime))
		return resp, nil
	}

	resp.Status = StatusCompleted
	resp.Result = completion.Payload
	r.observe(resp.Status, start)
	logger.Info("task completed",
		zap.Float64("execution_time", resp.ExecutionTime),
		zap.Strings("tools_used", toolsUsed))
	return resp, nil
}

// observe 记录任务终态指标。
func (r *Router) observe(status TaskStatus, start time.Time) {
	if r.metrics != nil {
		r.metrics.RecordTask(string(status), time.Since(start))
	}
}

// buildMessages 组装发往后端的消息序列。
// prompt 模式展开为 system 加 user 两条；messages 模式保留原始消息，
// 调用方未提供 system 消息时前置一条。每个成功的能力调用追加一条
// assistant 消息，失败的调用不追加任何内容。
func buildMessages(req *TaskRequest, results []capability.InvocationResult) []types.Message {
	var messages []types.Message
	if req.Prompt != nil {
		messages = []types.Message{
			types.NewSystemMessage(req.System),
			types.NewUserMessage(*req.Prompt),
		}
	} else {
		messages = make([]types.Message, 0, len(req.Messages)+len(results)+1)
		if req.System != "" && !hasSystemMessage(req.Messages) {
			messages = append(messages, types.NewSystemMessage(req.System))
		}
		messages = append(messages, req.Messages...)
	}

	for _, res := range results {
		if !res.Succeeded {
			continue
		}
		messages = append(messages, types.NewAssistantMessage(
			fmt.Sprintf("Tool result from %s: %s", res.Ref, res.Output)))
	}
	return messages
}

func hasSystemMessage(messages []types.Message) bool {
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			return true
		}
	}
	return false
}

// failureMap 收集失败引用到错误文本的映射，无失败时返回 nil。
func failureMap(results []capability.InvocationResult) map[string]string {
	var failures map[string]string
	for _, res := range results {
		if res.Succeeded {
			continue
		}
		if failures == nil {
			failures = make(map[string]string)
		}
		failures[res.Ref] = res.ErrorText()
	}
	return failures
}

// maxTokens 解包 max_tokens，未指定时为 0。
func maxTokens(req *TaskRequest) int {
	if req.MaxTokens == nil {
		return 0
	}
	return *req.MaxTokens
}

// errorText 提取错误的展示文本，类型化错误取其消息体。
func errorText(err error) string {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return err.Error()
}
