package routing

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/taskroute/taskroute/types"
)

// 请求未显式给出时使用的默认值。
const (
	DefaultSystem      = "You are a helpful coding agent."
	DefaultModel       = "mistralai/Mistral-7B-Instruct-v0.3"
	DefaultTemperature = 0.7
)

// TaskStatus 是任务的终态。
type TaskStatus string

const (
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// TaskRequest 是一次任务提交。
// Prompt 与 Messages 恰好二选一；显式为空的 prompt 仍算提供了 prompt。
type TaskRequest struct {
	Prompt                *string                   `json:"prompt,omitempty"`
	Messages              []types.Message           `json:"messages,omitempty"`
	System                string                    `json:"system,omitempty"`
	Model                 string                    `json:"model,omitempty"`
	RequestedCapabilities []string                  `json:"requested_capabilities,omitempty"`
	CapabilityArguments   map[string]map[string]any `json:"capability_arguments,omitempty"`
	Temperature           *float64                  `json:"temperature,omitempty"`
	MaxTokens             *int                      `json:"max_tokens,omitempty"`
}

// Validate 检查请求的结构合法性，不发起任何网络调用。
func (r *TaskRequest) Validate() error {
	hasPrompt := r.Prompt != nil
	hasMessages := len(r.Messages) > 0

	if hasPrompt == hasMessages {
		return types.NewError(types.ErrInvalidRequest,
			"exactly one of prompt or messages must be provided").
			WithHTTPStatus(http.StatusBadRequest)
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("messages[%d]: role is required", i)).
				WithHTTPStatus(http.StatusBadRequest)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return types.NewError(types.ErrInvalidRequest,
			"temperature must be between 0 and 2").
			WithHTTPStatus(http.StatusBadRequest)
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return types.NewError(types.ErrInvalidRequest,
			"max_tokens must be positive").
			WithHTTPStatus(http.StatusBadRequest)
	}
	return nil
}

// applyDefaults 填充缺省字段。model 是部署级默认模型，可为空。
func (r *TaskRequest) applyDefaults(model string) {
	if r.System == "" {
		r.System = DefaultSystem
	}
	if r.Model == "" {
		if model == "" {
			model = DefaultModel
		}
		r.Model = model
	}
	if r.Temperature == nil {
		t := DefaultTemperature
		r.Temperature = &t
	}
}

// userText 返回请求的用户文本：prompt 或最后一条 user 消息的内容。
func (r *TaskRequest) userText() string {
	if r.Prompt != nil {
		return *r.Prompt
	}
	return types.LastUserContent(r.Messages)
}

// TaskResponse 是一次任务的最终结果。
// Result 是后端的原始补全载荷，本服务不做任何解释。
type TaskResponse struct {
	TaskID           string            `json:"task_id"`
	Status           TaskStatus        `json:"status"`
	Result           json.RawMessage   `json:"result,omitempty"`
	Error            string            `json:"error,omitempty"`
	ToolsUsed        []string          `json:"tools_used"`
	ExecutionTime    float64           `json:"execution_time"`
	CapabilityErrors map[string]string `json:"capability_errors,omitempty"`
}

// NewTaskID 生成进程内唯一的任务标识，形如 task_ 加 16 个十六进制字符。
func NewTaskID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("task_%016x", time.Now().UnixNano())
	}
	return "task_" + hex.EncodeToString(buf)
}
