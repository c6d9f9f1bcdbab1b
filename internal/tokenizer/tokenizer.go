package tokenizer

import (
	"sync"

	"github.com/taskroute/taskroute/types"
)

// Counter 统计文本或消息序列的 Token 数量。
type Counter interface {
	// CountTokens 返回单段文本的 Token 数。
	CountTokens(text string) (int, error)

	// CountMessages 返回整组消息的 Token 数，包含角色标记等开销。
	CountMessages(messages []types.Message) (int, error)

	// Name 返回计数器标识，用于日志。
	Name() string
}

// ===== 🎯 模型计数器注册表 =====

var (
	countersMu sync.RWMutex
	counters   = make(map[string]Counter)
)

// ForModel 返回指定模型的计数器，首次访问时构造并缓存。
// 已知 tiktoken 编码的模型使用精确计数，其余模型回退到估算器。
func ForModel(model string) Counter {
	countersMu.RLock()
	c, ok := counters[model]
	countersMu.RUnlock()
	if ok {
		return c
	}

	countersMu.Lock()
	defer countersMu.Unlock()
	if c, ok := counters[model]; ok {
		return c
	}

	c = newCounter(model)
	counters[model] = c
	return c
}

func newCounter(model string) Counter {
	if c, err := NewTiktokenCounter(model); err == nil {
		return c
	}
	return NewEstimator(model)
}
