package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/taskroute/taskroute/types"
)

// TiktokenCounter 为 OpenAI 家族模型提供基于 tiktoken 的精确计数。
type TiktokenCounter struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// modelEncodings 将模型名称映射到其 tiktoken 编码。
var modelEncodings = map[string]string{
	"gpt-4o":                 "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"gpt-4-turbo":            "cl100k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
}

// encodingForModel 查找模型对应的 tiktoken 编码。
// 前缀匹配覆盖带日期后缀的变体，例如 "gpt-4o-2024-08-06"。
func encodingForModel(model string) (string, bool) {
	if enc, ok := modelEncodings[model]; ok {
		return enc, true
	}
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) {
			return enc, true
		}
	}
	return "", false
}

// NewTiktokenCounter 为给定模型创建 tiktoken 计数器。
// 模型没有已知编码时返回错误，由调用方决定回退策略。
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, ok := encodingForModel(model)
	if !ok {
		return nil, fmt.Errorf("no tiktoken encoding for model %s", model)
	}
	return &TiktokenCounter{
		model:    model,
		encoding: enc,
	}, nil
}

// init 惰性初始化 tiktoken 编码（首次使用时可能下载数据）。
func (t *TiktokenCounter) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenCounter) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenCounter) CountMessages(messages []types.Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// 每条消息的开销: <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	total += 3 // conversation-end overhead
	return total, nil
}

func (t *TiktokenCounter) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
