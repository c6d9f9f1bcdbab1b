package routing

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskroute/taskroute/types"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func TestTaskRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     TaskRequest
		wantErr string
	}{
		{
			name: "prompt only",
			req:  TaskRequest{Prompt: strPtr("hi")},
		},
		{
			// 显式为空的 prompt 仍算提供了 prompt
			name: "empty prompt counts as provided",
			req:  TaskRequest{Prompt: strPtr("")},
		},
		{
			name: "messages only",
			req:  TaskRequest{Messages: []types.Message{types.NewUserMessage("hi")}},
		},
		{
			name: "both prompt and messages",
			req: TaskRequest{
				Prompt:   strPtr("hi"),
				Messages: []types.Message{types.NewUserMessage("hi")},
			},
			wantErr: "exactly one of prompt or messages",
		},
		{
			name:    "neither prompt nor messages",
			req:     TaskRequest{},
			wantErr: "exactly one of prompt or messages",
		},
		{
			name:    "message without role",
			req:     TaskRequest{Messages: []types.Message{{Content: "hi"}}},
			wantErr: "role is required",
		},
		{
			name:    "temperature below range",
			req:     TaskRequest{Prompt: strPtr("hi"), Temperature: floatPtr(-0.1)},
			wantErr: "temperature",
		},
		{
			name:    "temperature above range",
			req:     TaskRequest{Prompt: strPtr("hi"), Temperature: floatPtr(2.1)},
			wantErr: "temperature",
		},
		{
			name: "temperature bounds are inclusive",
			req:  TaskRequest{Prompt: strPtr("hi"), Temperature: floatPtr(2.0)},
		},
		{
			name:    "zero max_tokens",
			req:     TaskRequest{Prompt: strPtr("hi"), MaxTokens: intPtr(0)},
			wantErr: "max_tokens",
		},
		{
			name:    "negative max_tokens",
			req:     TaskRequest{Prompt: strPtr("hi"), MaxTokens: intPtr(-5)},
			wantErr: "max_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)

			var typed *types.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, http.StatusBadRequest, typed.HTTPStatus)
		})
	}
}

func TestTaskRequest_ApplyDefaults(t *testing.T) {
	req := TaskRequest{Prompt: strPtr("hi")}
	req.applyDefaults("")

	assert.Equal(t, DefaultSystem, req.System)
	assert.Equal(t, DefaultModel, req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.7, *req.Temperature)
}

func TestTaskRequest_ApplyDefaults_DeploymentModel(t *testing.T) {
	req := TaskRequest{Prompt: strPtr("hi")}
	req.applyDefaults("qwen2.5-coder")
	assert.Equal(t, "qwen2.5-coder", req.Model)

	explicit := TaskRequest{Prompt: strPtr("hi"), Model: "gpt-4o"}
	explicit.applyDefaults("qwen2.5-coder")
	assert.Equal(t, "gpt-4o", explicit.Model)
}

func TestTaskRequest_UserText(t *testing.T) {
	prompt := TaskRequest{Prompt: strPtr("from prompt")}
	assert.Equal(t, "from prompt", prompt.userText())

	messages := TaskRequest{Messages: []types.Message{
		types.NewUserMessage("first"),
		types.NewAssistantMessage("reply"),
		types.NewUserMessage("last"),
	}}
	assert.Equal(t, "last", messages.userText())
}

func TestNewTaskID(t *testing.T) {
	pattern := regexp.MustCompile(`^task_[0-9a-f]{16}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTaskID()
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate task id %s", id)
		seen[id] = true
	}
}
