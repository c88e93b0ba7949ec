package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockModel is an offline model.ChatModel for local development. It
// recognises which prompt it was given and answers with a payload that
// honours the JSON contract.
type MockModel struct{}

var _ model.ChatModel = (*MockModel)(nil)

// Generate implements model.BaseChatModel.
func (m *MockModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var system, last string
	if len(input) > 0 {
		if input[0].Role == schema.System {
			system = input[0].Content
		}
		last = input[len(input)-1].Content
	}

	var payload any
	switch {
	case strings.Contains(system, `"animal"`):
		payload = map[string]string{"emotion": "neutral", "animal": "dog"}
	case strings.Contains(system, `"diary"`):
		payload = map[string]string{"diary": "Today I talked with my companion about how I felt.", "emotion": "calm"}
	default:
		payload = map[string]any{"reply": "I hear you. Tell me more about \"" + clip(last, 60) + "\".", "points": DefaultPoints}
	}
	b, _ := json.Marshal(payload)
	return schema.AssistantMessage(string(b), nil), nil
}

// Stream implements model.BaseChatModel with a single-chunk stream.
func (m *MockModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools implements model.ChatModel; tools are ignored.
func (m *MockModel) BindTools([]*schema.ToolInfo) error { return nil }

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
