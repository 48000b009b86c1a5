package llm

import (
	"context"
	"encoding/json"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Tool is a function the model may call. Parameters is a JSON Schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a tool invocation returned by the model; Input is the raw
// argument object exactly as the provider sent it.
type ToolCall struct {
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ChatOptions struct {
	MaxTokens    int
	SystemPrompt string
	Tools        []Tool
	// ForceTool asks the provider to call this tool instead of replying in text.
	ForceTool string
}

type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall returns the first call to the named tool.
func (r ChatResponse) ToolCall(name string) (ToolCall, bool) {
	for _, tc := range r.ToolCalls {
		if tc.Name == name {
			return tc, true
		}
	}
	return ToolCall{}, false
}

// Provider is the chat contract the extraction pipeline depends on.
type Provider interface {
	Name() string
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResponse, error)
}
