package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/purchase-sync/internal/llm"
)

func (c *Client) Name() string { return "openai" }

// Chat implements llm.Provider using chat completions with function tools.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (llm.ChatResponse, error) {
	rid := uuid.New().String()
	start := time.Now()

	req := goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.SystemPrompt != "" {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if opts.ForceTool != "" {
		req.ToolChoice = goopenai.ToolChoice{
			Type:     goopenai.ToolTypeFunction,
			Function: goopenai.ToolFunction{Name: opts.ForceTool},
		}
	}

	c.logger.Info("llm.chat.start",
		"req_id", rid,
		"provider", c.Name(),
		"model", c.cfg.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("llm.chat.http_error",
			"req_id", rid, "error", err, "status", statusOf(err),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ChatResponse{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("llm.chat.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.ChatResponse{}, errors.New("no choices in openai response")
	}

	msg := resp.Choices[0].Message
	out := llm.ChatResponse{Content: strings.TrimSpace(msg.Content)}
	for _, tc := range msg.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if !json.Valid([]byte(args)) {
			// keep the call so the validator reports it and the orchestrator retries
			args = fmt.Sprintf("%q", args)
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(args),
		})
	}

	c.logger.Info("llm.chat.ok",
		"req_id", rid,
		"provider", c.Name(),
		"tool_calls", len(out.ToolCalls),
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func statusOf(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
