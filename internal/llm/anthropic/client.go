// Package anthropic implements llm.Provider over the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/internal/llm"
)

type Config struct {
	APIKey      string // if empty, the SDK reads ANTHROPIC_API_KEY
	BaseURL     string // default https://api.anthropic.com
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int // SDK-level retries on 429 and 5xx
}

type Client struct {
	cfg    Config
	api    sdk.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = string(sdk.ModelClaude3_5HaikuLatest)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		cfg:    cfg,
		api:    sdk.NewClient(opts...),
		logger: logger,
	}
}

func (c *Client) Name() string { return "anthropic" }

// Chat implements llm.Provider. System turns are folded into the top-level
// system prompt since the Messages API has no system role.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (llm.ChatResponse, error) {
	rid := uuid.New().String()
	start := time.Now()
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.cfg.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(float64(c.cfg.Temperature)),
	}
	system := opts.SystemPrompt
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = strings.TrimSpace(system + "\n\n" + m.Content)
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	for _, t := range opts.Tools {
		tool := sdk.ToolParam{Name: t.Name, InputSchema: inputSchema(t.Parameters)}
		if t.Description != "" {
			tool.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, sdk.ToolUnionParam{OfTool: &tool})
	}
	if opts.ForceTool != "" {
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfTool: &sdk.ToolChoiceToolParam{Name: opts.ForceTool}}
	}

	c.logger.Info("llm.chat.start",
		"req_id", rid,
		"provider", c.Name(),
		"model", c.cfg.Model,
		"messages", len(params.Messages),
		"tools", len(params.Tools),
	)

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		c.logger.Error("llm.chat.http_error",
			"req_id", rid, "provider", c.Name(), "status", statusOf(err), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.ChatResponse{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var out llm.ChatResponse
	var text []string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: block.ID, Name: block.Name, Input: block.Input})
		}
	}
	out.Content = strings.TrimSpace(strings.Join(text, "\n"))

	c.logger.Info("llm.chat.ok",
		"req_id", rid,
		"provider", c.Name(),
		"model", c.cfg.Model,
		"tool_calls", len(out.ToolCalls),
		"stop_reason", string(msg.StopReason),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// inputSchema splits a JSON Schema object into the SDK's typed fields; every
// other keyword (additionalProperties, $defs) rides along as an extra field.
func inputSchema(params map[string]any) sdk.ToolInputSchemaParam {
	var schema sdk.ToolInputSchemaParam
	extra := map[string]any{}
	for k, v := range params {
		switch k {
		case "type":
		case "properties":
			schema.Properties = v
		case "required":
			schema.Required = stringList(v)
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		schema.ExtraFields = extra
	}
	return schema
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func statusOf(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
