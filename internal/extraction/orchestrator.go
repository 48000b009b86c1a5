package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/llm"
	"github.com/joseph-ayodele/purchase-sync/internal/merchant"
)

type Config struct {
	MaxRetries   int // total attempts, default 2
	MaxTokens    int
	MaxTextChars int
}

// Outcome is a finished extraction. Attempts and Raw are set on failure too.
type Outcome struct {
	Result   Result
	Attempts int
	Raw      json.RawMessage
}

type Orchestrator struct {
	provider  llm.Provider
	validator *Validator
	cfg       Config
	system    string
	logger    *slog.Logger
}

func NewOrchestrator(provider llm.Provider, validator *Validator, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultMaxTextChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider:  provider,
		validator: validator,
		cfg:       cfg,
		system:    SystemPrompt(),
		logger:    logger,
	}
}

// Extract calls the provider until the tool payload validates or the attempt
// budget is spent. Every attempt sends the same prompt. Provider errors are
// returned at once as an LLM_TRANSPORT AppError without retrying.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	messages := []llm.Message{{Role: llm.RoleUser, Content: BuildContext(req, o.cfg.MaxTextChars)}}
	opts := llm.ChatOptions{
		MaxTokens:    o.cfg.MaxTokens,
		SystemPrompt: o.system,
		Tools:        []llm.Tool{Tool(o.validator.Strict())},
		ForceTool:    ToolName,
	}

	var out Outcome
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		out.Attempts = attempt
		resp, err := o.provider.Chat(ctx, messages, opts)
		if err != nil {
			o.logger.Error("extract.llm.transport_failed",
				"provider", o.provider.Name(), "attempt", attempt, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return out, common.NewAppError("LLM_TRANSPORT", "provider call failed", fmt.Errorf("%w: %w", common.ErrTransport, err))
		}

		call, ok := resp.ToolCall(ToolName)
		if !ok {
			lastErr = &ValidationError{Reason: "no " + ToolName + " tool call in response"}
			o.logger.Warn("extract.llm.no_tool_call", "attempt", attempt, "content_len", len(resp.Content))
			continue
		}
		out.Raw = call.Input

		res, err := o.validator.Validate(call.Input)
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return out, err
			}
			lastErr = err
			o.logger.Warn("extract.validation_failed", "attempt", attempt, "error", err)
			continue
		}

		if req.MerchantHint != nil && req.MerchantHint.Source == merchant.SourceExplicit {
			res.MerchantName = req.MerchantHint.Name
		}
		out.Result = res
		o.logger.Info("extract.ok",
			"provider", o.provider.Name(),
			"attempts", attempt,
			"email_type", res.EmailType,
			"is_purchase", res.IsPurchase,
			"merchant", res.MerchantName,
			"overall", res.Confidence.Overall,
			"needs_review", res.NeedsReview,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, nil
	}

	o.logger.Error("extract.failed", append(common.LogAttrs(ctx),
		"attempts", out.Attempts, "error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return out, fmt.Errorf("extraction failed after %d attempts: %w", out.Attempts, lastErr)
}
