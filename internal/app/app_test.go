package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/extraction"
	"github.com/joseph-ayodele/purchase-sync/internal/llm"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

type cannedProvider struct{ payload string }

func (p cannedProvider) Name() string { return "canned" }

func (p cannedProvider) Chat(context.Context, []llm.Message, llm.ChatOptions) (llm.ChatResponse, error) {
	return llm.ChatResponse{ToolCalls: []llm.ToolCall{{Name: extraction.ToolName, Input: json.RawMessage(p.payload)}}}, nil
}

const elkjopEmail = "From: =?UTF-8?Q?Elkj=C3=B8p?= <ordre@elkjop.no>\r\n" +
	"Subject: Ordrebekreftelse 123456\r\n" +
	"Date: Mon, 03 Jun 2024 09:00:00 +0200\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Takk for handelen!</p><p>Totalt: kr 1.217,00</p>\r\n"

const elkjopPayload = `{
  "language": "no", "email_type": "order_confirmation", "is_purchase": true,
  "merchant_name": "Elkjøp", "order_number": "123456", "purchase_date": "2024-06-03",
  "total_amount": 1217.0, "currency": "NOK", "item_name": "Headphones",
  "has_invoice_attachment": false, "needs_review": false,
  "confidence": {"overall": "high", "merchant": 0.95, "amount": 0.9, "date": 0.9, "email_type": 0.95}
}`

func TestBuildAndSyncInMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "u1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "u1", "order.eml"), []byte(elkjopEmail), 0o644))

	warranty := 36
	cfg := &common.Config{
		LLM:  common.LLMConfig{Provider: "openai", MaxRetries: 2, MaxTokens: 1024},
		Sync: common.SyncConfig{MailboxDir: root, MaxMessages: 10, Concurrency: 1},
		MerchantDefaults: []common.MerchantDefaultSeed{
			{Pattern: "Elkjøp", WarrantyMonths: &warranty},
		},
	}

	ctx := context.Background()
	a, err := Build(ctx, cfg, Options{InMemory: true, Provider: cannedProvider{payload: elkjopPayload}}, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.HealthCheck(ctx))

	report, err := a.Service.SyncUser(ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Synced)

	purchases, err := a.Store.ListPurchases(ctx, repository.PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, 36, purchases[0].WarrantyMonths, "configured seed overrides the built-in one")
	assert.Equal(t, "order", purchases[0].EmailMetadata.MessageID)

	xlsx, err := a.Export.ExportPurchasesXLSX(ctx, "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, xlsx)
}

func TestNewProviderSelectsClient(t *testing.T) {
	assert.Equal(t, "anthropic", NewProvider(common.LLMConfig{Provider: "anthropic", APIKey: "k"}, nil).Name())
	assert.Equal(t, "openai", NewProvider(common.LLMConfig{Provider: "openai", APIKey: "k"}, nil).Name())
}
