package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestExportReviewQueueXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, ":memory:", discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(discard()) })
	require.NoError(t, db.Migrate(ctx, discard()))
	st := repository.NewStore(db, discard())

	price := 499.0
	currency := "NOK"
	day := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	for _, review := range []bool{true, false} {
		require.NoError(t, st.InsertPurchase(ctx, &entity.Purchase{
			UserID:       "u1",
			ItemName:     "Jacket",
			Merchant:     "Zara",
			PurchaseDate: day,
			Price:        &price,
			Currency:     &currency,
			Source:       constants.PurchaseSource,
			AutoDetected: true,
			NeedsReview:  review,
			EmailMetadata: entity.EmailMetadata{
				Subject:    "Order Confirmation - Zara",
				MessageID:  "m1",
				Confidence: entity.ConfidenceSnapshot{Overall: "medium"},
			},
		}))
	}

	data, err := NewService(st, discard()).ExportReviewQueueXLSX(ctx, "u1")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Review Queue")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "2024-05-20", rows[1][0])
	assert.Equal(t, "Zara", rows[1][1])
	assert.Equal(t, "499", rows[1][3])
	assert.Equal(t, "yes", rows[1][9])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("ø", 20)
	got := truncate(long, 5)
	assert.Equal(t, 5, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
