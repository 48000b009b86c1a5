package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })
	require.NoError(t, db.Migrate(ctx, logger))
	return NewStore(db, logger)
}

func ptr[T any](v T) *T { return &v }

func TestProcessedEmailLedgerIsWriteOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	missing, err := st.FindProcessedEmail(ctx, "u1", "m1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := &entity.ProcessedEmail{UserID: "u1", EmailID: "m1", Result: constants.ResultNotOrder}
	inserted, err := st.InsertProcessedEmail(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	second := &entity.ProcessedEmail{UserID: "u1", EmailID: "m1", Result: constants.ResultFailed, ErrorMessage: ptr("boom")}
	inserted, err = st.InsertProcessedEmail(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := st.FindProcessedEmail(ctx, "u1", "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, constants.ResultNotOrder, got.Result)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.PurchaseID)

	// same email id for another user is a separate row
	inserted, err = st.InsertProcessedEmail(ctx, &entity.ProcessedEmail{UserID: "u2", EmailID: "m1", Result: constants.ResultIgnored})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestPurchaseRoundTripAndOrderLookup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	purchased := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := purchased.AddDate(0, 0, 24*30)
	returns := purchased.AddDate(0, 0, 30)
	p := &entity.Purchase{
		UserID:            "u1",
		ItemName:          "Headphones",
		Merchant:          "Elkjøp",
		PurchaseDate:      purchased,
		Price:             ptr(1217.0),
		Currency:          ptr("NOK"),
		WarrantyMonths:    24,
		WarrantyExpiresAt: &expires,
		ReturnDeadline:    &returns,
		OrderNumber:       ptr("A-100"),
		Source:            constants.PurchaseSource,
		AutoDetected:      true,
		NeedsReview:       true,
		EmailMetadata: entity.EmailMetadata{
			Subject:    "Ordrebekreftelse",
			Sender:     "ordre@elkjop.no",
			ReceivedAt: purchased.Add(2 * time.Hour),
			MessageID:  "m1",
			Confidence: entity.ConfidenceSnapshot{Overall: "medium", Merchant: 0.9, Amount: 0.8, Date: 0.7, EmailType: 0.95},
		},
	}
	require.NoError(t, st.InsertPurchase(ctx, p))
	require.NotEqual(t, uuid.Nil, p.ID)

	got, err := st.FindPurchaseByOrderNumber(ctx, "u1", "A-100")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.PurchaseDate.Equal(purchased))
	require.NotNil(t, got.WarrantyExpiresAt)
	assert.True(t, got.WarrantyExpiresAt.Equal(expires))
	require.NotNil(t, got.ReturnDeadline)
	assert.True(t, got.ReturnDeadline.Equal(returns))
	assert.Equal(t, 1217.0, *got.Price)
	assert.Equal(t, "NOK", *got.Currency)
	assert.True(t, got.AutoDetected)
	assert.True(t, got.NeedsReview)
	if diff := cmp.Diff(p.EmailMetadata.Confidence, got.EmailMetadata.Confidence); diff != "" {
		t.Errorf("confidence snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "m1", got.EmailMetadata.MessageID)

	none, err := st.FindPurchaseByOrderNumber(ctx, "u2", "A-100")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestListPurchasesFiltersReviewQueue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	for i, review := range []bool{true, false, true} {
		require.NoError(t, st.InsertPurchase(ctx, &entity.Purchase{
			UserID:       "u1",
			ItemName:     "item",
			Merchant:     "Zara",
			PurchaseDate: day.AddDate(0, 0, i),
			Source:       constants.PurchaseSource,
			AutoDetected: true,
			NeedsReview:  review,
		}))
	}
	require.NoError(t, st.InsertPurchase(ctx, &entity.Purchase{
		UserID: "u2", ItemName: "other", Merchant: "IKEA", PurchaseDate: day, Source: constants.PurchaseSource, NeedsReview: true,
	}))

	all, err := st.ListPurchases(ctx, PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, all[0].PurchaseDate.After(all[2].PurchaseDate), "newest purchase first")

	review, err := st.ListPurchases(ctx, PurchaseFilter{UserID: "u1", NeedsReviewOnly: true})
	require.NoError(t, err)
	assert.Len(t, review, 2)

	everyone, err := st.ListPurchases(ctx, PurchaseFilter{NeedsReviewOnly: true})
	require.NoError(t, err)
	assert.Len(t, everyone, 3)
}

func TestMerchantDefaultsFuzzyLookup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, SeedMerchantDefaults(ctx, st, []entity.MerchantDefaults{
		{MerchantNamePattern: "Apple Store", DefaultWarrantyMonths: ptr(24), DefaultReturnDays: ptr(14)},
	}))

	tests := []struct {
		name        string
		merchant    string
		wantPattern string
		wantReturn  int
	}{
		{name: "exact", merchant: "Zalando", wantPattern: "Zalando", wantReturn: 100},
		{name: "case insensitive", merchant: "KOMPLETT", wantPattern: "Komplett", wantReturn: 30},
		{name: "pattern inside name", merchant: "IKEA Furuset", wantPattern: "IKEA", wantReturn: 365},
		{name: "longest pattern wins", merchant: "Apple Store Oslo", wantPattern: "Apple Store", wantReturn: 14},
		{name: "angrerett", merchant: "finn.no", wantPattern: "Finn.no", wantReturn: constants.AngrerettDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.LookupMerchantDefaults(ctx, tt.merchant)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPattern, got.MerchantNamePattern)
			require.NotNil(t, got.DefaultReturnDays)
			assert.Equal(t, tt.wantReturn, *got.DefaultReturnDays)
		})
	}

	unknown, err := st.LookupMerchantDefaults(ctx, "Some Tiny Shop")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestUpsertMerchantDefaultsReplacesValues(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertMerchantDefaults(ctx, entity.MerchantDefaults{MerchantNamePattern: "Power", DefaultWarrantyMonths: ptr(24)}))
	require.NoError(t, st.UpsertMerchantDefaults(ctx, entity.MerchantDefaults{MerchantNamePattern: "Power", DefaultWarrantyMonths: ptr(36), DefaultReturnDays: ptr(60)}))

	got, err := st.LookupMerchantDefaults(ctx, "Power")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 36, *got.DefaultWarrantyMonths)
	assert.Equal(t, 60, *got.DefaultReturnDays)

	err = st.UpsertMerchantDefaults(ctx, entity.MerchantDefaults{MerchantNamePattern: "  "})
	require.Error(t, err)
}

func TestInTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.InTx(ctx, func(tx Store) error {
		if _, err := tx.InsertProcessedEmail(ctx, &entity.ProcessedEmail{UserID: "u1", EmailID: "m9", Result: constants.ResultCreatedPurchase}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := st.FindProcessedEmail(ctx, "u1", "m9")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, st.InTx(ctx, func(tx Store) error {
		return tx.InsertNotification(ctx, &entity.Notification{
			UserID: "u1", Type: constants.NotificationPurchaseDetected, PurchaseID: uuid.New(), Title: "t", Body: "b",
		})
	}))
}
