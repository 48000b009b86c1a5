package materialize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/extraction"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newStore(t *testing.T) repository.Store {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, ":memory:", discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(discard()) })
	require.NoError(t, db.Migrate(ctx, discard()))
	return repository.NewStore(db, discard())
}

type recordingPublisher struct {
	notifications []entity.Notification
	err           error
}

func (r *recordingPublisher) PublishPurchaseDetected(_ context.Context, n entity.Notification, _ entity.Purchase) error {
	r.notifications = append(r.notifications, n)
	return r.err
}

func orderResult() extraction.Result {
	return extraction.Result{
		Language:     constants.LanguageNorwegian,
		EmailType:    constants.EmailOrderConfirmation,
		IsPurchase:   true,
		MerchantName: "Elkjøp",
		OrderNumber:  ptr("ORD-1"),
		PurchaseDate: ptr("2024-05-20"),
		TotalAmount:  ptr(1217.0),
		Currency:     ptr("NOK"),
		ItemName:     ptr("Sony WH-1000XM5"),
		Confidence:   extraction.Confidence{Overall: "high", Merchant: 0.95, Amount: 0.9, Date: 0.9, EmailType: 0.9},
	}
}

func message(id string) entity.RawEmailMessage {
	return entity.RawEmailMessage{
		ID:         id,
		Subject:    "Ordrebekreftelse",
		From:       entity.Sender{Name: "Elkjøp", Address: "ordre@elkjop.no"},
		ReceivedAt: time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC),
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	m := New(st, WithClock(func() time.Time { return fixedNow }), WithLogger(discard()), WithPublisher(pub))

	in := Input{UserID: "u1", Message: message("m1"), Result: orderResult()}
	first, err := m.Materialize(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultCreatedPurchase, first.Result)
	require.Len(t, first.Purchases, 1)
	require.NotNil(t, first.PurchaseID)

	second, err := m.Materialize(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultIgnored, second.Result)
	assert.Equal(t, first.PurchaseID, second.PurchaseID)

	purchases, err := st.ListPurchases(ctx, repository.PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, purchases, 1)

	ledger, err := st.FindProcessedEmail(ctx, "u1", "m1")
	require.NoError(t, err)
	require.NotNil(t, ledger)
	assert.Equal(t, constants.ResultCreatedPurchase, ledger.Result)
	assert.Len(t, pub.notifications, 1)
}

func TestMaterializeDuplicateOrderFromAnotherEmail(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	m := New(st, WithLogger(discard()))

	first, err := m.Materialize(ctx, Input{UserID: "u1", Message: message("m1"), Result: orderResult()})
	require.NoError(t, err)

	second, err := m.Materialize(ctx, Input{UserID: "u1", Message: message("m2"), Result: orderResult()})
	require.NoError(t, err)
	assert.Equal(t, constants.ResultIgnored, second.Result)
	assert.Equal(t, first.PurchaseID, second.PurchaseID)

	ledger, err := st.FindProcessedEmail(ctx, "u1", "m2")
	require.NoError(t, err)
	require.NotNil(t, ledger)
	assert.Equal(t, constants.ResultIgnored, ledger.Result)
	assert.Equal(t, first.PurchaseID, ledger.PurchaseID)
}

func TestMaterializeDerivesDatesFromMerchantDefaults(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertMerchantDefaults(ctx, entity.MerchantDefaults{
		MerchantNamePattern: "elkjøp", DefaultWarrantyMonths: ptr(24), DefaultReturnDays: ptr(60),
	}))
	m := New(st, WithLogger(discard()))

	res := orderResult()
	res.Confidence.Overall = "medium"
	out, err := m.Materialize(ctx, Input{UserID: "u1", Message: message("m1"), Result: res})
	require.NoError(t, err)
	require.Len(t, out.Purchases, 1)

	p := out.Purchases[0]
	purchased := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 24, p.WarrantyMonths)
	require.NotNil(t, p.WarrantyExpiresAt)
	assert.Equal(t, purchased.AddDate(0, 0, 720), *p.WarrantyExpiresAt)
	require.NotNil(t, p.ReturnDeadline)
	assert.Equal(t, purchased.AddDate(0, 0, 60), *p.ReturnDeadline)
	assert.True(t, p.NeedsReview)
	assert.True(t, p.AutoDetected)
	assert.Equal(t, constants.PurchaseSource, p.Source)
	assert.Equal(t, 1217.0, *p.Price)
	assert.Equal(t, "m1", p.EmailMetadata.MessageID)
	assert.Equal(t, "Elkjøp <ordre@elkjop.no>", p.EmailMetadata.Sender)
}

func TestMaterializeOnePurchasePerItem(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	m := New(st, WithLogger(discard()))

	res := orderResult()
	res.OrderNumber = nil
	res.ItemsList = []extraction.Item{{Name: "Cable", Price: ptr(99.0)}, {Name: "Charger", Price: ptr(299.0)}, {Name: " "}}
	out, err := m.Materialize(ctx, Input{UserID: "u1", Message: message("m1"), Result: res})
	require.NoError(t, err)
	require.Len(t, out.Purchases, 2)
	assert.Equal(t, "Cable", out.Purchases[0].ItemName)
	assert.Equal(t, 299.0, *out.Purchases[1].Price)
	assert.False(t, out.Purchases[0].NeedsReview)
}

func TestMaterializeKeepsValidatorReviewFlag(t *testing.T) {
	st := newStore(t)
	m := New(st, WithLogger(discard()))

	res := orderResult()
	res.TotalAmount = nil
	res.Confidence.Merchant = 0.2
	res.NeedsReview = extraction.NeedsManualReview(res)
	require.True(t, res.NeedsReview)
	require.Equal(t, extraction.ConfidenceHigh, res.Confidence.Overall)

	out, err := m.Materialize(context.Background(), Input{UserID: "u1", Message: message("m1"), Result: res})
	require.NoError(t, err)
	require.Len(t, out.Purchases, 1)
	assert.True(t, out.Purchases[0].NeedsReview)

	stored, err := st.ListPurchases(context.Background(), repository.PurchaseFilter{UserID: "u1", NeedsReviewOnly: true})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestMaterializeSyntheticItemName(t *testing.T) {
	st := newStore(t)
	m := New(st, WithLogger(discard()))

	res := orderResult()
	res.ItemName = nil
	out, err := m.Materialize(context.Background(), Input{UserID: "u1", Message: message("m1"), Result: res})
	require.NoError(t, err)
	require.Len(t, out.Purchases, 1)
	assert.Equal(t, "Order from Elkjøp", out.Purchases[0].ItemName)
}

func TestMaterializeNonPurchaseAndIneligible(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	m := New(st, WithLogger(discard()))

	notOrder := orderResult()
	notOrder.IsPurchase = false
	out, err := m.Materialize(ctx, Input{UserID: "u1", Message: message("m1"), Result: notOrder})
	require.NoError(t, err)
	assert.Equal(t, constants.ResultNotOrder, out.Result)

	unknown := orderResult()
	unknown.EmailType = constants.EmailUnknown
	out, err = m.Materialize(ctx, Input{UserID: "u1", Message: message("m2"), Result: unknown})
	require.NoError(t, err)
	assert.Equal(t, constants.ResultIgnored, out.Result)

	short := orderResult()
	short.MerchantName = "X"
	out, err = m.Materialize(ctx, Input{UserID: "u1", Message: message("m3"), Result: short})
	require.NoError(t, err)
	assert.Equal(t, constants.ResultIgnored, out.Result)

	purchases, err := st.ListPurchases(ctx, repository.PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestRecordFailureKeepsMessage(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	m := New(st, WithLogger(discard()))

	require.NoError(t, m.RecordFailure(ctx, "u1", message("m1"), errors.New("schema: currency must be 3 letters")))
	rec, err := st.FindProcessedEmail(ctx, "u1", "m1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, constants.ResultFailed, rec.Result)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "currency")
}

func TestPublishFailureDoesNotUndoPurchase(t *testing.T) {
	st := newStore(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := New(st, WithLogger(discard()), WithPublisher(pub))

	out, err := m.Materialize(context.Background(), Input{UserID: "u1", Message: message("m1"), Result: orderResult()})
	require.NoError(t, err)
	assert.Equal(t, constants.ResultCreatedPurchase, out.Result)
	assert.Len(t, pub.notifications, 1)
}

func TestDeadlines(t *testing.T) {
	purchased := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		policy       Policy
		returnDays   *int
		wantWarranty *time.Time
		wantReturn   *time.Time
	}{
		{
			name:         "defaults",
			policy:       Policy{WarrantyMonths: 12, ReturnDays: 30},
			wantWarranty: ptr(purchased.AddDate(0, 0, 360)),
			wantReturn:   ptr(purchased.AddDate(0, 0, 30)),
		},
		{
			name:         "extraction return window wins",
			policy:       Policy{WarrantyMonths: 12, ReturnDays: 30},
			returnDays:   ptr(constants.AngrerettDays),
			wantWarranty: ptr(purchased.AddDate(0, 0, 360)),
			wantReturn:   ptr(purchased.AddDate(0, 0, 14)),
		},
		{
			name:   "zero periods",
			policy: Policy{WarrantyMonths: 0, ReturnDays: 0},
		},
		{
			name:         "extracted zero-day window is the purchase date",
			policy:       Policy{WarrantyMonths: 12, ReturnDays: 30},
			returnDays:   ptr(0),
			wantWarranty: ptr(purchased.AddDate(0, 0, 360)),
			wantReturn:   ptr(purchased),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r := Deadlines(purchased, tt.policy, tt.returnDays)
			assert.Equal(t, tt.wantWarranty, w)
			assert.Equal(t, tt.wantReturn, r)
			if w != nil {
				assert.False(t, w.Before(purchased))
			}
			if r != nil {
				assert.False(t, r.Before(purchased))
			}
		})
	}
}

func TestResolvePolicy(t *testing.T) {
	res := orderResult()
	assert.Equal(t, Policy{WarrantyMonths: 12, ReturnDays: 30}, ResolvePolicy(res, nil))

	d := &entity.MerchantDefaults{DefaultWarrantyMonths: ptr(24), DefaultReturnDays: ptr(14)}
	assert.Equal(t, Policy{WarrantyMonths: 24, ReturnDays: 14}, ResolvePolicy(res, d))

	res.WarrantyMonths = ptr(36)
	assert.Equal(t, Policy{WarrantyMonths: 36, ReturnDays: 14}, ResolvePolicy(res, d))
}
