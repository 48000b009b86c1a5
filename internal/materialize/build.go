package materialize

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/extraction"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

// Policy is the effective warranty and return window for a purchase.
type Policy struct {
	WarrantyMonths int
	ReturnDays     int
}

// ResolvePolicy applies extraction ?? merchant default ?? built-in fallback.
// The return window from the extraction itself is applied in Deadlines.
func ResolvePolicy(r extraction.Result, d *entity.MerchantDefaults) Policy {
	p := Policy{WarrantyMonths: DefaultWarrantyMonths, ReturnDays: DefaultReturnDays}
	if d != nil && d.DefaultWarrantyMonths != nil {
		p.WarrantyMonths = *d.DefaultWarrantyMonths
	}
	if r.WarrantyMonths != nil {
		p.WarrantyMonths = *r.WarrantyMonths
	}
	if d != nil && d.DefaultReturnDays != nil {
		p.ReturnDays = *d.DefaultReturnDays
	}
	return p
}

// Deadlines derives the warranty expiry and return deadline. An extracted
// return window is used as given, so 0 days means the purchase date itself.
// The policy periods only apply when positive. Neither deadline is ever
// before purchased.
func Deadlines(purchased time.Time, p Policy, returnDeadlineDays *int) (warranty, ret *time.Time) {
	if p.WarrantyMonths > 0 {
		t := purchased.AddDate(0, 0, p.WarrantyMonths*daysPerMonth)
		warranty = &t
	}
	switch {
	case returnDeadlineDays != nil && *returnDeadlineDays >= 0:
		t := purchased.AddDate(0, 0, *returnDeadlineDays)
		ret = &t
	case returnDeadlineDays == nil && p.ReturnDays > 0:
		t := purchased.AddDate(0, 0, p.ReturnDays)
		ret = &t
	}
	return warranty, ret
}

// purchaseDate falls back to the day the email arrived.
func purchaseDate(r extraction.Result, receivedAt time.Time) time.Time {
	if t, ok := r.PurchaseTime(); ok {
		return t
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	y, mo, d := receivedAt.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

type line struct {
	name  string
	price *float64
}

// lines lists one entry per purchased item, or a synthetic order line.
func lines(r extraction.Result) []line {
	var out []line
	for _, it := range r.ItemsList {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		out = append(out, line{name: name, price: it.Price})
	}
	if len(out) == 0 && r.ItemName != nil && strings.TrimSpace(*r.ItemName) != "" {
		out = append(out, line{name: strings.TrimSpace(*r.ItemName)})
	}
	if len(out) == 0 {
		out = append(out, line{name: "Order from " + strings.TrimSpace(r.MerchantName)})
	}
	if len(out) == 1 && out[0].price == nil {
		out[0].price = r.TotalAmount
	}
	return out
}

func (m *Materializer) build(ctx context.Context, st repository.Store, in Input) ([]*entity.Purchase, error) {
	r := in.Result
	merchantName := strings.TrimSpace(r.MerchantName)

	defaults, err := st.LookupMerchantDefaults(ctx, merchantName)
	if err != nil {
		return nil, err
	}
	policy := ResolvePolicy(r, defaults)
	purchased := purchaseDate(r, in.Message.ReceivedAt)
	warranty, ret := Deadlines(purchased, policy, r.ReturnDeadlineDays)

	var order *string
	if o := orderNumber(r); o != "" {
		order = &o
	}
	meta := entity.EmailMetadata{
		Subject:    in.Message.Subject,
		Sender:     in.Message.From.String(),
		ReceivedAt: in.Message.ReceivedAt,
		MessageID:  in.Message.ID,
		Confidence: entity.ConfidenceSnapshot{
			Overall:   r.Confidence.Overall,
			Merchant:  r.Confidence.Merchant,
			Amount:    r.Confidence.Amount,
			Date:      r.Confidence.Date,
			EmailType: r.Confidence.EmailType,
		},
	}
	now := m.now().UTC()

	var out []*entity.Purchase
	for _, l := range lines(r) {
		out = append(out, &entity.Purchase{
			ID:                uuid.New(),
			UserID:            in.UserID,
			ItemName:          l.name,
			Merchant:          merchantName,
			PurchaseDate:      purchased,
			Price:             l.price,
			Currency:          r.Currency,
			WarrantyMonths:    max(policy.WarrantyMonths, 0),
			WarrantyExpiresAt: warranty,
			ReturnDeadline:    ret,
			OrderNumber:       order,
			Source:            constants.PurchaseSource,
			AutoDetected:      true,
			NeedsReview:       r.NeedsReview || r.Confidence.Overall != extraction.ConfidenceHigh,
			EmailMetadata:     meta,
			CreatedAt:         now,
		})
	}
	return out, nil
}
