// Package extraction turns normalized email text into a validated purchase
// extraction by calling an LLM provider with a forced tool call.
package extraction

import (
	"time"

	"github.com/joseph-ayodele/purchase-sync/constants"
)

// Overall confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

type Confidence struct {
	Overall   string  `json:"overall"`
	Merchant  float64 `json:"merchant"`
	Amount    float64 `json:"amount"`
	Date      float64 `json:"date"`
	EmailType float64 `json:"email_type"`
}

type Item struct {
	Name     string   `json:"name"`
	Price    *float64 `json:"price,omitempty"`
	Quantity *int     `json:"quantity,omitempty"`
}

// Result is the validated output of the extract_order_data tool.
type Result struct {
	Language              constants.Language  `json:"language"`
	EmailType             constants.EmailType `json:"email_type"`
	IsPurchase            bool                `json:"is_purchase"`
	MerchantName          string              `json:"merchant_name"`
	MerchantCategory      *string             `json:"merchant_category,omitempty"`
	MerchantWebsite       *string             `json:"merchant_website,omitempty"`
	OrderNumber           *string             `json:"order_number,omitempty"`
	PurchaseDate          *string             `json:"purchase_date,omitempty"`
	TotalAmount           *float64            `json:"total_amount,omitempty"`
	Currency              *string             `json:"currency,omitempty"`
	ItemName              *string             `json:"item_name,omitempty"`
	ItemsList             []Item              `json:"items_list,omitempty"`
	ItemsCount            *int                `json:"items_count,omitempty"`
	ReturnDeadlineDays    *int                `json:"return_deadline_days,omitempty"`
	WarrantyMonths        *int                `json:"warranty_months,omitempty"`
	EstimatedDeliveryDate *string             `json:"estimated_delivery_date,omitempty"`
	TrackingNumber        *string             `json:"tracking_number,omitempty"`
	HasInvoiceAttachment  bool                `json:"has_invoice_attachment"`
	Confidence            Confidence          `json:"confidence"`
	ExtractionNotes       *string             `json:"extraction_notes,omitempty"`
	NeedsReview           bool                `json:"needs_review"`
}

// PurchaseTime parses PurchaseDate; ok is false when it is absent or malformed.
func (r Result) PurchaseTime() (time.Time, bool) {
	if r.PurchaseDate == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, *r.PurchaseDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NeedsManualReview is the local review rule: low overall confidence, a weak
// merchant score, or an order confirmation without a total.
func NeedsManualReview(r Result) bool {
	if r.Confidence.Overall == ConfidenceLow {
		return true
	}
	if r.Confidence.Merchant < 0.5 {
		return true
	}
	return r.TotalAmount == nil && r.EmailType == constants.EmailOrderConfirmation
}
