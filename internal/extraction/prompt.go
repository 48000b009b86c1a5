package extraction

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/amount"
	"github.com/joseph-ayodele/purchase-sync/internal/merchant"
)

// DefaultMaxTextChars bounds the email text sent to the model.
const DefaultMaxTextChars = 8000

// Request is everything the orchestrator knows about one email before the LLM call.
type Request struct {
	Subject        string
	Sender         string
	ReceivedAt     string
	Text           string
	HasStructured  bool
	HasAttachment  bool
	AttachmentType string
	Language       constants.Language
	MerchantHint   *merchant.Hint
	Total          *amount.Candidate
	Amounts        []amount.Candidate
}

// SystemPrompt is the fixed instruction block for every extraction.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You extract purchase data from a single email for a personal warranty and returns tracker.
Always answer by calling the extract_order_data tool exactly once. Never reply in plain text.

Merchant rules:
- merchant_name is the shop or brand that sold the goods, never the mailbox provider. Gmail, Outlook, Hotmail, Yahoo, iCloud and Live are never merchants.
- If a MERCHANT HINT is marked authoritative, use it verbatim as merchant_name.
- Forwarded emails: ignore the forwarding person and their address; look at the original sender and the body.
- Payment processors (Klarna, Vipps, PayPal) are merchants only when no shop is named.

Classification:
- is_purchase is true for order confirmations, receipts and invoices for goods or services the user bought. Shipping and delivery notices for an order are purchases too.
- Newsletters, campaigns, price alerts and account notices are not purchases (is_purchase=false, email_type=marketing or unknown).
- For non-purchases still fill language, email_type, merchant_name (use "unknown" if none), confidence, needs_review and has_invoice_attachment.

Currency rules:
- "kr" or ",-" in a Norwegian email is NOK, in a Swedish email SEK, in a Danish email DKK.
- "$" without other context is USD, "€" is EUR, "£" is GBP.
- Output currency as a 3-letter ISO 4217 code and total_amount as a plain number (1217.00, not "1.217,00").

Dates:
- Use YYYY-MM-DD. If the email has no order date, use the date the email was received.

Common-sense defaults by merchant category (only when the email does not state them):
`)
	for _, c := range constants.AsStringSlice() {
		d := constants.DefaultsFor(constants.Category(c))
		fmt.Fprintf(&b, "- %s: delivery ~%d days, returns %d days, warranty %d months\n", c, d.DeliveryDays, d.ReturnDays, d.WarrantyMonths)
	}
	fmt.Fprintf(&b, "- Norwegian online purchases always carry a %d-day right of cancellation (angrerett).\n", constants.AngrerettDays)
	b.WriteString(`
Confidence:
- confidence.overall is high, medium or low. Use low when you are guessing.
- merchant, amount, date and email_type scores are numbers between 0 and 1.
- Set needs_review=true whenever a human should check the result. Do not invent values to avoid review.`)
	return b.String()
}

// BuildContext renders the per-email context block.
func BuildContext(req Request, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxTextChars
	}
	var b strings.Builder
	b.WriteString("EMAIL METADATA\n")
	fmt.Fprintf(&b, "Subject: %s\n", req.Subject)
	fmt.Fprintf(&b, "From: %s\n", req.Sender)
	if req.ReceivedAt != "" {
		fmt.Fprintf(&b, "Received: %s\n", req.ReceivedAt)
	}
	if req.HasAttachment {
		fmt.Fprintf(&b, "Attachment: yes (%s)\n", req.AttachmentType)
	} else {
		b.WriteString("Attachment: no\n")
	}

	b.WriteString("\nHINTS\n")
	if req.MerchantHint != nil && req.MerchantHint.Name != "" {
		fmt.Fprintf(&b, "MERCHANT HINT (authoritative, source=%s): %s\n", req.MerchantHint.Source, req.MerchantHint.Name)
	}
	if req.Language != "" {
		fmt.Fprintf(&b, "Detected language: %s\n", req.Language)
	}
	if req.Total != nil && req.Total.Amount != nil {
		fmt.Fprintf(&b, "Likely total: %.2f %s (from %q, confidence %.2f)\n", *req.Total.Amount, req.Total.Currency, req.Total.Raw, req.Total.Confidence)
	}
	if n := len(req.Amounts); n > 0 {
		limit := min(n, 8)
		parts := make([]string, 0, limit)
		for _, c := range req.Amounts[:limit] {
			parts = append(parts, c.Raw)
		}
		fmt.Fprintf(&b, "Other amounts seen: %s\n", strings.Join(parts, "; "))
	}
	if req.HasStructured {
		b.WriteString("The body contains tables delimited by === TABLE === markers; rows are | separated and the first row is the header.\n")
	}

	b.WriteString("\nEMAIL BODY\n")
	b.WriteString(truncate(req.Text, maxChars))
	return b.String()
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars]) + "\n[truncated]"
}
