// Package pipeline runs the per-user email sync: prepare, extract, materialize.
package pipeline

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/amount"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/extraction"
	"github.com/joseph-ayodele/purchase-sync/internal/language"
	"github.com/joseph-ayodele/purchase-sync/internal/merchant"
	"github.com/joseph-ayodele/purchase-sync/internal/textnorm"
)

// Prepared holds the pure, local analysis of one message.
type Prepared struct {
	Message    entity.RawEmailMessage
	Normalized textnorm.NormalizedText
	Cleaned    string
	Language   constants.Language
	Amounts    []amount.Candidate
	Total      *amount.Candidate
	Hint       *merchant.Hint
}

type Preparer struct {
	resolver *merchant.Resolver
	amounts  *amount.Normalizer
}

func NewPreparer(resolver *merchant.Resolver) *Preparer {
	if resolver == nil {
		resolver = merchant.NewResolver(nil)
	}
	return &Preparer{resolver: resolver, amounts: amount.NewNormalizer()}
}

// Prepare normalizes the body, strips forwarding noise, detects the language,
// collects amounts and resolves a merchant hint. It performs no I/O.
func (p *Preparer) Prepare(msg entity.RawEmailMessage, explicitMerchant string) Prepared {
	var norm textnorm.NormalizedText
	if strings.TrimSpace(msg.HTMLBody) != "" {
		norm = textnorm.Normalize(msg.HTMLBody)
	}
	if strings.TrimSpace(norm.Text) == "" {
		norm = textnorm.NormalizePlain(msg.TextBody)
	}
	cleaned := textnorm.StripNoise(norm.Text)

	out := Prepared{
		Message:    msg,
		Normalized: norm,
		Cleaned:    cleaned,
		Language:   language.Detect(msg.Subject + "\n" + cleaned),
		Amounts:    p.amounts.ExtractAllAmounts(cleaned),
	}
	out.Total = p.amounts.FindTotalAmount(cleaned, out.Amounts)
	if hint, ok := p.resolver.Resolve(merchant.SignalsFrom(msg), explicitMerchant); ok {
		out.Hint = &hint
	}
	return out
}

// Request builds the orchestrator input.
func (pp Prepared) Request() extraction.Request {
	req := extraction.Request{
		Subject:        pp.Message.Subject,
		Sender:         textnorm.RedactProviderAddresses(pp.Message.From.String()),
		Text:           pp.Cleaned,
		HasStructured:  pp.Normalized.HasStructuredData,
		HasAttachment:  pp.Message.HasAttachment,
		AttachmentType: pp.Message.AttachmentType,
		Language:       pp.Language,
		MerchantHint:   pp.Hint,
		Total:          pp.Total,
		Amounts:        pp.Amounts,
	}
	if !pp.Message.ReceivedAt.IsZero() {
		req.ReceivedAt = pp.Message.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return req
}
