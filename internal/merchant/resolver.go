// Package merchant resolves a merchant-name hint for an email from its subject
// and sender before the LLM sees it.
package merchant

import (
	"strings"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

// Source says which heuristic produced a hint.
type Source string

const (
	SourceExplicit       Source = "explicit"
	SourceSubjectPattern Source = "subject_pattern"
	SourceKnownDomain    Source = "known_domain"
	SourceSenderDomain   Source = "sender_domain_derived"
)

// Hint is a candidate merchant name.
type Hint struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
}

// Signals are the message fields the recognizers look at.
type Signals struct {
	Subject       string
	SenderName    string
	SenderAddress string
}

// SignalsFrom builds Signals from a raw message.
func SignalsFrom(msg entity.RawEmailMessage) Signals {
	return Signals{Subject: msg.Subject, SenderName: msg.From.Name, SenderAddress: msg.From.Address}
}

func (s Signals) domain() string {
	return entity.Sender{Address: s.SenderAddress}.Domain()
}

// Resolver runs recognizers in priority order.
type Resolver struct {
	recognizers []Recognizer
}

// NewResolver builds the default ladder: subject pattern, known domain, sender
// domain. extraDomains extends the known-domain table.
func NewResolver(extraDomains map[string]string) *Resolver {
	return NewResolverWith(subjectRecognizer{}, newKnownDomainRecognizer(extraDomains), senderDomainRecognizer{})
}

// NewResolverWith uses the given recognizers in order.
func NewResolverWith(recognizers ...Recognizer) *Resolver {
	return &Resolver{recognizers: recognizers}
}

// Resolve returns the first hint. A non-empty explicit hint always wins unless
// it names a consumer mailbox provider.
func (r *Resolver) Resolve(sig Signals, explicit string) (Hint, bool) {
	if name := strings.TrimSpace(explicit); name != "" && !constants.IsConsumerProviderName(name) {
		return Hint{Name: name, Source: SourceExplicit}, true
	}
	for _, rec := range r.recognizers {
		if name, ok := rec.Recognize(sig); ok && acceptable(name) {
			return Hint{Name: name, Source: rec.Source()}, true
		}
	}
	return Hint{}, false
}

// ResolveAll returns every recognizer's hint in priority order.
func (r *Resolver) ResolveAll(sig Signals) []Hint {
	var out []Hint
	for _, rec := range r.recognizers {
		if name, ok := rec.Recognize(sig); ok && acceptable(name) {
			out = append(out, Hint{Name: name, Source: rec.Source()})
		}
	}
	return out
}

func acceptable(name string) bool {
	return len([]rune(strings.TrimSpace(name))) > 1 && !constants.IsConsumerProviderName(name)
}
