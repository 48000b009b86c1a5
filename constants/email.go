package constants

import "strings"

// EmailType classifies what kind of commerce email a message is.
type EmailType string

const (
	EmailOrderConfirmation    EmailType = "order_confirmation"
	EmailShippingNotification EmailType = "shipping_notification"
	EmailDeliveryConfirmation EmailType = "delivery_confirmation"
	EmailReceipt              EmailType = "receipt"
	EmailInvoice              EmailType = "invoice"
	EmailSubscription         EmailType = "subscription"
	EmailReturnConfirmation   EmailType = "return_confirmation"
	EmailMarketing            EmailType = "marketing"
	EmailUnknown              EmailType = "unknown"
)

var allEmailTypes = []EmailType{
	EmailOrderConfirmation,
	EmailShippingNotification,
	EmailDeliveryConfirmation,
	EmailReceipt,
	EmailInvoice,
	EmailSubscription,
	EmailReturnConfirmation,
	EmailMarketing,
	EmailUnknown,
}

// EmailTypes returns the allowed email_type enum values in a stable order.
func EmailTypes() []string {
	out := make([]string, len(allEmailTypes))
	for i, t := range allEmailTypes {
		out[i] = string(t)
	}
	return out
}

// Language is the detected language of an email body.
type Language string

const (
	LanguageNorwegian Language = "no"
	LanguageEnglish   Language = "en"
	LanguageSwedish   Language = "sv"
	LanguageDanish    Language = "da"
	LanguageOther     Language = "other"
)

// DetectableLanguages is ordered by tie-break priority.
var DetectableLanguages = []Language{LanguageNorwegian, LanguageEnglish, LanguageSwedish, LanguageDanish}

// Languages returns the allowed language enum values.
func Languages() []string {
	out := make([]string, 0, len(DetectableLanguages)+1)
	for _, l := range DetectableLanguages {
		out = append(out, string(l))
	}
	return append(out, string(LanguageOther))
}

// ConsumerEmailProviders are mailbox providers whose names must never be used as a merchant.
var ConsumerEmailProviders = []string{"gmail", "outlook", "yahoo", "hotmail", "icloud", "live"}

// extra provider labels that only matter for domain checks
var consumerProviderDomainLabels = []string{"googlemail", "msn", "aol", "protonmail"}

// IsConsumerEmailDomain reports whether a sender domain belongs to a consumer mailbox provider.
// Any domain label starting with a provider name counts (live.no, hotmail.co.uk, yahoomail.com).
func IsConsumerEmailDomain(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		for _, p := range ConsumerEmailProviders {
			if strings.HasPrefix(label, p) {
				return true
			}
		}
		for _, p := range consumerProviderDomainLabels {
			if label == p {
				return true
			}
		}
	}
	return false
}

// MentionsConsumerProvider reports whether a domain contains a mailbox provider
// name anywhere ("golive.com", "mylive-shop.no"). It is stricter than
// IsConsumerEmailDomain and guards names derived from a sender domain.
func MentionsConsumerProvider(domain string) bool {
	domain = strings.ToLower(domain)
	for _, p := range ConsumerEmailProviders {
		if strings.Contains(domain, p) {
			return true
		}
	}
	return false
}

// IsConsumerProviderName reports whether a merchant name is actually a mailbox provider
// ("Gmail", "outlook.com", "Hotmail").
func IsConsumerProviderName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	if i := strings.IndexByte(n, '.'); i > 0 {
		n = n[:i]
	}
	n = strings.TrimSpace(n)
	for _, p := range ConsumerEmailProviders {
		if n == p {
			return true
		}
	}
	for _, p := range []string{"gmail", "hotmail", "outlook", "yahoo", "icloud"} {
		if strings.Contains(n, p) {
			return true
		}
	}
	return false
}
