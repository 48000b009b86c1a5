package merchant

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joseph-ayodele/purchase-sync/constants"
)

// Recognizer derives a merchant name from one kind of signal.
type Recognizer interface {
	Source() Source
	Recognize(sig Signals) (string, bool)
}

var reReplyPrefix = regexp.MustCompile(`(?i)^\s*(re|fwd?|fw|sv|vs|vb|aw|wg|tr|vl)\s*(\[\d+\])?\s*:\s*`)

// StripSubjectPrefixes removes any run of reply/forward prefixes (Re:, Fwd:, SV:, VS: ...).
func StripSubjectPrefixes(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		next := reReplyPrefix.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = strings.TrimSpace(next)
	}
}

// merchant capture stops at an order reference, a bracket or a " - " separator
const capture = `(.+?)\s*(?:#|\(|\[|\s[-–|]\s|!|$)`

var subjectLadder = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\breceipt from\s+` + capture),
	regexp.MustCompile(`(?i)\b(?:kvittering|kvitto) fra\s+` + capture),
	regexp.MustCompile(`(?i)\b(?:kvitto|kvittering) från\s+` + capture),
	regexp.MustCompile(`(?i)^(.+?)\s+[-–|:]\s+(?:order confirmation|your order|order|receipt|ordrebekreftelse|orderbekräftelse|ordrebekræftelse|bestillingsbekreftelse)\b`),
	regexp.MustCompile(`(?i)^(?:order confirmation|ordrebekreftelse|orderbekräftelse|ordrebekræftelse|bestillingsbekreftelse|receipt|kvittering)\s*[-–|:]\s*` + capture),
	regexp.MustCompile(`(?i)\byour\s+(.+?)\s+(?:order|receipt|purchase)\b`),
	regexp.MustCompile(`(?i)\border (?:from|at|with)\s+` + capture),
	regexp.MustCompile(`(?i)\bthank you for (?:your order|shopping|your purchase) (?:at|with|from)\s+` + capture),
	regexp.MustCompile(`(?i)\btakk for (?:kjøpet|handelen|bestillingen|ordren)(?: din)? hos\s+` + capture),
	regexp.MustCompile(`(?i)\bdin (?:ordre|bestilling) (?:hos|fra)\s+` + capture),
	regexp.MustCompile(`(?i)\btack för (?:ditt köp|din beställning|din order) (?:hos|från)\s+` + capture),
	regexp.MustCompile(`(?i)\btak for (?:dit køb|din ordre|din bestilling) (?:hos|fra)\s+` + capture),
}

var genericCaptures = map[string]struct{}{
	"your": {}, "my": {}, "the": {}, "an": {}, "a": {}, "order": {}, "orders": {},
	"receipt": {}, "purchase": {}, "new": {}, "recent": {}, "online": {}, "confirmed": {},
	"confirmation": {}, "invoice": {}, "payment": {}, "shipping": {}, "delivery": {},
	"din": {}, "ditt": {}, "deres": {}, "ordre": {}, "bestilling": {}, "kjøp": {},
	"oss": {}, "us": {}, "this": {}, "our": {},
}

type subjectRecognizer struct{}

func (subjectRecognizer) Source() Source { return SourceSubjectPattern }

func (subjectRecognizer) Recognize(sig Signals) (string, bool) {
	subject := StripSubjectPrefixes(sig.Subject)
	if subject == "" {
		return "", false
	}
	for _, re := range subjectLadder {
		m := re.FindStringSubmatch(subject)
		if len(m) < 2 {
			continue
		}
		if name := cleanCapture(m[1]); name != "" {
			return name, true
		}
	}
	return "", false
}

func cleanCapture(raw string) string {
	name := strings.Trim(strings.TrimSpace(raw), `"'.,:;`)
	if len([]rune(name)) < 2 || len([]rune(name)) > 60 {
		return ""
	}
	if _, generic := genericCaptures[strings.ToLower(name)]; generic {
		return ""
	}
	if strings.Count(name, " ") > 5 {
		return ""
	}
	return name
}

// builtinDomains maps a sender domain fragment to the brand name.
var builtinDomains = map[string]string{
	"amazon.":          "Amazon",
	"apple.com":        "Apple",
	"anthropic.com":    "Anthropic",
	"openai.com":       "OpenAI",
	"elkjop.no":        "Elkjøp",
	"komplett.no":      "Komplett",
	"power.no":         "Power",
	"xxl.no":           "XXL",
	"zalando.":         "Zalando",
	"zara.com":         "Zara",
	"hm.com":           "H&M",
	"ikea.":            "IKEA",
	"clasohlson.":      "Clas Ohlson",
	"finn.no":          "FINN",
	"vinmonopolet.no":  "Vinmonopolet",
	"netonnet.":        "NetOnNet",
	"proshop.":         "Proshop",
	"ebay.":            "eBay",
	"aliexpress.":      "AliExpress",
	"temu.com":         "Temu",
	"spotify.com":      "Spotify",
	"netflix.com":      "Netflix",
	"steampowered.com": "Steam",
	"paypal.":          "PayPal",
	"vipps.no":         "Vipps",
	"klarna.":          "Klarna",
	"deliveroo.":       "Deliveroo",
}

type domainEntry struct {
	fragment string
	brand    string
}

type knownDomainRecognizer struct {
	entries []domainEntry
}

// newKnownDomainRecognizer orders fragments longest first so the most specific
// entry wins deterministically.
func newKnownDomainRecognizer(extra map[string]string) *knownDomainRecognizer {
	merged := make(map[string]string, len(builtinDomains)+len(extra))
	for k, v := range builtinDomains {
		merged[k] = v
	}
	for k, v := range extra {
		merged[strings.ToLower(strings.TrimSpace(k))] = v
	}
	entries := make([]domainEntry, 0, len(merged))
	for k, v := range merged {
		if k == "" || v == "" {
			continue
		}
		entries = append(entries, domainEntry{fragment: k, brand: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].fragment) != len(entries[j].fragment) {
			return len(entries[i].fragment) > len(entries[j].fragment)
		}
		return entries[i].fragment < entries[j].fragment
	})
	return &knownDomainRecognizer{entries: entries}
}

func (*knownDomainRecognizer) Source() Source { return SourceKnownDomain }

func (k *knownDomainRecognizer) Recognize(sig Signals) (string, bool) {
	domain := sig.domain()
	if domain == "" || constants.IsConsumerEmailDomain(domain) {
		return "", false
	}
	for _, e := range k.entries {
		if strings.Contains(domain, e.fragment) {
			return e.brand, true
		}
	}
	return "", false
}

// labels that name an email service or a mail subdomain rather than a shop
var nonBrandLabels = map[string]struct{}{
	"mail": {}, "email": {}, "e": {}, "em": {}, "info": {}, "news": {}, "newsletter": {},
	"noreply": {}, "no-reply": {}, "notifications": {}, "notification": {}, "post": {},
	"send": {}, "service": {}, "mailer": {}, "mg": {}, "bounce": {}, "shop": {}, "store": {},
	"order": {}, "orders": {}, "support": {}, "mc": {}, "sg": {}, "www": {},
	"sendgrid": {}, "mailchimp": {}, "mailgun": {}, "mandrillapp": {}, "amazonses": {},
	"sparkpostmail": {}, "klaviyomail": {}, "rsgsv": {}, "exacttarget": {}, "mcsv": {},
}

// second-level labels under country suffixes such as co.uk and com.au
var compoundSuffixes = map[string]struct{}{"co": {}, "com": {}, "org": {}, "net": {}, "ac": {}, "gov": {}}

type senderDomainRecognizer struct{}

func (senderDomainRecognizer) Source() Source { return SourceSenderDomain }

func (senderDomainRecognizer) Recognize(sig Signals) (string, bool) {
	name := FromSenderDomain(sig.domain())
	return name, name != ""
}

// FromSenderDomain title-cases the registrable label of a domain
// ("mail.store-name.com" -> "Store Name"). Any domain containing a mailbox
// provider name yields "", including shops like deliveroo.co.uk; those need a
// known-domain entry.
func FromSenderDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || constants.IsConsumerEmailDomain(domain) || constants.MentionsConsumerProvider(domain) {
		return ""
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return ""
	}
	labels = labels[:len(labels)-1]
	if n := len(labels); n >= 2 {
		if _, ok := compoundSuffixes[labels[n-1]]; ok {
			labels = labels[:n-1]
		}
	}
	base := labels[len(labels)-1]
	if _, skip := nonBrandLabels[base]; skip {
		return ""
	}
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' })
	if len(words) == 0 {
		return ""
	}
	name := cases.Title(language.Und).String(strings.Join(words, " "))
	if constants.IsConsumerProviderName(name) {
		return ""
	}
	return name
}
