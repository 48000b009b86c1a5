// Package amount finds money amounts in normalized email text.
package amount

import (
	"math"
	"regexp"
	"strings"
)

// Candidate is one parsed money amount.
type Candidate struct {
	Raw        string   `json:"raw"`
	Amount     *float64 `json:"amount"`
	Currency   string   `json:"currency,omitempty"`
	Confidence float64  `json:"confidence"`
}

func newCandidate(raw string, amount *float64, currency string) Candidate {
	conf := 0.5
	if currency != "" {
		conf += 0.3
	}
	if amount != nil && *amount > 0 && *amount < 1_000_000 {
		conf += 0.2
	}
	return Candidate{Raw: raw, Amount: amount, Currency: currency, Confidence: math.Min(conf, 1)}
}

// Value returns the amount or 0.
func (c Candidate) Value() float64 {
	if c.Amount == nil {
		return 0
	}
	return *c.Amount
}

// Normalizer runs recognizers in order.
type Normalizer struct {
	recognizers []Recognizer
}

// NewNormalizer uses DefaultRecognizers when none are given.
func NewNormalizer(recognizers ...Recognizer) *Normalizer {
	if len(recognizers) == 0 {
		recognizers = DefaultRecognizers()
	}
	return &Normalizer{recognizers: recognizers}
}

var std = NewNormalizer()

// NormalizeCurrency parses text with the default recognizers.
func NormalizeCurrency(text string) Candidate { return std.NormalizeCurrency(text) }

// ExtractAllAmounts scans text with the default recognizers.
func ExtractAllAmounts(text string) []Candidate { return std.ExtractAllAmounts(text) }

// FindTotalAmount picks the total with the default recognizers.
func FindTotalAmount(text string, candidates []Candidate) *Candidate {
	return std.FindTotalAmount(text, candidates)
}

// NormalizeCurrency returns the first recognizer match. Without a match the
// candidate has a nil Amount and zero confidence.
func (n *Normalizer) NormalizeCurrency(text string) Candidate {
	for _, r := range n.recognizers {
		if c, ok := r.Recognize(text); ok {
			return c
		}
	}
	return Candidate{Raw: strings.TrimSpace(text)}
}

var (
	sumKeywords      = []string{"total", "sum", "beløp", "totalt", "amount", "price", "pris", "summa", "beløb"}
	reCurrencyMarker = regexp.MustCompile(`(?i)(\bkr\b|\bkr\.|\bnok\b|€|\$|\beur\b|\busd\b|\bsek\b|\bdkk\b|\bgbp\b|\d,-)`)
)

// ExtractAllAmounts returns one candidate per line that mentions a sum keyword
// or a currency marker. Other lines are ignored to keep order numbers and
// phone numbers out.
func (n *Normalizer) ExtractAllAmounts(text string) []Candidate {
	var out []Candidate
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !mentionsMoney(line) {
			continue
		}
		if c := n.NormalizeCurrency(line); c.Amount != nil {
			out = append(out, c)
		}
	}
	return out
}

func mentionsMoney(line string) bool {
	lower := strings.ToLower(line)
	for _, k := range sumKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return reCurrencyMarker.MatchString(line)
}

// total keywords, strongest first; letters may not touch the keyword so that
// "subtotal" and "totalt" do not count as "total"
var totalTiers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[^\p{L}])(grand total|order total|total amount|total to pay|amount due|amount paid|totalt|totalbeløp|totalsum|å betale|att betala|i alt|totalt belopp)(?:[^\p{L}]|$)`),
	regexp.MustCompile(`(?i)(?:^|[^\p{L}])(total|sum|summa)(?:[^\p{L}]|$)`),
}

// FindTotalAmount looks for an explicit total line first, re-parsing that line
// (or the next one when the keyword stands alone) and boosting confidence by
// 0.2. Without a keyword hit the largest candidate wins.
func (n *Normalizer) FindTotalAmount(text string, candidates []Candidate) *Candidate {
	lines := strings.Split(text, "\n")
	for _, tier := range totalTiers {
		for i, line := range lines {
			if !tier.MatchString(line) {
				continue
			}
			c := n.NormalizeCurrency(line)
			if c.Amount == nil && i+1 < len(lines) {
				c = n.NormalizeCurrency(lines[i+1])
			}
			if c.Amount == nil {
				continue
			}
			c.Confidence = math.Min(c.Confidence+0.2, 1)
			return &c
		}
	}

	var best *Candidate
	for i := range candidates {
		c := candidates[i]
		if c.Amount == nil {
			continue
		}
		if best == nil || *c.Amount > *best.Amount {
			best = &c
		}
	}
	return best
}
