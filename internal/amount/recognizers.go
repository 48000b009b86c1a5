package amount

import (
	"regexp"
	"strconv"
	"strings"
)

// Style is the decimal convention a recognizer expects.
type Style int

const (
	StyleAuto Style = iota
	StyleEU         // 1.234,56
	StyleUS         // 1,234.56
)

// Recognizer finds one money amount in a piece of text.
type Recognizer interface {
	Name() string
	Recognize(text string) (Candidate, bool)
}

const (
	numEU   = `\d{1,3}(?:[. \x{00a0}]\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?`
	numUS   = `\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?`
	numAuto = `\d{1,3}(?:[., \x{00a0}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`
	numDot  = `\d{1,3}(?:,\d{3})+\.\d{1,2}|\d+\.\d{1,2}`
)

// ISO codes accepted next to a bare number.
var knownCodes = map[string]struct{}{
	"NOK": {}, "SEK": {}, "DKK": {}, "EUR": {}, "USD": {}, "GBP": {}, "CHF": {},
	"ISK": {}, "PLN": {}, "CAD": {}, "AUD": {}, "JPY": {}, "CNY": {},
}

type patternRecognizer struct {
	name     string
	re       *regexp.Regexp
	currency string // fixed currency, or "" to read the code group
	style    Style
}

func newPattern(name, expr, currency string, style Style) *patternRecognizer {
	return &patternRecognizer{name: name, re: regexp.MustCompile(expr), currency: currency, style: style}
}

func (p *patternRecognizer) Name() string { return p.name }

func (p *patternRecognizer) Recognize(text string) (Candidate, bool) {
	numIdx := p.re.SubexpIndex("num")
	codeIdx := p.re.SubexpIndex("code")
	for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2*numIdx], loc[2*numIdx+1]
		if !wholeNumber(text, start, end) {
			continue
		}
		currency := p.currency
		if codeIdx >= 0 {
			code := text[loc[2*codeIdx]:loc[2*codeIdx+1]]
			if _, ok := knownCodes[code]; !ok {
				continue
			}
			currency = code
		}
		v, ok := ParseNumber(text[start:end], p.style)
		if !ok {
			continue
		}
		return newCandidate(strings.TrimSpace(text[loc[0]:loc[1]]), &v, currency), true
	}
	return Candidate{}, false
}

// wholeNumber reports whether text[start:end] is not a slice of a longer
// number, such as the "00" of "1,299.00" or the "1,29" of "1,299.00".
func wholeNumber(text string, start, end int) bool {
	if start > 0 {
		prev := text[start-1]
		if isDigit(prev) {
			return false
		}
		if (prev == '.' || prev == ',') && start > 1 && isDigit(text[start-2]) {
			return false
		}
	}
	if end < len(text) {
		next := text[end]
		if isDigit(next) {
			return false
		}
		if (next == '.' || next == ',') && end+1 < len(text) && isDigit(text[end+1]) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// DefaultRecognizers returns the locale patterns in priority order; the first
// recognizer that matches decides. "kr" and NOK amounts read either decimal
// style since Norwegian shops print both.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		newPattern("nok_prefix", `(?i)(?:\bkr\.?|\bnok)\s*(?P<num>`+numAuto+`)(?:,-)?`, "NOK", StyleAuto),
		newPattern("nok_suffix", `(?i)(?P<num>`+numAuto+`)(?:,-)?\s*(?:kr\b|kr\.|nok\b)`, "NOK", StyleAuto),
		newPattern("nok_dash", `(?P<num>\d{1,3}(?:[. \x{00a0}]\d{3})+|\d+),-`, "NOK", StyleEU),
		newPattern("eur_prefix", `€\s*(?P<num>`+numAuto+`)`, "EUR", StyleAuto),
		newPattern("eur_suffix", `(?i)(?P<num>`+numAuto+`)\s*(?:€|\beur\b)`, "EUR", StyleAuto),
		newPattern("usd", `(?i)(?:\$|\busd\s*)(?P<num>`+numUS+`)`, "USD", StyleUS),
		newPattern("code_suffix_us", `(?P<num>`+numDot+`)\s*(?P<code>[A-Z]{3})\b`, "", StyleUS),
		newPattern("code_suffix_eu", `(?P<num>`+numEU+`)\s*(?P<code>[A-Z]{3})\b`, "", StyleEU),
		newPattern("code_prefix", `\b(?P<code>[A-Z]{3})\s*(?P<num>`+numAuto+`)`, "", StyleAuto),
		newPattern("generic", `(?P<num>\d+[.,]\d{2})\b`, "", StyleAuto),
	}
}

// ParseNumber converts a localized number string to a float.
func ParseNumber(raw string, style Style) (float64, bool) {
	s := strings.NewReplacer(" ", "", "\u00a0", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	switch style {
	case StyleEU:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case StyleUS:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = autoDecimal(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// autoDecimal treats the last separator as decimal when one or two digits
// follow it, otherwise every separator is a thousands separator.
func autoDecimal(s string) string {
	last := strings.LastIndexAny(s, ".,")
	if last < 0 {
		return s
	}
	intPart := strings.NewReplacer(".", "", ",", "").Replace(s[:last])
	frac := s[last+1:]
	if len(frac) >= 1 && len(frac) <= 2 {
		return intPart + "." + frac
	}
	return intPart + frac
}
