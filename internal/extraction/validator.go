package extraction

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/llm"
)

// ValidationError means the tool payload did not satisfy the result schema.
// The orchestrator retries on it and on nothing else.
type ValidationError struct {
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction validation: %s: %v", e.Reason, e.Cause)
	}
	return "extraction validation: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, common.ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == common.ErrValidation }

// Validator checks tool payloads and turns them into a Result.
type Validator struct {
	strict bool
	schema *llm.Schema
	rules  llm.SanitizeRules
	logger *slog.Logger
}

type ValidatorOption func(*Validator)

// WithStrictSchema disables payload repair and rejects unknown keys.
func WithStrictSchema() ValidatorOption {
	return func(v *Validator) { v.strict = true }
}

func WithValidatorLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = l }
}

func NewValidator(opts ...ValidatorOption) (*Validator, error) {
	v := &Validator{rules: sanitizeRules()}
	for _, o := range opts {
		o(v)
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	schema, err := llm.CompileSchema(ToolParameters(v.strict))
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}
	v.schema = schema
	return v, nil
}

// Strict reports whether the validator runs in strict mode.
func (v *Validator) Strict() bool { return v.strict }

// Validate checks a raw tool payload. On success NeedsReview is the model's
// flag OR the local review rule.
func (v *Validator) Validate(raw json.RawMessage) (Result, error) {
	data := []byte(raw)
	if !v.strict {
		cleaned, err := v.repair(data)
		if err != nil {
			return Result{}, &ValidationError{Reason: "payload is not a JSON object", Cause: err}
		}
		data = cleaned
	}

	if err := v.schema.Validate(data); err != nil {
		return Result{}, &ValidationError{Reason: "schema mismatch", Cause: err}
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, &ValidationError{Reason: "decode result", Cause: err}
	}

	if err := checkResult(r); err != nil {
		return Result{}, &ValidationError{Reason: "field checks", Cause: err}
	}

	r.NeedsReview = r.NeedsReview || NeedsManualReview(r)
	return r, nil
}

// checkResult covers what JSON Schema cannot: calendar-valid dates and the
// rule that a mailbox provider is never a merchant.
func checkResult(r Result) error {
	cv := common.NewValidator().
		Field("merchant_name", r.MerchantName, common.Required).
		Optional("purchase_date", r.PurchaseDate, common.ISODate).
		Optional("estimated_delivery_date", r.EstimatedDeliveryDate, common.ISODate).
		Optional("currency", r.Currency, common.CurrencyCode).
		Field("confidence.overall", r.Confidence.Overall, common.OneOf(ConfidenceHigh, ConfidenceMedium, ConfidenceLow)).
		Field("confidence.merchant", r.Confidence.Merchant, common.Range(0, 1)).
		Field("confidence.amount", r.Confidence.Amount, common.Range(0, 1)).
		Field("confidence.date", r.Confidence.Date, common.Range(0, 1)).
		Field("confidence.email_type", r.Confidence.EmailType, common.Range(0, 1))
	if constants.IsConsumerProviderName(r.MerchantName) {
		cv.Add("merchant_name", r.MerchantName, "is an email provider, not a merchant")
	}
	return cv.Error()
}

// repair runs the generic sanitizer and then fixes or drops optional fields
// that would otherwise fail the schema. Required fields are never invented.
func (v *Validator) repair(data []byte) ([]byte, error) {
	cleaned, _, err := llm.NormalizeAndSanitizeJSON(data, v.rules, v.logger)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(cleaned, &m); err != nil {
		return nil, err
	}

	var dropped []string
	for _, k := range []string{"purchase_date", "estimated_delivery_date"} {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		if d, ok := parseLooseDate(s); ok {
			m[k] = d
		} else {
			delete(m, k)
			dropped = append(dropped, k)
		}
	}

	if s, ok := m["currency"].(string); ok {
		if code, ok := currencyCode(s); ok {
			m["currency"] = code
		} else {
			delete(m, "currency")
			dropped = append(dropped, "currency")
		}
	}

	if s, ok := m["merchant_category"].(string); ok {
		cat, _ := constants.Canonicalize(s)
		m["merchant_category"] = string(cat)
	}

	if s, ok := m["language"].(string); ok && !contains(constants.Languages(), s) {
		m["language"] = string(constants.LanguageOther)
	}

	if f, ok := m["total_amount"].(float64); ok && f < 0 {
		delete(m, "total_amount")
		dropped = append(dropped, "total_amount")
	}

	if len(dropped) > 0 {
		v.logger.Warn("extract.lenient_sanitize_applied", "dropped", dropped)
	}
	return json.Marshal(m)
}

var looseDateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

func parseLooseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

var currencySymbols = map[string]string{
	"KR": "NOK", "KR.": "NOK", ",-": "NOK", "$": "USD", "US$": "USD", "€": "EUR", "£": "GBP",
}

func currencyCode(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if code, ok := currencySymbols[s]; ok {
		return code, true
	}
	if len(s) == 3 && strings.IndexFunc(s, func(r rune) bool { return r < 'A' || r > 'Z' }) < 0 {
		return s, true
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
