package extraction

import (
	"github.com/joseph-ayodele/purchase-sync/constants"
	"github.com/joseph-ayodele/purchase-sync/internal/llm"
)

// ToolName is the single tool the model is forced to call.
const ToolName = "extract_order_data"

const datePattern = `^\d{4}-\d{2}-\d{2}$`

var requiredFields = []string{
	"language", "email_type", "is_purchase", "merchant_name",
	"confidence", "needs_review", "has_invoice_attachment",
}

var confidenceFields = []string{"overall", "merchant", "amount", "date", "email_type"}

func score(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0, "description": desc}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func count(desc string) map[string]any {
	return map[string]any{"type": "integer", "minimum": 0, "description": desc}
}

// ToolParameters returns the JSON Schema of the tool input. Strict mode
// forbids unknown keys and requires every confidence score.
func ToolParameters(strict bool) map[string]any {
	confidence := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall":    map[string]any{"type": "string", "enum": []string{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}},
			"merchant":   score("Certainty of merchant_name, 0..1"),
			"amount":     score("Certainty of total_amount, 0..1"),
			"date":       score("Certainty of purchase_date, 0..1"),
			"email_type": score("Certainty of email_type, 0..1"),
		},
		"required": []string{"overall"},
	}
	items := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":     map[string]any{"type": "string", "minLength": 1},
			"price":    map[string]any{"type": "number", "minimum": 0.0},
			"quantity": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"name"},
	}

	props := map[string]any{
		"language":                map[string]any{"type": "string", "enum": constants.Languages()},
		"email_type":              map[string]any{"type": "string", "enum": constants.EmailTypes()},
		"is_purchase":             map[string]any{"type": "boolean", "description": "True only when money was spent or committed"},
		"merchant_name":           map[string]any{"type": "string", "minLength": 1, "description": "The shop or brand, never the mailbox provider"},
		"merchant_category":       map[string]any{"type": "string", "enum": constants.AsStringSlice()},
		"merchant_website":        str("Merchant website domain"),
		"order_number":            str("Order or receipt number as printed"),
		"purchase_date":           map[string]any{"type": "string", "pattern": datePattern, "description": "YYYY-MM-DD"},
		"total_amount":            map[string]any{"type": "number", "minimum": 0.0, "description": "Grand total paid"},
		"currency":                map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`, "description": "ISO 4217 code"},
		"item_name":               str("Main item when there is exactly one"),
		"items_list":              map[string]any{"type": "array", "items": items},
		"items_count":             count("Number of distinct items"),
		"return_deadline_days":    count("Return window in days when stated"),
		"warranty_months":         count("Warranty in months when stated"),
		"estimated_delivery_date": map[string]any{"type": "string", "pattern": datePattern},
		"tracking_number":         str("Carrier tracking number"),
		"has_invoice_attachment":  map[string]any{"type": "boolean"},
		"confidence":              confidence,
		"extraction_notes":        str("Short note on anything uncertain"),
		"needs_review":            map[string]any{"type": "boolean"},
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   requiredFields,
	}
	if strict {
		schema["additionalProperties"] = false
		confidence["additionalProperties"] = false
		confidence["required"] = confidenceFields
	}
	return schema
}

// Tool returns the tool definition sent to the provider.
func Tool(strict bool) llm.Tool {
	return llm.Tool{
		Name:        ToolName,
		Description: "Record the structured order data found in one email.",
		Parameters:  ToolParameters(strict),
	}
}

func sanitizeRules() llm.SanitizeRules {
	root := make([]string, 0, 21)
	for k := range ToolParameters(false)["properties"].(map[string]any) {
		root = append(root, k)
	}
	return llm.SanitizeRules{
		Renames: map[string]string{
			"merchant":             "merchant_name",
			"merchantName":         "merchant_name",
			"store":                "merchant_name",
			"type":                 "email_type",
			"emailType":            "email_type",
			"isPurchase":           "is_purchase",
			"order_id":             "order_number",
			"orderNumber":          "order_number",
			"date":                 "purchase_date",
			"order_date":           "purchase_date",
			"purchaseDate":         "purchase_date",
			"total":                "total_amount",
			"amount":               "total_amount",
			"totalAmount":          "total_amount",
			"currency_code":        "currency",
			"items":                "items_list",
			"itemsList":            "items_list",
			"needsReview":          "needs_review",
			"hasInvoiceAttachment": "has_invoice_attachment",
			"notes":                "extraction_notes",
		},
		Allowed: map[string][]string{
			"":           root,
			"confidence": confidenceFields,
		},
		Numbers:  []string{"total_amount", "confidence.merchant", "confidence.amount", "confidence.date", "confidence.email_type", "items_list[].price"},
		Integers: []string{"items_count", "return_deadline_days", "warranty_months", "items_list[].quantity"},
		Bools:    []string{"is_purchase", "needs_review", "has_invoice_attachment"},
		Upper:    []string{"currency"},
		Lower:    []string{"language", "email_type", "merchant_category", "confidence.overall"},
	}
}
