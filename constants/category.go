package constants

import (
	"strings"
)

type Category string

const (
	Electronics Category = "electronics"
	Clothing    Category = "clothing"
	Home        Category = "home"
	Beauty      Category = "beauty"
	Sports      Category = "sports"
	Toys        Category = "toys"
	Books       Category = "books"
	Groceries   Category = "groceries"
	Software    Category = "software"
	Travel      Category = "travel"
	Other       Category = "other"
)

var allCategories = []Category{
	Electronics,
	Clothing,
	Home,
	Beauty,
	Sports,
	Toys,
	Books,
	Groceries,
	Software,
	Travel,
	Other,
}

// CategoryDefaults are the common-sense delivery/return/warranty expectations
// handed to the model for each merchant category.
type CategoryDefaults struct {
	DeliveryDays   int
	ReturnDays     int
	WarrantyMonths int
}

var categoryDefaults = map[Category]CategoryDefaults{
	Electronics: {DeliveryDays: 3, ReturnDays: 30, WarrantyMonths: 24},
	Clothing:    {DeliveryDays: 5, ReturnDays: 30, WarrantyMonths: 0},
	Home:        {DeliveryDays: 7, ReturnDays: 30, WarrantyMonths: 24},
	Beauty:      {DeliveryDays: 4, ReturnDays: 14, WarrantyMonths: 0},
	Sports:      {DeliveryDays: 5, ReturnDays: 30, WarrantyMonths: 24},
	Toys:        {DeliveryDays: 5, ReturnDays: 30, WarrantyMonths: 12},
	Books:       {DeliveryDays: 5, ReturnDays: 14, WarrantyMonths: 0},
	Groceries:   {DeliveryDays: 1, ReturnDays: 0, WarrantyMonths: 0},
	Software:    {DeliveryDays: 0, ReturnDays: 14, WarrantyMonths: 0},
	Travel:      {DeliveryDays: 0, ReturnDays: 0, WarrantyMonths: 0},
	Other:       {DeliveryDays: 5, ReturnDays: 14, WarrantyMonths: 12},
}

// AngrerettDays is the Norwegian statutory cancellation period for online purchases.
const AngrerettDays = 14

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// DefaultsFor returns the category defaults, falling back to Other.
func DefaultsFor(c Category) CategoryDefaults {
	if d, ok := categoryDefaults[c]; ok {
		return d
	}
	return categoryDefaults[Other]
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"electronic":   Electronics,
		"computers":    Electronics,
		"phones":       Electronics,
		"fashion":      Clothing,
		"apparel":      Clothing,
		"shoes":        Clothing,
		"furniture":    Home,
		"household":    Home,
		"cosmetics":    Beauty,
		"outdoor":      Sports,
		"food":         Groceries,
		"grocery":      Groceries,
		"saas":         Software,
		"subscription": Software,
		"apps":         Software,
		"airline":      Travel,
		"hotel":        Travel,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return Other, false
}
