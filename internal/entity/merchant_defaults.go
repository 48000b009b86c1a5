package entity

// MerchantDefaults holds per-merchant warranty and return policy fallbacks.
type MerchantDefaults struct {
	ID                    int64  `json:"id"`
	MerchantNamePattern   string `json:"merchant_name_pattern"`
	DefaultWarrantyMonths *int   `json:"default_warranty_months,omitempty"`
	DefaultReturnDays     *int   `json:"default_return_days,omitempty"`
}
