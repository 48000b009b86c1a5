package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		in       string
		amount   float64
		currency string
		conf     float64
	}{
		{"kr 1.217,00", 1217.00, "NOK", 1.0},
		{"$1,234.56", 1234.56, "USD", 1.0},
		{"Totalt: 499,- ", 499, "NOK", 1.0},
		{"Sum 1 299,50 kr", 1299.50, "NOK", 1.0},
		{"NOK 89,90", 89.90, "NOK", 1.0},
		{"€ 1.234,56", 1234.56, "EUR", 1.0},
		{"12,99 €", 12.99, "EUR", 1.0},
		{"Total 1,299.00 SEK", 1299.00, "SEK", 1.0},
		{"Total 1.299,00 DKK", 1299.00, "DKK", 1.0},
		{"GBP 45.00", 45.00, "GBP", 1.0},
		{"Amount 42.50", 42.50, "", 0.7},
		{"kr 2.000.000,00", 2_000_000, "NOK", 0.8},
		{"1,299.00 NOK", 1299.00, "NOK", 1.0},
		{"Total: 499.00 NOK", 499.00, "NOK", 1.0},
		{"NOK 1,299.00", 1299.00, "NOK", 1.0},
		{"kr 1217.50", 1217.50, "NOK", 1.0},
		{"kr 1.217", 1217, "NOK", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeCurrency(tt.in)
			require.NotNil(t, got.Amount)
			assert.InDelta(t, tt.amount, *got.Amount, 0.001)
			assert.Equal(t, tt.currency, got.Currency)
			assert.InDelta(t, tt.conf, got.Confidence, 0.0001)
		})
	}
}

func TestNormalizeCurrency_RawCoversWholeNumber(t *testing.T) {
	got := NormalizeCurrency("Sum 1,299.00 NOK")
	require.NotNil(t, got.Amount)
	assert.Equal(t, "1,299.00 NOK", got.Raw)
}

func TestNormalizeCurrency_NoMatch(t *testing.T) {
	got := NormalizeCurrency("no money here")
	assert.Nil(t, got.Amount)
	assert.Empty(t, got.Currency)
	assert.Zero(t, got.Confidence)
}

func TestNormalizeCurrency_Deterministic(t *testing.T) {
	in := "Totalt å betale: kr 3.499,00 (inkl. mva 699,80)"
	first := NormalizeCurrency(in)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, NormalizeCurrency(in))
	}
}

func TestNormalizeCurrency_ConfidenceBounds(t *testing.T) {
	for _, in := range []string{"kr 0,00", "$5", "99.99", "EUR 0.50", "1 000 000,00 kr"} {
		c := NormalizeCurrency(in)
		assert.GreaterOrEqual(t, c.Confidence, 0.0, in)
		assert.LessOrEqual(t, c.Confidence, 1.0, in)
	}
}

func TestExtractAllAmounts_OnlyMoneyLines(t *testing.T) {
	text := "Ordrenummer 123456.00\nTelefon 22 33 44 55\nWidget 199,- \nFrakt kr 49,00\nTotalt kr 248,00"
	got := ExtractAllAmounts(text)

	require.Len(t, got, 3)
	assert.InDelta(t, 199, got[0].Value(), 0.001)
	assert.InDelta(t, 49, got[1].Value(), 0.001)
	assert.InDelta(t, 248, got[2].Value(), 0.001)
}

func TestFindTotalAmount_KeywordBeatsLargerFallback(t *testing.T) {
	text := "TV 55\" kr 8.990,00\nRabatt kr 1.000,00\nTotalt kr 7.990,00"
	cands := ExtractAllAmounts(text)

	got := FindTotalAmount(text, cands)

	require.NotNil(t, got)
	assert.InDelta(t, 7990, got.Value(), 0.001)
	assert.Equal(t, "NOK", got.Currency)
	assert.InDelta(t, 1.0, got.Confidence, 0.0001)
}

func TestFindTotalAmount_KeywordOnNextLine(t *testing.T) {
	text := "Item | Price\nGrand Total\n$59.90"
	got := FindTotalAmount(text, nil)
	require.NotNil(t, got)
	assert.InDelta(t, 59.90, got.Value(), 0.001)
}

func TestFindTotalAmount_SubtotalIsNotTotal(t *testing.T) {
	text := "Subtotal $80.00\nShipping $5.00\nTotal $85.00"
	got := FindTotalAmount(text, ExtractAllAmounts(text))
	require.NotNil(t, got)
	assert.InDelta(t, 85, got.Value(), 0.001)
}

func TestFindTotalAmount_FallbackLargest(t *testing.T) {
	text := "Widget 99 kr\nGadget 149 kr"
	cands := ExtractAllAmounts(text)
	got := FindTotalAmount(text, cands)
	require.NotNil(t, got)
	assert.InDelta(t, 149, got.Value(), 0.001)
	assert.InDelta(t, 1.0, got.Confidence, 0.0001, "fallback keeps its own confidence")
}

func TestFindTotalAmount_Nothing(t *testing.T) {
	assert.Nil(t, FindTotalAmount("hello", nil))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw   string
		style Style
		want  float64
	}{
		{"1.234,56", StyleEU, 1234.56},
		{"1,234.56", StyleUS, 1234.56},
		{"1,234", StyleAuto, 1234},
		{"12,5", StyleAuto, 12.5},
		{"1.234.567", StyleAuto, 1234567},
		{"1 299,00", StyleAuto, 1299},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.raw, tt.style)
		require.True(t, ok, tt.raw)
		assert.InDelta(t, tt.want, got, 0.0001, tt.raw)
	}
	_, ok := ParseNumber("", StyleAuto)
	assert.False(t, ok)
}

func TestFindTotalAmount_TotalLineBeatsLargerUnrelatedAmount(t *testing.T) {
	text := "Total: kr 500,00\nkr 2000,00"
	cands := ExtractAllAmounts(text)
	require.Len(t, cands, 2)

	got := FindTotalAmount(text, cands)

	require.NotNil(t, got)
	assert.InDelta(t, 500.00, got.Value(), 0.001)
}
