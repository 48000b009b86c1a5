package textnorm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_TableBecomesDelimitedBlock(t *testing.T) {
	body := `<html><head><style>td{color:red}</style></head><body>
<p>Thanks for your order</p>
<table><tr><th>Item</th><th>Price</th></tr><tr><td>Widget</td><td>99 kr</td></tr></table>
<script>alert(1)</script>
</body></html>`

	got := Normalize(body)

	assert.True(t, got.HasStructuredData)
	require.Len(t, got.Tables, 1)
	want := Table{Headers: []string{"Item", "Price"}, Rows: [][]string{{"Widget", "99 kr"}}}
	if diff := cmp.Diff(want, got.Tables[0]); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, got.Text, "=== TABLE ===\nItem | Price\nWidget | 99 kr\n=== END TABLE ===")
	assert.Contains(t, got.Text, "Thanks for your order")
	assert.NotContains(t, got.Text, "alert")
	assert.NotContains(t, got.Text, "color:red")
}

func TestNormalize_LayoutTablesAreFlattened(t *testing.T) {
	body := `<table><tr><td>
  <table><tr><td>Order #123</td><td>Total 250,00 kr</td></tr></table>
  <div>Footer&nbsp;text &amp; more</div>
</td></tr></table>`

	got := Normalize(body)

	require.Len(t, got.Tables, 1, "only the inner table holds data")
	assert.Equal(t, []string{"Order #123", "Total 250,00 kr"}, got.Tables[0].Headers)
	assert.Contains(t, got.Text, "Footer text & more")
	assert.NotContains(t, got.Text, "&amp;")
}

func TestNormalize_SingleColumnTableIsKept(t *testing.T) {
	body := `<p>Kvittering</p><table><tr><td>Jakke</td></tr><tr><td></td></tr><tr><td>Totalt kr 499,00</td></tr></table>`

	got := Normalize(body)

	require.Len(t, got.Tables, 1)
	assert.Equal(t, []string{"Jakke"}, got.Tables[0].Headers)
	assert.Equal(t, [][]string{{"Totalt kr 499,00"}}, got.Tables[0].Rows)
	assert.Contains(t, got.Text, "=== TABLE ===\nJakke\nTotalt kr 499,00\n=== END TABLE ===")
}

func TestNormalize_EmptyTableIsFlattened(t *testing.T) {
	got := Normalize(`<table><tr><td> </td></tr></table><p>Hei</p>`)
	assert.False(t, got.HasStructuredData)
	assert.Equal(t, "Hei", got.Text)
}

func TestNormalize_BlankLinesCollapsed(t *testing.T) {
	got := Normalize("<p>a</p><p></p><p></p><br><br><br><p>b</p>")
	assert.False(t, got.HasStructuredData)
	assert.NotContains(t, got.Text, "\n\n\n")
	assert.True(t, strings.HasPrefix(got.Text, "a"))
	assert.True(t, strings.HasSuffix(got.Text, "b"))
}

func TestNormalize_NeverFails(t *testing.T) {
	for _, in := range []string{"", "   ", "<<<>>>", "<div><p>unclosed", "plain text"} {
		assert.NotPanics(t, func() { Normalize(in) })
	}
	assert.Equal(t, "unclosed", Normalize("<div><p>unclosed").Text)
}

func TestNormalizePlain(t *testing.T) {
	got := NormalizePlain("Line one\r\n\r\n\r\n\r\nLine\t\ttwo   ")
	assert.Equal(t, "Line one\n\nLine two", got.Text)
}

func TestStripNoise(t *testing.T) {
	in := strings.Join([]string{
		"Hey, see below",
		"---------- Forwarded message ---------",
		"From: Elkjøp <noreply@elkjop.no>",
		"Date: Mon, 3 Jun 2024 at 10:00",
		"Subject: Ordrebekreftelse",
		"To: <kari.nordmann@gmail.com>",
		"",
		"Takk for kjøpet!",
		"Kontakt kundeservice@elkjop.no",
		"Sendt av ola@hotmail.com",
		"Fra: ola@outlook.com",
	}, "\n")

	got := StripNoise(in)

	assert.NotContains(t, got, "Forwarded message")
	assert.NotContains(t, got, "From:")
	assert.NotContains(t, got, "Fra:")
	assert.NotContains(t, got, "Date: Mon")
	assert.NotContains(t, got, "gmail.com")
	assert.NotContains(t, got, "hotmail.com")
	assert.Contains(t, got, "kundeservice@elkjop.no")
	assert.Contains(t, got, "Sendt av "+RedactedAddress)
	assert.Contains(t, got, "Takk for kjøpet!")
}

func TestStripNoise_KeepsBodyDateLines(t *testing.T) {
	got := StripNoise("Order summary\nDate: 2024-06-03\nTotal: 100 kr")
	assert.Contains(t, got, "Date: 2024-06-03")
}

func TestStripNoise_NordicMarkers(t *testing.T) {
	for _, marker := range []string{
		"-------- Videresendt melding --------",
		"---------- Vidarebefordrat meddelande ---------",
		"Begin forwarded message:",
		"-----Original Message-----",
	} {
		got := StripNoise("intro\n" + marker + "\nFra: Butikk <post@butikk.no>\n\nBody")
		assert.Equal(t, "intro\n\nBody", got, marker)
	}
}
