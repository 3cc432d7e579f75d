package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/smallops/dealdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{0, "usd", "USD 0.00"},
		{5, "usd", "USD 0.05"},
		{1234, "USD", "USD 12.34"},
		{120000, "eur", "EUR 1200.00"},
		{-2500, "gbp", "GBP -25.00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatAmount(tc.amount, tc.currency))
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", FormatDate(time.Time{}))
	assert.Equal(t, "2024-03-01", FormatDate(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)))
}

func TestParseHexColor(t *testing.T) {
	color := parseHexColor("#1a2b3c")
	assert.Equal(t, 26, color.Red)
	assert.Equal(t, 43, color.Green)
	assert.Equal(t, 60, color.Blue)

	for _, raw := range []string{"", "fff", "#zzzzzz", "notacolor"} {
		color := parseHexColor(raw)
		assert.Zero(t, color.Red, "input %q", raw)
		assert.Zero(t, color.Green, "input %q", raw)
		assert.Zero(t, color.Blue, "input %q", raw)
	}
}

func TestRenderProducesPDF(t *testing.T) {
	docs := config.NewStaticDocumentsConfigHolder(config.DefaultDocumentsConfig())
	renderer := NewRenderer(docs)

	raw, err := renderer.Render(DocumentData{
		Title:         "Invoice",
		Number:        "INV-NORTHWIND-1001",
		Status:        "final",
		OrgName:       "Northwind Traders",
		OrgEmail:      "support@northwind.example",
		BillToName:    "Acme Fabrication",
		BillToEmail:   "ap@acme.example",
		BillToAddress: "12 Quay Street, Portsmouth",
		IssueDate:     "2024-03-01",
		DueDate:       "2024-03-31",
		Items: []DocumentItem{
			{Description: "Consulting", Qty: 2, UnitPrice: "USD 40.00", Amount: "USD 80.00"},
			{Description: "Support retainer", Qty: 1, UnitPrice: "USD 20.00", Amount: "USD 20.00"},
		},
		Subtotal: "USD 100.00",
		Tax:      "USD 20.00",
		Total:    "USD 120.00",
		Currency: "USD",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("%PDF")), "output does not look like a PDF")
}
