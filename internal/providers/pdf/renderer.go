package pdf

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	mconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallops/dealdesk/internal/config"
)

// DocumentData is the renderer input, built by the worker from a quote
// or invoice row plus its organization and line items.
type DocumentData struct {
	Title         string
	Number        string
	Status        string
	OrgName       string
	OrgEmail      string
	BillToName    string
	BillToEmail   string
	BillToAddress string
	IssueDate     string
	DueDate       string
	Items         []DocumentItem
	Subtotal      string
	Tax           string
	Total         string
	Currency      string
}

type DocumentItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

// Renderer produces PDF bytes for quote and invoice documents.
type Renderer struct {
	docs *config.DocumentsConfigHolder
}

func NewRenderer(docs *config.DocumentsConfigHolder) *Renderer {
	return &Renderer{docs: docs}
}

func (r *Renderer) Render(data DocumentData) ([]byte, error) {
	cfg := mconfig.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	accent := parseHexColor(r.docs.Get().PDFAccentColorHex)

	m.AddRow(14,
		text.NewCol(12, data.Title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
			Color: accent,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Number: "+data.Number, props.Text{Top: 0}),
			text.New("Status: "+data.Status, props.Text{Top: 4}),
			text.New("Issue date: "+data.IssueDate, props.Text{Top: 8}),
			text.New("Due date: "+data.DueDate, props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(32,
		col.New(6).Add(
			text.New(data.OrgName, props.Text{Style: fontstyle.Bold}),
			text.New(data.OrgEmail, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(data.BillToName, props.Text{Top: 5}),
			text.New(data.BillToAddress, props.Text{Top: 9}),
			text.New(data.BillToEmail, props.Text{Top: 17}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(12,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, data.Tax, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if footer := r.docs.Get().PDFFooterText; footer != "" {
		m.AddRow(12,
			text.NewCol(12, footer, props.Text{Size: 8, Top: 4, Align: align.Center}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

// FormatAmount renders an integer minor-unit amount as "CUR 12.34".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s %s%d.%02d", strings.ToUpper(currency), sign, amount/100, amount%100)
}

// FormatDate renders a timestamp as a bare date, empty when zero.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func parseHexColor(hex string) *props.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return &props.Color{}
	}
	red, err1 := strconv.ParseInt(hex[0:2], 16, 16)
	green, err2 := strconv.ParseInt(hex[2:4], 16, 16)
	blue, err3 := strconv.ParseInt(hex[4:6], 16, 16)
	if err1 != nil || err2 != nil || err3 != nil {
		return &props.Color{}
	}
	return &props.Color{Red: int(red), Green: int(green), Blue: int(blue)}
}
