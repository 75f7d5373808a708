// Package render produces the printable forms of a stored invoice.
package render

import (
	"strings"

	"rechnung/server/internal/billing"
	"rechnung/server/internal/models"
)

// Line is one printed row
type Line struct {
	Name     string
	Quantity float64
	Price    float64
	Tax1     float64
	Total    float64
}

// Document is the print view of an invoice. All sums are computed from the lines, so an
// inconsistent stored total never reaches paper.
type Document struct {
	Number        string
	Date          string
	DeliveryDate  string
	PaymentMethod string
	Currency      string
	Company       models.CompanyInfo
	Customer      models.CustomerInfo
	Lines         []Line
	Net           float64
	TaxGroups     []billing.TaxGroup
	Discount      float64
	Tip           float64
	GrandTotal    float64
}

// NewDocument builds the print view; discount and tip come from the payload totals
func NewDocument(p models.InvoicePayload) Document {
	items := billing.FromLineItems(p.Items, nil)
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
			Tax1:     item.Tax1,
			Total:    billing.LineTotal(item),
		})
	}

	totals := billing.CalculateTotals(items, p.Totals.TotalDiscount, p.Totals.TotalTip)
	return Document{
		Number:        p.InvoiceNumber,
		Date:          p.Date,
		DeliveryDate:  p.DeliveryDate,
		PaymentMethod: p.PaymentMethod.Label(),
		Currency:      models.DefaultCurrency,
		Company:       p.Company,
		Customer:      p.Customer,
		Lines:         lines,
		Net:           totals.Subtotal,
		TaxGroups:     billing.TaxGroups(items),
		Discount:      totals.TotalDiscount,
		Tip:           totals.TotalTip,
		GrandTotal:    totals.Total,
	}
}

// CustomFields returns the non-blank extra customer lines
func (d Document) CustomFields() []string {
	var out []string
	for _, f := range []string{d.Customer.CustomField1, d.Customer.CustomField2} {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

// FileName is the download name of the rendered invoice
func (d Document) FileName(ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, d.Number)
	if name == "" {
		name = "rechnung"
	}
	return "Rechnung_" + name + "." + ext
}

func formatQuantity(q float64) string {
	return billing.FormatRate(q)
}
