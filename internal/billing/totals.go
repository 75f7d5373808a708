// Package billing holds the pure invoice arithmetic and the pre-submission rules.
package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"rechnung/server/internal/models"
)

// TaxGroup sums the lines sharing one tax rate
type TaxGroup struct {
	Rate  float64
	Net   float64
	Tax   float64
	Gross float64
}

// LineTotal is the gross amount of one line
func LineTotal(item models.InvoiceItem) float64 {
	return item.Quantity * item.Price
}

// splitGross separates a tax-inclusive amount into net and tax parts
func splitGross(gross, rate float64) (net, tax float64) {
	net = gross / (1 + rate/100)
	return net, gross - net
}

// CalculateTotals derives the breakdown for the given lines. Prices are gross, so tax is
// extracted from them rather than added; discount and tip are applied after tax.
// No rounding happens here.
func CalculateTotals(items []models.InvoiceItem, discount, tip float64) models.Totals {
	var netSum, taxSum, grossSum float64
	for _, item := range items {
		gross := LineTotal(item)
		net, tax := splitGross(gross, item.Tax1)
		netSum += net
		taxSum += tax
		grossSum += gross
	}
	return models.Totals{
		Subtotal:      netSum,
		TotalTax1:     taxSum,
		TotalDiscount: discount,
		TotalTip:      tip,
		Total:         grossSum - discount + tip,
	}
}

// DraftTotals is CalculateTotals over a whole draft
func DraftTotals(inv models.Invoice) models.Totals {
	return CalculateTotals(inv.Items, inv.GlobalDiscount, inv.GlobalTip)
}

// LineItemsTotals computes totals for stored line items
func LineItemsTotals(items []models.LineItem, discount, tip float64) models.Totals {
	return CalculateTotals(FromLineItems(items, nil), discount, tip)
}

// TaxGroups groups lines by rate, ordered by ascending rate
func TaxGroups(items []models.InvoiceItem) []TaxGroup {
	byRate := make(map[float64]*TaxGroup)
	for _, item := range items {
		gross := LineTotal(item)
		net, tax := splitGross(gross, item.Tax1)
		g, ok := byRate[item.Tax1]
		if !ok {
			g = &TaxGroup{Rate: item.Tax1}
			byRate[item.Tax1] = g
		}
		g.Net += net
		g.Tax += tax
		g.Gross += gross
	}

	groups := make([]TaxGroup, 0, len(byRate))
	for _, g := range byRate {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Rate < groups[j].Rate })
	return groups
}

// GrossSum is the sum of all line totals
func GrossSum(items []models.InvoiceItem) float64 {
	var sum float64
	for _, item := range items {
		sum += LineTotal(item)
	}
	return sum
}

// Round2 rounds half away from zero to cents
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FormatAmount renders a money value for print, e.g. "119.00 €"
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + " €"
}

// FormatRate renders a tax rate without trailing zeros, e.g. "19" or "7.5"
func FormatRate(rate float64) string {
	return decimal.NewFromFloat(rate).String()
}

// ToLineItems strips client ids; names are trimmed
func ToLineItems(items []models.InvoiceItem) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.LineItem{
			Name:     trimName(item.Name),
			Quantity: item.Quantity,
			Price:    item.Price,
			Tax1:     item.Tax1,
		})
	}
	return out
}

// FromLineItems converts stored lines back to items, ids from newID (or empty when nil)
func FromLineItems(lines []models.LineItem, newID func() string) []models.InvoiceItem {
	out := make([]models.InvoiceItem, 0, len(lines))
	for _, li := range lines {
		item := models.InvoiceItem{
			Name:     li.Name,
			Quantity: li.Quantity,
			Price:    li.Price,
			Tax1:     li.Tax1,
		}
		if newID != nil {
			item.ID = newID()
		}
		out = append(out, item)
	}
	return out
}
