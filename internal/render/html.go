package render

import (
	"bytes"
	"html/template"
	"strings"

	"rechnung/server/internal/billing"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="de">
<head>
  <meta charset="utf-8" />
  <title>Rechnung {{.Number}}</title>
  <style>
    * { box-sizing: border-box; }
    body { margin: 0; padding: 16px; font-family: "Helvetica Neue", Arial, sans-serif; color: #111827; }
    .page { width: 210mm; margin: 0 auto; }
    .header { display: flex; justify-content: space-between; align-items: flex-end; height: 8rem; margin-bottom: 24px; }
    .header h1 { font-size: 28px; letter-spacing: 0.05em; margin: 0; }
    .header img { max-height: 8rem; max-width: 220px; }
    .blocks { display: flex; gap: 48px; margin-bottom: 16px; font-size: 12px; }
    .block { flex: 1; padding: 12px; border-radius: 4px; background: #f9fafb; }
    .block.company { background: #eff6ff; }
    .block h2 { font-size: 14px; margin: 0 0 8px; }
    .bank { border-top: 1px solid #bfdbfe; margin-top: 12px; padding-top: 8px; }
    .indent { margin-left: 40px; }
    .details { border: 1px solid #e5e7eb; padding: 12px; margin-bottom: 16px; font-size: 12px; }
    .details div { display: flex; justify-content: space-between; }
    table { width: 100%; border-collapse: collapse; font-size: 12px; margin-bottom: 16px; }
    th, td { border: 1px solid #d1d5db; padding: 8px; text-align: center; }
    th { background: #f9fafb; color: #6b7280; text-transform: uppercase; font-weight: 500; }
    td.name, th.name { text-align: left; }
    .summary { display: flex; flex-direction: column; align-items: flex-end; font-size: 12px; }
    .summary div { display: flex; justify-content: space-between; width: 100%; color: #4b5563; }
    .summary .grand { font-size: 16px; font-weight: bold; color: #111827; margin-top: 8px; }
    .thanks { margin-top: 32px; text-align: center; background: #eff6ff; padding: 16px; border-radius: 8px; }
    @media print { body { padding: 0; } }
  </style>
</head>
<body>
  <div class="page">
    <div class="header">
      <h1>RECHNUNG</h1>
      {{with logo .Company.Logo}}<img src="{{.}}" alt="Firmenlogo" />{{end}}
    </div>

    <div class="blocks">
      <div class="block">
        <h2>Kundeninformationen</h2>
        <div><strong>Name:</strong> {{.Customer.Name}}</div>
        {{range .CustomFields}}<div class="indent">{{.}}</div>{{end}}
        <div><strong>Adresse:</strong> {{.Customer.Address}}</div>
        <div><strong>Stadt:</strong> {{.Customer.PostalCode}} {{.Customer.City}}</div>
      </div>
      <div class="block company">
        <h2>Firmeninformationen</h2>
        <div><strong>Name:</strong> {{.Company.Name}}</div>
        {{if .Company.Owner}}<div><strong>Inhaber:</strong> {{.Company.Owner}}</div>{{end}}
        <div><strong>Adresse:</strong> {{.Company.Address}}</div>
        <div><strong>Stadt:</strong> {{.Company.PostalCode}} {{.Company.City}}</div>
        <div><strong>Telefon:</strong> {{.Company.Phone}}</div>
        <div><strong>E-Mail:</strong> {{.Company.Email}}</div>
        <div><strong>Steuernummer:</strong> {{.Company.TaxNumber}}</div>
        <div class="bank">
          <h2>Bankverbindung</h2>
          <div><strong>Bank Name:</strong> {{.Company.BankName}}</div>
          <div><strong>Kontonummer:</strong> {{.Company.AccountNumber}}</div>
          <div><strong>IBAN:</strong> {{.Company.IBAN}}</div>
          <div><strong>SWIFT/BIC:</strong> {{.Company.SWIFT}}</div>
        </div>
      </div>
    </div>

    <div class="blocks">
      <div>
        <div><strong>Datum:</strong> {{.Date}}</div>
        {{if .DeliveryDate}}<div><strong>Lieferdatum:</strong> {{.DeliveryDate}}</div>{{end}}
      </div>
    </div>

    <div class="details">
      <div><strong>Rechnungsnummer:</strong><span>{{.Number}}</span></div>
      <div><strong>Zahlungsart:</strong><span>{{.PaymentMethod}}</span></div>
    </div>

    {{if .Lines}}
    <table>
      <thead>
        <tr>
          <th class="name">Artikelname</th>
          <th>Menge</th>
          <th>Bruttopreis</th>
          <th>Steuer (%)</th>
          <th>Gesamtbetrag</th>
        </tr>
      </thead>
      <tbody>
        {{range .Lines}}
        <tr>
          <td class="name">{{.Name}}</td>
          <td>{{formatQuantity .Quantity}}</td>
          <td>{{formatPlain .Price}}</td>
          <td>{{formatRate .Tax1}} %</td>
          <td>{{formatPlain .Total}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}

    <div class="summary">
      <div><span>Netto:</span><span>{{formatAmount .Net}}</span></div>
      {{range .TaxGroups}}
      <div><span>Steuer {{formatRate .Rate}}%:</span><span>{{formatAmount .Tax}}</span></div>
      {{end}}
      {{if gt .Discount 0.0}}<div><span>Rabatt:</span><span>- {{formatAmount .Discount}}</span></div>{{end}}
      {{if gt .Tip 0.0}}<div><span>Trinkgeld:</span><span>{{formatAmount .Tip}}</span></div>{{end}}
      <div class="grand"><span>Gesamtbetrag (Brutto):</span><span>{{formatAmount .GrandTotal}}</span></div>
    </div>

    <div class="thanks">
      <h3>Vielen Dank!</h3>
      <p>Vielen Dank für Ihr Vertrauen. Wir schätzen Ihr Geschäft und freuen uns darauf, Sie wieder bedienen zu dürfen.</p>
    </div>
  </div>
</body>
</html>
`

// HTMLRenderer renders the German print layout
type HTMLRenderer struct {
	tpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	funcs := template.FuncMap{
		"formatAmount":   billing.FormatAmount,
		"formatPlain":    formatPlain,
		"formatRate":     billing.FormatRate,
		"formatQuantity": formatQuantity,
		"logo":           logoURL,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) Render(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatPlain is FormatAmount without the currency sign
func formatPlain(v float64) string {
	return strings.TrimSuffix(billing.FormatAmount(v), " €")
}

// logoURL only lets image data URIs and http(s) links through
func logoURL(logo string) template.URL {
	logo = strings.TrimSpace(logo)
	switch {
	case strings.HasPrefix(logo, "data:image/"),
		strings.HasPrefix(logo, "https://"),
		strings.HasPrefix(logo, "http://"):
		return template.URL(logo)
	default:
		return ""
	}
}
