package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"rechnung/server/internal/billing"
)

// PDFRenderer lays the invoice out on A4 with the core fonts
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render writes the PDF to w
func (r *PDFRenderer) Render(doc Document, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252 covers umlauts and €
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(100, 14, "RECHNUNG", "", 0, "L", false, 0, "")
	drawLogo(pdf, doc.Company.Logo)
	pdf.Ln(20)

	top := pdf.GetY()
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(85, 6, tr("Kundeninformationen"))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	labelLine(pdf, tr, "Name", doc.Customer.Name)
	for _, f := range doc.CustomFields() {
		pdf.SetX(pdf.GetX() + 10)
		pdf.Cell(75, 5, tr(f))
		pdf.Ln(5)
	}
	labelLine(pdf, tr, "Adresse", doc.Customer.Address)
	labelLine(pdf, tr, "Stadt", strings.TrimSpace(doc.Customer.PostalCode+" "+doc.Customer.City))
	leftBottom := pdf.GetY()

	pdf.SetXY(110, top)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(85, 6, tr("Firmeninformationen"))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	c := doc.Company
	rightLine := func(label, value string) {
		pdf.SetX(110)
		labelLine(pdf, tr, label, value)
	}
	rightLine("Name", c.Name)
	if c.Owner != "" {
		rightLine("Inhaber", c.Owner)
	}
	rightLine("Adresse", c.Address)
	rightLine("Stadt", strings.TrimSpace(c.PostalCode+" "+c.City))
	rightLine("Telefon", c.Phone)
	rightLine("E-Mail", c.Email)
	rightLine("Steuernummer", c.TaxNumber)
	pdf.SetX(110)
	pdf.SetFont("Arial", "B", 9)
	pdf.Cell(85, 6, "Bankverbindung")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	rightLine("Bank Name", c.BankName)
	rightLine("Kontonummer", c.AccountNumber)
	rightLine("IBAN", c.IBAN)
	rightLine("SWIFT/BIC", c.SWIFT)

	if pdf.GetY() < leftBottom {
		pdf.SetY(leftBottom)
	}
	pdf.Ln(4)
	labelLine(pdf, tr, "Datum", doc.Date)
	if doc.DeliveryDate != "" {
		labelLine(pdf, tr, "Lieferdatum", doc.DeliveryDate)
	}
	pdf.Ln(2)
	labelLine(pdf, tr, "Rechnungsnummer", doc.Number)
	labelLine(pdf, tr, "Zahlungsart", doc.PaymentMethod)
	pdf.Ln(4)

	if len(doc.Lines) > 0 {
		widths := []float64{70, 20, 30, 30, 30}
		headers := []string{"Artikelname", "Menge", "Bruttopreis", "Steuer (%)", "Gesamtbetrag"}
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(249, 250, 251)
		for i, h := range headers {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		for _, l := range doc.Lines {
			pdf.CellFormat(widths[0], 6, tr(l.Name), "1", 0, "L", false, 0, "")
			pdf.CellFormat(widths[1], 6, formatQuantity(l.Quantity), "1", 0, "C", false, 0, "")
			pdf.CellFormat(widths[2], 6, formatPlain(l.Price), "1", 0, "C", false, 0, "")
			pdf.CellFormat(widths[3], 6, billing.FormatRate(l.Tax1)+" %", "1", 0, "C", false, 0, "")
			pdf.CellFormat(widths[4], 6, formatPlain(l.Total), "1", 0, "C", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	sumLine := func(label, value string) {
		pdf.SetX(115)
		pdf.CellFormat(50, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 5, tr(value), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "", 9)
	sumLine("Netto:", billing.FormatAmount(doc.Net))
	for _, g := range doc.TaxGroups {
		sumLine("Steuer "+billing.FormatRate(g.Rate)+"%:", billing.FormatAmount(g.Tax))
	}
	if doc.Discount > 0 {
		sumLine("Rabatt:", "- "+billing.FormatAmount(doc.Discount))
	}
	if doc.Tip > 0 {
		sumLine("Trinkgeld:", billing.FormatAmount(doc.Tip))
	}
	pdf.SetFont("Arial", "B", 11)
	sumLine("Gesamtbetrag (Brutto):", billing.FormatAmount(doc.GrandTotal))

	pdf.Ln(12)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 7, "Vielen Dank!", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	pdf.MultiCell(0, 4, tr("Vielen Dank für Ihr Vertrauen. Wir schätzen Ihr Geschäft und freuen uns darauf, Sie wieder bedienen zu dürfen."), "", "C", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// Bytes renders into memory
func (r *PDFRenderer) Bytes(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func labelLine(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Arial", "B", 9)
	w := pdf.GetStringWidth(label+": ") + 1
	pdf.Cell(w, 5, tr(label+":"))
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(80, 5, tr(value))
	pdf.Ln(5)
}

// drawLogo places a data URI logo top right; unsupported or broken logos are skipped
func drawLogo(pdf *gofpdf.Fpdf, logo string) {
	const prefix = "data:image/"
	if !strings.HasPrefix(logo, prefix) {
		return
	}
	meta, payload, ok := strings.Cut(logo[len(prefix):], ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return
	}
	imageType := strings.ToUpper(strings.TrimSuffix(meta, ";base64"))
	if imageType == "JPEG" {
		imageType = "JPG"
	}
	if imageType != "PNG" && imageType != "JPG" {
		return
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return
	}

	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(data))
	if !pdf.Ok() {
		pdf.ClearError()
		return
	}
	pdf.ImageOptions("logo", 145, 10, 0, 28, false, opts, 0, "")
}
