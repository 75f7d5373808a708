package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"rechnung/server/internal/models"
)

const exportSheet = "Rechnungen"

var exportHeaders = []interface{}{
	"Rechnungsnummer", "Datum", "Lieferdatum", "Kunde", "Adresse", "PLZ", "Stadt",
	"Zahlungsart", "Netto", "Steuer", "Rabatt", "Trinkgeld", "Gesamt", "Währung",
}

// ExportService renders invoice lists as spreadsheets
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

// InvoicesXLSX writes one row per invoice under a bold header row
func (s *ExportService) InvoicesXLSX(invoices []models.StoredInvoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	_ = f.SetRowStyle(exportSheet, 1, 1, bold)

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	for i, inv := range invoices {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			inv.InvoiceNumber,
			inv.Date,
			inv.DeliveryDate,
			inv.Customer.Name,
			inv.Customer.Address,
			inv.Customer.PostalCode,
			inv.Customer.City,
			inv.PaymentMethod.Label(),
			inv.Totals.Subtotal,
			inv.Totals.TotalTax1,
			inv.Totals.TotalDiscount,
			inv.Totals.TotalTip,
			inv.Totals.Total,
			inv.Currency,
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		from, _ := excelize.CoordinatesToCellName(9, row)
		to, _ := excelize.CoordinatesToCellName(13, row)
		_ = f.SetCellStyle(exportSheet, from, to, money)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
