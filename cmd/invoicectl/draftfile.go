package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rechnung/server/internal/models"
)

// loadDraftFile reads a YAML draft. Unknown keys are rejected so typos do not silently drop data.
func loadDraftFile(path string) (models.Invoice, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("failed to open draft file: %w", err)
	}
	defer f.Close()

	var inv models.Invoice
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&inv); err != nil {
		return models.Invoice{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if c := strings.TrimSpace(inv.Currency); c != "" && !strings.EqualFold(c, models.DefaultCurrency) {
		return models.Invoice{}, fmt.Errorf("%s: currency %q not supported, invoices are issued in %s", path, c, models.DefaultCurrency)
	}
	return inv, nil
}

// mergeDraft lays the file over base. Number, date, issuer and payment method fall
// back to base when the file leaves them empty; rows without an id get one.
func mergeDraft(base, file models.Invoice, newID func() string) models.Invoice {
	out := base.Clone()
	if s := strings.TrimSpace(file.InvoiceNumber); s != "" {
		out.InvoiceNumber = s
	}
	if file.Date != "" {
		out.Date = file.Date
	}
	out.DeliveryDate = file.DeliveryDate
	if file.Company != (models.CompanyInfo{}) {
		out.Company = file.Company
	}
	out.Customer = file.Customer
	if file.PaymentMethod.Valid() {
		out.PaymentMethod = file.PaymentMethod
	}
	out.GlobalDiscount = file.GlobalDiscount
	out.GlobalTip = file.GlobalTip

	out.Items = make([]models.InvoiceItem, 0, len(file.Items))
	for _, item := range file.Items {
		if item.ID == "" {
			item.ID = newID()
		}
		out.Items = append(out.Items, item)
	}
	return out.Normalize()
}
