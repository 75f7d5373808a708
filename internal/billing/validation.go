package billing

import (
	"errors"
	"math"
	"strings"

	"rechnung/server/internal/models"
)

// Rule failures. The texts are what the operator sees.
var (
	ErrMissingInvoiceNumber  = errors.New("Bitte geben Sie eine Rechnungsnummer ein und füllen Sie alle Pflichtfelder mit Informationen!")
	ErrNoNamedItems          = errors.New("Eine Rechnung muss mindestens eine Position mit Namen enthalten!")
	ErrInvalidItems          = errors.New("Alle Positionen müssen einen Namen, eine Menge > 0 und einen Preis >= 0 haben!")
	ErrMissingCustomerFields = errors.New("Bitte füllen Sie alle Kundenfelder aus:")
)

// Labels of the required customer fields, in check order
const (
	LabelName       = "Name"
	LabelAddress    = "Adresse"
	LabelCity       = "Stadt"
	LabelPostalCode = "PLZ"
)

// ValidationError wraps a rule failure with details
type ValidationError struct {
	Err     error
	Details string
	// Missing lists the labels of empty customer fields
	Missing []string
	// Items lists the names of rows breaking the quantity/price rule
	Items []string
}

func (e *ValidationError) Error() string {
	if e.Details != "" {
		return e.Err.Error() + " " + e.Details
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validated is a draft that passed every rule, with the rows to submit
type Validated struct {
	Invoice models.Invoice
	// Items excludes rows with an empty name
	Items []models.InvoiceItem
}

// Validate checks the draft and stops at the first failing rule
func Validate(inv models.Invoice) (*Validated, error) {
	if err := checkNumber(inv); err != nil {
		return nil, err
	}
	items := NamedItems(inv.Items)
	if err := checkItems(items); err != nil {
		return nil, err
	}
	if err := checkCustomer(inv.Customer); err != nil {
		return nil, err
	}
	return &Validated{Invoice: inv.Clone(), Items: items}, nil
}

// ValidateAll reports every violated rule in rule order
func ValidateAll(inv models.Invoice) []error {
	var errs []error
	if err := checkNumber(inv); err != nil {
		errs = append(errs, err)
	}
	if err := checkItems(NamedItems(inv.Items)); err != nil {
		errs = append(errs, err)
	}
	if err := checkCustomer(inv.Customer); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// NamedItems drops rows whose name is blank. Such rows are never submitted.
func NamedItems(items []models.InvoiceItem) []models.InvoiceItem {
	named := make([]models.InvoiceItem, 0, len(items))
	for _, item := range items {
		if trimName(item.Name) != "" {
			named = append(named, item)
		}
	}
	return named
}

func checkNumber(inv models.Invoice) error {
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return &ValidationError{Err: ErrMissingInvoiceNumber}
	}
	return nil
}

func checkItems(named []models.InvoiceItem) error {
	if len(named) == 0 {
		return &ValidationError{Err: ErrNoNamedItems}
	}
	var bad []string
	for _, item := range named {
		// negated comparisons so NaN fails too
		if !(item.Quantity > 0) || !(item.Price >= 0) || math.IsInf(item.Quantity, 0) || math.IsInf(item.Price, 0) {
			bad = append(bad, trimName(item.Name))
		}
	}
	if len(bad) > 0 {
		return &ValidationError{Err: ErrInvalidItems, Items: bad}
	}
	return nil
}

func checkCustomer(c models.CustomerInfo) error {
	var missing []string
	required := []struct {
		value string
		label string
	}{
		{c.Name, LabelName},
		{c.Address, LabelAddress},
		{c.City, LabelCity},
		{c.PostalCode, LabelPostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.label)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{
			Err:     ErrMissingCustomerFields,
			Details: strings.Join(missing, ", "),
			Missing: missing,
		}
	}
	return nil
}

func trimName(name string) string {
	return strings.TrimSpace(name)
}
