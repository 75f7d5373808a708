// Package draft holds the invoice being edited and orchestrates its load/save lifecycle.
package draft

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"rechnung/server/internal/billing"
	"rechnung/server/internal/models"
	"rechnung/server/internal/notify"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid value")
)

// Item field names accepted by UpdateItem
const (
	ItemFieldName     = "name"
	ItemFieldQuantity = "quantity"
	ItemFieldPrice    = "price"
	ItemFieldTax1     = "tax1"
)

// Store holds exactly one draft. Every mutation replaces the draft with a new value and bumps
// Version, so observers detect change by comparing versions instead of contents.
type Store struct {
	mu       sync.RWMutex
	draft    models.Invoice
	version  uint64
	loading  bool
	err      string
	notifier notify.Notifier
	newID    func() string
}

// NewStore creates a store around an initial draft
func NewStore(initial models.Invoice, notifier notify.Notifier, newID func() string) *Store {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Store{
		draft:    initial.Normalize().Clone(),
		notifier: notifier,
		newID:    newID,
	}
}

// Draft returns a copy of the current draft
func (s *Store) Draft() models.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Clone()
}

// Version increases with every replace
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Loading reports whether the company fetch is still outstanding
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the last load/save error text, empty when none
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Totals computes the breakdown of the current draft
func (s *Store) Totals() models.Totals {
	return billing.DraftTotals(s.Draft())
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) setErr(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

// replace applies fn to a private copy and swaps the result in. fn returning an error leaves
// the draft untouched.
func (s *Store) replace(fn func(inv models.Invoice) (models.Invoice, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.draft.Clone())
	if err != nil {
		return err
	}
	s.draft = next.Normalize()
	s.version++
	return nil
}

// SetInvoice replaces the draft wholesale
func (s *Store) SetInvoice(updater func(prev models.Invoice) models.Invoice) {
	_ = s.replace(func(inv models.Invoice) (models.Invoice, error) {
		return updater(inv), nil
	})
}

// UpdateCustomerInfo replaces one customer field
func (s *Store) UpdateCustomerInfo(field, value string) error {
	return s.replace(func(inv models.Invoice) (models.Invoice, error) {
		customer, ok := inv.Customer.WithField(field, value)
		if !ok {
			return inv, fmt.Errorf("customer %q: %w", field, ErrUnknownField)
		}
		inv.Customer = customer
		return inv, nil
	})
}

// UpdateCompanyInfo replaces one issuer field locally
func (s *Store) UpdateCompanyInfo(field, value string) error {
	return s.replace(func(inv models.Invoice) (models.Invoice, error) {
		company, ok := inv.Company.WithField(field, value)
		if !ok {
			return inv, fmt.Errorf("company %q: %w", field, ErrUnknownField)
		}
		inv.Company = company
		return inv, nil
	})
}

// UpdateGlobalDiscount sets the absolute discount. Negative values are stored as given.
func (s *Store) UpdateGlobalDiscount(value float64) {
	_ = s.replace(func(inv models.Invoice) (models.Invoice, error) {
		inv.GlobalDiscount = value
		return inv, nil
	})
}

// UpdateGlobalTip sets the absolute tip. Negative values are stored as given.
func (s *Store) UpdateGlobalTip(value float64) {
	_ = s.replace(func(inv models.Invoice) (models.Invoice, error) {
		inv.GlobalTip = value
		return inv, nil
	})
}

// AddItem appends a default row and returns it
func (s *Store) AddItem() models.InvoiceItem {
	item := models.NewInvoiceItem(s.newID())
	_ = s.replace(func(inv models.Invoice) (models.Invoice, error) {
		inv.Items = append(inv.Items, item)
		return inv, nil
	})
	s.notifier.Success(notify.ItemAdded)
	return item
}

// UpdateItem replaces one field of the row with the given id. Numeric fields accept
// float64, int and numeric strings.
func (s *Store) UpdateItem(id, field string, value interface{}) error {
	return s.replace(func(inv models.Invoice) (models.Invoice, error) {
		idx := indexOf(inv.Items, id)
		if idx < 0 {
			return inv, fmt.Errorf("item %s: %w", id, ErrItemNotFound)
		}
		item := inv.Items[idx]

		switch field {
		case ItemFieldName:
			name, ok := value.(string)
			if !ok {
				return inv, fmt.Errorf("item name %v: %w", value, ErrInvalidValue)
			}
			item.Name = name
		case ItemFieldQuantity, ItemFieldPrice, ItemFieldTax1:
			n, err := toFloat(value)
			if err != nil {
				return inv, fmt.Errorf("item %s %v: %w", field, value, err)
			}
			switch field {
			case ItemFieldQuantity:
				item.Quantity = n
			case ItemFieldPrice:
				item.Price = n
			default:
				item.Tax1 = n
			}
		default:
			return inv, fmt.Errorf("item %q: %w", field, ErrUnknownField)
		}

		inv.Items[idx] = item
		return inv, nil
	})
}

// RemoveItem deletes the row with the given id
func (s *Store) RemoveItem(id string) error {
	err := s.replace(func(inv models.Invoice) (models.Invoice, error) {
		idx := indexOf(inv.Items, id)
		if idx < 0 {
			return inv, fmt.Errorf("item %s: %w", id, ErrItemNotFound)
		}
		inv.Items = append(inv.Items[:idx], inv.Items[idx+1:]...)
		return inv, nil
	})
	if err != nil {
		return err
	}
	s.notifier.Success(notify.ItemRemoved)
	return nil
}

func indexOf(items []models.InvoiceItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// toFloat accepts finite numbers only
func toFloat(value interface{}) (float64, error) {
	f, err := parseFloat(value)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidValue
	}
	return f, nil
}

func parseFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, ErrInvalidValue
		}
		return f, nil
	default:
		return 0, ErrInvalidValue
	}
}
