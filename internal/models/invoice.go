package models

// PaymentMethod is how the customer settles the invoice
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card" // bank transfer
	PaymentMethodCash PaymentMethod = "cash"
)

const (
	DefaultCurrency = "EUR"
	DefaultTaxRate  = 19.0
	DateLayout      = "2006-01-02"
)

// Valid reports whether the method is one of the supported values
func (p PaymentMethod) Valid() bool {
	return p == PaymentMethodCard || p == PaymentMethodCash
}

// Label returns the German print label
func (p PaymentMethod) Label() string {
	if p == PaymentMethodCash {
		return "Barzahlung"
	}
	return "Überweisung"
}

// InvoiceItem is one editable row of the draft. Price is gross (tax included).
type InvoiceItem struct {
	ID       string  `json:"id" yaml:"id,omitempty"`
	Name     string  `json:"name" yaml:"name"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Price    float64 `json:"price" yaml:"price"`
	Tax1     float64 `json:"tax1" yaml:"tax1"`
}

// NewInvoiceItem returns a row with the defaults used when the operator adds a line
func NewInvoiceItem(id string) InvoiceItem {
	return InvoiceItem{
		ID:       id,
		Quantity: 1,
		Price:    0,
		Tax1:     DefaultTaxRate,
	}
}

// CustomerInfo is the invoice recipient
type CustomerInfo struct {
	Name         string `json:"name" yaml:"name" gorm:"type:varchar(255)"`
	Address      string `json:"address" yaml:"address" gorm:"type:varchar(255)"`
	City         string `json:"city" yaml:"city" gorm:"type:varchar(100)"`
	PostalCode   string `json:"postalCode" yaml:"postalCode" gorm:"type:varchar(20)"`
	CustomField1 string `json:"customField1" yaml:"customField1,omitempty" gorm:"type:varchar(255)"`
	CustomField2 string `json:"customField2" yaml:"customField2,omitempty" gorm:"type:varchar(255)"`
}

// Customer field names accepted by field-level updates
const (
	CustomerFieldName         = "name"
	CustomerFieldAddress      = "address"
	CustomerFieldCity         = "city"
	CustomerFieldPostalCode   = "postalCode"
	CustomerFieldCustomField1 = "customField1"
	CustomerFieldCustomField2 = "customField2"
)

// WithField returns a copy with one field replaced. ok is false for unknown fields.
func (c CustomerInfo) WithField(field, value string) (CustomerInfo, bool) {
	switch field {
	case CustomerFieldName:
		c.Name = value
	case CustomerFieldAddress:
		c.Address = value
	case CustomerFieldCity:
		c.City = value
	case CustomerFieldPostalCode:
		c.PostalCode = value
	case CustomerFieldCustomField1:
		c.CustomField1 = value
	case CustomerFieldCustomField2:
		c.CustomField2 = value
	default:
		return c, false
	}
	return c, true
}

// Totals is the derived breakdown of a draft. It is only ever produced by a calculation.
type Totals struct {
	Subtotal      float64 `json:"subtotal" gorm:"type:decimal(15,4)"`
	TotalTax1     float64 `json:"totalTax1" gorm:"type:decimal(15,4)"`
	TotalDiscount float64 `json:"totalDiscount" gorm:"type:decimal(15,2)"`
	TotalTip      float64 `json:"totalTip" gorm:"type:decimal(15,2)"`
	Total         float64 `json:"total" gorm:"type:decimal(15,4)"`
}

// Invoice is the draft currently being composed
type Invoice struct {
	InvoiceNumber  string        `json:"invoiceNumber" yaml:"invoiceNumber"`
	Date           string        `json:"date" yaml:"date"`
	DeliveryDate   string        `json:"deliveryDate,omitempty" yaml:"deliveryDate,omitempty"`
	Company        CompanyInfo   `json:"company" yaml:"company"`
	Customer       CustomerInfo  `json:"customer" yaml:"customer"`
	Items          []InvoiceItem `json:"items" yaml:"items"`
	PaymentMethod  PaymentMethod `json:"paymentMethod" yaml:"paymentMethod"`
	Currency       string        `json:"currency" yaml:"currency"`
	GlobalDiscount float64       `json:"globalDiscount" yaml:"globalDiscount"`
	GlobalTip      float64       `json:"globalTip" yaml:"globalTip"`
}

// NewDraft returns a blank draft for the given number and date, keeping the issuer
func NewDraft(number, date string, company CompanyInfo) Invoice {
	return Invoice{
		InvoiceNumber: number,
		Date:          date,
		Company:       company,
		Customer:      CustomerInfo{},
		Items:         []InvoiceItem{},
		PaymentMethod: PaymentMethodCard,
		Currency:      DefaultCurrency,
	}
}

// Clone returns a copy that shares no slices with the receiver
func (inv Invoice) Clone() Invoice {
	items := make([]InvoiceItem, len(inv.Items))
	copy(items, inv.Items)
	inv.Items = items
	return inv
}

// Normalize fills the invariants a draft must always satisfy
func (inv Invoice) Normalize() Invoice {
	if inv.Items == nil {
		inv.Items = []InvoiceItem{}
	}
	if !inv.PaymentMethod.Valid() {
		inv.PaymentMethod = PaymentMethodCard
	}
	inv.Currency = DefaultCurrency
	return inv
}

// LineItem is an item as it travels to and is stored by the backend (no client id)
type LineItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Tax1     float64 `json:"tax1"`
	Discount float64 `json:"discount"`
	Tip      float64 `json:"tip"`
}

// InvoicePayload is the outbound document for create/update. Discount and tip are folded into Totals.
type InvoicePayload struct {
	InvoiceNumber string        `json:"invoiceNumber"`
	Date          string        `json:"date"`
	DeliveryDate  string        `json:"deliveryDate,omitempty"`
	Company       CompanyInfo   `json:"company"`
	Customer      CustomerInfo  `json:"customer"`
	Items         []LineItem    `json:"items"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Currency      string        `json:"currency"`
	Totals        Totals        `json:"totals"`
}

// Draft turns a payload back into an editable draft; ids are assigned by newID
func (p InvoicePayload) Draft(newID func() string) Invoice {
	items := make([]InvoiceItem, 0, len(p.Items))
	for _, li := range p.Items {
		items = append(items, InvoiceItem{
			ID:       newID(),
			Name:     li.Name,
			Quantity: li.Quantity,
			Price:    li.Price,
			Tax1:     li.Tax1,
		})
	}
	return Invoice{
		InvoiceNumber:  p.InvoiceNumber,
		Date:           p.Date,
		DeliveryDate:   p.DeliveryDate,
		Company:        p.Company,
		Customer:       p.Customer,
		Items:          items,
		PaymentMethod:  p.PaymentMethod,
		Currency:       p.Currency,
		GlobalDiscount: p.Totals.TotalDiscount,
		GlobalTip:      p.Totals.TotalTip,
	}.Normalize()
}
