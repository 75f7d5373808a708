package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StoredInvoice is a persisted invoice. The issuer is frozen as a JSON snapshot so later
// company edits do not rewrite history.
type StoredInvoice struct {
	ID            string                          `json:"_id" gorm:"type:varchar(36);primaryKey"`
	InvoiceNumber string                          `json:"invoiceNumber" gorm:"type:varchar(100);not null;uniqueIndex"`
	Date          string                          `json:"date" gorm:"type:varchar(10);index"`
	DeliveryDate  string                          `json:"deliveryDate,omitempty" gorm:"type:varchar(10)"`
	Company       datatypes.JSONType[CompanyInfo] `json:"company"`
	Customer      CustomerInfo                    `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`
	Items         datatypes.JSONSlice[LineItem]   `json:"items"`
	PaymentMethod PaymentMethod                   `json:"paymentMethod" gorm:"type:varchar(10);default:'card'"`
	Currency      string                          `json:"currency" gorm:"type:varchar(3);default:'EUR'"`
	Totals        Totals                          `json:"totals" gorm:"embedded;embeddedPrefix:totals_"`
	CreatedAt     time.Time                       `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time                       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName sets the table name
func (StoredInvoice) TableName() string {
	return "invoices"
}

// BeforeCreate assigns the id and defaults
func (i *StoredInvoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if !i.PaymentMethod.Valid() {
		i.PaymentMethod = PaymentMethodCard
	}
	i.Currency = DefaultCurrency
	return nil
}

// Apply copies the payload fields onto the record; totals are set by the caller
func (i *StoredInvoice) Apply(p InvoicePayload) {
	items := make([]LineItem, len(p.Items))
	copy(items, p.Items)

	i.InvoiceNumber = p.InvoiceNumber
	i.Date = p.Date
	i.DeliveryDate = p.DeliveryDate
	i.Company = datatypes.NewJSONType(p.Company)
	i.Customer = p.Customer
	i.Items = items
	i.PaymentMethod = p.PaymentMethod
	i.Currency = DefaultCurrency
}

// Payload returns the record in its wire shape
func (i StoredInvoice) Payload() InvoicePayload {
	items := make([]LineItem, len(i.Items))
	copy(items, i.Items)
	return InvoicePayload{
		InvoiceNumber: i.InvoiceNumber,
		Date:          i.Date,
		DeliveryDate:  i.DeliveryDate,
		Company:       i.Company.Data(),
		Customer:      i.Customer,
		Items:         items,
		PaymentMethod: i.PaymentMethod,
		Currency:      i.Currency,
		Totals:        i.Totals,
	}
}
