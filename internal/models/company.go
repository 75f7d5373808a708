package models

import "time"

// DefaultCompanyID keys the single issuer row
const DefaultCompanyID = "default"

// CompanyInfo holds issuer identity and bank details printed on every invoice
type CompanyInfo struct {
	Name          string `json:"name" yaml:"name" gorm:"type:varchar(255)"`
	Owner         string `json:"owner,omitempty" yaml:"owner,omitempty" gorm:"type:varchar(255)"`
	Address       string `json:"address" yaml:"address" gorm:"type:varchar(255)"`
	City          string `json:"city" yaml:"city" gorm:"type:varchar(100)"`
	PostalCode    string `json:"postalCode" yaml:"postalCode" gorm:"type:varchar(20)"`
	Phone         string `json:"phone" yaml:"phone" gorm:"type:varchar(50)"`
	Email         string `json:"email" yaml:"email" gorm:"type:varchar(255)"`
	TaxNumber     string `json:"taxNumber" yaml:"taxNumber" gorm:"type:varchar(50)"`
	BankName      string `json:"bankName" yaml:"bankName" gorm:"type:varchar(255)"`
	AccountNumber string `json:"accountNumber" yaml:"accountNumber" gorm:"type:varchar(50)"`
	IBAN          string `json:"iban" yaml:"iban" gorm:"column:iban;type:varchar(50)"`
	SWIFT         string `json:"swift" yaml:"swift" gorm:"column:swift;type:varchar(20)"`
	Logo          string `json:"logo,omitempty" yaml:"logo,omitempty" gorm:"type:text"` // data URI
}

// Company field names accepted by field-level updates
const (
	CompanyFieldName          = "name"
	CompanyFieldOwner         = "owner"
	CompanyFieldAddress       = "address"
	CompanyFieldCity          = "city"
	CompanyFieldPostalCode    = "postalCode"
	CompanyFieldPhone         = "phone"
	CompanyFieldEmail         = "email"
	CompanyFieldTaxNumber     = "taxNumber"
	CompanyFieldBankName      = "bankName"
	CompanyFieldAccountNumber = "accountNumber"
	CompanyFieldIBAN          = "iban"
	CompanyFieldSWIFT         = "swift"
	CompanyFieldLogo          = "logo"
)

// WithField returns a copy with one field replaced. ok is false for unknown fields.
func (c CompanyInfo) WithField(field, value string) (CompanyInfo, bool) {
	switch field {
	case CompanyFieldName:
		c.Name = value
	case CompanyFieldOwner:
		c.Owner = value
	case CompanyFieldAddress:
		c.Address = value
	case CompanyFieldCity:
		c.City = value
	case CompanyFieldPostalCode:
		c.PostalCode = value
	case CompanyFieldPhone:
		c.Phone = value
	case CompanyFieldEmail:
		c.Email = value
	case CompanyFieldTaxNumber:
		c.TaxNumber = value
	case CompanyFieldBankName:
		c.BankName = value
	case CompanyFieldAccountNumber:
		c.AccountNumber = value
	case CompanyFieldIBAN:
		c.IBAN = value
	case CompanyFieldSWIFT:
		c.SWIFT = value
	case CompanyFieldLogo:
		c.Logo = value
	default:
		return c, false
	}
	return c, true
}

// DefaultCompanyInfo is the placeholder issuer used until the real one is loaded
func DefaultCompanyInfo() CompanyInfo {
	return CompanyInfo{
		Name:          "Your Company Name",
		Address:       "123 Business Street",
		City:          "Berlin",
		PostalCode:    "10115",
		Phone:         "+49 30 12345678",
		Email:         "info@yourcompany.com",
		TaxNumber:     "DE123456789",
		BankName:      "Deutsche Bank",
		AccountNumber: "1234567890",
		IBAN:          "DE89370400440532013000",
		SWIFT:         "DEUTDEFF",
	}
}

// Company is the persisted issuer row
type Company struct {
	ID          string `json:"-" gorm:"type:varchar(32);primaryKey"`
	CompanyInfo `gorm:"embedded"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName sets the table name
func (Company) TableName() string {
	return "companies"
}
