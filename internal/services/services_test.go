package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"rechnung/server/internal/billing"
	"rechnung/server/internal/database"
	"rechnung/server/internal/models"
	"rechnung/server/internal/utils"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.ClosePostgres(db) })
	return db
}

func validPayload(number string) models.InvoicePayload {
	return models.InvoicePayload{
		InvoiceNumber: number,
		Date:          "2024-03-01",
		Company:       models.DefaultCompanyInfo(),
		Customer: models.CustomerInfo{
			Name: "Erika Mustermann", Address: "Hauptstr. 1", City: "Berlin", PostalCode: "10115",
		},
		Items: []models.LineItem{
			{Name: " Haarschnitt ", Quantity: 1, Price: 119, Tax1: 19},
			{Name: "", Quantity: 1, Price: 50, Tax1: 19},
		},
		PaymentMethod: models.PaymentMethodCash,
		Totals:        models.Totals{TotalDiscount: 9, TotalTip: 1, Total: 9999},
	}
}

func TestCompanyServiceSeedsAndUpdates(t *testing.T) {
	ctx := context.Background()
	svc := NewCompanyService(newTestDB(t), utils.NewRedisClient(nil), nil)

	got, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != models.DefaultCompanyInfo() {
		t.Errorf("expected seeded default company, got %+v", got)
	}

	got.Name = "Salon Schmidt"
	got.IBAN = "DE02120300000000202051"
	if _, err := svc.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if again.Name != "Salon Schmidt" || again.IBAN != "DE02120300000000202051" {
		t.Errorf("update not persisted: %+v", again)
	}
}

func TestInvoiceServiceCreateRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	svc := NewInvoiceService(newTestDB(t), nil, nil)

	inv, err := svc.Create(ctx, validPayload("INV-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.ID == "" {
		t.Errorf("expected generated id")
	}
	if len(inv.Items) != 1 || inv.Items[0].Name != "Haarschnitt" {
		t.Errorf("unnamed rows must be dropped and names trimmed: %+v", inv.Items)
	}
	want := models.Totals{Subtotal: 100, TotalTax1: 19, TotalDiscount: 9, TotalTip: 1, Total: 111}
	if inv.Totals != want {
		t.Errorf("totals = %+v, want %+v", inv.Totals, want)
	}

	loaded, err := svc.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Company.Data().Name != models.DefaultCompanyInfo().Name {
		t.Errorf("company snapshot lost: %+v", loaded.Company.Data())
	}
	if loaded.PaymentMethod != models.PaymentMethodCash || loaded.Customer.City != "Berlin" {
		t.Errorf("fields lost: %+v", loaded)
	}
}

func TestInvoiceServiceDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	svc := NewInvoiceService(newTestDB(t), nil, nil)

	if _, err := svc.Create(ctx, validPayload("INV-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(ctx, validPayload("INV-1"))
	if !errors.Is(err, ErrDuplicateInvoiceNumber) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	second, err := svc.Create(ctx, validPayload("INV-2"))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	_, err = svc.Update(ctx, second.ID, validPayload("INV-1"))
	if !errors.Is(err, ErrDuplicateInvoiceNumber) {
		t.Errorf("expected duplicate on update, got %v", err)
	}
	if _, err := svc.Update(ctx, second.ID, validPayload("INV-2")); err != nil {
		t.Errorf("keeping own number must work: %v", err)
	}
}

func TestInvoiceServiceValidation(t *testing.T) {
	svc := NewInvoiceService(newTestDB(t), nil, nil)
	p := validPayload("INV-1")
	p.Customer.PostalCode = ""

	_, err := svc.Create(context.Background(), p)
	if !errors.Is(err, ErrValidation) || !errors.Is(err, billing.ErrMissingCustomerFields) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if err.Error() != "validation failed: Bitte füllen Sie alle Kundenfelder aus: PLZ" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestInvoiceServiceListSearchAndPaging(t *testing.T) {
	ctx := context.Background()
	svc := NewInvoiceService(newTestDB(t), nil, nil)

	for i := 1; i <= 12; i++ {
		p := validPayload(fmt.Sprintf("INV-%02d", i))
		if i%4 == 0 {
			p.Customer.Name = "Max Müller"
		}
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, err := svc.List(ctx, ListParams{})
	if err != nil || len(all.Invoices) != 12 {
		t.Fatalf("list all: %d %v", len(all.Invoices), err)
	}

	page, err := svc.List(ctx, ListParams{Page: 2})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Total != 12 || page.PageCount != 2 || len(page.Invoices) != 2 {
		t.Errorf("page 2 = total %d, pages %d, rows %d", page.Total, page.PageCount, len(page.Invoices))
	}

	found, err := svc.List(ctx, ListParams{Search: "MÜLLER"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found.Invoices) != 3 {
		t.Errorf("expected 3 matches, got %d", len(found.Invoices))
	}

	byNumber, _ := svc.List(ctx, ListParams{Search: "inv-07"})
	if len(byNumber.Invoices) != 1 {
		t.Errorf("expected search by number, got %d", len(byNumber.Invoices))
	}
}

func TestInvoiceServiceSearchMatchesWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	svc := NewInvoiceService(newTestDB(t), nil, nil)

	names := map[string]string{
		"INV_A1": "100% Bio Salon",
		"INVXA2": "Salon Nord",
		"INV-A3": `Salon C:\Süd`,
	}
	for number, name := range names {
		p := validPayload(number)
		p.Customer.Name = name
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", number, err)
		}
	}

	tests := []struct {
		search string
		want   int
	}{
		{"%", 1},
		{"_", 1},
		{"inv_a", 1},
		{`c:\`, 1},
		{"salon", 3},
	}
	for _, tt := range tests {
		got, err := svc.List(ctx, ListParams{Search: tt.search})
		if err != nil {
			t.Fatalf("search %q: %v", tt.search, err)
		}
		if len(got.Invoices) != tt.want {
			t.Errorf("search %q: got %d matches, want %d", tt.search, len(got.Invoices), tt.want)
		}
	}
}

func TestInvoiceServicePinsCurrency(t *testing.T) {
	svc := NewInvoiceService(newTestDB(t), nil, nil)
	p := validPayload("INV-1")
	p.Currency = "USD"

	inv, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.Currency != models.DefaultCurrency {
		t.Errorf("currency = %q, want %q", inv.Currency, models.DefaultCurrency)
	}
}

func TestInvoiceServiceDeleteFreesNumber(t *testing.T) {
	ctx := context.Background()
	svc := NewInvoiceService(newTestDB(t), nil, nil)

	inv, err := svc.Create(ctx, validPayload("INV-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	deleted, err := svc.Delete(ctx, inv.ID)
	if err != nil || deleted.InvoiceNumber != "INV-1" {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, inv.ID); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.Delete(ctx, inv.ID); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
	if _, err := svc.Create(ctx, validPayload("INV-1")); err != nil {
		t.Errorf("number must be reusable after delete: %v", err)
	}
}

func TestAuthService(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewAuthService(db, "test-secret", time.Hour, nil)

	if err := svc.EnsureAdmin(ctx, "admin", "start123"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := svc.EnsureAdmin(ctx, "other", "x"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	var count int64
	db.Model(&models.AdminUser{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one admin, got %d", count)
	}

	if _, _, err := svc.Login(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
	token, expires, err := svc.Login(ctx, "admin", "start123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("token already expired")
	}
	claims, err := svc.ParseToken(token)
	if err != nil || claims.Username != "admin" || claims.Subject == "" {
		t.Fatalf("parse: %+v %v", claims, err)
	}
	if _, err := svc.ParseToken(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token accepted")
	}

	if err := svc.ChangeCredentials(ctx, claims.Subject, "wrong", "chef", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
	if err := svc.ChangeCredentials(ctx, "missing", "start123", "", ""); !errors.Is(err, ErrAdminNotFound) {
		t.Errorf("expected admin not found, got %v", err)
	}
	if err := svc.ChangeCredentials(ctx, claims.Subject, "start123", "chef", "neu456"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, _, err := svc.Login(ctx, "chef", "neu456"); err != nil {
		t.Errorf("login with new credentials: %v", err)
	}
}

func TestAuthServiceExpiredToken(t *testing.T) {
	svc := NewAuthService(newTestDB(t), "s", time.Minute, nil)
	_ = svc.EnsureAdmin(context.Background(), "admin", "pw")
	token, _, err := svc.Login(context.Background(), "admin", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token accepted")
	}
}

func TestExportXLSX(t *testing.T) {
	inv := models.StoredInvoice{InvoiceNumber: "INV-1", Date: "2024-03-01", PaymentMethod: models.PaymentMethodCard, Currency: "EUR"}
	inv.Customer.Name = "Erika"
	inv.Totals = models.Totals{Subtotal: 100, TotalTax1: 19, Total: 119}

	data, err := NewExportService().InvoicesXLSX([]models.StoredInvoice{inv})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "Rechnungsnummer" || rows[1][0] != "INV-1" || rows[1][3] != "Erika" || rows[1][7] != "Überweisung" {
		t.Errorf("unexpected rows %v", rows)
	}
}
