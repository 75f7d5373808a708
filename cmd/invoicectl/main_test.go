package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"rechnung/server/internal/api"
	"rechnung/server/internal/database"
	"rechnung/server/internal/models"
	"rechnung/server/internal/services"
	"rechnung/server/internal/utils"
)

const draftYAML = `
invoiceNumber: INV-CLI-1
date: "2024-03-01"
customer:
  name: Erika Mustermann
  address: Hauptstr. 1
  city: Berlin
  postalCode: "10115"
items:
  - name: Haarschnitt
    quantity: 1
    price: 119
    tax1: 19
  - name: Pflege
    quantity: 2
    price: 10.7
    tax1: 7
  - name: ""
    quantity: 1
    price: 99
    tax1: 19
globalDiscount: 5
globalTip: 2
`

func writeDraft(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "draft.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	auth := services.NewAuthService(db, "secret", 0, nil)
	if err := auth.EnsureAdmin(context.Background(), "admin", "admin"); err != nil {
		t.Fatal(err)
	}
	cache := utils.NewRedisClient(nil)
	router := api.SetupRouter(api.RouterConfig{Auth: auth}, api.Controllers{
		Health:   api.NewHealthController(nil, nil, nil),
		Auth:     api.NewAuthController(auth),
		Company:  api.NewCompanyController(services.NewCompanyService(db, cache, nil)),
		Invoices: api.NewInvoiceController(api.InvoiceControllerDeps{Invoices: services.NewInvoiceService(db, cache, nil)}),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		_ = database.ClosePostgres(db)
	})
	return srv
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"invoicectl"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestTotalsOffline(t *testing.T) {
	out, _, err := runCLI(t, "totals", "-f", writeDraft(t, draftYAML))
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	for _, want := range []string{"Netto", "120.00 €", "Steuer 19%", "Steuer 7%", "1.40 €", "Rabatt", "Trinkgeld", "137.40 €"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCreateListDelete(t *testing.T) {
	srv := newBackend(t)
	path := writeDraft(t, draftYAML)

	out, _, err := runCLI(t, "--api-url", srv.URL, "create", "-f", path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "INV-CLI-1") || !strings.Contains(out, "137.40 €") {
		t.Errorf("create output:\n%s", out)
	}

	_, _, err = runCLI(t, "--api-url", srv.URL, "create", "-f", path)
	if err == nil || !strings.Contains(err.Error(), "existiert bereits") {
		t.Errorf("second create must fail with duplicate message, got %v", err)
	}

	out, _, err = runCLI(t, "--api-url", srv.URL, "list", "--search", "erika")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("list output:\n%s", out)
	}
	id := strings.Fields(lines[1])[0]

	if _, _, err := runCLI(t, "--api-url", srv.URL, "delete", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := runCLI(t, "--api-url", srv.URL, "delete", id); err == nil {
		t.Error("second delete must fail")
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	srv := newBackend(t)
	path := writeDraft(t, strings.Replace(draftYAML, "  city: Berlin\n", "", 1))

	_, _, err := runCLI(t, "--api-url", srv.URL, "create", "-f", path)
	if err == nil || !strings.Contains(err.Error(), "Stadt") {
		t.Fatalf("expected missing city error, got %v", err)
	}
}

func TestCompanySetRequiresLogin(t *testing.T) {
	srv := newBackend(t)

	if _, _, err := runCLI(t, "--api-url", srv.URL, "company", "set", "name", "Salon Nord"); err == nil {
		t.Error("unauthenticated update must fail")
	}
	if _, _, err := runCLI(t, "--api-url", srv.URL, "--username", "admin", "--password", "admin", "company", "set", "name", "Salon Nord"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, _, err := runCLI(t, "--api-url", srv.URL, "company", "get")
	if err != nil || !strings.Contains(out, "name: Salon Nord") {
		t.Errorf("company get = %q, %v", out, err)
	}

	_, _, err = runCLI(t, "--api-url", srv.URL, "--username", "admin", "--password", "admin", "company", "set", "color", "blau")
	if err == nil || !strings.Contains(err.Error(), "unbekanntes Feld") {
		t.Errorf("unknown field error, got %v", err)
	}
}

func TestMergeDraftKeepsDefaults(t *testing.T) {
	base := models.NewDraft("INV-1", "2024-01-01", models.DefaultCompanyInfo())
	file := models.Invoice{Items: []models.InvoiceItem{{Name: "A", Quantity: 1, Price: 1, Tax1: 19}}}

	n := 0
	got := mergeDraft(base, file, func() string { n++; return "id" })
	if got.InvoiceNumber != "INV-1" || got.Date != "2024-01-01" || got.Company != models.DefaultCompanyInfo() {
		t.Errorf("defaults lost: %+v", got)
	}
	if n != 1 || got.Items[0].ID != "id" {
		t.Errorf("items = %+v", got.Items)
	}
	if got.PaymentMethod != models.PaymentMethodCard {
		t.Errorf("payment = %q", got.PaymentMethod)
	}
}

func TestLoadDraftFileCurrency(t *testing.T) {
	if _, err := loadDraftFile(writeDraft(t, "currency: USD\n")); err == nil || !strings.Contains(err.Error(), "USD") {
		t.Errorf("expected unsupported currency error, got %v", err)
	}
	inv, err := loadDraftFile(writeDraft(t, "currency: eur\n"))
	if err != nil {
		t.Fatalf("eur draft: %v", err)
	}
	got := mergeDraft(models.NewDraft("INV-1", "2024-01-01", models.DefaultCompanyInfo()), inv, func() string { return "id" })
	if got.Currency != models.DefaultCurrency {
		t.Errorf("currency = %q", got.Currency)
	}
}

func TestLoadDraftFileRejectsUnknownKeys(t *testing.T) {
	if _, err := loadDraftFile(writeDraft(t, "invoiceNumbr: X\n")); err == nil {
		t.Error("expected unknown key error")
	}
}
