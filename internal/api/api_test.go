package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"

	"rechnung/server/internal/billing"
	"rechnung/server/internal/database"
	"rechnung/server/internal/models"
	"rechnung/server/internal/services"
	"rechnung/server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

type recordingHub struct {
	mu       sync.Mutex
	messages [][]byte
}

func (h *recordingHub) Broadcast(message []byte) {
	h.mu.Lock()
	h.messages = append(h.messages, message)
	h.mu.Unlock()
}

type testServer struct {
	router  *gin.Engine
	auth    *services.AuthService
	writer  *fakeWriter
	metrics *Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.ClosePostgres(db) })

	auth := services.NewAuthService(db, "test-secret", 0, nil)
	if err := auth.EnsureAdmin(context.Background(), "admin", "admin"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	writer := &fakeWriter{}
	hub := NewHub(nil)
	metrics := NewMetrics("test")
	events := NewEventBus(node, hub, writer, nil)

	cache := utils.NewRedisClient(nil)
	router := SetupRouter(RouterConfig{Auth: auth, Metrics: metrics}, Controllers{
		Health:  NewHealthController(func(context.Context) error { return database.Ping(db) }, nil, hub),
		Auth:    NewAuthController(auth),
		Company: NewCompanyController(services.NewCompanyService(db, cache, nil)),
		Invoices: NewInvoiceController(InvoiceControllerDeps{
			Invoices: services.NewInvoiceService(db, cache, nil),
			Events:   events,
			Metrics:  metrics,
		}),
		WS: NewWSController(hub, nil, nil),
	})
	return &testServer{router: router, auth: auth, writer: writer, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "admin", Password: "admin"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response %s", w.Body.String())
	}
	return resp.Token
}

func payload(number, customer string) models.InvoicePayload {
	return models.InvoicePayload{
		InvoiceNumber: number,
		Date:          "2024-03-01",
		Company:       models.DefaultCompanyInfo(),
		Customer: models.CustomerInfo{
			Name: customer, Address: "Hauptstr. 1", City: "Berlin", PostalCode: "10115",
		},
		Items:         []models.LineItem{{Name: "Haarschnitt", Quantity: 1, Price: 119, Tax1: 19}},
		PaymentMethod: models.PaymentMethodCard,
	}
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Message
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"database":"up"`) || !strings.Contains(w.Body.String(), `"redis":"disabled"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	hc := NewHealthController(func(context.Context) error { return errors.New("down") }, nil, nil)
	r := gin.New()
	r.GET("/api/health", hc.Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/invoices", payload("INV-1", "Erika Müller"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", w.Code, w.Body.String())
	}
	var created models.StoredInvoice
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || billing.Round2(created.Totals.Total) != 119 || billing.Round2(created.Totals.TotalTax1) != 19 {
		t.Errorf("created = %+v", created)
	}

	w = s.do(t, http.MethodGet, "/api/invoices/"+created.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("get status %d", w.Code)
	}

	update := payload("INV-1", "Erika Müller")
	update.Items = append(update.Items, models.LineItem{Name: "Färben", Quantity: 2, Price: 50, Tax1: 19})
	w = s.do(t, http.MethodPut, "/api/invoices/"+created.ID, update, "")
	if w.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodDelete, "/api/invoices/"+created.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/invoices/"+created.ID, nil, "")
	if w.Code != http.StatusNotFound || message(t, w) != services.ErrInvoiceNotFound.Error() {
		t.Errorf("after delete: %d %s", w.Code, w.Body.String())
	}

	s.writer.mu.Lock()
	defer s.writer.mu.Unlock()
	if len(s.writer.msgs) != 3 {
		t.Fatalf("kafka messages = %d, want 3", len(s.writer.msgs))
	}
	var event InvoiceEvent
	if err := json.Unmarshal(s.writer.msgs[2].Value, &event); err != nil {
		t.Fatal(err)
	}
	if event.Type != EventInvoiceDeleted || event.InvoiceNumber != "INV-1" || string(s.writer.msgs[2].Key) != "INV-1" {
		t.Errorf("last event = %+v", event)
	}
}

func TestCreateErrors(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodPost, "/api/invoices", payload("INV-7", "A"), ""); w.Code != http.StatusCreated {
		t.Fatalf("seed status %d", w.Code)
	}

	invalid := payload("INV-8", "B")
	invalid.Customer.City = ""

	tests := []struct {
		name    string
		body    interface{}
		status  int
		message string
	}{
		{"Duplicate number", payload("INV-7", "B"), http.StatusConflict, services.ErrDuplicateInvoiceNumber.Error()},
		{"Validation", invalid, http.StatusBadRequest, "validation failed: Bitte füllen Sie alle Kundenfelder aus: Stadt"},
		{"Malformed body", "not an invoice", http.StatusBadRequest, "Ungültige Anfrage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/invoices", tt.body, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if got := message(t, w); got != tt.message {
				t.Errorf("message = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestListShapes(t *testing.T) {
	s := newTestServer(t)
	for i, name := range []string{"Anna Schmidt", "Jonas Müller", "Lea Müller"} {
		p := payload("INV-"+string(rune('A'+i)), name)
		if w := s.do(t, http.MethodPost, "/api/invoices", p, ""); w.Code != http.StatusCreated {
			t.Fatalf("create %d: %s", w.Code, w.Body.String())
		}
	}

	w := s.do(t, http.MethodGet, "/api/invoices?search=m%C3%BCller", nil, "")
	var all []models.StoredInvoice
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatalf("expected array body: %v (%s)", err, w.Body.String())
	}
	if len(all) != 2 {
		t.Errorf("search matches = %d", len(all))
	}

	w = s.do(t, http.MethodGet, "/api/invoices?page=2&pageSize=2", nil, "")
	var page services.InvoiceList
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Page != 2 || page.PageCount != 2 || page.Total != 3 || len(page.Invoices) != 1 {
		t.Errorf("page = %+v", page)
	}

	if w := s.do(t, http.MethodGet, "/api/invoices?page=0", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("page=0 status = %d", w.Code)
	}
}

func TestPrintPDFAndExport(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/invoices", payload("INV-9", "Erika"), "")
	var created models.StoredInvoice
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = s.do(t, http.MethodGet, "/api/invoices/"+created.ID+"/print", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Gesamtbetrag (Brutto)") {
		t.Errorf("print %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/invoices/"+created.ID+"/pdf", nil, "")
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("pdf %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Rechnung_INV-9.pdf") {
		t.Errorf("content disposition = %q", cd)
	}

	w = s.do(t, http.MethodGet, "/api/invoices/export.xlsx", nil, "")
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Errorf("export %d", w.Code)
	}
}

func TestCompanyRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	info := models.DefaultCompanyInfo()
	info.Name = "Neuer Salon"

	if w := s.do(t, http.MethodPut, "/api/company", info, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, "/api/company", info, "garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", w.Code)
	}

	token := s.login(t)
	if w := s.do(t, http.MethodPut, "/api/company", info, token); w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	w := s.do(t, http.MethodGet, "/api/company", nil, "")
	var got models.CompanyInfo
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Name != "Neuer Salon" {
		t.Errorf("company = %+v", got)
	}
}

func TestLoginAndChangeCredentials(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "admin", Password: "wrong"}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", w.Code)
	}

	token := s.login(t)
	req := ChangeCredentialsRequest{OldPassword: "wrong", NewPassword: "geheim"}
	if w := s.do(t, http.MethodPost, "/api/admin/change-credentials", req, token); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong old password status = %d", w.Code)
	}

	req.OldPassword = "admin"
	if w := s.do(t, http.MethodPost, "/api/admin/change-credentials", req, token); w.Code != http.StatusOK {
		t.Fatalf("change status = %d: %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPost, "/api/admin/login", LoginRequest{Username: "admin", Password: "geheim"}, "")
	if w.Code != http.StatusOK {
		t.Errorf("login with new password status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://app.test"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://app.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://app.test" {
		t.Errorf("preflight = %d %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("foreign origin allowed")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/invoices", payload("INV-M", "A"), "")
	s.do(t, http.MethodPost, "/api/invoices", payload("INV-M", "A"), "")

	w := s.do(t, http.MethodGet, "/metrics", nil, "")
	body := w.Body.String()
	for _, want := range []string{
		`rechnung_invoice_changes_total{env="test",service="rechnung",type="invoice.created"} 1`,
		`rechnung_invoice_save_failures_total{env="test",reason="duplicate",service="rechnung"} 1`,
		`rechnung_http_requests_total`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestEventBusSurvivesKafkaFailure(t *testing.T) {
	node, _ := snowflake.NewNode(2)
	hub := &recordingHub{}
	writer := &fakeWriter{err: errors.New("broker down")}
	bus := NewEventBus(node, hub, writer, nil)

	bus.PublishInvoice(context.Background(), EventInvoiceCreated, &models.StoredInvoice{ID: "x", InvoiceNumber: "INV-1"})
	bus.PublishInvoice(context.Background(), EventInvoiceCreated, nil)

	if len(hub.messages) != 1 {
		t.Fatalf("hub messages = %d", len(hub.messages))
	}
	var event InvoiceEvent
	if err := json.Unmarshal(hub.messages[0], &event); err != nil {
		t.Fatal(err)
	}
	if event.ID == "" || event.Type != EventInvoiceCreated || event.InvoiceID != "x" {
		t.Errorf("event = %+v", event)
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	got := ParseKafkaBrokers(" a:9092, b:9092,,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("brokers = %v", got)
	}
	if len(ParseKafkaBrokers("")) != 0 {
		t.Error("empty list expected")
	}
	if d := CreateKafkaDialer(KafkaConfig{Username: "u", Password: "p"}, nil); d.TLS == nil || d.SASLMechanism == nil {
		t.Error("SASL dialer must use TLS")
	}
	if d := CreateKafkaDialer(KafkaConfig{}, nil); d.TLS != nil {
		t.Error("plaintext dialer expected")
	}
}
