// Package gateway talks to the invoice backend over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"rechnung/server/internal/models"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the backend
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// StatusCode exposes the HTTP status for failure classification
func (e *APIError) StatusCode() int {
	return e.Status
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// InvoicePage is one page of the invoice list
type InvoicePage struct {
	Invoices  []models.StoredInvoice `json:"invoices"`
	Page      int                    `json:"page"`
	PageCount int                    `json:"pageCount"`
	Total     int64                  `json:"total"`
}

// Option configures an HTTPGateway
type Option func(*HTTPGateway)

// WithToken sends "Authorization: Bearer <token>" on every request
func WithToken(token string) Option {
	return func(g *HTTPGateway) { g.token = token }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGateway) {
		if d > 0 {
			g.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) { g.client = c }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(g *HTTPGateway) { g.log = log }
}

// HTTPGateway is the REST client of the invoice backend
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zap.Logger
}

// New creates a gateway for apiURL; "/api" is appended unless already present
func New(apiURL string, opts ...Option) *HTTPGateway {
	base := strings.TrimRight(apiURL, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	g := &HTTPGateway{
		baseURL: base,
		client:  &http.Client{Timeout: defaultTimeout},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BaseURL returns the resolved API root
func (g *HTTPGateway) BaseURL() string {
	return g.baseURL
}

func (g *HTTPGateway) GetCompany(ctx context.Context) (models.CompanyInfo, error) {
	var company models.CompanyInfo
	err := g.do(ctx, http.MethodGet, "/company", nil, &company)
	return company, err
}

func (g *HTTPGateway) UpdateCompany(ctx context.Context, company models.CompanyInfo) error {
	return g.do(ctx, http.MethodPut, "/company", company, nil)
}

// GetInvoices returns every invoice matching search (all when empty)
func (g *HTTPGateway) GetInvoices(ctx context.Context, search string) ([]models.StoredInvoice, error) {
	path := "/invoices"
	if search != "" {
		path += "?" + url.Values{"search": {search}}.Encode()
	}
	var invoices []models.StoredInvoice
	err := g.do(ctx, http.MethodGet, path, nil, &invoices)
	return invoices, err
}

// GetInvoicePage returns one page of invoices
func (g *HTTPGateway) GetInvoicePage(ctx context.Context, search string, page, pageSize int) (*InvoicePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if search != "" {
		q.Set("search", search)
	}
	var result InvoicePage
	if err := g.do(ctx, http.MethodGet, "/invoices?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) GetInvoice(ctx context.Context, id string) (models.StoredInvoice, error) {
	var inv models.StoredInvoice
	err := g.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, &inv)
	return inv, err
}

func (g *HTTPGateway) CreateInvoice(ctx context.Context, payload models.InvoicePayload) error {
	return g.do(ctx, http.MethodPost, "/invoices", payload, nil)
}

func (g *HTTPGateway) UpdateInvoice(ctx context.Context, id string, payload models.InvoicePayload) error {
	return g.do(ctx, http.MethodPut, "/invoices/"+url.PathEscape(id), payload, nil)
}

func (g *HTTPGateway) DeleteInvoice(ctx context.Context, id string) error {
	return g.do(ctx, http.MethodDelete, "/invoices/"+url.PathEscape(id), nil, nil)
}

// Login exchanges admin credentials for a token and keeps it for later calls
func (g *HTTPGateway) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := g.do(ctx, http.MethodPost, "/admin/login", body, &resp); err != nil {
		return "", err
	}
	g.token = resp.Token
	return resp.Token, nil
}

// HealthCheck returns nil when the backend answers /health with 2xx
func (g *HTTPGateway) HealthCheck(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	g.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// errorMessage extracts {"message"} or {"error"} from an error body, falling back to the raw text
func errorMessage(data []byte, status string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return status
}
