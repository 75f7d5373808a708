package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rechnung/server/internal/billing"
	"rechnung/server/internal/database"
	"rechnung/server/internal/models"
	"rechnung/server/internal/utils"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	saveLockTTL     = 10 * time.Second
)

// ListParams filters the invoice list. Page 0 returns every match.
type ListParams struct {
	Search   string
	Page     int
	PageSize int
}

// InvoiceList is one page of invoices
type InvoiceList struct {
	Invoices  []models.StoredInvoice `json:"invoices"`
	Page      int                    `json:"page"`
	PageCount int                    `json:"pageCount"`
	Total     int64                  `json:"total"`
}

// InvoiceService stores invoices. Totals are always recomputed from the submitted lines.
type InvoiceService struct {
	db    *gorm.DB
	locks *utils.RedisClient
	log   *zap.Logger
}

// NewInvoiceService creates the service; locks may be nil
func NewInvoiceService(db *gorm.DB, locks *utils.RedisClient, log *zap.Logger) *InvoiceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceService{db: db, locks: locks, log: log}
}

// likeEscaper makes LIKE wildcards in a search term match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// List returns invoices newest first, optionally filtered by customer name or number
func (s *InvoiceService) List(ctx context.Context, params ListParams) (*InvoiceList, error) {
	query := s.db.WithContext(ctx).Model(&models.StoredInvoice{})
	if search := strings.TrimSpace(params.Search); search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		query = query.Where(`LOWER(customer_name) LIKE ? ESCAPE '\' OR LOWER(invoice_number) LIKE ? ESCAPE '\'`, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	result := &InvoiceList{Total: total, Page: 1, PageCount: 1}
	query = query.Order("created_at DESC").Order("invoice_number DESC")
	if params.Page > 0 {
		size := params.PageSize
		if size <= 0 {
			size = DefaultPageSize
		}
		if size > MaxPageSize {
			size = MaxPageSize
		}
		result.Page = params.Page
		result.PageCount = int(math.Ceil(float64(total) / float64(size)))
		if result.PageCount == 0 {
			result.PageCount = 1
		}
		query = query.Offset((params.Page - 1) * size).Limit(size)
	}

	if err := query.Find(&result.Invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	if result.Invoices == nil {
		result.Invoices = []models.StoredInvoice{}
	}
	return result, nil
}

// Get returns one invoice
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.StoredInvoice, error) {
	var inv models.StoredInvoice
	err := s.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", id, err)
	}
	return &inv, nil
}

// Create validates and stores a new invoice
func (s *InvoiceService) Create(ctx context.Context, payload models.InvoicePayload) (*models.StoredInvoice, error) {
	payload, err := s.prepare(payload)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, payload.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	defer release()

	var inv models.StoredInvoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkNumberFree(tx, payload.InvoiceNumber, ""); err != nil {
			return err
		}
		inv.Apply(payload)
		inv.Totals = payload.Totals
		return tx.Create(&inv).Error
	})
	if err != nil {
		return nil, s.translate(err, "create")
	}

	s.log.Info("invoice created",
		zap.String("id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Float64("total", inv.Totals.Total))
	return &inv, nil
}

// Update replaces an invoice; the number may change as long as it stays unique
func (s *InvoiceService) Update(ctx context.Context, id string, payload models.InvoicePayload) (*models.StoredInvoice, error) {
	payload, err := s.prepare(payload)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, payload.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	defer release()

	var inv models.StoredInvoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&inv, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvoiceNotFound
			}
			return err
		}
		if err := checkNumberFree(tx, payload.InvoiceNumber, id); err != nil {
			return err
		}
		inv.Apply(payload)
		inv.Totals = payload.Totals
		return tx.Save(&inv).Error
	})
	if err != nil {
		return nil, s.translate(err, "update")
	}

	s.log.Info("invoice updated", zap.String("id", inv.ID), zap.String("invoice_number", inv.InvoiceNumber))
	return &inv, nil
}

// Delete removes an invoice and returns what was deleted
func (s *InvoiceService) Delete(ctx context.Context, id string) (*models.StoredInvoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.StoredInvoice{}, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to delete invoice %s: %w", id, err)
	}
	s.log.Info("invoice deleted", zap.String("id", id), zap.String("invoice_number", inv.InvoiceNumber))
	return inv, nil
}

// prepare runs the draft rules on the payload and recomputes its totals. Discount and tip
// are taken from the submitted totals.
func (s *InvoiceService) prepare(payload models.InvoicePayload) (models.InvoicePayload, error) {
	draft := payload.Draft(func() string { return "" })
	validated, err := billing.Validate(draft)
	if err != nil {
		return payload, &ValidationFailure{Err: err}
	}
	if !payload.PaymentMethod.Valid() {
		payload.PaymentMethod = models.PaymentMethodCard
	}
	payload.Currency = models.DefaultCurrency
	payload.InvoiceNumber = strings.TrimSpace(payload.InvoiceNumber)
	payload.Items = billing.ToLineItems(validated.Items)
	payload.Totals = billing.CalculateTotals(validated.Items, payload.Totals.TotalDiscount, payload.Totals.TotalTip)
	return payload, nil
}

func (s *InvoiceService) lock(ctx context.Context, number string) (func(), error) {
	release, err := s.locks.Lock(ctx, "invoice-lock:"+number, saveLockTTL)
	if errors.Is(err, utils.ErrLocked) {
		return nil, ErrSaveBusy
	}
	if err != nil {
		// redis trouble must not block saving; the unique index still guards the number
		s.log.Warn("invoice lock unavailable", zap.String("invoice_number", number), zap.Error(err))
		return func() {}, nil
	}
	return release, nil
}

func (s *InvoiceService) translate(err error, op string) error {
	switch {
	case errors.Is(err, ErrDuplicateInvoiceNumber), errors.Is(err, ErrInvoiceNotFound):
		return err
	case database.IsUniqueViolation(err):
		return ErrDuplicateInvoiceNumber
	default:
		return fmt.Errorf("failed to %s invoice: %w", op, err)
	}
}

func checkNumberFree(tx *gorm.DB, number, exceptID string) error {
	query := tx.Model(&models.StoredInvoice{}).Where("invoice_number = ?", number)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateInvoiceNumber
	}
	return nil
}
