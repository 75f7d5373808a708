package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rechnung/server/internal/billing"
	"rechnung/server/internal/models"
	"rechnung/server/internal/notify"
)

// Gateway is the persistence backend the controller talks to
type Gateway interface {
	GetCompany(ctx context.Context) (models.CompanyInfo, error)
	UpdateCompany(ctx context.Context, company models.CompanyInfo) error
	CreateInvoice(ctx context.Context, payload models.InvoicePayload) error
	UpdateInvoice(ctx context.Context, id string, payload models.InvoicePayload) error
	GetInvoice(ctx context.Context, id string) (models.StoredInvoice, error)
}

// State of the lifecycle
type State int32

const (
	StateLoading State = iota
	StateReady
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	ErrSaveInProgress = errors.New("save already in progress")
	ErrNotReady       = errors.New("draft is still loading")
	ErrClosed         = errors.New("controller closed")
)

// Deps are the collaborators handed to the controller at construction
type Deps struct {
	Gateway  Gateway
	Notifier notify.Notifier
	Logger   *zap.Logger
	// Now defaults to time.Now
	Now func() time.Time
	// NewNumber defaults to NumberSequence()
	NewNumber func(now time.Time) string
	// NewID defaults to uuid.NewString
	NewID func() string
}

// Controller drives the draft through Loading → Ready → Saving → Ready
type Controller struct {
	mu        sync.Mutex
	state     State
	closed    bool
	editingID string

	store     *Store
	gateway   Gateway
	notifier  notify.Notifier
	log       *zap.Logger
	now       func() time.Time
	newNumber func(now time.Time) string
	newID     func() string
}

// NewController builds a controller with a blank draft and the placeholder issuer.
// Call Init to load the real company.
func NewController(deps Deps) *Controller {
	c := &Controller{
		state:     StateLoading,
		gateway:   deps.Gateway,
		notifier:  deps.Notifier,
		log:       deps.Logger,
		now:       deps.Now,
		newNumber: deps.NewNumber,
		newID:     deps.NewID,
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newNumber == nil {
		c.newNumber = NumberSequence()
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}

	c.store = NewStore(c.blank(models.DefaultCompanyInfo()), c.notifier, c.newID)
	c.store.setLoading(true)
	return c
}

// NumberSequence generates INV-<unix millis> numbers that never repeat within the process
func NumberSequence() func(now time.Time) string {
	var last int64
	return func(now time.Time) string {
		for {
			prev := atomic.LoadInt64(&last)
			ms := now.UnixMilli()
			if ms <= prev {
				ms = prev + 1
			}
			if atomic.CompareAndSwapInt64(&last, prev, ms) {
				return fmt.Sprintf("INV-%d", ms)
			}
		}
	}
}

// Store exposes the draft for field-level edits
func (c *Controller) Store() *Store {
	return c.store
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// EditingID is the id of the stored invoice being re-edited, empty for a new invoice
func (c *Controller) EditingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID
}

// Totals computes the current breakdown
func (c *Controller) Totals() models.Totals {
	return c.store.Totals()
}

// Init loads the issuer. A failed load is reported and the form stays usable with the
// placeholder company; the returned error is informational.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	defer func() {
		c.store.setLoading(false)
		c.mu.Lock()
		if c.state == StateLoading {
			c.state = StateReady
		}
		c.mu.Unlock()
	}()

	company, err := c.gateway.GetCompany(ctx)
	if err != nil {
		c.log.Warn("company load failed, keeping placeholder", zap.Error(err))
		c.store.setErr("Failed to load company data")
		c.notifier.Error(notify.CompanyDataLoadError)
		return fmt.Errorf("load company: %w", err)
	}

	c.store.SetInvoice(func(prev models.Invoice) models.Invoice {
		prev.Company = company
		return prev
	})
	c.notifier.Success(notify.CompanyDataLoaded)
	return nil
}

// Close ends the controller's life; later Init/Save calls fail with ErrClosed
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Save validates and submits the draft. At most one save runs at a time; a second call while
// one is outstanding returns ErrSaveInProgress without touching the network.
func (c *Controller) Save(ctx context.Context) (bool, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return false, ErrClosed
	case c.state == StateSaving:
		c.mu.Unlock()
		return false, ErrSaveInProgress
	case c.state == StateLoading:
		c.mu.Unlock()
		return false, ErrNotReady
	}

	validated, err := billing.Validate(c.store.Draft())
	if err != nil {
		c.mu.Unlock()
		c.notifier.Error(err.Error())
		return false, err
	}
	c.state = StateSaving
	editingID := c.editingID
	c.mu.Unlock()

	payload := BuildPayload(validated)
	if editingID != "" {
		err = c.gateway.UpdateInvoice(ctx, editingID, payload)
	} else {
		err = c.gateway.CreateInvoice(ctx, payload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateReady

	if err != nil {
		subErr := &SubmissionError{Kind: ClassifyFailure(err), Err: err}
		c.store.setErr(err.Error())
		c.notifier.Error(subErr.Kind.NotificationKey())
		c.log.Warn("invoice save failed",
			zap.String("invoice_number", payload.InvoiceNumber),
			zap.String("kind", subErr.Kind.String()),
			zap.Error(err))
		return false, subErr
	}

	c.log.Info("invoice saved",
		zap.String("invoice_number", payload.InvoiceNumber),
		zap.Float64("total", payload.Totals.Total))
	c.notifier.Success(notify.InvoiceSaved)
	c.editingID = ""
	c.store.setErr("")
	c.resetLocked()
	return true, nil
}

// NewInvoice discards the draft and starts a blank one with the current issuer
func (c *Controller) NewInvoice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = ""
	c.resetLocked()
}

// EditInvoice loads a stored invoice into the draft. Saving afterwards updates that record.
func (c *Controller) EditInvoice(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state == StateSaving {
		c.mu.Unlock()
		return ErrSaveInProgress
	}
	c.mu.Unlock()

	stored, err := c.gateway.GetInvoice(ctx, id)
	if err != nil {
		c.notifier.Error(notify.InvoiceLoadError)
		return fmt.Errorf("load invoice %s: %w", id, err)
	}

	next := stored.Payload().Draft(c.newID)
	c.mu.Lock()
	c.editingID = id
	c.store.SetInvoice(func(models.Invoice) models.Invoice { return next })
	c.mu.Unlock()
	c.notifier.Success(notify.InvoiceLoaded)
	return nil
}

// UpdateCompany edits one issuer field and persists the whole company
func (c *Controller) UpdateCompany(ctx context.Context, field, value string) error {
	if err := c.store.UpdateCompanyInfo(field, value); err != nil {
		return err
	}
	if err := c.gateway.UpdateCompany(ctx, c.store.Draft().Company); err != nil {
		c.store.setErr("Failed to save company data")
		c.notifier.Error(notify.CompanyDataUpdateError)
		return fmt.Errorf("update company: %w", err)
	}
	c.notifier.Success(notify.CompanyDataUpdated)
	return nil
}

// resetLocked replaces the draft with a blank one; c.mu must be held
func (c *Controller) resetLocked() {
	company := c.store.Draft().Company
	next := c.blank(company)
	c.store.SetInvoice(func(models.Invoice) models.Invoice { return next })
}

func (c *Controller) blank(company models.CompanyInfo) models.Invoice {
	now := c.now()
	return models.NewDraft(c.newNumber(now), now.Format(models.DateLayout), company)
}

// BuildPayload turns a validated draft into the outbound document: only named rows, no
// client ids, totals attached and discount/tip folded into them.
func BuildPayload(v *billing.Validated) models.InvoicePayload {
	inv := v.Invoice
	return models.InvoicePayload{
		InvoiceNumber: inv.InvoiceNumber,
		Date:          inv.Date,
		DeliveryDate:  inv.DeliveryDate,
		Company:       inv.Company,
		Customer:      inv.Customer,
		Items:         billing.ToLineItems(v.Items),
		PaymentMethod: inv.PaymentMethod,
		Currency:      inv.Currency,
		Totals:        billing.CalculateTotals(v.Items, inv.GlobalDiscount, inv.GlobalTip),
	}
}
