package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rechnung/server/internal/logger"
	"rechnung/server/internal/models"
	"rechnung/server/internal/render"
	"rechnung/server/internal/services"
)

// InvoiceStore is implemented by *services.InvoiceService
type InvoiceStore interface {
	List(ctx context.Context, params services.ListParams) (*services.InvoiceList, error)
	Get(ctx context.Context, id string) (*models.StoredInvoice, error)
	Create(ctx context.Context, payload models.InvoicePayload) (*models.StoredInvoice, error)
	Update(ctx context.Context, id string, payload models.InvoicePayload) (*models.StoredInvoice, error)
	Delete(ctx context.Context, id string) (*models.StoredInvoice, error)
}

// InvoiceController serves CRUD, print views and the spreadsheet export
type InvoiceController struct {
	invoices InvoiceStore
	export   *services.ExportService
	html     *render.HTMLRenderer
	pdf      *render.PDFRenderer
	archive  render.Archiver
	events   *EventBus
	metrics  *Metrics
}

// InvoiceControllerDeps wires the controller; Archive, Events and Metrics are optional
type InvoiceControllerDeps struct {
	Invoices InvoiceStore
	Export   *services.ExportService
	Archive  render.Archiver
	Events   *EventBus
	Metrics  *Metrics
}

func NewInvoiceController(deps InvoiceControllerDeps) *InvoiceController {
	archive := deps.Archive
	if archive == nil {
		archive = render.NopArchive{}
	}
	export := deps.Export
	if export == nil {
		export = services.NewExportService()
	}
	return &InvoiceController{
		invoices: deps.Invoices,
		export:   export,
		html:     render.NewHTMLRenderer(),
		pdf:      render.NewPDFRenderer(),
		archive:  archive,
		events:   deps.Events,
		metrics:  deps.Metrics,
	}
}

// List handles GET /api/invoices. Without ?page the matches come back as a bare array.
func (ic *InvoiceController) List(c *gin.Context) {
	params, ok := listParams(c)
	if !ok {
		return
	}
	result, err := ic.invoices.List(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	if params.Page == 0 {
		c.JSON(http.StatusOK, result.Invoices)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/invoices/:id
func (ic *InvoiceController) Get(c *gin.Context) {
	inv, err := ic.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// POST /api/invoices
func (ic *InvoiceController) Create(c *gin.Context) {
	var payload models.InvoicePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := ic.invoices.Create(c.Request.Context(), payload)
	if err != nil {
		ic.saveFailed(err)
		respondError(c, err)
		return
	}
	ic.changed(c, EventInvoiceCreated, inv)
	c.JSON(http.StatusCreated, inv)
}

// PUT /api/invoices/:id
func (ic *InvoiceController) Update(c *gin.Context) {
	var payload models.InvoicePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := ic.invoices.Update(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		ic.saveFailed(err)
		respondError(c, err)
		return
	}
	ic.changed(c, EventInvoiceUpdated, inv)
	c.JSON(http.StatusOK, inv)
}

// DELETE /api/invoices/:id
func (ic *InvoiceController) Delete(c *gin.Context) {
	inv, err := ic.invoices.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ic.changed(c, EventInvoiceDeleted, inv)
	c.JSON(http.StatusOK, gin.H{"message": "Rechnung gelöscht", "id": inv.ID})
}

// PDF handles GET /api/invoices/:id/pdf and archives the file when an archive is configured
func (ic *InvoiceController) PDF(c *gin.Context) {
	inv, err := ic.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	doc := render.NewDocument(inv.Payload())
	data, err := ic.pdf.Bytes(doc)
	if err != nil {
		respondError(c, err)
		return
	}

	name := doc.FileName("pdf")
	if location, err := ic.archive.Archive(c.Request.Context(), name, data); err != nil {
		logger.FromContext(c.Request.Context()).Warn("failed to archive invoice pdf",
			zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
	} else if location != "" {
		c.Header("X-Archive-Location", location)
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// Print handles GET /api/invoices/:id/print
func (ic *InvoiceController) Print(c *gin.Context) {
	inv, err := ic.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := ic.html.Render(render.NewDocument(inv.Payload()))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// Export handles GET /api/invoices/export.xlsx; ?search narrows the rows
func (ic *InvoiceController) Export(c *gin.Context) {
	result, err := ic.invoices.List(c.Request.Context(), services.ListParams{Search: c.Query("search")})
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := ic.export.InvoicesXLSX(result.Invoices)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="Rechnungen.xlsx"`)
	c.DataFromReader(http.StatusOK, int64(len(data)),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		bytes.NewReader(data), nil)
}

func (ic *InvoiceController) changed(c *gin.Context, typ EventType, inv *models.StoredInvoice) {
	ic.metrics.InvoiceChanged(typ)
	ic.events.PublishInvoice(c.Request.Context(), typ, inv)
}

func (ic *InvoiceController) saveFailed(err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateInvoiceNumber):
		ic.metrics.SaveFailed("duplicate")
	case errors.Is(err, services.ErrValidation):
		ic.metrics.SaveFailed("validation")
	case errors.Is(err, services.ErrSaveBusy):
		ic.metrics.SaveFailed("busy")
	case errors.Is(err, services.ErrInvoiceNotFound):
		ic.metrics.SaveFailed("not_found")
	default:
		ic.metrics.SaveFailed("error")
	}
}

func listParams(c *gin.Context) (services.ListParams, bool) {
	params := services.ListParams{Search: c.Query("search")}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Ungültige Seitenzahl"})
			return params, false
		}
		params.Page = page
	}
	if raw := c.Query("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Ungültige Seitengröße"})
			return params, false
		}
		params.PageSize = size
	}
	return params, true
}
