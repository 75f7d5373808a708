// Package notify is the operator-facing message surface. Messages are looked up by key in a
// fixed catalog; unknown keys are shown as-is so rule texts can be passed directly.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Catalog keys
const (
	CompanyDataLoaded      = "companyDataLoaded"
	CompanyDataLoadError   = "companyDataLoadError"
	CompanyDataUpdated     = "companyDataUpdated"
	CompanyDataUpdateError = "companyDataUpdateError"
	InvoiceSaved           = "invoiceSaved"
	InvoiceSaveError       = "invoiceSaveError"
	InvoiceSaveLoading     = "invoiceSaveLoading"
	InvoiceLoaded          = "invoiceLoaded"
	InvoiceLoadError       = "invoiceLoadError"
	InvoiceDeleted         = "invoiceDeleted"
	InvoiceDeleteError     = "invoiceDeleteError"
	DuplicateInvoiceNumber = "duplicateInvoiceNumber"
	ValidationError        = "validationError"
	ItemAdded              = "itemAdded"
	ItemRemoved            = "itemRemoved"
	PDFGenerated           = "pdfGenerated"
	PDFError               = "pdfError"
	GeneralError           = "generalError"
)

var messages = map[string]string{
	CompanyDataLoaded:      "Firmendaten erfolgreich geladen",
	CompanyDataLoadError:   "Fehler beim Laden der Firmendaten",
	CompanyDataUpdated:     "Firmeninformationen erfolgreich gespeichert",
	CompanyDataUpdateError: "Fehler beim Speichern der Firmendaten",
	InvoiceSaved:           "Rechnung erfolgreich gespeichert!",
	InvoiceSaveError:       "Fehler beim Speichern der Rechnung. Bitte versuchen Sie es erneut.",
	InvoiceSaveLoading:     "Rechnung wird gespeichert...",
	InvoiceLoaded:          "Rechnung zur Bearbeitung geladen",
	InvoiceLoadError:       "Fehler beim Laden der Rechnung",
	InvoiceDeleted:         "Rechnung wurde gelöscht.",
	InvoiceDeleteError:     "Fehler beim Löschen der Rechnung",
	DuplicateInvoiceNumber: "Eine Rechnung mit dieser Rechnungsnummer existiert bereits.",
	ValidationError:        "Bitte prüfen Sie alle Pflichtfelder der Rechnungspositionen.",
	ItemAdded:              "Neue Position hinzugefügt",
	ItemRemoved:            "Position entfernt",
	PDFGenerated:           "PDF erfolgreich erstellt!",
	PDFError:               "Fehler beim Erstellen des PDFs. Bitte versuchen Sie es erneut.",
	GeneralError:           "Ein Fehler ist aufgetreten. Bitte versuchen Sie es erneut.",
}

// Message resolves a catalog key, falling back to the key itself
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}

// Notifier shows transient success/error messages to the operator
type Notifier interface {
	Success(key string)
	Error(key string)
}

// Nop drops every notification
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Success(key string) {
	for _, n := range m {
		n.Success(key)
	}
}

func (m Multi) Error(key string) {
	for _, n := range m {
		n.Error(key)
	}
}

// LogNotifier writes notifications to a zap logger
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Success(key string) {
	n.log.Info(Message(key), zap.String("notification", key))
}

func (n *LogNotifier) Error(key string) {
	n.log.Warn(Message(key), zap.String("notification", key))
}

// Level of a recorded notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Entry is one recorded notification
type Entry struct {
	Level   Level
	Key     string
	Message string
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Success(key string) { r.add(LevelSuccess, key) }
func (r *Recorder) Error(key string)   { r.add(LevelError, key) }

func (r *Recorder) add(level Level, key string) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Key: key, Message: Message(key)})
	r.mu.Unlock()
}

// Entries returns a copy of everything recorded so far
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last returns the most recent entry
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Errors returns only error entries
func (r *Recorder) Errors() []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == LevelError {
			out = append(out, e)
		}
	}
	return out
}
