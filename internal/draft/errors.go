package draft

import (
	"errors"
	"net/http"
	"strings"

	"rechnung/server/internal/notify"
)

// Kinds of a rejected submission
var (
	ErrConflict             = errors.New("invoice number already exists")
	ErrSubmissionValidation = errors.New("submission rejected by validation")
	ErrSubmission           = errors.New("submission failed")
)

// FailureKind classifies why the backend rejected a save
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureConflict
	FailureValidation
)

func (k FailureKind) String() string {
	switch k {
	case FailureConflict:
		return "conflict"
	case FailureValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// NotificationKey is the catalog key shown for this kind
func (k FailureKind) NotificationKey() string {
	switch k {
	case FailureConflict:
		return notify.DuplicateInvoiceNumber
	case FailureValidation:
		return notify.ValidationError
	default:
		return notify.InvoiceSaveError
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureConflict:
		return ErrConflict
	case FailureValidation:
		return ErrSubmissionValidation
	default:
		return ErrSubmission
	}
}

// SubmissionError is returned by Save when the gateway call fails. It matches both the kind
// sentinel and the underlying cause under errors.Is.
type SubmissionError struct {
	Kind FailureKind
	Err  error
}

func (e *SubmissionError) Error() string {
	return e.Kind.sentinel().Error() + ": " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

type statusCoder interface {
	StatusCode() int
}

// ClassifyFailure maps a gateway error onto a failure kind. A 409 status or a duplicate-number
// message means conflict; a "validation failed"/"required" message on a 4xx (or a status-less
// error) means validation.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}

	status := 0
	var sc statusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	if status == http.StatusConflict {
		return FailureConflict
	}

	msg := err.Error()
	if strings.Contains(msg, "DUPLICATE_INVOICE_NUMBER") || strings.Contains(msg, "existiert bereits") {
		return FailureConflict
	}

	lower := strings.ToLower(msg)
	if strings.Contains(lower, "validation failed") || strings.Contains(lower, "required") {
		if status == 0 || (status >= 400 && status < 500) {
			return FailureValidation
		}
	}
	return FailureUnknown
}
