package services

import "errors"

var (
	ErrInvoiceNotFound        = errors.New("Rechnung nicht gefunden")
	ErrDuplicateInvoiceNumber = errors.New("DUPLICATE_INVOICE_NUMBER: Eine Rechnung mit dieser Rechnungsnummer existiert bereits.")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidCredentials     = errors.New("Ungültiger Benutzername oder Passwort")
	ErrAdminNotFound          = errors.New("Admin-Benutzer nicht gefunden")
	ErrInvalidToken           = errors.New("invalid token")
	ErrSaveBusy               = errors.New("Rechnung wird bereits gespeichert")
)

// ValidationFailure carries the rule message of a rejected payload. Error() reads
// "validation failed: <message>".
type ValidationFailure struct {
	Err error
}

func (e *ValidationFailure) Error() string {
	return ErrValidation.Error() + ": " + e.Err.Error()
}

func (e *ValidationFailure) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}
