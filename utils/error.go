package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrorBillHasPayments blocks deleting a bill while payments are still posted
	// against it. Callers must delete the payments first; bill deletion never cascades.
	ErrorBillHasPayments = errors.New("bill has posted payments")
)

// ValidationError carries a field-level message for malformed user input.
// The HTTP layer maps it to a 400; no mutation happens before it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
