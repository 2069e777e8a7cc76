package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs tag-based validation and converts the first failure into a
// field-level ValidationError so the transport layer can surface it as a 400.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return NewValidationError(fe.Field(), "failed validation on '"+fe.Tag()+"'")
	}
	return err
}
