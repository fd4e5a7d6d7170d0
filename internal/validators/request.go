package validators

import "github.com/go-playground/validator/v10"

var payloads = NewProductValidator()

// Struct checks a tagged request payload with the same tag set and messages as products.
func Struct(payload any) Errors {
	err := payloads.validate.Struct(payload)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return Errors{{Field: NonFieldErrors, Code: CodeInvalid, Message: err.Error()}}
	}
	errs := make(Errors, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, translate(e))
	}
	return errs
}
