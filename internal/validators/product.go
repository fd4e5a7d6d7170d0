package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Code identifies the rule a field violated.
type Code string

const (
	CodeRequired          Code = "required"
	CodeInvalid           Code = "invalid"
	CodeInjectionDetected Code = "injection_detected"
	CodeInvalidPrice      Code = "invalid_price"
	CodeInvalidStock      Code = "invalid_stock"
	CodeBusinessRule      Code = "business_rule_violation"
	CodeInvalidImage      Code = "invalid_image"
)

// NonFieldErrors is the field name used for cross-field violations.
const NonFieldErrors = "non_field_errors"

// FieldError is a single violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Errors collects every violation found for one candidate.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, "; ")
}

// HasField reports whether any violation targets field.
func (e Errors) HasField(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// HasCode reports whether any violation carries code.
func (e Errors) HasCode(code Code) bool {
	for _, fe := range e {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// ProductDraft is the fully merged candidate state of a product before persistence.
// Nil pointers mean the value was never supplied.
type ProductDraft struct {
	Name        *string          `json:"name" validate:"required,notblank,max=255,noscript"`
	Description *string          `json:"description" validate:"omitempty,noscript"`
	Price       *decimal.Decimal `json:"price" validate:"required,gt=0"`
	Stock       *int             `json:"stock" validate:"required,gte=0"`
	SKU         *string          `json:"sku" validate:"omitempty,max=50,noscript"`
}

const (
	expensivePriceThreshold  = 10000
	detailedDescriptionChars = 50
	cheapPriceThreshold      = 10
	hoardingStockThreshold   = 100
	outOfStockMarker         = "out of stock"
	maxPriceDigits           = 10
	priceDecimalPlaces       = 2
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<iframe`),
	regexp.MustCompile(`(?i)<embed`),
	regexp.MustCompile(`(?i)<object`),
}

// ContainsInjection reports whether value matches any script/HTML injection pattern.
func ContainsInjection(value string) bool {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// ProductValidator checks field-level and cross-field product rules.
type ProductValidator struct {
	validate *validator.Validate
}

// NewProductValidator creates a ProductValidator with the catalog's custom tags registered.
func NewProductValidator() *ProductValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("noscript", func(fl validator.FieldLevel) bool {
		return !ContainsInjection(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &ProductValidator{validate: v}
}

// Validate returns every violated rule of draft; a nil result means the draft is valid.
// Cross-field rules are only evaluated once all field-level rules pass.
func (pv *ProductValidator) Validate(draft ProductDraft) Errors {
	var errs Errors

	if err := pv.validate.Struct(draft); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return Errors{{Field: NonFieldErrors, Code: CodeInvalid, Message: err.Error()}}
		}
		for _, e := range validationErrors {
			errs = append(errs, translate(e))
		}
	}
	if draft.Price != nil && !errs.HasField("price") {
		if msg := checkPricePrecision(*draft.Price); msg != "" {
			errs = append(errs, FieldError{Field: "price", Code: CodeInvalidPrice, Message: msg})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	return businessRules(draft)
}

func businessRules(draft ProductDraft) Errors {
	var errs Errors

	name := *draft.Name
	description := ""
	if draft.Description != nil {
		description = *draft.Description
	}
	price := *draft.Price
	stock := *draft.Stock

	if price.GreaterThan(decimal.NewFromInt(expensivePriceThreshold)) && utf8.RuneCountInString(description) < detailedDescriptionChars {
		errs = append(errs, FieldError{
			Field:   NonFieldErrors,
			Code:    CodeBusinessRule,
			Message: "Expensive products (>$10,000) must have a detailed description (at least 50 characters).",
		})
	}
	if stock == 0 && !strings.Contains(strings.ToLower(name), outOfStockMarker) {
		errs = append(errs, FieldError{
			Field:   NonFieldErrors,
			Code:    CodeBusinessRule,
			Message: "Products with zero stock must include 'Out of Stock' in the name.",
		})
	}
	if price.LessThan(decimal.NewFromInt(cheapPriceThreshold)) && stock >= hoardingStockThreshold {
		errs = append(errs, FieldError{
			Field:   NonFieldErrors,
			Code:    CodeBusinessRule,
			Message: "Cheap products (<$10) cannot have stock of 100 or more. Consider increasing the price or reducing stock.",
		})
	}
	return errs
}

func checkPricePrecision(price decimal.Decimal) string {
	if !price.Equal(price.Round(priceDecimalPlaces)) {
		return fmt.Sprintf("Ensure that there are no more than %d decimal places.", priceDecimalPlaces)
	}
	limit := decimal.New(1, maxPriceDigits-priceDecimalPlaces)
	if price.Abs().GreaterThanOrEqual(limit) {
		return fmt.Sprintf("Ensure that there are no more than %d digits in total.", maxPriceDigits)
	}
	return ""
}

func translate(e validator.FieldError) FieldError {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return FieldError{Field: field, Code: CodeRequired, Message: "This field is required."}
	case "notblank":
		return FieldError{Field: field, Code: CodeRequired, Message: "This field may not be blank."}
	case "noscript":
		return FieldError{
			Field:   field,
			Code:    CodeInjectionDetected,
			Message: "Input contains potentially dangerous content. Please remove any HTML/JavaScript code.",
		}
	case "max":
		return FieldError{Field: field, Code: CodeInvalid, Message: fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())}
	case "min":
		return FieldError{Field: field, Code: CodeInvalid, Message: fmt.Sprintf("Ensure this field has at least %s characters.", e.Param())}
	case "email":
		return FieldError{Field: field, Code: CodeInvalid, Message: "Enter a valid email address."}
	}

	switch field {
	case "price":
		return FieldError{Field: field, Code: CodeInvalidPrice, Message: "Price must be greater than zero."}
	case "stock":
		return FieldError{Field: field, Code: CodeInvalidStock, Message: "Stock cannot be negative."}
	}
	return FieldError{Field: field, Code: CodeInvalid, Message: fmt.Sprintf("Field '%s' failed on the '%s' tag", field, e.Tag())}
}
