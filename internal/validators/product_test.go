package validators_test

import (
	"strings"
	"testing"

	"myshop/internal/validators"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func draft(name, description, price string, stock int) validators.ProductDraft {
	return validators.ProductDraft{
		Name:        strPtr(name),
		Description: strPtr(description),
		Price:       decPtr(price),
		Stock:       intPtr(stock),
	}
}

func TestValidate_AcceptsValidProduct(t *testing.T) {
	v := validators.NewProductValidator()
	errs := v.Validate(draft("Laptop", "High performance laptop", "1200.00", 10))
	assert.Empty(t, errs)
}

func TestValidate_FieldRules(t *testing.T) {
	v := validators.NewProductValidator()

	tests := []struct {
		name  string
		draft validators.ProductDraft
		field string
		code  validators.Code
	}{
		{"missing name", validators.ProductDraft{Price: decPtr("5"), Stock: intPtr(1)}, "name", validators.CodeRequired},
		{"blank name", draft("   ", "", "5", 1), "name", validators.CodeRequired},
		{"script in name", draft("<script>alert('x')</script>", "", "5", 1), "name", validators.CodeInjectionDetected},
		{"javascript scheme in description", draft("Lamp", "see JavaScript:alert(1)", "5", 1), "description", validators.CodeInjectionDetected},
		{"event handler in description", draft("Lamp", `<img src=x onerror="alert(1)">`, "5", 1), "description", validators.CodeInjectionDetected},
		{"iframe in name", draft("<IFRAME src=evil>", "", "5", 1), "name", validators.CodeInjectionDetected},
		{"missing price", validators.ProductDraft{Name: strPtr("Lamp"), Stock: intPtr(1)}, "price", validators.CodeRequired},
		{"zero price", draft("Lamp", "", "0", 1), "price", validators.CodeInvalidPrice},
		{"negative price", draft("Lamp", "", "-3.50", 1), "price", validators.CodeInvalidPrice},
		{"too many decimals", draft("Lamp", "", "3.505", 1), "price", validators.CodeInvalidPrice},
		{"negative stock", draft("Lamp", "", "5", -1), "stock", validators.CodeInvalidStock},
		{"missing stock", validators.ProductDraft{Name: strPtr("Lamp"), Price: decPtr("5")}, "stock", validators.CodeRequired},
		{"long name", draft(strings.Repeat("a", 256), "", "5", 1), "name", validators.CodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.draft)
			if assert.NotEmpty(t, errs) {
				assert.True(t, errs.HasField(tt.field), "expected error on %s, got %v", tt.field, errs)
				assert.True(t, errs.HasCode(tt.code), "expected code %s, got %v", tt.code, errs)
			}
		})
	}
}

func TestValidate_CollectsAllFieldErrors(t *testing.T) {
	v := validators.NewProductValidator()
	errs := v.Validate(draft("<script>x</script>", "", "0", -5))

	assert.Len(t, errs, 3)
	assert.True(t, errs.HasCode(validators.CodeInjectionDetected))
	assert.True(t, errs.HasCode(validators.CodeInvalidPrice))
	assert.True(t, errs.HasCode(validators.CodeInvalidStock))
	// cross-field rules are skipped while field rules fail
	assert.False(t, errs.HasCode(validators.CodeBusinessRule))
}

func TestValidate_OutOfStockName(t *testing.T) {
	v := validators.NewProductValidator()

	errs := v.Validate(draft("Widget", "", "5.00", 0))
	if assert.Len(t, errs, 1) {
		assert.Equal(t, validators.CodeBusinessRule, errs[0].Code)
		assert.Equal(t, validators.NonFieldErrors, errs[0].Field)
	}

	assert.Empty(t, v.Validate(draft("Widget (Out of Stock)", "", "5.00", 0)))
	assert.Empty(t, v.Validate(draft("WIDGET OUT OF STOCK", "", "5.00", 0)))
}

func TestValidate_ExpensiveNeedsDescription(t *testing.T) {
	v := validators.NewProductValidator()

	errs := v.Validate(draft("Server rack", "short", "15000", 2))
	if assert.Len(t, errs, 1) {
		assert.Contains(t, errs[0].Message, "at least 50 characters")
	}

	assert.Empty(t, v.Validate(draft("Server rack", strings.Repeat("d", 60), "15000", 2)))
	// exactly at the threshold is not "expensive"
	assert.Empty(t, v.Validate(draft("Server rack", "short", "10000", 2)))
}

func TestValidate_CheapHoarding(t *testing.T) {
	v := validators.NewProductValidator()

	errs := v.Validate(draft("Pencil", "", "9.99", 100))
	if assert.Len(t, errs, 1) {
		assert.Contains(t, errs[0].Message, "Cheap products")
	}
	assert.Empty(t, v.Validate(draft("Pencil", "", "9.99", 99)))
	assert.Empty(t, v.Validate(draft("Pencil", "", "10.00", 500)))
}

func TestValidate_CollectsAllBusinessRules(t *testing.T) {
	v := validators.NewProductValidator()

	// zero stock without marker, and expensive with a short description
	errs := v.Validate(draft("Yacht", "tiny", "20000", 0))
	assert.Len(t, errs, 2)
}

func TestContainsInjection(t *testing.T) {
	assert.True(t, validators.ContainsInjection("<ScRiPt src=a>b</script>"))
	assert.True(t, validators.ContainsInjection("<embed src=x>"))
	assert.True(t, validators.ContainsInjection("<object data=x>"))
	assert.True(t, validators.ContainsInjection("onclick = go()"))
	assert.False(t, validators.ContainsInjection("Python = fun"))
	assert.False(t, validators.ContainsInjection("A plain description"))
}

func TestStruct_Credentials(t *testing.T) {
	type credentials struct {
		Username string `json:"username" validate:"required,max=150"`
		Email    string `json:"email" validate:"omitempty,email"`
	}

	assert.Empty(t, validators.Struct(credentials{Username: "alice"}))

	errs := validators.Struct(credentials{Email: "not-an-email"})
	assert.True(t, errs.HasField("username"))
	assert.True(t, errs.HasField("email"))
	assert.True(t, errs.HasCode(validators.CodeRequired))
}
