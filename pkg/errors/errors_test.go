package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	pkgerrors "myshop/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestMetadataFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, pkgerrors.MetadataFor(pkgerrors.CodeValidation).HTTPStatus)
	assert.Equal(t, http.StatusForbidden, pkgerrors.MetadataFor(pkgerrors.CodeForbidden).HTTPStatus)
	assert.Equal(t, http.StatusTooManyRequests, pkgerrors.MetadataFor(pkgerrors.CodeRateLimit).HTTPStatus)
	// unknown codes fall back to internal
	assert.Equal(t, http.StatusInternalServerError, pkgerrors.MetadataFor("BOGUS").HTTPStatus)
}

func TestWrapAndAs(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "load product")
	wrapped := fmt.Errorf("handler: %w", err)

	typed := pkgerrors.As(wrapped)
	if assert.NotNil(t, typed) {
		assert.Equal(t, pkgerrors.CodeInternal, typed.Code())
		assert.Equal(t, "load product", typed.Message())
		assert.ErrorIs(t, typed, cause)
	}
	assert.True(t, pkgerrors.HasCode(wrapped, pkgerrors.CodeInternal))
	assert.False(t, pkgerrors.HasCode(cause, pkgerrors.CodeInternal))
	assert.Nil(t, pkgerrors.As(nil))
}

func TestWithDetails(t *testing.T) {
	err := pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails([]string{"price"})
	assert.Equal(t, []string{"price"}, err.Details())
	assert.Equal(t, "VALIDATION_ERROR: invalid product", err.Error())
}
