package authz_test

import (
	"testing"

	"myshop/internal/authz"
	"myshop/internal/models"
	pkgerrors "myshop/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestCanMutate(t *testing.T) {
	product := &models.Product{ID: "p1", OwnerID: "alice"}

	assert.True(t, authz.CanMutate(&authz.Identity{UserID: "alice"}, product))
	assert.False(t, authz.CanMutate(&authz.Identity{UserID: "bob"}, product))
	assert.False(t, authz.CanMutate(nil, product))
	assert.False(t, authz.CanMutate(&authz.Identity{}, &models.Product{}))
}

func TestOwnerPolicy_Authorize(t *testing.T) {
	policy := authz.OwnerPolicy{}
	product := &models.Product{ID: "p1", OwnerID: "alice"}
	alice := &authz.Identity{UserID: "alice", Username: "alice"}
	bob := &authz.Identity{UserID: "bob", Username: "bob"}

	tests := []struct {
		name     string
		identity *authz.Identity
		action   authz.Action
		product  *models.Product
		code     pkgerrors.Code
	}{
		{"anonymous list", nil, authz.ActionList, nil, ""},
		{"anonymous retrieve", nil, authz.ActionRetrieve, product, ""},
		{"anonymous statistics", nil, authz.ActionStatistics, nil, ""},
		{"anonymous create", nil, authz.ActionCreate, nil, pkgerrors.CodeUnauthorized},
		{"anonymous update", nil, authz.ActionUpdate, product, pkgerrors.CodeUnauthorized},
		{"anonymous upload", nil, authz.ActionUploadImage, product, pkgerrors.CodeUnauthorized},
		{"user create", bob, authz.ActionCreate, nil, ""},
		{"non-owner upload", bob, authz.ActionUploadImage, product, ""},
		{"owner update", alice, authz.ActionUpdate, product, ""},
		{"owner delete", alice, authz.ActionDelete, product, ""},
		{"non-owner update", bob, authz.ActionUpdate, product, pkgerrors.CodeForbidden},
		{"non-owner delete", bob, authz.ActionDelete, product, pkgerrors.CodeForbidden},
		{"unknown action", alice, authz.Action("archive"), product, pkgerrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Authorize(tt.identity, tt.action, tt.product)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, pkgerrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}
