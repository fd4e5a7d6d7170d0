// Package authz decides whether an acting identity may perform a catalog action.
package authz

import (
	"myshop/internal/models"
	pkgerrors "myshop/pkg/errors"
)

// Identity is the authenticated caller. A nil *Identity means anonymous.
type Identity struct {
	UserID   string
	Username string
}

// Action names a catalog operation.
type Action string

const (
	ActionList        Action = "list"
	ActionRetrieve    Action = "retrieve"
	ActionStatistics  Action = "statistics"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionUploadImage Action = "upload_image"
)

// IsRead reports whether the action never mutates state.
func (a Action) IsRead() bool {
	switch a {
	case ActionList, ActionRetrieve, ActionStatistics:
		return true
	}
	return false
}

// Policy is evaluated once per operation, after the target product has been resolved.
type Policy interface {
	Authorize(identity *Identity, action Action, product *models.Product) error
}

// CanMutate reports whether identity owns product.
func CanMutate(identity *Identity, product *models.Product) bool {
	return identity != nil && product != nil && identity.UserID != "" && identity.UserID == product.OwnerID
}

// OwnerPolicy allows reads to everyone, creation and uploads to any
// authenticated caller, and update/delete only to the owner.
type OwnerPolicy struct{}

// Authorize returns nil, an Unauthenticated or a Forbidden error.
func (OwnerPolicy) Authorize(identity *Identity, action Action, product *models.Product) error {
	if action.IsRead() {
		return nil
	}
	if identity == nil || identity.UserID == "" {
		return Unauthenticated()
	}
	switch action {
	case ActionCreate, ActionUploadImage:
		return nil
	case ActionUpdate, ActionDelete:
		if CanMutate(identity, product) {
			return nil
		}
		return Forbidden()
	}
	return Forbidden()
}

// Unauthenticated is returned when no identity was presented.
func Unauthenticated() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication credentials were not provided.")
}

// Forbidden is returned when the identity is not allowed to act on the product.
func Forbidden() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to perform this action.")
}
