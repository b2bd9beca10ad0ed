// Package auth centralizes the authorization predicates used by every
// lifecycle and engine guard. Role checks go through HasCapability so the
// guards stay auditable in one place.
package auth

import (
	"github.com/lijunhao/projfin/internal/apperr"
	"github.com/lijunhao/projfin/internal/models"
)

// FinanceOrAdmin is the capability set required by finance operations:
// approval decisions, imports, settlements, reports.
var FinanceOrAdmin = []models.Role{models.RoleFinance, models.RoleAdmin}

// HasCapability reports whether the user holds any of the required roles.
func HasCapability(user *models.User, required ...models.Role) bool {
	if user == nil || user.Role == "" {
		return false
	}
	for _, role := range required {
		if user.Role == role {
			return true
		}
	}
	return false
}

// RequireFinanceOrAdmin fails with Forbidden unless the user holds the
// finance or admin role.
func RequireFinanceOrAdmin(user *models.User) error {
	if !HasCapability(user, FinanceOrAdmin...) {
		return apperr.Forbidden("only finance or admin may perform this operation")
	}
	return nil
}

// IsOwnerOrPrivileged reports whether the user owns the resource or holds
// the finance/admin capability. Used by claim edit, submit and read guards.
func IsOwnerOrPrivileged(user *models.User, ownerID string) bool {
	if user == nil {
		return false
	}
	return user.UserID == ownerID || HasCapability(user, FinanceOrAdmin...)
}
