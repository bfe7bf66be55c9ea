package app

import (
	"slices"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

// Compile-time check: HeldPermissions implements domain.PermissionChecker.
var _ domain.PermissionChecker = HeldPermissions{}

// HeldPermissions allows a transition when it requires no permission or the
// actor holds the required one verbatim.
type HeldPermissions struct{}

func (HeldPermissions) CanExecute(actorPermissions []string, tr domain.TransitionDefinition) bool {
	if tr.RequiredPermission == "" {
		return true
	}
	return slices.Contains(actorPermissions, tr.RequiredPermission)
}
