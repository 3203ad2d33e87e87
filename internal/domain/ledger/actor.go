package ledger

import (
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Permission codes granted by the authorization gate
const (
	PermissionInvoiceCreate  = "invoice:create"
	PermissionInvoiceViewAll = "invoice:view_all"
)

// Actor is the authenticated user performing a ledger operation, with the
// capabilities the authorization gate granted.
type Actor struct {
	ID                 uuid.UUID
	Name               string
	CanManageInvoices  bool
	CanViewAllInvoices bool
}

// ActorFromPermissions builds an Actor from a permission code list
func ActorFromPermissions(id uuid.UUID, name string, permissions []string) Actor {
	return Actor{
		ID:                 id,
		Name:               name,
		CanManageInvoices:  lo.Contains(permissions, PermissionInvoiceCreate),
		CanViewAllInvoices: lo.Contains(permissions, PermissionInvoiceViewAll),
	}
}

// CanSee reports whether the actor may read inv
func (a Actor) CanSee(inv *Invoice) bool {
	return a.CanViewAllInvoices || inv.IsOwnedBy(a.ID)
}

// AuthorizeView returns FORBIDDEN unless the actor may read inv
func (a Actor) AuthorizeView(inv *Invoice) error {
	if !a.CanSee(inv) {
		return shared.NewDomainError(shared.ErrForbidden.Code, "You do not have access to this invoice")
	}
	return nil
}

// RequireManage returns FORBIDDEN unless the actor may create or edit invoices
func (a Actor) RequireManage() error {
	if !a.CanManageInvoices {
		return shared.NewDomainError(shared.ErrForbidden.Code, "You do not have permission to manage invoices")
	}
	return nil
}

// AuthorizeManage returns FORBIDDEN unless the actor may edit inv
func (a Actor) AuthorizeManage(inv *Invoice) error {
	if err := a.RequireManage(); err != nil {
		return err
	}
	return a.AuthorizeView(inv)
}
