package auth

import (
	"fmt"
	"strings"
)

// Scope is the effective tenant filter computed for an identity. An
// unrestricted scope has All set; otherwise only records belonging to
// TenantID are visible.
type Scope struct {
	All      bool
	TenantID string
}

// Allows reports whether a record with the given tenant id is inside the scope.
func (s Scope) Allows(tenantID string) bool {
	if s.All {
		return true
	}
	return s.TenantID != "" && s.TenantID == tenantID
}

// ReadScope computes the tenant filter applied to queries made by the
// identity. Elevated identities see every tenant; everyone else must carry a
// tenant id.
func ReadScope(id Identity) (Scope, error) {
	if id.Elevated() {
		return Scope{All: true}, nil
	}
	if strings.TrimSpace(id.TenantID) == "" {
		return Scope{}, fmt.Errorf("%w: no tenant associated with identity", ErrForbidden)
	}
	return Scope{TenantID: id.TenantID}, nil
}

// CanMutate checks whether the identity may update or delete a record owned
// by entityTenantID. Elevated identities skip the tenant check entirely.
func CanMutate(id Identity, entityTenantID string) error {
	if id.Elevated() {
		return nil
	}
	if strings.TrimSpace(id.TenantID) == "" {
		return fmt.Errorf("%w: no tenant associated with identity", ErrForbidden)
	}
	if id.TenantID != entityTenantID {
		return fmt.Errorf("%w: cross-tenant access", ErrForbidden)
	}
	return nil
}

// ResolveTenantID decides which tenant a newly created record belongs to.
// A caller-supplied tenant id is honored only for Elevated identities; all
// other identities have their own tenant forced regardless of input.
func ResolveTenantID(id Identity, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if id.Elevated() {
		if requested == "" {
			return "", fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
		}
		return requested, nil
	}
	if strings.TrimSpace(id.TenantID) == "" {
		return "", fmt.Errorf("%w: no tenant associated with identity", ErrForbidden)
	}
	return id.TenantID, nil
}

// CanCreateIdentity checks whether the actor may create a user with the given
// role in the given tenant. Only Elevated and TenantAdmin actors manage
// identities, and only Elevated actors may mint other Elevated identities.
func CanCreateIdentity(actor Identity, targetRole Role, targetTenantID string) error {
	switch actor.Role {
	case RoleElevated:
		return nil
	case RoleTenantAdmin:
		if targetRole == RoleElevated {
			return fmt.Errorf("%w: only elevated identities may create elevated identities", ErrForbidden)
		}
		return CanMutate(actor, targetTenantID)
	default:
		return fmt.Errorf("%w: role %s may not manage identities", ErrForbidden, actor.Role)
	}
}

// CanManageIdentity checks whether the actor may modify or delete an existing
// user. No role, Elevated included, may modify or delete an Elevated user.
func CanManageIdentity(actor Identity, targetRole Role, targetTenantID string) error {
	if targetRole == RoleElevated {
		return fmt.Errorf("%w: elevated identities cannot be modified", ErrForbidden)
	}
	switch actor.Role {
	case RoleElevated:
		return nil
	case RoleTenantAdmin:
		return CanMutate(actor, targetTenantID)
	default:
		return fmt.Errorf("%w: role %s may not manage identities", ErrForbidden, actor.Role)
	}
}
