package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role classifies an identity. The set is closed: adding a role means
// updating this enumeration and the authorization rules together.
type Role string

const (
	// RoleElevated bypasses tenant scoping entirely and is the only role
	// allowed to operate across tenants.
	RoleElevated Role = "elevated"
	// RoleTenantAdmin manages users and records within its own tenant.
	RoleTenantAdmin Role = "tenant_admin"
	// RoleTechnician works on maintenance records within its tenant.
	RoleTechnician Role = "technician"
	// RoleStandard is a regular tenant user.
	RoleStandard Role = "standard"
)

// ParseRole validates a raw role claim.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleElevated:
		return RoleElevated, nil
	case RoleTenantAdmin:
		return RoleTenantAdmin, nil
	case RoleTechnician:
		return RoleTechnician, nil
	case RoleStandard:
		return RoleStandard, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Identity is the verified caller of one request. It is derived from token
// claims only and never persisted.
type Identity struct {
	Subject   string
	Role      Role
	TenantID  string // empty only for RoleElevated
	ExpiresAt time.Time
}

// Elevated reports whether the identity operates across all tenants.
func (id Identity) Elevated() bool {
	return id.Role == RoleElevated
}
