package ledger

import (
	"fmt"
	"strings"
)

// Role is the account type carried by an authenticated identity.
type Role string

const (
	RoleUser     Role = "user"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// ParseRole validates a role claim.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleBusiness:
		return RoleBusiness, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSystem:
		return RoleSystem, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Capabilities is the set of privileged ledger actions a role may perform.
type Capabilities struct {
	CanWithdraw    bool
	CanSettle      bool
	CanDebitOthers bool
}

// Capability names one entry of Capabilities.
type Capability string

const (
	CapabilityWithdraw    Capability = "withdraw"
	CapabilitySettle      Capability = "settle"
	CapabilityDebitOthers Capability = "debit_others"
)

var roleCapabilities = map[Role]Capabilities{
	RoleUser:     {CanWithdraw: true},
	RoleBusiness: {CanWithdraw: true},
	RoleAdmin:    {CanSettle: true, CanDebitOthers: true},
	RoleSystem:   {CanDebitOthers: true},
}

// CapabilitiesFor returns the capability set of role. Unknown roles get none.
func CapabilitiesFor(role Role) Capabilities {
	return roleCapabilities[role]
}

// Allows reports whether capability is in the set.
func (capabilities Capabilities) Allows(capability Capability) bool {
	switch capability {
	case CapabilityWithdraw:
		return capabilities.CanWithdraw
	case CapabilitySettle:
		return capabilities.CanSettle
	case CapabilityDebitOthers:
		return capabilities.CanDebitOthers
	default:
		return false
	}
}

// Principal is the authenticated identity a request acts for.
type Principal struct {
	OwnerID OwnerID
	Role    Role
	Address Address
}

// Authorize fails with ErrPermissionDenied unless the principal's role grants capability.
func (principal Principal) Authorize(capability Capability) error {
	if CapabilitiesFor(principal.Role).Allows(capability) {
		return nil
	}
	return fmt.Errorf("%w: role %q cannot %s", ErrPermissionDenied, principal.Role, capability)
}

// HasAccount reports whether the identity is linked to a ledger address.
func (principal Principal) HasAccount() bool {
	return principal.Address.String() != ""
}
