package domain

// PrincipalType identifies which identity store backs a principal.
type PrincipalType string

const (
	PrincipalStaff     PrincipalType = "staff"
	PrincipalClient    PrincipalType = "client"
	PrincipalVolunteer PrincipalType = "volunteer"
	PrincipalAgency    PrincipalType = "agency"
)

const (
	RoleAdmin     = "admin"
	RoleStaff     = "staff"
	RoleClient    = "client"
	RoleVolunteer = "volunteer"
	RoleAgency    = "agency"
)

// Acting roles a volunteer may carry when they also hold a pantry-client
// profile (shopper or delivery).
const (
	ActingShopper  = "shopper"
	ActingDelivery = "delivery"
)

// Capability strings attached to staff principals, orthogonal to role.
const (
	CapabilityAdmin     = "admin"
	CapabilityWarehouse = "warehouse"
	CapabilityPantry    = "pantry"
	CapabilityDonors    = "donor_management"
	CapabilityPayroll   = "payroll"
)

// roleHierarchy maps a role to the additional roles it satisfies for
// RequireRole checks. Evaluated as a one-level set union, never as a
// recursive closure.
var roleHierarchy = map[string][]string{
	RoleStaff:     {RoleVolunteer, RoleClient},
	RoleVolunteer: {RoleClient},
	RoleAgency:    {RoleClient},
}

// Principal is the resolved, request-scoped identity derived from a verified
// session token plus one identity-store lookup. It is immutable after
// resolution and never shared across requests.
type Principal struct {
	ID           string        `json:"id"`
	Type         PrincipalType `json:"principal_type"`
	Role         string        `json:"role"`
	DisplayName  string        `json:"display_name"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Address      string        `json:"address,omitempty"`
	ActingRole   string        `json:"acting_role,omitempty"`
	ActingID     string        `json:"acting_id,omitempty"`
	Capabilities []string      `json:"capabilities,omitempty"`
}

// IsAdminEquivalent reports whether the principal bypasses role and
// capability checks: either the admin role or the admin capability.
func IsAdminEquivalent(p *Principal) bool {
	if p == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	return p.HasCapability(CapabilityAdmin)
}

// HasCapability reports whether the principal carries the given capability.
// Only staff principals have a non-empty capability set.
func (p *Principal) HasCapability(capability string) bool {
	if p == nil || capability == "" {
		return false
	}
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// EffectiveRoles returns the set of role names this principal satisfies:
// its own role, its principal type, its acting role when present, and the
// one-level hierarchy expansion of its role.
func (p *Principal) EffectiveRoles() map[string]struct{} {
	effective := make(map[string]struct{}, 4)
	if p == nil {
		return effective
	}
	if p.Role != "" {
		effective[p.Role] = struct{}{}
	}
	if p.Type != "" {
		effective[string(p.Type)] = struct{}{}
	}
	if p.ActingRole != "" {
		effective[p.ActingRole] = struct{}{}
	}
	for _, r := range roleHierarchy[p.Role] {
		effective[r] = struct{}{}
	}
	return effective
}

// SatisfiesAnyRole reports whether the principal's effective role set
// intersects the allowed set. The admin bypass is the caller's concern.
func (p *Principal) SatisfiesAnyRole(allowed ...string) bool {
	if p == nil {
		return false
	}
	effective := p.EffectiveRoles()
	for _, r := range allowed {
		if _, ok := effective[r]; ok {
			return true
		}
	}
	return false
}
