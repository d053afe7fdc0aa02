package ports

import (
	"context"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

// StaffStore defines the interface for staff-directory persistence.
type StaffStore interface {
	FindByID(ctx context.Context, id string) (*domain.StaffMember, error)
	FindByEmail(ctx context.Context, email string) (*domain.StaffMember, error)
}

// ClientStore defines the interface for pantry-client persistence.
type ClientStore interface {
	FindByID(ctx context.Context, id string) (*domain.PantryClient, error)
}

// VolunteerStore defines the interface for volunteer persistence.
type VolunteerStore interface {
	FindByID(ctx context.Context, id string) (*domain.Volunteer, error)
}

// AgencyStore defines the interface for partner-agency persistence.
type AgencyStore interface {
	FindByID(ctx context.Context, id string) (*domain.Agency, error)
}

// IdentityStores bundles the four per-kind stores consumed by the principal
// resolver. Exactly one of them is consulted per resolution.
type IdentityStores struct {
	Staff      StaffStore
	Clients    ClientStore
	Volunteers VolunteerStore
	Agencies   AgencyStore
}
