package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

// Authenticator resolves a bearer credential on an inbound request into one
// of the four terminal auth outcomes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) domain.AuthResult
}

// SessionService mints, refreshes and revokes sessions.
type SessionService interface {
	Login(ctx context.Context, email, password string) (*domain.StaffMember, *SessionPair, error)
	Refresh(ctx context.Context, refreshToken string) (*SessionPair, error)
}

// SessionPair carries a freshly minted session token and, when the flow
// rotates it, a refresh token.
type SessionPair struct {
	SessionToken  string
	SessionExpiry time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

// RotationStore records refresh-token rotations so that a jti can be rotated
// at most once. MarkRotated returns false when the jti was already rotated.
type RotationStore interface {
	MarkRotated(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}
