package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
	"github.com/pantrylink/foodbank-api/internal/core/ports"
)

// SessionCookieName is the cookie carrying the session token when no
// Authorization header is present.
const SessionCookieName = "token"

// lookupTimeout bounds the single identity-store round trip performed per
// resolution. A store that hangs longer fails the request as invalid.
const lookupTimeout = 5 * time.Second

// SessionClaims is the decoded payload of a session token.
type SessionClaims struct {
	SubjectID     string               `json:"subjectId"`
	PrincipalType domain.PrincipalType `json:"principalType"`
	Role          string               `json:"role"`
	ActingRole    string               `json:"actingRole,omitempty"`
	ActingID      string               `json:"subjectActingId,omitempty"`
	Capabilities  []string             `json:"capabilities,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator composes credential extraction, token verification and
// principal resolution into a single gate.
type Authenticator struct {
	secret []byte
	stores ports.IdentityStores
}

func NewAuthenticator(jwtSecret string, stores ports.IdentityStores) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret), stores: stores}
}

// ExtractCredential pulls a bearer credential from the Authorization header
// or the session cookie. The header wins when both are present; a "Bearer "
// prefix is stripped, any other header value is taken verbatim. An empty
// return is the missing case, not an error.
func ExtractCredential(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return authHeader
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// VerifyToken checks the credential's signature and expiry. Only HS256 is
// accepted; a token signed with any other algorithm is invalid, never
// downgraded. Expiry is reported distinctly so callers can drive the
// refresh path.
func (a *Authenticator) VerifyToken(credential string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	if !tkn.Valid {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// Resolve looks up the current identity record for the claims' subject and
// produces a normalized Principal. Exactly one store round trip; no
// fallthrough between principal kinds.
func (a *Authenticator) Resolve(ctx context.Context, claims *SessionClaims) (*domain.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	switch claims.PrincipalType {
	case domain.PrincipalStaff:
		return a.resolveStaff(ctx, claims)
	case domain.PrincipalClient:
		return a.resolveClient(ctx, claims)
	case domain.PrincipalVolunteer:
		return a.resolveVolunteer(ctx, claims)
	case domain.PrincipalAgency:
		return a.resolveAgency(ctx, claims)
	default:
		return nil, domain.ErrPrincipalNotFound
	}
}

// resolveStaff takes capabilities from the token claim rather than the
// store: staff capabilities are coarse and change rarely, and the snapshot
// is at most one session TTL stale. Identity fields still come from the
// store.
func (a *Authenticator) resolveStaff(ctx context.Context, claims *SessionClaims) (*domain.Principal, error) {
	staff, err := a.stores.Staff.FindByID(ctx, claims.SubjectID)
	if err != nil {
		return nil, err
	}
	return &domain.Principal{
		ID:           staff.ID,
		Type:         domain.PrincipalStaff,
		Role:         staff.Role,
		DisplayName:  staff.Name,
		Email:        staff.Email,
		Capabilities: claims.Capabilities,
	}, nil
}

func (a *Authenticator) resolveClient(ctx context.Context, claims *SessionClaims) (*domain.Principal, error) {
	client, err := a.stores.Clients.FindByID(ctx, claims.SubjectID)
	if err != nil {
		return nil, err
	}
	return &domain.Principal{
		ID:          client.ID,
		Type:        domain.PrincipalClient,
		Role:        client.Role,
		DisplayName: client.Name,
		Email:       client.Email,
		Phone:       client.Phone,
		Address:     client.Address,
	}, nil
}

func (a *Authenticator) resolveVolunteer(ctx context.Context, claims *SessionClaims) (*domain.Principal, error) {
	vol, err := a.stores.Volunteers.FindByID(ctx, claims.SubjectID)
	if err != nil {
		return nil, err
	}
	p := &domain.Principal{
		ID:          vol.ID,
		Type:        domain.PrincipalVolunteer,
		Role:        domain.RoleVolunteer,
		DisplayName: vol.Name,
		Email:       vol.Email,
	}
	if claims.ActingRole != "" {
		p.ActingRole = claims.ActingRole
		p.ActingID = claims.ActingID
	}
	return p, nil
}

func (a *Authenticator) resolveAgency(ctx context.Context, claims *SessionClaims) (*domain.Principal, error) {
	agency, err := a.stores.Agencies.FindByID(ctx, claims.SubjectID)
	if err != nil {
		return nil, err
	}
	return &domain.Principal{
		ID:          agency.ID,
		Type:        domain.PrincipalAgency,
		Role:        domain.RoleAgency,
		DisplayName: agency.Name,
		Email:       agency.Email,
	}, nil
}

// Authenticate runs extract → verify → resolve and collapses every failure
// into one of the four terminal outcomes. Resolution errors of any kind,
// expected or not, map to invalid: the gate fails closed.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) domain.AuthResult {
	credential := ExtractCredential(r)
	if credential == "" {
		return domain.AuthResult{Status: domain.AuthMissing}
	}

	claims, err := a.VerifyToken(credential)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return domain.AuthResult{Status: domain.AuthExpired}
		}
		return domain.AuthResult{Status: domain.AuthInvalid}
	}

	principal, err := a.Resolve(ctx, claims)
	if err != nil {
		return domain.AuthResult{Status: domain.AuthInvalid}
	}
	return domain.AuthResult{Status: domain.AuthOK, Principal: principal}
}
