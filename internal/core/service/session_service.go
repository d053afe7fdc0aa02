package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
	"github.com/pantrylink/foodbank-api/internal/core/ports"
)

const refreshTokenUse = "refresh"

// SessionService mints session and refresh tokens for the staff directory
// login flow and rotates refresh tokens exactly once per jti.
type SessionService struct {
	staff      ports.StaffStore
	rotations  ports.RotationStore
	jwtSecret  []byte
	sessionTTL time.Duration
	refreshTTL time.Duration
}

func NewSessionService(staff ports.StaffStore, rotations ports.RotationStore, jwtSecret string, sessionTTL, refreshTTL time.Duration) *SessionService {
	if sessionTTL <= 0 {
		sessionTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &SessionService{
		staff:      staff,
		rotations:  rotations,
		jwtSecret:  []byte(jwtSecret),
		sessionTTL: sessionTTL,
		refreshTTL: refreshTTL,
	}
}

// refreshClaims is the payload of a refresh token. It snapshots the session
// claims so a refresh can re-mint without a second store round trip for
// non-staff principals; staff capabilities are re-read on rotation.
type refreshClaims struct {
	SubjectID     string               `json:"subjectId"`
	PrincipalType domain.PrincipalType `json:"principalType"`
	Role          string               `json:"role"`
	ActingRole    string               `json:"actingRole,omitempty"`
	ActingID      string               `json:"subjectActingId,omitempty"`
	TokenUse      string               `json:"tokenUse"`
	jwt.RegisteredClaims
}

// Login authenticates against the staff directory and mints a fresh
// session/refresh pair. Unknown email and wrong password collapse to the
// same error.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.StaffMember, *ports.SessionPair, error) {
	if email == "" || password == "" {
		return nil, nil, domain.ErrInvalidCredentials
	}

	staff, err := s.staff.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)) != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := s.mintPair(sessionClaimsFor(staff))
	if err != nil {
		return nil, nil, err
	}
	return staff, pair, nil
}

// Refresh rotates a refresh token into a new session/refresh pair. Each jti
// rotates at most once; a second rotation attempt for the same jti returns
// ErrRefreshConflict, which callers treat as a concurrent success.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*ports.SessionPair, error) {
	claims := &refreshClaims{}
	tkn, err := jwt.ParseWithClaims(refreshToken, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	if !tkn.Valid || claims.TokenUse != refreshTokenUse || claims.ID == "" {
		return nil, domain.ErrTokenInvalid
	}

	first, err := s.rotations.MarkRotated(ctx, claims.ID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, domain.ErrRefreshConflict
	}

	next := &SessionClaims{
		SubjectID:     claims.SubjectID,
		PrincipalType: claims.PrincipalType,
		Role:          claims.Role,
		ActingRole:    claims.ActingRole,
		ActingID:      claims.ActingID,
	}
	// Rotation is the moment the staff capability snapshot refreshes:
	// capabilities are correct as of the last login or refresh.
	if claims.PrincipalType == domain.PrincipalStaff {
		staff, err := s.staff.FindByID(ctx, claims.SubjectID)
		if err != nil {
			return nil, domain.ErrTokenInvalid
		}
		next.Role = staff.Role
		next.Capabilities = staff.Capabilities
	}

	return s.mintPair(next)
}

func sessionClaimsFor(staff *domain.StaffMember) *SessionClaims {
	return &SessionClaims{
		SubjectID:     staff.ID,
		PrincipalType: domain.PrincipalStaff,
		Role:          staff.Role,
		Capabilities:  staff.Capabilities,
	}
}

func (s *SessionService) mintPair(claims *SessionClaims) (*ports.SessionPair, error) {
	now := time.Now()
	sessionExpiry := now.Add(s.sessionTTL)
	refreshExpiry := now.Add(s.refreshTTL)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.SubjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sessionExpiry),
	}
	sessionToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	jti, err := newJTI()
	if err != nil {
		return nil, err
	}
	refresh := &refreshClaims{
		SubjectID:     claims.SubjectID,
		PrincipalType: claims.PrincipalType,
		Role:          claims.Role,
		ActingRole:    claims.ActingRole,
		ActingID:      claims.ActingID,
		TokenUse:      refreshTokenUse,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   claims.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &ports.SessionPair{
		SessionToken:  sessionToken,
		SessionExpiry: sessionExpiry,
		RefreshToken:  refreshToken,
		RefreshExpiry: refreshExpiry,
	}, nil
}

func newJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
