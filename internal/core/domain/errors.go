package domain

import "errors"

var (
	// ErrTokenExpired marks a structurally valid but time-barred session token.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid marks a malformed token, a bad signature, or a
	// disallowed signing algorithm.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrPrincipalNotFound marks claims whose subject has no record in the
	// corresponding identity store, or an unknown principal type.
	ErrPrincipalNotFound = errors.New("principal not found")

	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshConflict marks a refresh token that was already rotated by a
	// concurrent caller. Clients treat it as a successful refresh.
	ErrRefreshConflict = errors.New("refresh token already rotated")
	ErrMaintenance     = errors.New("service under maintenance")
)

// AuthStatus is the outcome of authenticating a request.
type AuthStatus int

const (
	AuthMissing AuthStatus = iota
	AuthInvalid
	AuthExpired
	AuthOK
)

// AuthResult is the terminal outcome of the authentication gate. Principal
// is non-nil only when Status is AuthOK.
type AuthResult struct {
	Status    AuthStatus
	Principal *Principal
}
