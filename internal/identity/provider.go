// Package identity resolves and manages the signed-in user.
//
// The Provider interface is the identity collaborator; CognitoProvider
// implements it against an AWS Cognito user pool. Gate layers the
// pending/authenticated/unauthenticated state machine on top.
package identity

import (
	"context"
	"errors"
	"time"
)

// Identity errors
var (
	// ErrNoSession indicates no stored or refreshable session exists.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidCredentials indicates a rejected username/password or token.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrNotConfirmed indicates the account exists but has not been confirmed.
	ErrNotConfirmed = errors.New("account is not confirmed")
	// ErrUserExists indicates sign-up for a username already taken.
	ErrUserExists = errors.New("an account with this username already exists")
	// ErrInvalidCode indicates a wrong or expired confirmation code.
	ErrInvalidCode = errors.New("invalid confirmation code")
	// ErrChallengeRequired indicates the pool requested an auth challenge
	// (MFA, new password) that this client does not handle.
	ErrChallengeRequired = errors.New("additional authentication challenge required")
)

// Session is the signed-in identity.
type Session struct {
	Username  string    `json:"username" yaml:"username"`
	LoginID   string    `json:"loginId" yaml:"loginId"` // email
	Subject   string    `json:"subject" yaml:"subject"`
	ExpiresAt time.Time `json:"expiresAt" yaml:"expiresAt"`
}

// DisplayName returns the login id, else the username, else "User".
func (s *Session) DisplayName() string {
	if s == nil {
		return "User"
	}
	if s.LoginID != "" {
		return s.LoginID
	}
	if s.Username != "" {
		return s.Username
	}
	return "User"
}

// Credentials are a username/password pair.
type Credentials struct {
	Username string
	Password string
}

// SignUpParams registers a new account with email and name attributes.
type SignUpParams struct {
	Username string
	Password string
	Email    string
	Name     string
}

// SignUpResult describes the outcome of a sign-up.
type SignUpResult struct {
	UserConfirmed bool
	// Destination is where the confirmation code was sent, e.g. "j***@e***".
	Destination string
}

// Provider is the identity collaborator.
type Provider interface {
	// CurrentSession returns the stored session, refreshing tokens when
	// they are about to expire. Returns ErrNoSession when signed out.
	CurrentSession(ctx context.Context) (*Session, error)
	SignIn(ctx context.Context, creds Credentials) (*Session, error)
	SignUp(ctx context.Context, params SignUpParams) (SignUpResult, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	SignOut(ctx context.Context) error
}

// TokenProvider is implemented by providers that can supply a bearer
// token for downstream APIs.
type TokenProvider interface {
	IDToken(ctx context.Context) (string, error)
}
