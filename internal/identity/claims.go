package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// idClaims are the ID token fields the client reads.
type idClaims struct {
	Email     string
	Username  string
	Subject   string
	ExpiresAt time.Time
}

// parseIDToken reads claims without verifying the signature.
// The result is used for display and expiry only.
func parseIDToken(token string) (idClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return idClaims{}, fmt.Errorf("malformed id token: %w", err)
	}

	var out idClaims
	out.Email, _ = claims["email"].(string)
	out.Username, _ = claims["cognito:username"].(string)
	out.Subject, _ = claims.GetSubject()

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return idClaims{}, fmt.Errorf("malformed id token expiry: %w", err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
