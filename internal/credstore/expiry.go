package credstore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryOf extracts the expiration time from a JWT access token without
// verifying its signature; the server remains the authority on validity, the
// claim only drives proactive refresh scheduling. Returns the zero time for
// opaque tokens or tokens without an exp claim.
func ExpiryOf(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
