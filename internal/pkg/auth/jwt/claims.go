package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of an Echo bearer credential.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the stable user identity every other component keys on.
	ID string `json:"id"`

	// Email is the login email of the user.
	Email string `json:"email"`

	// Username is the display name of the user.
	Username string `json:"username"`
}
